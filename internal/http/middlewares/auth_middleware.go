package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/weatherhub/internal/auth"
	"github.com/geocoder89/weatherhub/internal/gateway"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	gw Authenticator
}

func NewAuthMiddleware(gw Authenticator) *AuthMiddleware {
	return &AuthMiddleware{gw: gw}
}

// RequireAuth answers 401 when no bearer token is presented and 403 when the
// token is invalid, expired or revoked.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.gw.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthenticated(c, err)
			return
		}

		c.Set(CtxClaims, claims)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrMissingToken):
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
	case errors.Is(err, auth.ErrTokenExpired):
		abortWithError(c, http.StatusForbidden, "token_expired", "Access token expired")
	case gateway.IsUnauthenticated(err):
		abortWithError(c, http.StatusForbidden, "forbidden", "Invalid or revoked access token")
	default:
		slog.Default().ErrorContext(c.Request.Context(), "authentication check failed", "err", err)
		abortWithError(c, http.StatusServiceUnavailable, "auth_unavailable", "Could not verify access token")
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": id,
		},
	})
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}
