package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/weatherhub/internal/auth"
	"github.com/geocoder89/weatherhub/internal/domain/user"
	"github.com/geocoder89/weatherhub/internal/gateway"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type AuthGateway interface {
	Signup(ctx context.Context, name, email, password string) (user.Identity, error)
	Login(ctx context.Context, email, password string) (gateway.Session, error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

type AuthEvents interface {
	AuthEvent(action, outcome string)
}

type noopAuthEvents struct{}

func (noopAuthEvents) AuthEvent(string, string) {}

type AuthHandler struct {
	gw      AuthGateway
	events  AuthEvents
	timeout time.Duration
}

func NewAuthHandler(gw AuthGateway, events AuthEvents) *AuthHandler {
	if events == nil {
		events = noopAuthEvents{}
	}
	return &AuthHandler{
		gw:      gw,
		events:  events,
		timeout: 3 * time.Second,
	}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	_, err := h.gw.Signup(cctx, req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrDuplicateEmail):
			h.events.AuthEvent("signup", "duplicate")
			RespondAuthFailure(ctx, http.StatusConflict, "email_taken", "USER ALREADY EXISTS")
		default:
			h.events.AuthEvent("signup", "error")
			RespondAuthFailure(ctx, http.StatusInternalServerError, "store_unavailable", "COULD NOT SAVE USER")
		}
		return
	}

	h.events.AuthEvent("signup", "ok")
	ctx.JSON(http.StatusCreated, AuthResult{
		Bool:        true,
		Explanation: "USER ADDED SUCCESSFULLY",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	session, err := h.gw.Login(cctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			h.events.AuthEvent("login", "not_found")
			RespondAuthFailure(ctx, http.StatusNotFound, "user_not_found", "USER NOT FOUND")
		case errors.Is(err, gateway.ErrWrongPassword):
			h.events.AuthEvent("login", "wrong_password")
			RespondAuthFailure(ctx, http.StatusUnauthorized, "wrong_password", "WRONG PASSWORD")
		default:
			h.events.AuthEvent("login", "error")
			RespondInternal(ctx, "Could not log in")
		}
		return
	}

	h.events.AuthEvent("login", "ok")
	ctx.JSON(http.StatusOK, AuthResult{
		Bool:        true,
		Explanation: "LOGIN SUCCESSFUL",
		Token:       session.Token,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify runs behind the auth middleware, so reaching it means the token is
// good.
func (h *AuthHandler) Verify(ctx *gin.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user":  claims.Identity(),
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.gw.Logout(cctx, claims); err != nil {
		h.events.AuthEvent("logout", "error")
		RespondInternal(ctx, "Could not log out")
		return
	}

	h.events.AuthEvent("logout", "ok")
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// claimsFrom reads what the auth middleware stored. The key is shared with
// middlewares.CtxClaims.
func claimsFrom(ctx *gin.Context) (*auth.Claims, bool) {
	v, ok := ctx.Get("auth.claims")
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}
