package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// AuthResult is the body of signup and login responses. Clients branch on
// Bool; Reason is set when it is false.
type AuthResult struct {
	Bool        bool   `json:"bool"`
	Explanation string `json:"explanation,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Code        string `json:"code,omitempty"`
	Token       string `json:"token,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondAuthFailure(ctx *gin.Context, status int, code, reason string) {
	ctx.JSON(status, AuthResult{
		Bool:      false,
		Reason:    reason,
		Code:      code,
		RequestID: requestIDFrom(ctx),
	})
}

// RespondUpstream reports a weather provider failure without provider detail.
func RespondUpstream(ctx *gin.Context) {
	ctx.JSON(http.StatusInternalServerError, gin.H{
		"message":   "Error fetching weather data",
		"requestId": requestIDFrom(ctx),
	})
}

// NoRoute answers unknown paths.
func NoRoute(ctx *gin.Context) {
	RespondNotFound(ctx, "Route not found")
}
