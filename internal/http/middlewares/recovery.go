package middlewares

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a generic JSON 500. The stack goes to the log,
// never to the client.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered",
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		abortWithError(c, http.StatusInternalServerError, "internal_error", "Something went wrong")
	})
}
