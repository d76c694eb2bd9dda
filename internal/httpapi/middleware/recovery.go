package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/common"
)

// Recovery turns a panic into a JSON 500 in the usual envelope.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"request_id", c.GetString(RequestIDKey),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
				common.Fail(c, apperr.Internal(fmt.Errorf("panic: %v", r), "An unexpected error occurred. Please try again later."))
			}
		}()
		c.Next()
	}
}
