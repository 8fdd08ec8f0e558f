package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger emits one slog line per request once the handler chain finished.
// Server errors log at warn so they stand out of the request stream.
func Logger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", requestIDFrom(c),
			"ip", c.ClientIP(),
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", attrs...)
			return
		}
		log.Info("request completed", attrs...)
	}
}
