package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
	ginAttrsKey     = "logger.attrs"
)

// Middleware injects a request_id scoped logger into the gin context and logs
// one summary line per request, including any attributes handlers added with Annotate.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(ginLoggerKey, reqLogger)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if extra, ok := c.Get(ginAttrsKey); ok {
			if kv, ok := extra.([]any); ok {
				attrs = append(attrs, kv...)
			}
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// Annotate adds key/value pairs to the request summary line and returns the
// request logger enriched with the same pairs.
func Annotate(c *gin.Context, kv ...any) *slog.Logger {
	var attrs []any
	if extra, ok := c.Get(ginAttrsKey); ok {
		if prev, ok := extra.([]any); ok {
			attrs = prev
		}
	}
	c.Set(ginAttrsKey, append(attrs, kv...))

	l := FromGin(c).With(kv...)
	c.Set(ginLoggerKey, l)
	return l
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
