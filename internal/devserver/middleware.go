package devserver

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/angeloszaimis/termsim-devserver/internal/proxy"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// requestID tags every request with an id, keeping one the client sent. The
// id is passed on to the upstream and echoed on the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, id)
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("Request handled",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

// forward hands requests that match a proxy rule to the upstream and stops
// the chain; everything else continues to the dev server's own routes.
func forward(h *proxy.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		rule, ok := h.Table().Match(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}
		h.Forward(c.Writer, c.Request, rule)
		c.Abort()
	}
}
