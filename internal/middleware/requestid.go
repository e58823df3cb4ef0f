package middleware

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simp-lee/logger"

	"github.com/simp-lee/backoffice/internal/backend"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// Upstream ids are reused only when they look like ids: at most 64
// alphanumerics and dashes.
var upstreamIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// RequestIDConfig controls whether an incoming X-Request-ID is honored.
type RequestIDConfig struct {
	TrustUpstream bool
}

// RequestID tags every request with a fresh id. The id is echoed in the
// X-Request-ID response header, attached to log records and forwarded to the
// upstream backend.
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig is RequestID with an option to keep a well-formed
// incoming id, for deployments behind a proxy that assigns one.
func RequestIDWithConfig(cfg RequestIDConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !cfg.TrustUpstream || !upstreamIDPattern.MatchString(id) {
			id = newRequestID()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)

		ctx := logger.WithContextAttrs(c.Request.Context(), slog.String(ctxRequestID, id))
		c.Request = c.Request.WithContext(backend.WithRequestID(ctx, id))
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// newRequestID is a random UUID without dashes.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
