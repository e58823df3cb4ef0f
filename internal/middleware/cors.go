package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds the configuration for the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to call the server. ["*"] allows
	// any origin.
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	// MaxAge is how long browsers may cache a preflight result.
	MaxAge time.Duration
}

// exposedHeaders lets cross-origin htmx clients read swap instructions and
// CSV downloads read their file name.
var exposedHeaders = strings.Join([]string{
	"HX-Trigger", "HX-Redirect", "HX-Refresh", "HX-Reswap",
	"Content-Disposition", "X-Request-ID",
}, ", ")

// DefaultCORSConfig returns a permissive configuration for development. It
// admits the caller role header and the htmx request headers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "X-User-Role",
			"X-Requested-With", "X-CSRF-Token", "X-Request-ID",
			"HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger",
		},
		MaxAge: 24 * time.Hour,
	}
}

// CORS returns a gin middleware using DefaultCORSConfig.
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig returns a gin middleware that answers cross-origin requests
// from allowed origins and short-circuits preflights with 204. Requests from
// other origins pass through without CORS headers.
func CORSWithConfig(cfg CORSConfig) gin.HandlerFunc {
	wildcard := slices.Contains(cfg.AllowOrigins, "*")
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		c.Writer.Header().Add("Vary", "Origin")

		switch {
		case wildcard && !cfg.AllowCredentials:
			c.Header("Access-Control-Allow-Origin", "*")
		case wildcard || slices.Contains(cfg.AllowOrigins, origin):
			// Credentialed responses must name the origin.
			c.Header("Access-Control-Allow-Origin", origin)
		default:
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Expose-Headers", exposedHeaders)
		if cfg.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", maxAge)
		}
		if cfg.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
