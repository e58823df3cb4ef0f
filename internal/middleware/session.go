package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionContextKey = "session_id"

// SessionConfig controls the anonymous session cookie.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
}

// Session returns a gin middleware that gives every browser a random session
// id. The id only scopes per-user list page state; it carries no identity.
// An existing cookie holding a valid UUID is reused; otherwise a new one is
// issued.
func Session(cfg SessionConfig) gin.HandlerFunc {
	name := cfg.CookieName
	if name == "" {
		name = "_bo_session"
	}
	secure := gin.Mode() == gin.ReleaseMode

	return func(c *gin.Context) {
		id := ""
		if v, err := c.Cookie(name); err == nil {
			if parsed, err := uuid.Parse(v); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionContextKey, id)
		c.Next()
	}
}

// GetSessionID returns the session id assigned by Session, or "".
func GetSessionID(c *gin.Context) string {
	if v, exists := c.Get(sessionContextKey); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
