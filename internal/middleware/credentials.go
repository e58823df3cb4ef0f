package middleware

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/backend"
)

const (
	roleHeader     = "X-User-Role"
	roleContextKey = "role"
)

var rolePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,99}$`)

// CredentialsConfig controls how callers are identified to the backend.
type CredentialsConfig struct {
	// DefaultRole is used when no trusted role header is present.
	DefaultRole string
	// TrustRoleHeader accepts a valid X-User-Role header.
	TrustRoleHeader bool
}

// Credentials returns a gin middleware that resolves the caller's backend
// token and role.
//
// A bearer token in the Authorization header is stored in the request context
// via backend.WithCredentials and is forwarded on every upstream call. Without
// one the backend client uses its configured token. The role is stored in
// gin.Context under the key "role".
func Credentials(cfg CredentialsConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			ctx := backend.WithCredentials(c.Request.Context(), backend.Credentials{Token: token})
			c.Request = c.Request.WithContext(ctx)
		}

		role := cfg.DefaultRole
		if cfg.TrustRoleHeader {
			if r := strings.TrimSpace(c.GetHeader(roleHeader)); rolePattern.MatchString(r) {
				role = r
			}
		}
		c.Set(roleContextKey, role)

		c.Next()
	}
}

// GetRole returns the caller role resolved by Credentials, or "".
func GetRole(c *gin.Context) string {
	if v, exists := c.Get(roleContextKey); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
