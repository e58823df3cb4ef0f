package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/pkg"
)

const (
	csrfCookieName = "_csrf_token"
	csrfFormField  = "_csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfContextKey = "CSRFToken"
)

// csrfSigner issues and checks double-submit tokens of the form
// hex(nonce) + "." + base64url(HMAC-SHA256(nonce)).
type csrfSigner struct {
	key []byte
}

func (s csrfSigner) sign(nonce string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s csrfSigner) issue() (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	n := hex.EncodeToString(nonce)
	return n + "." + s.sign(n), nil
}

func (s csrfSigner) valid(token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || sig == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(s.sign(nonce))) == 1
}

// CSRF returns a gin middleware protecting the HTML pages and their htmx
// requests.
//
// Safe methods get a signed token cookie (readable by scripts, SameSite
// Strict) and the token in gin.Context under "CSRFToken" for templates.
// Unsafe methods must echo the cookie token in the "_csrf_token" form field
// or the X-CSRF-Token header, which the base layout sets on every htmx
// request. Failures are answered with 403; htmx callers also get a toast.
//
// The JSON API group is registered without this middleware.
func CSRF(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, pkg.Response{
				Code:    http.StatusInternalServerError,
				Message: "csrf secret is required",
			})
		}
	}

	signer := csrfSigner{key: []byte(secret)}
	secure := gin.Mode() == gin.ReleaseMode
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			token, err := c.Cookie(csrfCookieName)
			if err != nil || !signer.valid(token) {
				if token, err = signer.issue(); err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError, pkg.Response{
						Code:    http.StatusInternalServerError,
						Message: "failed to generate CSRF token",
					})
					return
				}
				http.SetCookie(c.Writer, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}
			c.Set(csrfContextKey, token)
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			cookie, _ := c.Cookie(csrfCookieName)
			submitted := c.PostForm(csrfFormField)
			if submitted == "" {
				submitted = c.GetHeader(csrfHeaderName)
			}
			if cookie == "" || submitted == "" {
				abortCSRF(c, "CSRF token missing")
				return
			}
			if !signer.valid(cookie) || subtle.ConstantTimeCompare([]byte(cookie), []byte(submitted)) != 1 {
				abortCSRF(c, "CSRF token invalid")
				return
			}
			c.Set(csrfContextKey, cookie)
		}
		c.Next()
	}
}

// GetCSRFToken returns the token stored by CSRF, or "".
func GetCSRFToken(c *gin.Context) string {
	if token, exists := c.Get(csrfContextKey); exists {
		if s, ok := token.(string); ok {
			return s
		}
	}
	return ""
}

func abortCSRF(c *gin.Context, msg string) {
	if pkg.IsHTMX(c) {
		pkg.ErrorToast(c, "Your session has expired, please reload the page")
	}
	c.AbortWithStatusJSON(http.StatusForbidden, pkg.Response{Code: http.StatusForbidden, Message: msg})
}
