package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/pkg"
)

const panicMessage = "internal server error"

// Recovery turns a handler panic into a 500. htmx callers get a toast and an
// empty body so the list stays on screen, browsers get errors/500.html and
// everything else gets the JSON envelope.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.ErrorContext(c.Request.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("request_id", GetRequestID(c)),
				slog.String("role", GetRole(c)),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
			c.Abort()

			switch {
			case pkg.IsHTMX(c):
				pkg.ErrorToast(c, "Something went wrong, please try again")
				c.Status(http.StatusInternalServerError)
			case wantsHTML(c):
				renderPanicPage(c)
			default:
				c.JSON(http.StatusInternalServerError, pkg.Response{
					Code:    http.StatusInternalServerError,
					Message: panicMessage,
				})
			}
		}()
		c.Next()
	}
}

// renderPanicPage falls back to plain text when no HTML renderer is set.
func renderPanicPage(c *gin.Context) {
	defer func() {
		if recover() != nil {
			c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("500 Internal Server Error"))
		}
	}()
	c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{"Message": panicMessage})
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.GetHeader("Accept")), "text/html")
}
