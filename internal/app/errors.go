package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/pkg"
)

var errorPages = map[int]string{
	http.StatusBadRequest:          "errors/400.html",
	http.StatusForbidden:           "errors/403.html",
	http.StatusNotFound:            "errors/404.html",
	http.StatusInternalServerError: "errors/500.html",
	http.StatusBadGateway:          "errors/502.html",
}

// renderError answers with the JSON envelope for API and JSON clients and
// with an error page for everyone else. Codes without a page use 500.html.
func renderError(c *gin.Context, code int, message string) {
	if wantsJSON(c) {
		c.JSON(code, pkg.Response{Code: code, Message: message})
		return
	}
	renderErrorPage(c, code, message)
}

// wantsJSON is true under /api/ and for clients that list JSON without HTML.
// Browsers send text/html or */*, and an empty Accept gets a page too.
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	accept := strings.ToLower(c.GetHeader("Accept"))
	if strings.Contains(accept, "text/html") {
		return false
	}
	return strings.Contains(accept, "application/json") ||
		(strings.TrimSpace(accept) != "" && !strings.Contains(accept, "*/*"))
}

// renderErrorPage writes plain text when no HTML renderer is configured.
func renderErrorPage(c *gin.Context, code int, message string) {
	defer func() {
		if recover() != nil {
			c.Data(code, "text/plain; charset=utf-8", fmt.Appendf(nil, "%d %s", code, http.StatusText(code)))
		}
	}()

	page, ok := errorPages[code]
	if !ok {
		page = errorPages[http.StatusInternalServerError]
	}
	c.HTML(code, page, gin.H{"Status": code, "Message": message, "RetryURL": pkg.RetryURL(c)})
}
