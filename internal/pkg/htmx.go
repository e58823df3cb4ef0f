package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/backoffice/internal/domain"
)

// Toast types understood by the showToast listener in the layout.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// ShowToast sets the HX-Trigger response header with a showToast event.
func ShowToast(c *gin.Context, message, toastType string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	})
	c.Header("HX-Trigger", string(trigger))
}

// ErrorToast shows an error toast and tells htmx not to swap the response.
func ErrorToast(c *gin.Context, message string) {
	c.Header("HX-Reswap", "none")
	ShowToast(c, message, ToastError)
}

// SafeErrorMessage extracts a user-safe error message from an AppError.
// Messages of user-facing codes are returned as is, including the messages
// the backend reports for rejected requests. Internal and transport errors
// always return the fallback so technical details do not leak.
func SafeErrorMessage(err error, fallback string) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		switch appErr.Code {
		case domain.CodeNotFound, domain.CodeAlreadyExists, domain.CodeValidation,
			domain.CodeForbidden, domain.CodeUpstream, domain.CodeApplication:
			return appErr.Message
		}
	}
	return fallback
}

// RetryURL returns the local URL that repeats the page the user was on: the
// request itself for GET, otherwise the path of the referring page. It
// returns "" when neither is known.
func RetryURL(c *gin.Context) string {
	if c.Request.Method == http.MethodGet {
		return c.Request.URL.RequestURI()
	}
	ref, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return ""
	}
	return ref.RequestURI()
}
