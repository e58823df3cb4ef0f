package pkg

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/backoffice/internal/domain"
)

const (
	msgSuccess     = "success"
	msgValidation  = "validation error"
	msgBadRequest  = "invalid request body"
	msgInternalErr = "internal error"
)

// Response is the JSON envelope every API endpoint answers with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ValidationErrorResponse is the 400 envelope carrying per-field messages.
type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Code: status, Message: message, Data: data})
}

func Success(c *gin.Context, data any) { respond(c, http.StatusOK, msgSuccess, data) }

func Created(c *gin.Context, data any) { respond(c, http.StatusCreated, msgSuccess, data) }

// List answers with a page of results, such as a listing.Result or a
// pagination.Pagination.
func List(c *gin.Context, result any) { respond(c, http.StatusOK, msgSuccess, result) }

// Error maps err to a status via domain.HTTPStatusCode. Only AppError
// messages reach the client.
func Error(c *gin.Context, err error) {
	msg := msgInternalErr
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	respond(c, domain.HTTPStatusCode(err), msg, nil)
}

// FieldErrors answers 400 with the given field to message map.
func FieldErrors(c *gin.Context, errs map[string]string) {
	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Code:    http.StatusBadRequest,
		Message: msgValidation,
		Errors:  errs,
	})
}

// ValidationError answers 400 for a failed bind. Validator failures are
// reported per field; anything else is a malformed body.
func ValidationError(c *gin.Context, err error) {
	validationFailure(c, err, nil)
}

// BindAndValidate binds the request into obj and answers 400 on failure.
//
//	if !pkg.BindAndValidate(c, &req) { return }
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		validationFailure(c, err, obj)
		return false
	}
	return true
}

// validationFailure names fields by their json tag when obj is a struct.
func validationFailure(c *gin.Context, err error, obj any) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		respond(c, http.StatusBadRequest, msgBadRequest, nil)
		return
	}

	tags := jsonFieldNames(obj)
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		name, ok := tags[fe.StructField()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		msg := fe.Tag()
		if p := fe.Param(); p != "" {
			msg += "=" + p
		}
		fields[name] = msg
	}
	FieldErrors(c, fields)
}

func jsonFieldNames(obj any) map[string]string {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	names := make(map[string]string, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names[f.Name] = name
		}
	}
	return names
}
