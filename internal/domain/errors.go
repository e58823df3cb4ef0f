package domain

import (
	"errors"
	"net/http"
	"slices"
)

// Error codes carried by AppError.
const (
	CodeNotFound      = 1
	CodeAlreadyExists = 2
	CodeValidation    = 3
	CodeInternal      = 4
	CodeForbidden     = 5
	// CodeTransport means the backend could not be reached at all.
	CodeTransport = 6
	// CodeUpstream means the backend answered with a non-2xx status.
	CodeUpstream = 7
	// CodeApplication means the backend answered 2xx with an error body.
	CodeApplication = 8
)

var statusByCode = map[int]int{
	CodeNotFound:      http.StatusNotFound,
	CodeAlreadyExists: http.StatusConflict,
	CodeValidation:    http.StatusBadRequest,
	CodeInternal:      http.StatusInternalServerError,
	CodeForbidden:     http.StatusForbidden,
	CodeTransport:     http.StatusBadGateway,
	CodeUpstream:      http.StatusBadGateway,
	CodeApplication:   http.StatusUnprocessableEntity,
}

// AppError is an error with a code the HTTP layer maps to a status and a
// message that is safe to show to the operator.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// Sentinels. Match them with the Is* helpers, which compare codes, rather
// than errors.Is, which compares pointers.
var (
	ErrNotFound      = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &AppError{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation    = &AppError{Code: CodeValidation, Message: "validation error"}
	ErrInternal      = &AppError{Code: CodeInternal, Message: "internal error"}
	ErrForbidden     = &AppError{Code: CodeForbidden, Message: "forbidden"}
)

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func IsNotFound(err error) bool      { return hasCode(err, CodeNotFound) }
func IsAlreadyExists(err error) bool { return hasCode(err, CodeAlreadyExists) }
func IsValidation(err error) bool    { return hasCode(err, CodeValidation) }
func IsInternal(err error) bool      { return hasCode(err, CodeInternal) }
func IsForbidden(err error) bool     { return hasCode(err, CodeForbidden) }

// IsUpstreamFailure reports whether err came from a backend call, whether
// transport, non-2xx or application-level.
func IsUpstreamFailure(err error) bool {
	return hasCode(err, CodeTransport, CodeUpstream, CodeApplication)
}

func hasCode(err error, codes ...int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && slices.Contains(codes, appErr.Code)
}

// HTTPStatusCode maps err to a response status. Anything that is not an
// AppError with a known code is a 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, ok := statusByCode[appErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}
