// Package fault defines the error taxonomy shared by the access layer and
// both transports, and the single table that maps it onto each transport.
package fault

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
)

// Code is a machine-readable failure reason.
type Code string

const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeResourceNotFound   Code = "RESOURCE_NOT_FOUND"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeInvalidGeometry    Code = "INVALID_GEOMETRY"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeStorageFault       Code = "STORAGE_FAULT"
)

// GraphQL extension codes.
const (
	ExtUnauthorized    = "UNAUTHORIZED"
	ExtNotFound        = "NOT_FOUND"
	ExtValidationError = "VALIDATION_ERROR"
	ExtInternal        = "INTERNAL_SERVER_ERROR"
)

type mapping struct {
	status    int
	extension string
}

// transports is the only place failure codes are translated for clients.
var transports = map[Code]mapping{
	CodeUnauthenticated:    {http.StatusUnauthorized, ExtUnauthorized},
	CodeForbidden:          {http.StatusForbidden, ExtUnauthorized},
	CodeResourceNotFound:   {http.StatusNotFound, ExtNotFound},
	CodeAccountNotFound:    {http.StatusNotFound, ExtNotFound},
	CodeInvalidCredentials: {http.StatusUnauthorized, ExtUnauthorized},
	CodeInvalidToken:       {http.StatusUnauthorized, ExtUnauthorized},
	CodeInvalidGeometry:    {http.StatusBadRequest, ExtValidationError},
	CodeValidationFailed:   {http.StatusBadRequest, ExtValidationError},
	CodeStorageFault:       {http.StatusInternalServerError, ExtInternal},
}

// HTTPStatus returns the REST status code for c.
func (c Code) HTTPStatus() int {
	if m, ok := transports[c]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// Extension returns the GraphQL extension code for c.
func (c Code) Extension() string {
	if m, ok := transports[c]; ok {
		return m.extension
	}
	return ExtInternal
}

// FieldError is a single field violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Error is a coded failure. Message is safe to show to clients; Cause is
// kept for logs only.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around an internal cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Storage wraps an unexpected storage failure. The cause never reaches clients.
func Storage(cause error) *Error {
	return Wrap(CodeStorageFault, "internal storage error", cause)
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthenticated = New(CodeUnauthenticated, "authentication required")
	ErrForbidden       = New(CodeForbidden, "forbidden")
	ErrNotFound        = New(CodeResourceNotFound, "resource not found")
	ErrAccountNotFound = New(CodeAccountNotFound, "account not found")
)

// From returns err as a coded error. Anything uncoded is a storage fault.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(err)
}

// CodeOf returns the failure code carried by err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

// Field records a violation for Validation.
func Field(field, format string, args ...any) error {
	return FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validation aggregates field violations into a single VALIDATION_FAILED
// error. It returns nil when errs holds no violations.
func Validation(errs ...error) error {
	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}

	var fields []FieldError
	var parts []string
	for _, err := range multierr.Errors(combined) {
		var fe FieldError
		if errors.As(err, &fe) {
			fields = append(fields, fe)
		} else {
			fields = append(fields, FieldError{Message: err.Error()})
		}
		parts = append(parts, err.Error())
	}

	return &Error{
		Code:    CodeValidationFailed,
		Message: "validation failed: " + strings.Join(parts, ", "),
		Fields:  fields,
	}
}
