// Package errors is the typed error taxonomy shared by handlers, services and
// workers. Each Code renders one way over HTTP; see RenderingFor.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeGatewayUnavailable  Code = "GATEWAY_UNAVAILABLE"
	CodeNotificationFailure Code = "NOTIFICATION_FAILURE"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_CONFLICT"
	CodeRateLimit           Code = "RATE_LIMITED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
)

// Rendering is how errors of one Code reach an HTTP client.
type Rendering struct {
	Status int
	// Fallback replaces the error's own message unless Expose is set.
	Fallback string
	Expose   bool
	Details  bool
}

// business errors carry a message written for the shopper or admin.
func business(status int, fallback string, details bool) Rendering {
	return Rendering{Status: status, Fallback: fallback, Expose: true, Details: details}
}

// opaque errors keep their message and cause in the logs.
func opaque(status int, fallback string) Rendering {
	return Rendering{Status: status, Fallback: fallback}
}

var renderings = map[Code]Rendering{
	CodeValidation:          business(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:        business(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:           business(http.StatusForbidden, "access denied", false),
	CodeNotFound:            business(http.StatusNotFound, "resource not found", false),
	CodeConflict:            business(http.StatusConflict, "conflict detected", false),
	CodeInsufficientStock:   business(http.StatusBadRequest, "insufficient stock", true),
	CodeInvalidTransition:   business(http.StatusUnprocessableEntity, "status transition not allowed", true),
	CodeGatewayUnavailable:  business(http.StatusServiceUnavailable, "payment gateway unavailable", false),
	CodeIdempotency:         business(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:           business(http.StatusTooManyRequests, "too many requests", false),
	CodeNotificationFailure: opaque(http.StatusInternalServerError, "notification failed"),
	CodeInternal:            opaque(http.StatusInternalServerError, "internal server error"),
	CodeDependency:          opaque(http.StatusServiceUnavailable, "dependency unavailable"),
}

// RenderingFor falls back to CodeInternal for unknown codes.
func RenderingFor(code Code) Rendering {
	if r, ok := renderings[code]; ok {
		return r
	}
	return renderings[CodeInternal]
}

// Error is a coded error with an optional cause and client-safe details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Public is the client-visible part of an error.
type Public struct {
	Status  int
	Code    Code
	Message string
	Details any
}

// Render reduces err to what may be sent to a client. Untyped errors become
// INTERNAL_ERROR with the generic message.
func Render(err error) Public {
	typed := As(err)
	if typed == nil {
		typed = Wrap(CodeInternal, err, "")
	}
	r := RenderingFor(typed.code)
	pub := Public{Status: r.Status, Code: typed.code, Message: r.Fallback}
	if _, known := renderings[typed.code]; !known {
		pub.Code = CodeInternal
	}
	if r.Expose && typed.message != "" {
		pub.Message = typed.message
	}
	if r.Details {
		pub.Details = typed.details
	}
	return pub
}
