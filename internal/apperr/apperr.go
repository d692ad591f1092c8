// Package apperr defines the closed set of error codes the API reports
// and the single place where each code is tied to a transport status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInsufficientPayment Code = "INSUFFICIENT_PAYMENT"
	CodeStock               Code = "STOCK_ERROR"
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeConflict            Code = "CONFLICT"
	CodePersistence         Code = "PERSISTENCE_ERROR"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Metadata describes how a code surfaces at the HTTP boundary.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadata = map[Code]Metadata{
	CodeValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid request", DetailsAllowed: true},
	CodeInsufficientPayment: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "cash paid is less than net value", DetailsAllowed: true},
	CodeStock:               {HTTPStatus: http.StatusConflict, PublicMessage: "insufficient stock", DetailsAllowed: true},
	CodeNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "not found", DetailsAllowed: true},
	CodeUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "insufficient permissions"},
	CodeConflict:            {HTTPStatus: http.StatusConflict, PublicMessage: "conflict", DetailsAllowed: true},
	CodePersistence:         {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "storage temporarily unavailable"},
	CodeInternal:            {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal error"},
}

// MetadataFor returns the boundary metadata for a code. Unknown codes get
// the internal-error metadata so nothing leaks by accident.
func MetadataFor(code Code) Metadata {
	if m, ok := metadata[code]; ok {
		return m
	}
	return metadata[CodeInternal]
}

// Error is the only error type the service layer hands to the transport.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(cause error, code Code, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDetails returns a copy carrying structured details for the client.
func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// As extracts an *Error from anywhere in the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf reports the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
