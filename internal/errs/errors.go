// Package errs provides the taxonomy errors raised by every service and
// mapped to HTTP/JSON-RPC status by the front end.
package errs

import (
	"errors"
	"fmt"
)

// Codes, matching the taxonomy exactly.
const (
	CodeNotAuthorized  = "not_authorized"
	CodeBadRequest     = "bad_request"
	CodeInvalidArgument = "invalid_argument"
	CodeNotImplemented = "not_implemented"
	CodeBadMethod      = "bad_method"
	CodeServerError    = "server_error"
)

// Error is a taxonomy error: a code plus a human message, optionally
// wrapping an underlying cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code, message string) *Error { return &Error{Code: code, Message: message} }

// NotAuthorized — invalid/missing/expired credentials.
func NotAuthorized(message string) *Error {
	if message == "" {
		message = "not authorized"
	}
	return newError(CodeNotAuthorized, message)
}

// BadRequest — malformed JSON, missing required field, malformed value.
func BadRequest(message string) *Error {
	if message == "" {
		message = "bad request"
	}
	return newError(CodeBadRequest, message)
}

// InvalidArgument — violates a semantic invariant.
func InvalidArgument(message string) *Error { return newError(CodeInvalidArgument, message) }

// NotImplemented — method not in the service map.
func NotImplemented(message string) *Error {
	if message == "" {
		message = "not implemented"
	}
	return newError(CodeNotImplemented, message)
}

// BadMethod — HTTP verb not supported.
func BadMethod(message string) *Error {
	if message == "" {
		message = "bad method"
	}
	return newError(CodeBadMethod, message)
}

// ServerError — any downstream failure (store, queue, routing engine).
func ServerError(message string) *Error {
	if message == "" {
		message = "server error"
	}
	return newError(CodeServerError, message)
}

// ServerErrorWrap wraps an underlying cause as a server_error.
func ServerErrorWrap(err error, message string) *Error {
	return &Error{Code: CodeServerError, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from err, defaulting to server_error
// for anything that isn't one of ours.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServerError
}
