// Package apperr defines the application-layer error type shared by all use-case services.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error independently of transport.
type Kind string

const (
	KindNotFound         Kind = "NOT_FOUND"
	KindForbidden        Kind = "FORBIDDEN"
	KindInvalidOperation Kind = "INVALID_OPERATION"
	KindConflict         Kind = "CONFLICT"
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"
	KindUnauthorized     Kind = "UNAUTHORIZED"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidOperation:
		return http.StatusBadRequest
	case KindConflict, KindCapacityExceeded:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func InvalidOperation(code, message string) *Error {
	return &Error{Kind: KindInvalidOperation, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func CapacityExceeded(code, message string) *Error {
	return &Error{Kind: KindCapacityExceeded, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

// Validation reports malformed input as an invalid operation; details maps field names to reasons.
func Validation(message string, details map[string]any) *Error {
	return &Error{Kind: KindInvalidOperation, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

// KindOf returns the kind of err if it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// Is reports whether err is an application error of the given kind.
func Is(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
