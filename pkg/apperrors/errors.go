// Package apperrors defines the error taxonomy shared by every component:
// typed errors carry enough context to pick an HTTP status at the edge
// without string matching in the handlers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Type categorizes an error for propagation and HTTP mapping.
type Type string

const (
	// TypeNotFound covers absent documents, collections, chunks and tests.
	TypeNotFound Type = "not_found"
	// TypeUpstream covers failed calls to the embedding model, completion
	// model, vector index or object store.
	TypeUpstream Type = "upstream"
	// TypeValidation covers inconsistent LLM structured output and bad
	// input (duplicate options, answer not among options, empty document).
	TypeValidation Type = "validation"
	// TypeConflict covers duplicate test submissions.
	TypeConflict Type = "conflict"
	// TypeInternal is the fallback for everything else.
	TypeInternal Type = "internal"
)

// Error is the standard error value passed between components.
type Error struct {
	Type    Type
	Op      string // logical operation, e.g. "vectorstore.AddChunks"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Type so callers can compare against sentinel-style values.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// New builds an error without a cause.
func New(t Type, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap builds an error around a cause.
func Wrap(t Type, op, message string, cause error) *Error {
	return &Error{Type: t, Op: op, Message: message, Cause: cause}
}

// NotFound reports whether err is (or wraps) a not-found error.
func NotFound(err error) bool { return isType(err, TypeNotFound) }

// Validation reports whether err is (or wraps) a validation error.
func Validation(err error) bool { return isType(err, TypeValidation) }

// Conflict reports whether err is (or wraps) a conflict error.
func Conflict(err error) bool { return isType(err, TypeConflict) }

// Upstream reports whether err is (or wraps) an upstream failure.
func Upstream(err error) bool { return isType(err, TypeUpstream) }

func isType(err error, t Type) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}

// HTTPStatus maps an error to the status code the thin router should emit.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Type {
	case TypeNotFound:
		return http.StatusNotFound
	case TypeValidation:
		return http.StatusUnprocessableEntity
	case TypeConflict:
		return http.StatusConflict
	case TypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
