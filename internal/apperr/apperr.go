package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures for the boundary layer.
type Kind string

const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	InvalidTransition Kind = "invalid_transition"
	Unauthorized      Kind = "unauthorized"
	Conflict          Kind = "conflict"
	RateLimited       Kind = "rate_limited"
	Internal          Kind = "internal"
)

// GenericMessage is shown to callers for any failure whose detail must stay
// server side.
const GenericMessage = "Something bad happened on our side."

var statusByKind = map[Kind]int{
	Validation:        http.StatusBadRequest,
	InvalidTransition: http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	Unauthorized:      http.StatusUnauthorized,
	Conflict:          http.StatusConflict,
	RateLimited:       http.StatusTooManyRequests,
	Internal:          http.StatusInternalServerError,
}

// Error is a classified failure. Message is safe to show to callers;
// Err carries the internal cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ValidationErr(message string, fields map[string]string) *Error {
	return &Error{Kind: Validation, Message: message, Fields: fields}
}

func NotFoundErr(message string) *Error {
	return New(NotFound, message)
}

func InvalidTransitionErr(from, to string) *Error {
	return New(InvalidTransition, fmt.Sprintf("Cannot change from '%s' to '%s'.", from, to))
}

func UnauthorizedErr(message string) *Error {
	return New(Unauthorized, message)
}

func ConflictErr(message string, err error) *Error {
	return Wrap(Conflict, message, err)
}

// Internal wraps an unexpected failure behind the generic public message.
func InternalErr(err error) *Error {
	return Wrap(Internal, GenericMessage, err)
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

// Status maps err onto an HTTP status code using the kind table.
func Status(err error) int {
	if ae, ok := As(err); ok {
		if status, found := statusByKind[ae.Kind]; found {
			return status
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage never exposes the wrapped cause.
func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.Message != "" && ae.Kind != Internal {
		return ae.Message
	}
	return GenericMessage
}
