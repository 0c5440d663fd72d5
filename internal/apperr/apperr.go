package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure by who can fix it.
// Handlers map kinds to HTTP status codes; protocol callbacks ignore them and
// always answer with a script or a JSON envelope.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindProvider      Kind = "provider"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
)

// Error is a classified error. Msg is safe to show to users; Err is for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind and message so that wrapped copies created
// with Wrap still satisfy errors.Is against the original sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a cause to a sentinel without changing its identity.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}
}

func Provider(msg string, cause error) *Error {
	return &Error{Kind: KindProvider, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in the chain.
// Unclassified errors are treated as provider failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProvider
}

// Message returns a short user-facing message; unclassified errors get a generic one.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindProvider && e.Err != nil {
			// Provider messages are surfaced verbatim, like the call record's error column.
			return e.Err.Error()
		}
		return e.Msg
	}
	return "an unexpected error occurred"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
