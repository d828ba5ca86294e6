package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so the transport layer can map it
// to a response code without string matching.
type Kind int

const (
	NotFound Kind = iota + 1
	UnknownCategory
	InvalidTransition
	Validation
	Forbidden
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case UnknownCategory:
		return "unknown_category"
	case InvalidTransition:
		return "invalid_transition"
	case Validation:
		return "validation_error"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed engine error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a typed engine error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, or 0 if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
