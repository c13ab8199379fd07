package articles

import (
	"errors"
	"fmt"
)

// Kind classifies workflow errors so callers can map them to responses and
// retry policy. Only KindStorage is retry-eligible, and only across sweep
// cycles.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
	KindStorage           Kind = "storage"
)

// Error is a kinded workflow error.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		if e.msg != "" {
			return e.msg + ": " + e.err.Error()
		}
		return e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

// NewNotFound reports an unresolvable article id.
func NewNotFound(format string, args ...any) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// NewForbidden reports insufficient role for a transition.
func NewForbidden(format string, args ...any) error {
	return &Error{kind: KindForbidden, msg: fmt.Sprintf(format, args...)}
}

// NewInvalidTransition reports a status incompatible with the requested
// transition. Callers must re-fetch current state before retrying.
func NewInvalidTransition(format string, args ...any) error {
	return &Error{kind: KindInvalidTransition, msg: fmt.Sprintf(format, args...)}
}

// NewValidation reports a failed transition-specific guard.
func NewValidation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// WrapStorage wraps an underlying persistence failure.
func WrapStorage(msg string, err error) error {
	return &Error{kind: KindStorage, msg: msg, err: err}
}

// KindOf returns the classification of err, defaulting to KindStorage for
// unrecognized errors so unknown failures stay on the conservative path.
func KindOf(err error) Kind {
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.kind
	}
	return KindStorage
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
