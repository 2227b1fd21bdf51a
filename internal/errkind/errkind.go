// Package errkind defines the closed error-kind taxonomy used across the
// monitoring core so that polling paths can switch on a tag
// instead of relying on exceptions or ad-hoc string matching.
package errkind

import "errors"

// Kind classifies an error into one of the core's error classes.
type Kind string

const (
	Timeout      Kind = "timeout"
	Network      Kind = "network"
	Auth         Kind = "auth"
	Decode       Kind = "decode"
	NotFound     Kind = "not_found"
	Conflict     Kind = "conflict"
	Backpressure Kind = "backpressure"
	Internal     Kind = "internal"
)

// Error wraps an underlying error with its kind so callers can switch on
// the tag without parsing messages.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New tags err with kind, or returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

// KindOf extracts the tagged kind, defaulting to Internal when the error
// was not produced via New.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Internal
}
