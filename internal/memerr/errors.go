// Package memerr defines the closed set of error kinds the memory engine
// surfaces to callers, per the engine's error handling contract.
package memerr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of caller-visible failure classes.
type Kind string

const (
	NotInitialized   Kind = "not_initialized"
	InvalidContent   Kind = "invalid_content"
	InvalidQuery     Kind = "invalid_query"
	DimensionMismatch Kind = "dimension_mismatch"
	NotFound         Kind = "not_found"
	CircuitOpen      Kind = "circuit_open"
	Timeout          Kind = "timeout"
	Unavailable      Kind = "unavailable"
	Internal         Kind = "internal"
)

// Error wraps a Kind with a human-readable cause.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind wrapping cause (which may be nil).
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Internal when err does
// not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Internal
}
