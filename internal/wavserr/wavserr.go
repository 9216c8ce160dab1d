// Package wavserr provides the small set of tagged error kinds used
// across every WAVS subsystem (spec §7), so the HTTP surface and the
// dispatcher/aggregator control loops can branch on failure category
// without depending on any one package's sentinel errors.
package wavserr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories from spec §7.
type Kind string

const (
	NotFound         Kind = "not_found"
	InvalidInput     Kind = "invalid_input"
	CapabilityDenied Kind = "capability_denied"
	ResourceExhausted Kind = "resource_exhausted"
	Quorum           Kind = "quorum"
	Transient        Kind = "transient"
	Fatal            Kind = "fatal"
)

// Error wraps an underlying error with an operation name and a kind tag.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a tagged error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is a
// *Error; otherwise returns "" and false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
