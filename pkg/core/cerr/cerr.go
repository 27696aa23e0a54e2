// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cerr represents the core layer errors.
// This package includes the Error struct which helps to wrap common
// errors with a Kind, so callers may classify and branch on errors
// returned from the core layer without depending on string matching.
package cerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the taxonomy entries named by
// the error handling design.
type Kind int

// These constants enumerate the error taxonomy.
const (
	// InvalidConfigKind marks a configuration containing a
	// non-serializable value, raised at ref construction or
	// fingerprinting time.
	InvalidConfigKind Kind = iota + 1

	// UnknownComputationKind marks a ref naming no registered
	// computation, raised when the runtime attempts to execute it.
	UnknownComputationKind

	// ConcurrentComputationKind marks a GetOrAnnounceEntry call that
	// returned ComputingElsewhere; the current runtime does not wait.
	ConcurrentComputationKind

	// ComputationFailedKind wraps any error raised inside a user
	// function; the runtime cancels the entry and re-raises the cause.
	ComputationFailedKind

	// ContextMisuseKind marks a call to read the current runtime with
	// none bound, or a scope exited out of its enter order.
	ContextMisuseKind
)

// String returns a human readable name for k.
func (k Kind) String() string {
	switch k {
	case InvalidConfigKind:
		return "invalid-config"
	case UnknownComputationKind:
		return "unknown-computation"
	case ConcurrentComputationKind:
		return "concurrent-computation"
	case ComputationFailedKind:
		return "computation-failed"
	case ContextMisuseKind:
		return "context-misuse"
	default:
		return "unknown"
	}
}

// Error represents an error, aka Err, tagged with the Kind category it
// belongs to.
type Error struct {
	Err  error
	Kind Kind
}

// Unwrap returns the wrapped inner error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error implements the error interface, returning a string
// representation of the Error instance.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Err.Error())
}

// Is reports whether target is a *Error of the same Kind, so callers
// may write errors.Is(err, cerr.InvalidConfig(nil)) style checks, or
// more usefully errors.Is(err, &cerr.Error{Kind: cerr.InvalidConfigKind}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// InvalidConfig wraps err and marks it as InvalidConfigKind.
func InvalidConfig(err error) *Error {
	return &Error{Err: err, Kind: InvalidConfigKind}
}

// UnknownComputation wraps err and marks it as UnknownComputationKind.
func UnknownComputation(err error) *Error {
	return &Error{Err: err, Kind: UnknownComputationKind}
}

// ConcurrentComputation wraps err and marks it as
// ConcurrentComputationKind.
func ConcurrentComputation(err error) *Error {
	return &Error{Err: err, Kind: ConcurrentComputationKind}
}

// ComputationFailed wraps err and marks it as ComputationFailedKind.
func ComputationFailed(err error) *Error {
	return &Error{Err: err, Kind: ComputationFailedKind}
}

// ContextMisuse wraps err and marks it as ContextMisuseKind.
func ContextMisuse(err error) *Error {
	return &Error{Err: err, Kind: ContextMisuseKind}
}

// Of returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
