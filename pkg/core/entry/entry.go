// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package entry holds the Entry type and the AnnounceStatus result of
// the Store's atomic claim primitive, grounded on
// original_source/src/orco/entry.py.
package entry

import (
	"fmt"
	"time"

	"github.com/orco-run/orco/pkg/core/ref"
)

// AnnounceStatus is the result of Store.GetOrAnnounceEntry.
type AnnounceStatus int

// These constants enumerate the three possible announce outcomes, per
// spec.md §4.5/§4.8.
const (
	// ComputeHere means the caller won the claim and must execute the
	// computation itself.
	ComputeHere AnnounceStatus = iota + 1

	// ComputingElsewhere means another announced-but-unfinished entry
	// already exists; the caller should not wait.
	ComputingElsewhere

	// Finished means a finished entry already exists; its result is
	// returned alongside this status.
	Finished
)

// String returns a human readable name for s.
func (s AnnounceStatus) String() string {
	switch s {
	case ComputeHere:
		return "compute-here"
	case ComputingElsewhere:
		return "computing-elsewhere"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Entry is the persistent materialization of a Ref, as defined by
// spec.md §3: an entry is announced when present with no finished
// timestamp, and finished once one is set.
type Entry struct {
	EntryID      ref.EntryID
	Ref          *ref.Ref
	Result       any
	RunInfo      map[string]any
	CreatedDate  time.Time
	FinishedDate *time.Time // nil while announced
}

// Finished reports whether e has a finished timestamp.
func (e *Entry) Finished() bool {
	return e != nil && e.FinishedDate != nil
}

// String returns a human readable representation of e, used for debug
// logging; grounded on original_source/orco/job.py's docstring style.
func (e *Entry) String() string {
	if e == nil {
		return "<Entry nil>"
	}
	state := "announced"
	if e.Finished() {
		state = "finished"
	}
	return fmt.Sprintf("<Entry #%d %s %s>", e.EntryID, e.Ref, state)
}
