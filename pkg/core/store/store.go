// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package store declares the Store interface: the persistent record of
// entries, results, and dependency edges with atomic claim, grounded
// on original_source/src/orco/database.py's Database class. Concrete
// backends live under pkg/adapter/db (postgres, sqlite, memstore).
package store

import (
	"context"

	"github.com/orco-run/orco/pkg/core/entry"
	"github.com/orco-run/orco/pkg/core/ref"
)

// AnnounceResult is the outcome of GetOrAnnounceEntry: the claim
// status, the row's entry id (stable across the three statuses once
// assigned), and the result payload (populated only when status is
// entry.Finished).
type AnnounceResult struct {
	Status entry.AnnounceStatus
	ID     ref.EntryID
	Result any
}

// Store is the persistence surface described by spec.md §4.5. Every
// method is safe for concurrent use from multiple goroutines and
// multiple processes sharing the same backing database.
type Store interface {
	// Init creates the schema if absent; idempotent.
	Init(ctx context.Context) error

	// ReadEntry fetches the entry identified by r: by entry id if r is
	// bound, else by r's tuple key. It returns (nil, nil) if no such
	// entry exists.
	ReadEntry(ctx context.Context, r *ref.Ref) (*entry.Entry, error)

	// ReadResult fetches only the result payload of the entry
	// identified by r. It returns (nil, false, nil) if no such entry
	// exists, and (nil, true, nil) if the entry exists and its result
	// is the null value.
	ReadResult(ctx context.Context, r *ref.Ref) (result any, found bool, err error)

	// ReadRefs enumerates every entry registered under name, regardless
	// of version, config key, or replica.
	ReadRefs(ctx context.Context, name string) ([]*ref.Ref, error)

	// GetOrAnnounceEntry is the atomic claim primitive of spec.md
	// §4.5/§4.8: it inserts a row claiming r if absent, or reports the
	// state of the existing row.
	GetOrAnnounceEntry(ctx context.Context, r *ref.Ref) (AnnounceResult, error)

	// FinishEntry transitions an announced entry to finished, writing
	// the dependency edges (deps[i] -> id, i.e. this entry is the
	// consumer/target of each dependency's source) in the same
	// transaction as the finished timestamp.
	FinishEntry(ctx context.Context, id ref.EntryID, result any, runInfo map[string]any, deps []ref.EntryID) error

	// CancelEntry deletes an announced entry; a no-op if the entry is
	// already gone (finished, or already removed by a concurrent
	// caller).
	CancelEntry(ctx context.Context, id ref.EntryID) error

	// RemoveEntry deletes a finished entry identified by r, cascading
	// through the dependency graph to every transitive consumer.
	RemoveEntry(ctx context.Context, r *ref.Ref) error

	// RecursiveConsumers returns the transitive closure of entries that
	// (directly or indirectly) depend on the entry identified by r.
	RecursiveConsumers(ctx context.Context, r *ref.Ref) ([]*ref.Ref, error)

	// Close releases any resources (connections, file handles) held by
	// the store.
	Close() error
}
