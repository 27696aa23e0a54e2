// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package runtime orchestrates claim/compute/finish for a set of refs
// and tracks their transitive dependencies, grounded on
// original_source/src/orco/runtime.py's Runtime class.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orco-run/orco/pkg/core/cerr"
	"github.com/orco-run/orco/pkg/core/config"
	"github.com/orco-run/orco/pkg/core/entry"
	"github.com/orco-run/orco/pkg/core/log"
	"github.com/orco-run/orco/pkg/core/ref"
	"github.com/orco-run/orco/pkg/core/refwalk"
	"github.com/orco-run/orco/pkg/core/registry"
	"github.com/orco-run/orco/pkg/core/reqctx"
	"github.com/orco-run/orco/pkg/core/store"
)

// Runtime is the orchestrator described by spec.md §4.6: it holds a
// handle to a Store and the registry of computations it is allowed to
// invoke, and drives the claim/compute/finish algorithm over arbitrary
// values that may embed *ref.Ref instances.
type Runtime struct {
	st       store.Store
	reg      *registry.Registry
	runnerID uuid.UUID
	initOnce sync.Once
	initErr  error
}

// New constructs a Runtime over st, dispatching computations through
// reg. Schema initialization is deferred to the first call that needs
// the store, mirroring the teacher's appuc.UseCase lazy/guarded
// start-up pattern. A fresh runner id is generated to tag the
// run_info of every entry this Runtime finishes (spec.md §9's "run_info
// schema is undefined"; see DESIGN.md's Open Question decision).
func New(st store.Store, reg *registry.Registry) *Runtime {
	return &Runtime{st: st, reg: reg, runnerID: uuid.New()}
}

func (rt *Runtime) ensureInit(ctx context.Context) error {
	rt.initOnce.Do(func() {
		rt.initErr = rt.st.Init(ctx)
	})
	return rt.initErr
}

// Enter binds rt as the current runtime for a context derived from
// ctx, for use by user code that calls a computation without holding a
// direct Runtime handle (spec.md §4.7). The returned scope's Exit
// method must be called, typically via defer, to restore the prior
// binding; calling Exit out of nesting order returns a
// cerr.ContextMisuse error.
func (rt *Runtime) Enter(ctx context.Context) (context.Context, *reqctx.Scope) {
	return reqctx.EnterRuntime(ctx, rt)
}

// GetResults returns obj with every embedded ref replaced by its
// computed result, computing missing ones as a side effect.
func (rt *Runtime) GetResults(ctx context.Context, obj any) (any, error) {
	entries, err := rt.GetEntries(ctx, obj)
	if err != nil {
		return nil, err
	}
	return projectResults(obj, entries), nil
}

// GetEntries returns obj with every embedded ref replaced by its full
// Entry record, computing missing ones as a side effect. It delegates
// to GetEntriesCtx, the method reqctx.Runtime requires, so nested
// computations invoked via the current-runtime binding resolve through
// the same algorithm.
func (rt *Runtime) GetEntries(ctx context.Context, obj any) (any, error) {
	return rt.GetEntriesCtx(ctx, obj)
}

// GetEntriesCtx implements reqctx.Runtime. If ctx does not already
// carry a current-runtime binding (i.e. this is the top-level call
// through a direct Runtime handle rather than a recursive call
// dispatched through the reference context), rt binds itself for the
// duration of the call so that any nested computation invoked via the
// free functions in this package can still reach it.
func (rt *Runtime) GetEntriesCtx(ctx context.Context, obj any) (any, error) {
	if err := rt.ensureInit(ctx); err != nil {
		return nil, fmt.Errorf("runtime: initializing store: %w", err)
	}
	if _, err := reqctx.CurrentRuntime(ctx); err != nil {
		var scope *reqctx.Scope
		ctx, scope = rt.Enter(ctx)
		defer func() {
			if exitErr := scope.Exit(); exitErr != nil {
				log.Error(ctx, "exiting auto-entered runtime scope", log.Err("exit_err", exitErr))
			}
		}()
	}
	refs, err := refwalk.CollectRefs(obj)
	if err != nil {
		return nil, err
	}
	resolved := make(map[ref.TupleKey]*entry.Entry, len(refs))
	for _, r := range refs {
		key := r.TupleKey()
		if _, done := resolved[key]; done {
			continue
		}
		e, err := rt.claimAndCompute(ctx, r)
		if err != nil {
			return nil, err
		}
		resolved[key] = e
	}
	entryMap := make(map[ref.TupleKey]any, len(resolved))
	for k, e := range resolved {
		entryMap[k] = e
	}
	return refwalk.Substitute(obj, entryMap), nil
}

// claimAndCompute implements spec.md §4.6's per-ref compute algorithm
// step 2.
func (rt *Runtime) claimAndCompute(ctx context.Context, r *ref.Ref) (*entry.Entry, error) {
	announced, err := rt.st.GetOrAnnounceEntry(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("runtime: announcing %s: %w", r, err)
	}
	if task, ok := reqctx.CurrentRunningTask(ctx); ok {
		task.AddDep(int64(announced.ID))
	}
	switch announced.Status {
	case entry.Finished:
		return &entry.Entry{EntryID: announced.ID, Ref: r.WithEntryID(announced.ID), Result: announced.Result}, nil
	case entry.ComputingElsewhere:
		return nil, cerr.ConcurrentComputation(
			fmt.Errorf("runtime: %s is being computed elsewhere", r),
		)
	case entry.ComputeHere:
		return rt.computeHere(ctx, r, announced.ID)
	default:
		return nil, fmt.Errorf("runtime: unexpected announce status %v for %s", announced.Status, r)
	}
}

func (rt *Runtime) computeHere(ctx context.Context, r *ref.Ref, id ref.EntryID) (*entry.Entry, error) {
	desc, err := rt.reg.Lookup(r.Name())
	if err != nil {
		cancelErr := rt.st.CancelEntry(ctx, id)
		if cancelErr != nil {
			log.Error(ctx, "cancel after unknown computation", log.Err("cancel_err", cancelErr))
		}
		return nil, err
	}
	args := config.Merge(r.StableConfig(), r.EphemeralConfig())
	task := &reqctx.RunningTask{}
	taskCtx := reqctx.WithRunningTask(ctx, task)
	startedAt := time.Now().UTC()
	log.Debug(ctx, "computing entry", slog.String("name", r.Name()), slog.Int64("entry_id", int64(id)))
	result, err := desc.Fn(taskCtx, args)
	if err != nil {
		if cancelErr := rt.st.CancelEntry(ctx, id); cancelErr != nil {
			log.Error(ctx, "cancel after failed computation", log.Err("cancel_err", cancelErr))
		}
		return nil, cerr.ComputationFailed(fmt.Errorf("computing %s: %w", r, err))
	}
	runInfo := map[string]any{
		"started_at": startedAt.Format(time.RFC3339Nano),
		"runner":     rt.runnerID.String(),
	}
	if err := rt.st.FinishEntry(ctx, id, result, runInfo, entryIDs(task.Deps())); err != nil {
		return nil, fmt.Errorf("runtime: finishing %s: %w", r, err)
	}
	return &entry.Entry{
		EntryID: id,
		Ref:     r.WithEntryID(id),
		Result:  result,
		RunInfo: runInfo,
	}, nil
}

func entryIDs(raw []int64) []ref.EntryID {
	out := make([]ref.EntryID, len(raw))
	for i, v := range raw {
		out[i] = ref.EntryID(v)
	}
	return out
}

func projectResults(obj any, entries any) any {
	// entries is obj's shape with *entry.Entry substituted for refs;
	// project each Entry down to its Result field, leaving other
	// leaves (and entries's own container shape) untouched.
	switch x := entries.(type) {
	case *entry.Entry:
		if x == nil {
			return nil
		}
		return x.Result
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = projectResults(nil, item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[k] = projectResults(nil, v)
		}
		return out
	default:
		return entries
	}
}

// ReadResults returns obj with every embedded ref replaced by its
// stored result, never computing; missing entries substitute as nil.
func (rt *Runtime) ReadResults(ctx context.Context, obj any) (any, error) {
	entries, err := rt.ReadEntries(ctx, obj)
	if err != nil {
		return nil, err
	}
	return projectResults(obj, entries), nil
}

// ReadEntries returns obj with every embedded ref replaced by its
// stored Entry, never computing; missing entries substitute as nil.
func (rt *Runtime) ReadEntries(ctx context.Context, obj any) (any, error) {
	if err := rt.ensureInit(ctx); err != nil {
		return nil, fmt.Errorf("runtime: initializing store: %w", err)
	}
	refs, err := refwalk.CollectRefs(obj)
	if err != nil {
		return nil, err
	}
	resolved := make(map[ref.TupleKey]any, len(refs))
	for _, r := range refs {
		e, err := rt.st.ReadEntry(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("runtime: reading %s: %w", r, err)
		}
		resolved[r.TupleKey()] = e
	}
	return refwalk.Substitute(obj, resolved), nil
}

// ReadRefs enumerates every stored ref registered under name.
func (rt *Runtime) ReadRefs(ctx context.Context, name string) ([]*ref.Ref, error) {
	if err := rt.ensureInit(ctx); err != nil {
		return nil, fmt.Errorf("runtime: initializing store: %w", err)
	}
	return rt.st.ReadRefs(ctx, name)
}

// RemoveEntry deletes the finished entry identified by r, cascading to
// its transitive consumers.
func (rt *Runtime) RemoveEntry(ctx context.Context, r *ref.Ref) error {
	return rt.st.RemoveEntry(ctx, r)
}

// RecursiveConsumers returns the transitive closure of entries
// consuming r, directly or indirectly.
func (rt *Runtime) RecursiveConsumers(ctx context.Context, r *ref.Ref) ([]*ref.Ref, error) {
	return rt.st.RecursiveConsumers(ctx, r)
}

// GetResults is the free function form of spec.md §6.3: it forwards to
// the runtime bound as current in ctx, failing with
// cerr.ContextMisuse if none is bound.
func GetResults(ctx context.Context, obj any) (any, error) {
	rt, err := currentRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return rt.GetResults(ctx, obj)
}

// ReadResults is the free function form of spec.md §6.3.
func ReadResults(ctx context.Context, obj any) (any, error) {
	rt, err := currentRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return rt.ReadResults(ctx, obj)
}

func currentRuntime(ctx context.Context) (*Runtime, error) {
	iface, err := reqctx.CurrentRuntime(ctx)
	if err != nil {
		return nil, err
	}
	rt, ok := iface.(*Runtime)
	if !ok {
		return nil, cerr.ContextMisuse(fmt.Errorf("runtime: bound current runtime is not a *runtime.Runtime"))
	}
	return rt, nil
}
