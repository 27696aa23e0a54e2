// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package reqctx implements the two process-wide, context-scoped
// bindings of spec.md §4.7: the current runtime and the currently
// running task. original_source/src/orco/runtime.py keeps these as
// Python contextvars.ContextVar globals, which are themselves
// task/thread-local; context.Context value-chaining is the idiomatic
// Go analogue (see DESIGN.md's Open Question decision) since it
// already gives every call chain its own disjoint binding without a
// goroutine-local hack.
package reqctx

import (
	"context"
	"errors"
	"sync"

	"github.com/orco-run/orco/pkg/core/cerr"
)

type runtimeKey struct{}
type runningTaskKey struct{}
type stackKey struct{}

// Runtime is the capability this package needs from a runtime.Runtime
// without importing it (which would create an import cycle, since
// runtime.Runtime itself calls into this package to recurse). It is
// satisfied by *runtime.Runtime.
type Runtime interface {
	// GetEntriesCtx is the ctx-carrying form of the runtime's compute
	// algorithm, used internally when user code recurses into the
	// Runtime via the current-runtime binding rather than a direct
	// handle.
	GetEntriesCtx(ctx context.Context, obj any) (any, error)
}

// RunningTask is the context-local record of a currently-executing
// compute call, accumulating the entry ids it depends on (spec.md
// §4.6 step 2.b, §4.7).
type RunningTask struct {
	mu   sync.Mutex
	deps []int64
	seen map[int64]bool
}

// AddDep records depID as a dependency of this task if not already
// present. Safe for concurrent use, though the single-threaded-per-
// call-chain scheduling model of spec.md §5 never actually calls it
// concurrently.
func (t *RunningTask) AddDep(depID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = make(map[int64]bool)
	}
	if t.seen[depID] {
		return
	}
	t.seen[depID] = true
	t.deps = append(t.deps, depID)
}

// Deps returns the accumulated dependency entry ids, in the order they
// were first added.
func (t *RunningTask) Deps() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int64, len(t.deps))
	copy(out, t.deps)
	return out
}

// scopeStack guards the LIFO discipline of nested Enter/Exit calls
// within one call chain, so that out-of-order exits are detectable
// (spec.md §4.7: "mismatched nesting fails with ContextMisuse").
// context.Context values are themselves immutable, so this is the one
// piece of shared mutable state threaded through the context chain.
type scopeStack struct {
	mu   sync.Mutex
	ids  []uint64
	next uint64
}

// Scope represents one entry of a Runtime as the current-runtime
// binding. Exit must be called to pop the binding; it fails with
// cerr.ContextMisuse if scopes were exited out of their nesting order.
type Scope struct {
	stack *scopeStack
	id    uint64
}

// EnterRuntime binds rt as the current runtime for a derived context,
// pushing a new scope onto parent's scope stack (creating one if
// parent carries none yet). The returned context must be used by
// nested calls; the returned Scope's Exit must be called, typically
// via defer, to restore the prior binding.
func EnterRuntime(parent context.Context, rt Runtime) (context.Context, *Scope) {
	stack, _ := parent.Value(stackKey{}).(*scopeStack)
	if stack == nil {
		stack = &scopeStack{}
		parent = context.WithValue(parent, stackKey{}, stack)
	}
	stack.mu.Lock()
	stack.next++
	id := stack.next
	stack.ids = append(stack.ids, id)
	stack.mu.Unlock()
	ctx := context.WithValue(parent, runtimeKey{}, rt)
	return ctx, &Scope{stack: stack, id: id}
}

// Exit pops this scope's binding. It must be the innermost
// still-open scope of its stack; otherwise it returns
// cerr.ContextMisuse without modifying the stack.
func (s *Scope) Exit() error {
	s.stack.mu.Lock()
	defer s.stack.mu.Unlock()
	n := len(s.stack.ids)
	if n == 0 || s.stack.ids[n-1] != s.id {
		return cerr.ContextMisuse(errors.New("reqctx: scope exited out of its nesting order"))
	}
	s.stack.ids = s.stack.ids[:n-1]
	return nil
}

// CurrentRuntime returns the runtime bound to ctx, or a
// cerr.ContextMisuse error if none is bound.
func CurrentRuntime(ctx context.Context) (Runtime, error) {
	rt, ok := ctx.Value(runtimeKey{}).(Runtime)
	if !ok {
		return nil, cerr.ContextMisuse(errors.New("reqctx: no runtime is bound to this context"))
	}
	return rt, nil
}

// WithRunningTask binds t as the current running task for ctx and its
// descendants.
func WithRunningTask(ctx context.Context, t *RunningTask) context.Context {
	return context.WithValue(ctx, runningTaskKey{}, t)
}

// CurrentRunningTask returns the running task bound to ctx, and false
// if none is bound (meaning the call site is not nested inside any
// computation).
func CurrentRunningTask(ctx context.Context) (*RunningTask, bool) {
	t, ok := ctx.Value(runningTaskKey{}).(*RunningTask)
	return t, ok
}
