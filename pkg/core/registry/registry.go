// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package registry holds the process-local name -> ComputationDescriptor
// mapping, grounded on original_source/src/orco/comp.py's Computation
// class and its ref()/__call__ binding logic. Go has no runtime
// function-signature introspection, so the argument-binding logic
// which Python derives from inspect.signature is expressed here as an
// explicit ArgSpec supplied by the caller at registration time.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/orco-run/orco/pkg/core/cerr"
)

// Fn is the callable body of a registered computation. It receives the
// fully-keyed argument mapping (defaults applied, ephemeral keys
// merged in by the runtime) and returns a result or an error. ctx
// carries the current-runtime and current-running-task bindings (see
// pkg/core/reqctx), so a computation may recurse into the runtime via
// the free functions in pkg/core/runtime without being handed an
// explicit Runtime reference.
type Fn func(ctx context.Context, args map[string]any) (any, error)

// ArgSpec describes how a computation's positional/keyword arguments
// bind into a fully-keyed argument mapping, mirroring
// original_source/src/orco/comp.py's use of
// inspect.getfullargspec/inspect.signature.bind.
type ArgSpec struct {
	// Positional lists the parameter names in declaration order.
	Positional []string

	// Defaults maps a subset of Positional's names to their default
	// values, applied when the caller does not supply that argument.
	Defaults map[string]any

	// VarKeyword, if non-empty, names the catch-all parameter that
	// variadic keyword arguments are flattened into the top-level
	// argument mapping from (mirroring Python's **kwargs flattening);
	// it is never itself a key of the returned mapping.
	VarKeyword string
}

// Bind applies args (supplied positionally, matched against
// Positional in order) and kwargs (supplied by name, which may also
// include names beyond Positional when VarKeyword is set) into a
// single fully-keyed argument mapping, with Defaults filled in for any
// name neither supplied positionally nor by keyword.
func (s ArgSpec) Bind(args []any, kwargs map[string]any) (map[string]any, error) {
	if len(args) > len(s.Positional) {
		return nil, fmt.Errorf(
			"too many positional arguments: got %d, want at most %d",
			len(args), len(s.Positional),
		)
	}
	bound := make(map[string]any, len(s.Positional)+len(kwargs))
	for i, v := range args {
		bound[s.Positional[i]] = v
	}
	known := make(map[string]bool, len(s.Positional))
	for _, name := range s.Positional {
		known[name] = true
	}
	for k, v := range kwargs {
		if !known[k] && s.VarKeyword == "" {
			return nil, fmt.Errorf("unexpected keyword argument %q", k)
		}
		if _, already := bound[k]; already {
			return nil, fmt.Errorf("argument %q bound both positionally and by keyword", k)
		}
		bound[k] = v
	}
	for name, def := range s.Defaults {
		if _, ok := bound[name]; !ok {
			bound[name] = def
		}
	}
	for _, name := range s.Positional {
		if _, ok := bound[name]; !ok {
			return nil, fmt.Errorf("missing required argument %q", name)
		}
	}
	return bound, nil
}

// Descriptor holds a registered computation: its callable, version,
// bound argument specification, and public name.
type Descriptor struct {
	Name    string
	Version int
	Fn      Fn
	Spec    ArgSpec
}

// Bind applies d's ArgSpec to (args, kwargs), yielding the fully-keyed
// argument mapping used both to compute the config_key and, merged
// with a ref's ephemeral config, to invoke d.Fn.
func (d *Descriptor) Bind(args []any, kwargs map[string]any) (map[string]any, error) {
	return d.Spec.Bind(args, kwargs)
}

// Registry is a process-local name -> *Descriptor mapping.
type Registry struct {
	mu   sync.Mutex
	data map[string]*Descriptor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{data: make(map[string]*Descriptor)}
}

// Register adds d to the registry under d.Name. It is safe for
// concurrent use; registration is expected only at process start-up,
// mirroring the teacher's appuc.UseCase mutex-guarded reload pattern.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("registry: descriptor has empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[d.Name]; exists {
		return fmt.Errorf("registry: computation %q already registered", d.Name)
	}
	r.data[d.Name] = d
	return nil
}

// Lookup returns the descriptor named name, or a
// cerr.UnknownComputation error if none is registered.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data[name]
	if !ok {
		return nil, cerr.UnknownComputation(fmt.Errorf("no computation registered as %q", name))
	}
	return d, nil
}

// Reset clears all registrations, for use between tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string]*Descriptor)
}
