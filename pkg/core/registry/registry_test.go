// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package registry_test

import (
	"context"
	"testing"

	"github.com/orco-run/orco/pkg/core/cerr"
	"github.com/orco-run/orco/pkg/core/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoFn(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

func TestArgSpecBindPositional(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a", "b"}}
	bound, err := spec.Bind([]any{1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, bound)
}

func TestArgSpecBindKeyword(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a", "b"}}
	bound, err := spec.Bind(nil, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, bound)
}

func TestArgSpecBindAppliesDefaults(t *testing.T) {
	spec := registry.ArgSpec{
		Positional: []string{"a", "b"},
		Defaults:   map[string]any{"b": 10},
	}
	bound, err := spec.Bind([]any{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 10}, bound)
}

func TestArgSpecBindMissingRequiredFails(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a", "b"}}
	_, err := spec.Bind([]any{1}, nil)
	require.Error(t, err)
}

func TestArgSpecBindRejectsDoubleBinding(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a"}}
	_, err := spec.Bind([]any{1}, map[string]any{"a": 2})
	require.Error(t, err)
}

func TestArgSpecBindRejectsUnknownKeyword(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a"}}
	_, err := spec.Bind([]any{1}, map[string]any{"b": 2})
	require.Error(t, err)
}

func TestArgSpecBindVarKeywordAllowsExtras(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a"}, VarKeyword: "kwargs"}
	bound, err := spec.Bind([]any{1}, map[string]any{"extra": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "extra": "x"}, bound)
}

func TestArgSpecBindTooManyPositionalFails(t *testing.T) {
	spec := registry.ArgSpec{Positional: []string{"a"}}
	_, err := spec.Bind([]any{1, 2}, nil)
	require.Error(t, err)
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := registry.New()
	d := &registry.Descriptor{Name: "echo", Version: 1, Fn: echoFn}
	require.NoError(t, reg.Register(d))
	got, err := reg.Lookup("echo")
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestRegistryRegisterDuplicateFails(t *testing.T) {
	reg := registry.New()
	d := &registry.Descriptor{Name: "echo", Fn: echoFn}
	require.NoError(t, reg.Register(d))
	err := reg.Register(&registry.Descriptor{Name: "echo", Fn: echoFn})
	require.Error(t, err)
}

func TestRegistryLookupUnknownReturnsClassifiedError(t *testing.T) {
	reg := registry.New()
	_, err := reg.Lookup("missing")
	require.Error(t, err)
	kind, ok := cerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, cerr.UnknownComputationKind, kind)
}

func TestRegistryResetClearsRegistrations(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{Name: "echo", Fn: echoFn}))
	reg.Reset()
	_, err := reg.Lookup("echo")
	require.Error(t, err)
}
