// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package refwalk_test

import (
	"testing"

	"github.com/orco-run/orco/pkg/core/ref"
	"github.com/orco-run/orco/pkg/core/refwalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRef(t *testing.T, name string, cfg map[string]any) *ref.Ref {
	t.Helper()
	r, err := ref.New(name, 1, cfg)
	require.NoError(t, err)
	return r
}

func TestCollectRefsNestedStructures(t *testing.T) {
	r1 := newRef(t, "a", map[string]any{"x": 1})
	r2 := newRef(t, "b", map[string]any{"y": 2})
	obj := map[string]any{
		"list": []any{r1, "leaf", map[string]any{"nested": r2}},
	}
	refs, err := refwalk.CollectRefs(obj)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.True(t, refs[0].Equal(r1))
	assert.True(t, refs[1].Equal(r2))
}

func TestCollectRefsDeduplicatesByIdentity(t *testing.T) {
	r1 := newRef(t, "a", map[string]any{"x": 1})
	r1Again := newRef(t, "a", map[string]any{"x": 1})
	obj := []any{r1, r1Again, r1}
	refs, err := refwalk.CollectRefs(obj)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestCollectRefsIgnoresLeaves(t *testing.T) {
	obj := map[string]any{"a": 1, "b": "s", "c": nil}
	refs, err := refwalk.CollectRefs(obj)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCollectRefsOrdersMultipleRefsInSameMapByKey(t *testing.T) {
	r1 := newRef(t, "first", map[string]any{"x": 1})
	r2 := newRef(t, "second", map[string]any{"y": 2})
	r3 := newRef(t, "third", map[string]any{"z": 3})
	obj := map[string]any{"zeta": r3, "alpha": r1, "mu": r2}

	for i := 0; i < 20; i++ {
		refs, err := refwalk.CollectRefs(obj)
		require.NoError(t, err)
		require.Len(t, refs, 3)
		assert.True(t, refs[0].Equal(r1), "iteration %d: expected alpha's ref first", i)
		assert.True(t, refs[1].Equal(r2), "iteration %d: expected mu's ref second", i)
		assert.True(t, refs[2].Equal(r3), "iteration %d: expected zeta's ref third", i)
	}
}

func TestCollectRefsRejectsDeepCycleLikeNesting(t *testing.T) {
	var obj any = "leaf"
	for i := 0; i < 1000; i++ {
		obj = []any{obj}
	}
	_, err := refwalk.CollectRefs(obj)
	require.Error(t, err)
}

func TestSubstituteReplacesRefsPreservingShape(t *testing.T) {
	r1 := newRef(t, "a", map[string]any{"x": 1})
	r2 := newRef(t, "b", map[string]any{"y": 2})
	obj := map[string]any{
		"list": []any{r1, "leaf", map[string]any{"nested": r2}},
	}
	resolved := map[ref.TupleKey]any{
		r1.TupleKey(): "result-a",
		r2.TupleKey(): "result-b",
	}
	got := refwalk.Substitute(obj, resolved)
	want := map[string]any{
		"list": []any{"result-a", "leaf", map[string]any{"nested": "result-b"}},
	}
	assert.Equal(t, want, got)
}

func TestSubstituteMissingMappingYieldsNil(t *testing.T) {
	r1 := newRef(t, "a", map[string]any{"x": 1})
	got := refwalk.Substitute(r1, map[ref.TupleKey]any{})
	assert.Nil(t, got)
}
