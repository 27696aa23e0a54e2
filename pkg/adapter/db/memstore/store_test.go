// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package memstore_test

import (
	"context"
	"testing"

	"github.com/orco-run/orco/pkg/adapter/db/memstore"
	"github.com/orco-run/orco/pkg/core/entry"
	"github.com/orco-run/orco/pkg/core/ref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRef(t *testing.T, name string, cfg map[string]any) *ref.Ref {
	t.Helper()
	r, err := ref.New(name, 1, cfg)
	require.NoError(t, err)
	return r
}

func TestGetOrAnnounceEntryFirstCallerComputesHere(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newRef(t, "compute", map[string]any{"a": 1})
	res, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, entry.ComputeHere, res.Status)
	assert.NotZero(t, res.ID)
}

func TestGetOrAnnounceEntrySecondCallerSeesComputingElsewhere(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newRef(t, "compute", map[string]any{"a": 1})
	_, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	res, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, entry.ComputingElsewhere, res.Status)
}

func TestGetOrAnnounceEntryAfterFinishReturnsFinished(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newRef(t, "compute", map[string]any{"a": 1})
	announced, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(ctx, announced.ID, "result", map[string]any{}, nil))

	res, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, entry.Finished, res.Status)
	assert.Equal(t, "result", res.Result)
}

func TestFinishEntryStoresNullResult(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newRef(t, "compute", map[string]any{"a": 1})
	announced, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(ctx, announced.ID, nil, map[string]any{}, nil))

	result, found, err := s.ReadResult(ctx, r)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Nil(t, result)
}

func TestCancelEntryAllowsReClaiming(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	r := newRef(t, "compute", map[string]any{"a": 1})
	announced, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	require.NoError(t, s.CancelEntry(ctx, announced.ID))

	res, err := s.GetOrAnnounceEntry(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, entry.ComputeHere, res.Status)
}

func TestCancelEntryOnMissingEntryIsNoOp(t *testing.T) {
	s := memstore.New()
	assert.NoError(t, s.CancelEntry(context.Background(), 9999))
}

func TestRemoveEntryCascadesToConsumers(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	base := newRef(t, "base", map[string]any{})
	consumer := newRef(t, "consumer", map[string]any{})

	baseAnnounced, err := s.GetOrAnnounceEntry(ctx, base)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(ctx, baseAnnounced.ID, "base-result", map[string]any{}, nil))

	consumerAnnounced, err := s.GetOrAnnounceEntry(ctx, consumer)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(
		ctx, consumerAnnounced.ID, "consumer-result", map[string]any{},
		[]ref.EntryID{baseAnnounced.ID},
	))

	require.NoError(t, s.RemoveEntry(ctx, base))

	baseEntry, err := s.ReadEntry(ctx, base)
	require.NoError(t, err)
	assert.Nil(t, baseEntry)

	consumerEntry, err := s.ReadEntry(ctx, consumer)
	require.NoError(t, err)
	assert.Nil(t, consumerEntry)
}

func TestRecursiveConsumersReturnsTransitiveClosure(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	base := newRef(t, "base", map[string]any{})
	mid := newRef(t, "mid", map[string]any{})
	top := newRef(t, "top", map[string]any{})

	baseAnnounced, err := s.GetOrAnnounceEntry(ctx, base)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(ctx, baseAnnounced.ID, "r0", map[string]any{}, nil))

	midAnnounced, err := s.GetOrAnnounceEntry(ctx, mid)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(ctx, midAnnounced.ID, "r1", map[string]any{}, []ref.EntryID{baseAnnounced.ID}))

	topAnnounced, err := s.GetOrAnnounceEntry(ctx, top)
	require.NoError(t, err)
	require.NoError(t, s.FinishEntry(ctx, topAnnounced.ID, "r2", map[string]any{}, []ref.EntryID{midAnnounced.ID}))

	consumers, err := s.RecursiveConsumers(ctx, base)
	require.NoError(t, err)
	require.Len(t, consumers, 2)
}

func TestReadRefsFiltersByName(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	_, err := s.GetOrAnnounceEntry(ctx, newRef(t, "a", map[string]any{"x": 1}))
	require.NoError(t, err)
	_, err = s.GetOrAnnounceEntry(ctx, newRef(t, "a", map[string]any{"x": 2}))
	require.NoError(t, err)
	_, err = s.GetOrAnnounceEntry(ctx, newRef(t, "b", map[string]any{}))
	require.NoError(t, err)

	refs, err := s.ReadRefs(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}
