// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package reqctx_test

import (
	"context"
	"testing"

	"github.com/orco-run/orco/pkg/core/cerr"
	"github.com/orco-run/orco/pkg/core/reqctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct{}

func (fakeRuntime) GetEntriesCtx(context.Context, any) (any, error) { return nil, nil }

func TestCurrentRuntimeUnboundFails(t *testing.T) {
	_, err := reqctx.CurrentRuntime(context.Background())
	require.Error(t, err)
	kind, ok := cerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, cerr.ContextMisuseKind, kind)
}

func TestEnterRuntimeBindsCurrentRuntime(t *testing.T) {
	rt := fakeRuntime{}
	ctx, scope := reqctx.EnterRuntime(context.Background(), rt)
	got, err := reqctx.CurrentRuntime(ctx)
	require.NoError(t, err)
	assert.Equal(t, rt, got)
	require.NoError(t, scope.Exit())
}

func TestNestedScopesExitInOrderSucceed(t *testing.T) {
	ctx, outer := reqctx.EnterRuntime(context.Background(), fakeRuntime{})
	ctx, inner := reqctx.EnterRuntime(ctx, fakeRuntime{})
	_ = ctx
	require.NoError(t, inner.Exit())
	require.NoError(t, outer.Exit())
}

func TestMismatchedNestingFailsWithContextMisuse(t *testing.T) {
	ctx, outer := reqctx.EnterRuntime(context.Background(), fakeRuntime{})
	_, inner := reqctx.EnterRuntime(ctx, fakeRuntime{})
	_ = inner

	err := outer.Exit()
	require.Error(t, err)
	kind, ok := cerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, cerr.ContextMisuseKind, kind)
}

func TestExitIsNotReentrant(t *testing.T) {
	_, scope := reqctx.EnterRuntime(context.Background(), fakeRuntime{})
	require.NoError(t, scope.Exit())
	err := scope.Exit()
	require.Error(t, err)
}

func TestRunningTaskAddDepDeduplicates(t *testing.T) {
	task := &reqctx.RunningTask{}
	task.AddDep(1)
	task.AddDep(2)
	task.AddDep(1)
	assert.Equal(t, []int64{1, 2}, task.Deps())
}

func TestCurrentRunningTaskUnboundIsFalse(t *testing.T) {
	_, ok := reqctx.CurrentRunningTask(context.Background())
	assert.False(t, ok)
}

func TestWithRunningTaskBindsTask(t *testing.T) {
	task := &reqctx.RunningTask{}
	ctx := reqctx.WithRunningTask(context.Background(), task)
	got, ok := reqctx.CurrentRunningTask(ctx)
	require.True(t, ok)
	assert.Same(t, task, got)
}
