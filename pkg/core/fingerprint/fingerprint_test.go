// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package fingerprint_test

import (
	"testing"

	"github.com/orco-run/orco/pkg/core/cerr"
	"github.com/orco-run/orco/pkg/core/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	cfg := map[string]any{"b": 2, "a": 1, "nested": map[string]any{"y": 2, "x": 1}}
	k1, err := fingerprint.Fingerprint(cfg)
	require.NoError(t, err)
	k2, err := fingerprint.Fingerprint(cfg)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, string(k1), 56)
}

func TestFingerprintIgnoresMapIterationOrder(t *testing.T) {
	cfg1 := map[string]any{"a": 1, "b": 2}
	cfg2 := map[string]any{"b": 2, "a": 1}
	k1, err := fingerprint.Fingerprint(cfg1)
	require.NoError(t, err)
	k2, err := fingerprint.Fingerprint(cfg2)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestFingerprintDistinguishesDistinctConfigs(t *testing.T) {
	k1, err := fingerprint.Fingerprint(map[string]any{"a": 1})
	require.NoError(t, err)
	k2, err := fingerprint.Fingerprint(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestFingerprintStripsEphemeralKeys(t *testing.T) {
	k1, err := fingerprint.Fingerprint(map[string]any{"a": 1})
	require.NoError(t, err)
	k2, err := fingerprint.Fingerprint(map[string]any{"a": 1, "__nonce": "anything"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestFingerprintDistinguishesTypes(t *testing.T) {
	kInt, err := fingerprint.Fingerprint(map[string]any{"a": 1})
	require.NoError(t, err)
	kStr, err := fingerprint.Fingerprint(map[string]any{"a": "1"})
	require.NoError(t, err)
	assert.NotEqual(t, kInt, kStr)
}

func TestFingerprintRejectsInvalidValue(t *testing.T) {
	_, err := fingerprint.Fingerprint(map[string]any{"a": make(chan int)})
	require.Error(t, err)
	kind, ok := cerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, cerr.InvalidConfigKind, kind)
}

type fakeDomainValue struct{ id string }

func (f fakeDomainValue) CanonicalClassName() string { return "Fake" }
func (f fakeDomainValue) CanonicalKey() string        { return f.id }

func TestFingerprintCanonicalDispatch(t *testing.T) {
	k1, err := fingerprint.Fingerprint(map[string]any{"v": fakeDomainValue{id: "x"}})
	require.NoError(t, err)
	k2, err := fingerprint.Fingerprint(map[string]any{"v": fakeDomainValue{id: "x"}})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	k3, err := fingerprint.Fingerprint(map[string]any{"v": fakeDomainValue{id: "y"}})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}
