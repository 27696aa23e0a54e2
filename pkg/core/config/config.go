// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config defines the configuration value grammar that a
// computation's arguments must conform to: a tree of basic scalars,
// ordered sequences, unordered keyed mappings, and opaque domain
// objects exposing a canonical key string. Configuration trees are
// treated as values, immutable from the runtime's viewpoint.
package config

import (
	"fmt"

	"github.com/orco-run/orco/pkg/core/cerr"
)

// Map is an unordered keyed mapping. Keys must be strings; values must
// themselves be valid configuration values. Keys beginning with a
// double underscore are ephemeral: excluded from fingerprint
// serialization and merged into the call's arguments at invocation
// time (see the ref package).
type Map map[string]any

// Seq is an ordered sequence of configuration values.
type Seq []any

// Canonical is the capability a domain object must implement in order
// to appear inside a configuration tree. It is dispatched on by the
// fingerprinter, which encodes such values as `<ClassName
// canonical-string>`.
type Canonical interface {
	// CanonicalClassName names the domain type for fingerprint
	// encoding, analogous to a Python class name.
	CanonicalClassName() string

	// CanonicalKey returns a string that uniquely identifies this
	// value's content; equal values must return equal keys.
	CanonicalKey() string
}

// Validate walks v and returns an error wrapped with
// cerr.InvalidConfigKind if any leaf falls outside the accepted
// grammar: string, int64 (or any Go integer type), float64, bool,
// nil, Seq, []any, Map, map[string]any, or a Canonical value.
//
// Mapping keys are always Go strings, so only mapping values are
// validated. Non-scalar mapping keys cannot be expressed, and neither
// this package nor the fingerprint package implements a `~`-prefixed
// encoding for them.
func Validate(v any) error {
	return validate(v, 0)
}

const maxDepth = 64

func validate(v any, depth int) error {
	if depth > maxDepth {
		return cerr.InvalidConfig(fmt.Errorf("configuration nesting exceeds %d levels", maxDepth))
	}
	switch x := v.(type) {
	case nil, string, bool:
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float32, float64:
		return nil
	case Canonical:
		return nil
	case Seq:
		for _, item := range x {
			if err := validate(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, item := range x {
			if err := validate(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case Map:
		return validateMap(map[string]any(x), depth)
	case map[string]any:
		return validateMap(x, depth)
	default:
		return cerr.InvalidConfig(fmt.Errorf("invalid item in config: %#v, type: %T", v, v))
	}
}

func validateMap(m map[string]any, depth int) error {
	for _, v := range m {
		if err := validate(v, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// IsEphemeralKey reports whether key is an ephemeral configuration key
// (prefixed with a double underscore per the authoritative rule in
// spec.md, see DESIGN.md's Open Question on the `_`/`__` ambiguity).
func IsEphemeralKey(key string) bool {
	return len(key) >= 2 && key[0] == '_' && key[1] == '_'
}

// Partition splits m into its stable and ephemeral sub-maps, per the
// ephemeral-key rule. The returned maps are both non-nil.
func Partition(m map[string]any) (stable, ephemeral map[string]any) {
	stable = make(map[string]any, len(m))
	ephemeral = make(map[string]any)
	for k, v := range m {
		if IsEphemeralKey(k) {
			ephemeral[k] = v
		} else {
			stable[k] = v
		}
	}
	return stable, ephemeral
}

// Merge returns a new map containing the entries of stable overridden
// by the entries of ephemeral, used to form the call arguments at
// invocation time (spec.md §4.6 step 2.d).
func Merge(stable, ephemeral map[string]any) map[string]any {
	out := make(map[string]any, len(stable)+len(ephemeral))
	for k, v := range stable {
		out[k] = v
	}
	for k, v := range ephemeral {
		out[k] = v
	}
	return out
}
