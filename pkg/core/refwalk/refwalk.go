// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package refwalk traverses arbitrary values composed of sequences,
// mappings, refs, and leaves to collect embedded refs and later
// substitute their resolved values back in, grounded on
// original_source/src/orco/ref.py's collect_refs/replace_refs
// functions.
package refwalk

import (
	"fmt"
	"sort"

	"github.com/orco-run/orco/pkg/core/ref"
)

// maxDepth guards against cyclic user graphs; the system itself never
// produces cycles, but a caller-supplied obj could embed one (spec.md
// §9).
const maxDepth = 256

// CollectRefs walks obj in deterministic left-to-right depth-first
// order and returns every embedded *ref.Ref, deduplicated by identity
// (ref.Ref.TupleKey), in first-occurrence order.
//
// obj may be composed of []any, map[string]any, *ref.Ref, and leaves;
// non-container, non-ref leaves are ignored.
func CollectRefs(obj any) ([]*ref.Ref, error) {
	var ordered []*ref.Ref
	seen := make(map[ref.TupleKey]bool)
	if err := collect(obj, 0, &ordered, seen); err != nil {
		return nil, err
	}
	return ordered, nil
}

func collect(obj any, depth int, ordered *[]*ref.Ref, seen map[ref.TupleKey]bool) error {
	if depth > maxDepth {
		return fmt.Errorf("refwalk: nesting exceeds %d levels, possible cycle", maxDepth)
	}
	switch x := obj.(type) {
	case *ref.Ref:
		if x == nil {
			return nil
		}
		key := x.TupleKey()
		if !seen[key] {
			seen[key] = true
			*ordered = append(*ordered, x)
		}
		return nil
	case []any:
		for _, item := range x {
			if err := collect(item, depth+1, ordered, seen); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := collect(x[k], depth+1, ordered, seen); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// Substitute returns a structurally identical value to obj with each
// *ref.Ref replaced by its mapped value from resolved. Non-container,
// non-ref leaves are returned unchanged. resolved must be total over
// every ref collected from obj; a missing mapping substitutes nil
// (matching the read-only Runtime variants' "missing entries
// substitute as null" behavior from spec.md §4.6).
func Substitute(obj any, resolved map[ref.TupleKey]any) any {
	switch x := obj.(type) {
	case *ref.Ref:
		if x == nil {
			return obj
		}
		v, ok := resolved[x.TupleKey()]
		if !ok {
			return nil
		}
		return v
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Substitute(item, resolved)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[k] = Substitute(v, resolved)
		}
		return out
	default:
		return obj
	}
}
