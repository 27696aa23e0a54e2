// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fingerprint computes the deterministic configuration
// fingerprint (ConfigKey) that makes the claim/memoize protocol and
// the dependency-aware execution engine meaningful: equal
// configurations (after stripping ephemeral keys) must produce equal
// keys regardless of process, language-runtime version, or mapping
// iteration order.
//
// The canonicalization algorithm is grounded on
// original_source/src/orco/ref.py's _make_key_helper/make_key: scalars
// are encoded by their total printable representation, sequences as
// [elem,elem,...], mappings as {key:value,...} with keys sorted by
// their own serialized form, and domain objects (anything implementing
// config.Canonical) as <ClassName canonical-string>.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/orco-run/orco/pkg/core/cerr"
	"github.com/orco-run/orco/pkg/core/config"
)

// ConfigKey is a fixed-width hexadecimal digest of a configuration's
// canonical serialization: 56 hex characters, i.e. a SHA-224 digest.
type ConfigKey string

// String returns k's hex representation.
func (k ConfigKey) String() string {
	return string(k)
}

// Fingerprint returns the ConfigKey of cfg: the hex SHA-224 digest of
// Canonicalize(cfg). It fails with cerr.InvalidConfigKind if cfg
// contains a value outside the configuration grammar.
func Fingerprint(cfg map[string]any) (ConfigKey, error) {
	b, err := Canonicalize(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum224(b)
	return ConfigKey(hex.EncodeToString(sum[:])), nil
}

// Canonicalize returns the intermediate canonical byte serialization
// of cfg, exposed for testing. Ephemeral (double-underscore prefixed)
// keys are stripped, per spec.md §3/§9.
func Canonicalize(cfg map[string]any) ([]byte, error) {
	var buf []byte
	buf, err := appendMap(buf, cfg)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendValue(buf []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(buf, "None"...), nil
	case bool:
		if x {
			return append(buf, "True"...), nil
		}
		return append(buf, "False"...), nil
	case string:
		return strconv.AppendQuote(buf, x), nil
	case int:
		return strconv.AppendInt(buf, int64(x), 10), nil
	case int8:
		return strconv.AppendInt(buf, int64(x), 10), nil
	case int16:
		return strconv.AppendInt(buf, int64(x), 10), nil
	case int32:
		return strconv.AppendInt(buf, int64(x), 10), nil
	case int64:
		return strconv.AppendInt(buf, x, 10), nil
	case uint:
		return strconv.AppendUint(buf, uint64(x), 10), nil
	case uint8:
		return strconv.AppendUint(buf, uint64(x), 10), nil
	case uint16:
		return strconv.AppendUint(buf, uint64(x), 10), nil
	case uint32:
		return strconv.AppendUint(buf, uint64(x), 10), nil
	case uint64:
		return strconv.AppendUint(buf, x, 10), nil
	case float32:
		return strconv.AppendFloat(buf, float64(x), 'g', -1, 64), nil
	case float64:
		return strconv.AppendFloat(buf, x, 'g', -1, 64), nil
	case config.Canonical:
		buf = append(buf, '<')
		buf = append(buf, x.CanonicalClassName()...)
		buf = append(buf, ' ')
		buf = append(buf, x.CanonicalKey()...)
		buf = append(buf, '>')
		return buf, nil
	case config.Seq:
		return appendSeq(buf, []any(x))
	case []any:
		return appendSeq(buf, x)
	case config.Map:
		return appendMap(buf, map[string]any(x))
	case map[string]any:
		return appendMap(buf, x)
	default:
		return nil, cerr.InvalidConfig(fmt.Errorf("invalid item in config: %#v, type: %T", v, v))
	}
}

func appendSeq(buf []byte, seq []any) ([]byte, error) {
	buf = append(buf, '[')
	for _, item := range seq {
		var err error
		buf, err = appendValue(buf, item)
		if err != nil {
			return nil, err
		}
		buf = append(buf, ',')
	}
	buf = append(buf, ']')
	return buf, nil
}

// appendMap serializes m as {key:value,...} with entries sorted
// lexicographically by their serialized key, skipping ephemeral keys.
// All keys accepted here are Go strings (config.Map is string-keyed);
// the `~`-prefixed non-scalar-key encoding named by
// spec.md §3 exists for host languages whose mapping keys may be
// compound values, which Go's map[string]any cannot express, so it
// never arises from this package's own entry points.
func appendMap(buf []byte, m map[string]any) ([]byte, error) {
	type kv struct {
		serializedKey string
		value         any
	}
	entries := make([]kv, 0, len(m))
	for k, v := range m {
		if config.IsEphemeralKey(k) {
			continue
		}
		entries = append(entries, kv{serializedKey: strconv.Quote(k), value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].serializedKey < entries[j].serializedKey
	})
	buf = append(buf, '{')
	for _, e := range entries {
		buf = append(buf, e.serializedKey...)
		buf = append(buf, ':')
		var err error
		buf, err = appendValue(buf, e.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, ',')
	}
	buf = append(buf, '}')
	return buf, nil
}
