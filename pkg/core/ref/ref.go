// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ref implements Ref, the immutable handle identifying a
// computation instance, grounded on
// original_source/src/orco/ref.py's Ref class.
package ref

import (
	"fmt"
	"strings"

	"github.com/orco-run/orco/pkg/core/config"
	"github.com/orco-run/orco/pkg/core/fingerprint"
)

// EntryID identifies a persisted Entry row. Zero means unbound.
type EntryID int64

// TupleKey is the identity of a Ref: equality and hashing use only
// these four fields, per spec.md §4.2.
type TupleKey struct {
	Name      string
	ConfigKey fingerprint.ConfigKey
	Version   int
	Replica   int
}

// Ref is an immutable tuple (name, version, stable_config, replica,
// config_key, ephemeral_config, entry_id?). It is the only object that
// crosses component boundaries as a "future handle"; it is opaque to
// callers beyond its identity.
type Ref struct {
	name      string
	version   int
	stable    map[string]any
	ephemeral map[string]any
	replica   int
	configKey fingerprint.ConfigKey
	entryID   EntryID // zero means unbound
}

// Option configures New.
type Option func(*options)

type options struct {
	replica        int
	configKey      fingerprint.ConfigKey
	checkEphemeral bool
	entryID        EntryID
}

// WithReplica sets the replica index (default 0).
func WithReplica(replica int) Option {
	return func(o *options) { o.replica = replica }
}

// WithConfigKey supplies a precomputed fingerprint, skipping the
// partition-and-hash step. Used when reconstructing a Ref read back
// from a Store, where the config_key is already known and the caller
// does not want the ephemeral-partitioning behavior applied again to
// an already-stable stored config.
func WithConfigKey(key fingerprint.ConfigKey) Option {
	return func(o *options) { o.configKey = key; o.checkEphemeral = false }
}

// WithEntryID binds the ref to a known entry id, as happens when a Ref
// is constructed from a row already read from the Store.
func WithEntryID(id EntryID) Option {
	return func(o *options) { o.entryID = id }
}

// WithoutEphemeralCheck disables ephemeral-key partitioning, treating
// the whole cfg as the stable configuration. Used when a caller has
// already partitioned the configuration itself.
func WithoutEphemeralCheck() Option {
	return func(o *options) { o.checkEphemeral = false }
}

// New constructs a Ref for the named computation. If
// WithoutEphemeralCheck is not supplied, cfg is partitioned into
// stable and ephemeral sub-maps (double-underscore prefixed string
// keys are ephemeral, per config.IsEphemeralKey). The config_key is
// computed from the stable part unless WithConfigKey was supplied.
// cfg must conform to the configuration grammar (config.Validate);
// otherwise New returns the *cerr.Error of kind InvalidConfigKind
// reported by config.Validate.
func New(name string, version int, cfg map[string]any, opts ...Option) (*Ref, error) {
	o := &options{checkEphemeral: true}
	for _, opt := range opts {
		opt(o)
	}
	var stable, ephemeral map[string]any
	if o.checkEphemeral {
		stable, ephemeral = config.Partition(cfg)
	} else {
		stable, ephemeral = cfg, map[string]any{}
	}
	if err := config.Validate(config.Map(stable)); err != nil {
		return nil, err
	}
	key := o.configKey
	if key == "" {
		var err error
		key, err = fingerprint.Fingerprint(stable)
		if err != nil {
			return nil, err
		}
	}
	return &Ref{
		name:      name,
		version:   version,
		stable:    stable,
		ephemeral: ephemeral,
		replica:   o.replica,
		configKey: key,
		entryID:   o.entryID,
	}, nil
}

// Name returns the computation name this ref invokes.
func (r *Ref) Name() string { return r.name }

// Version returns the computation version.
func (r *Ref) Version() int { return r.version }

// Replica returns the replica index.
func (r *Ref) Replica() int { return r.replica }

// ConfigKey returns the fingerprint of the stable configuration.
func (r *Ref) ConfigKey() fingerprint.ConfigKey { return r.configKey }

// StableConfig returns the non-ephemeral configuration, used for
// fingerprinting and persistence. The returned map must be treated as
// immutable by callers.
func (r *Ref) StableConfig() map[string]any { return r.stable }

// EphemeralConfig returns the ephemeral configuration, merged into the
// call's arguments at invocation time but excluded from the
// fingerprint. The returned map must be treated as immutable by
// callers.
func (r *Ref) EphemeralConfig() map[string]any { return r.ephemeral }

// EntryID returns the bound entry id, or zero if unbound.
func (r *Ref) EntryID() EntryID { return r.entryID }

// WithEntryID returns a copy of r bound to the given entry id, used
// when the runtime resolves the ref against a store (spec.md §4.2).
func (r *Ref) WithEntryID(id EntryID) *Ref {
	cp := *r
	cp.entryID = id
	return &cp
}

// TupleKey returns the identity tuple used for equality, hashing, and
// Store indexing.
func (r *Ref) TupleKey() TupleKey {
	return TupleKey{
		Name:      r.name,
		ConfigKey: r.configKey,
		Version:   r.version,
		Replica:   r.replica,
	}
}

// Equal reports whether r and other identify the same computation
// instance, by TupleKey.
func (r *Ref) Equal(other *Ref) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.TupleKey() == other.TupleKey()
}

// String returns a human readable representation of r, used for debug
// logging; grounded on original_source/src/orco/ref.py's __repr__.
func (r *Ref) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<Ref %s(", r.name)
	first := true
	for k, v := range r.stable {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s=%#v", k, v)
	}
	fmt.Fprintf(&b, ") v=%d r=%d>", r.version, r.replica)
	return b.String()
}
