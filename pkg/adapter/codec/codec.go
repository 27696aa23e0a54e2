// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package codec serializes the opaque byte payloads a Store persists
// for a computation's stable configuration and result: the bytes
// columns of an entry row. The original_source implementation relies
// on Python's pickle, which has no Go equivalent; CBOR
// (github.com/fxamacker/cbor/v2, as used by storacha-piri) is used
// instead since it is a compact, self-describing binary format capable
// of round-tripping the same map/slice/scalar shapes that the
// configuration grammar (pkg/core/config) accepts.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec marshals and unmarshals the arbitrary config/result values a
// Store persists as opaque bytes.
type Codec interface {
	// Marshal serializes v.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes b back into a value. Implementations
	// return map[string]any/[]any-shaped trees (not
	// map[interface{}]interface{}), so the result conforms directly to
	// the configuration grammar.
	Unmarshal(b []byte) (any, error)
}

type cborCodec struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// CBOR returns the default Codec implementation, backed by canonical
// CBOR encoding (RFC 7049 section 3.9). CBOR integers decode as int64.
func CBOR() Codec {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err) // EncOptions is a fixed literal; this cannot fail
	}
	decMode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborCodec{encMode: encMode, decMode: decMode}
}

func (c *cborCodec) Marshal(v any) ([]byte, error) {
	return c.encMode.Marshal(v)
}

func (c *cborCodec) Unmarshal(b []byte) (any, error) {
	var v any
	if err := c.decMode.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
