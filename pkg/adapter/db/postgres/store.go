// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package postgres

import (
	"context"
	"fmt"

	"github.com/orco-run/orco/pkg/adapter/codec"
	"github.com/orco-run/orco/pkg/adapter/db/ormstore"
	"github.com/orco-run/orco/pkg/core/store"
)

// NewStore opens a connection pool against url and wraps it as a
// store.Store, using c to serialize config/result/run_info payloads.
// The returned Close method closes the underlying pool.
func NewStore(ctx context.Context, url string, c codec.Codec) (store.Store, error) {
	pool, err := NewPool(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening pool: %w", err)
	}
	return ormstore.New(pool.DB, c), nil
}
