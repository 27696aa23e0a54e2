// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sqlite provides a Store backend on top of a local SQLite
// file, using github.com/glebarez/sqlite (a CGo-free dialector over
// modernc.org/sqlite) so the runtime does not require a C toolchain.
// Schema and query logic are shared with the postgres backend via
// pkg/adapter/db/ormstore; this package only owns opening the
// dialector and asserting the PRAGMA foreign_keys=ON setting that
// spec.md §6.1 requires, grounded on
// original_source/src/orco/database.py's _set_sqlite_pragma
// connect-event listener.
package sqlite

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/orco-run/orco/pkg/adapter/codec"
	"github.com/orco-run/orco/pkg/adapter/db/ormstore"
	"github.com/orco-run/orco/pkg/core/store"
	"gorm.io/gorm"
)

// NewStore opens (or creates) the SQLite database file at path and
// wraps it as a store.Store, using c to serialize config/result/
// run_info payloads.
//
// SQLAlchemy's pool dispatches a "connect" event on every new
// connection and re-asserts the pragma there because it may hand out
// any one of several pooled connections; Go's database/sql pool
// behaves the same way, but there is no equivalent per-connection
// hook across SQLite gorm dialectors. Since SQLite serializes writes
// to a single file regardless, this adapter instead caps the pool at
// one physical connection and asserts the pragma on it once, which is
// equivalent in effect (every query observes foreign_keys=ON) and
// avoids the cross-connection races a larger pool would otherwise
// require per-connection bookkeeping to avoid.
func NewStore(path string, c codec.Codec) (store.Store, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("sqlite: gorm.Open: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: accessing underlying *sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("sqlite: asserting foreign_keys pragma: %w", err)
	}
	return ormstore.New(gdb, c), nil
}
