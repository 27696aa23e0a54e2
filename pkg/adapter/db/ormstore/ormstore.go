// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ormstore implements store.Store on top of a *gorm.DB,
// shared by the postgres and sqlite backends (pkg/adapter/db/postgres
// and pkg/adapter/db/sqlite) so the entries/deps schema and the
// get-or-announce protocol are defined exactly once. Grounded on
// original_source/src/orco/database.py's Database class and on the
// teacher's carsrp/schemarp packages for the GORM usage idiom (model
// structs with a TableName method).
package ormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orco-run/orco/pkg/adapter/codec"
	"github.com/orco-run/orco/pkg/core/entry"
	"github.com/orco-run/orco/pkg/core/fingerprint"
	"github.com/orco-run/orco/pkg/core/ref"
	"github.com/orco-run/orco/pkg/core/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entryRow is the GORM model for the entries table of spec.md §6.1.
type entryRow struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string `gorm:"column:name;size:255;not null;uniqueIndex:uniq_entry_identity"`
	Version      int    `gorm:"column:version;not null;uniqueIndex:uniq_entry_identity"`
	ConfigKey    string `gorm:"column:config_key;size:56;not null;uniqueIndex:uniq_entry_identity"`
	Replica      int    `gorm:"column:replica;not null;uniqueIndex:uniq_entry_identity"`
	Config       []byte `gorm:"column:config"`
	Result       []byte `gorm:"column:result"`
	RunInfo      []byte `gorm:"column:run_info"`
	CreatedDate  time.Time  `gorm:"column:created_date;not null;autoCreateTime"`
	FinishedDate *time.Time `gorm:"column:finished_date"`
}

func (entryRow) TableName() string { return "entries" }

// depRow is the GORM model for the deps table of spec.md §6.1: a
// composite primary key on (source_id, target_id) doubles as the
// pair's uniqueness constraint, and the two belongs-to associations
// (unused by any query) carry the cascade-delete foreign keys that
// AutoMigrate materializes on both columns.
type depRow struct {
	SourceID    int64    `gorm:"column:source_id;primaryKey;autoIncrement:false"`
	TargetID    int64    `gorm:"column:target_id;primaryKey;autoIncrement:false"`
	SourceEntry entryRow `gorm:"foreignKey:SourceID;references:ID;constraint:OnDelete:CASCADE"`
	TargetEntry entryRow `gorm:"foreignKey:TargetID;references:ID;constraint:OnDelete:CASCADE"`
}

func (depRow) TableName() string { return "deps" }

// Store implements store.Store against db, serializing config/result/
// run_info payloads with c.
type Store struct {
	db *gorm.DB
	c  codec.Codec
}

// New wraps db (already opened against a postgres or sqlite dialector)
// as a store.Store, using c to (de)serialize opaque payloads.
func New(db *gorm.DB, c codec.Codec) *Store {
	return &Store{db: db, c: c}
}

// Init creates the entries/deps schema if absent.
func (s *Store) Init(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&entryRow{}, &depRow{})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (s *Store) findRow(ctx context.Context, r *ref.Ref) (*entryRow, error) {
	gdb := s.db.WithContext(ctx)
	var row entryRow
	var tx *gorm.DB
	if r.EntryID() != 0 {
		tx = gdb.Where("id = ?", int64(r.EntryID())).First(&row)
	} else {
		tx = gdb.Where(
			"name = ? AND version = ? AND config_key = ? AND replica = ?",
			r.Name(), r.Version(), string(r.ConfigKey()), r.Replica(),
		).First(&row)
	}
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &row, nil
}

func (s *Store) rowToRef(row *entryRow) (*ref.Ref, error) {
	stable, err := s.decodeConfig(row.Config)
	if err != nil {
		return nil, fmt.Errorf("ormstore: decoding config of entry %d: %w", row.ID, err)
	}
	return ref.New(
		row.Name, row.Version, stable,
		ref.WithConfigKey(fingerprint.ConfigKey(row.ConfigKey)),
		ref.WithReplica(row.Replica),
		ref.WithEntryID(ref.EntryID(row.ID)),
	)
}

func (s *Store) decodeConfig(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	v, err := s.c.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ormstore: stored config decoded as %T, want map[string]any", v)
	}
	return m, nil
}

func (s *Store) rowToEntry(row *entryRow) (*entry.Entry, error) {
	r, err := s.rowToRef(row)
	if err != nil {
		return nil, err
	}
	e := &entry.Entry{
		EntryID:     ref.EntryID(row.ID),
		Ref:         r,
		CreatedDate: row.CreatedDate,
	}
	if row.FinishedDate != nil {
		e.FinishedDate = row.FinishedDate
		result, err := s.c.Unmarshal(row.Result)
		if err != nil {
			return nil, fmt.Errorf("ormstore: decoding result of entry %d: %w", row.ID, err)
		}
		e.Result = result
		runInfo, err := s.decodeConfig(row.RunInfo)
		if err != nil {
			return nil, fmt.Errorf("ormstore: decoding run_info of entry %d: %w", row.ID, err)
		}
		e.RunInfo = runInfo
	}
	return e, nil
}

// ReadEntry implements store.Store.
func (s *Store) ReadEntry(ctx context.Context, r *ref.Ref) (*entry.Entry, error) {
	row, err := s.findRow(ctx, r)
	if err != nil || row == nil {
		return nil, err
	}
	return s.rowToEntry(row)
}

// ReadResult implements store.Store.
func (s *Store) ReadResult(ctx context.Context, r *ref.Ref) (any, bool, error) {
	row, err := s.findRow(ctx, r)
	if err != nil {
		return nil, false, err
	}
	if row == nil || row.FinishedDate == nil {
		return nil, false, nil
	}
	result, err := s.c.Unmarshal(row.Result)
	if err != nil {
		return nil, false, fmt.Errorf("ormstore: decoding result of entry %d: %w", row.ID, err)
	}
	return result, true, nil
}

// ReadRefs implements store.Store.
func (s *Store) ReadRefs(ctx context.Context, name string) ([]*ref.Ref, error) {
	var rows []entryRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	refs := make([]*ref.Ref, 0, len(rows))
	for i := range rows {
		r, err := s.rowToRef(&rows[i])
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// GetOrAnnounceEntry implements store.Store's atomic claim primitive
// (spec.md §4.5): an insert of the unique-constrained identity columns
// either succeeds (ComputeHere) or fails with a duplicate-key error,
// in which case the existing row is read back and classified as
// ComputingElsewhere or Finished.
func (s *Store) GetOrAnnounceEntry(ctx context.Context, r *ref.Ref) (store.AnnounceResult, error) {
	cfgBytes, err := s.c.Marshal(r.StableConfig())
	if err != nil {
		return store.AnnounceResult{}, fmt.Errorf("ormstore: encoding config: %w", err)
	}
	row := entryRow{
		Name:      r.Name(),
		Version:   r.Version(),
		ConfigKey: string(r.ConfigKey()),
		Replica:   r.Replica(),
		Config:    cfgBytes,
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return store.AnnounceResult{Status: entry.ComputeHere, ID: ref.EntryID(row.ID)}, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.AnnounceResult{}, err
	}
	existing, err := s.findRow(ctx, r)
	if err != nil {
		return store.AnnounceResult{}, err
	}
	if existing == nil {
		return store.AnnounceResult{}, fmt.Errorf("ormstore: lost race reading announced entry for %s", r)
	}
	if existing.FinishedDate == nil {
		return store.AnnounceResult{
			Status: entry.ComputingElsewhere,
			ID:     ref.EntryID(existing.ID),
		}, nil
	}
	result, err := s.c.Unmarshal(existing.Result)
	if err != nil {
		return store.AnnounceResult{}, fmt.Errorf("ormstore: decoding result of entry %d: %w", existing.ID, err)
	}
	return store.AnnounceResult{
		Status: entry.Finished,
		ID:     ref.EntryID(existing.ID),
		Result: result,
	}, nil
}

// FinishEntry implements store.Store: the finished timestamp and the
// dependency edges are written in one transaction (spec.md §4.5/§5).
func (s *Store) FinishEntry(ctx context.Context, id ref.EntryID, result any, runInfo map[string]any, deps []ref.EntryID) error {
	resultBytes, err := s.c.Marshal(result)
	if err != nil {
		return fmt.Errorf("ormstore: encoding result: %w", err)
	}
	runInfoBytes, err := s.c.Marshal(runInfo)
	if err != nil {
		return fmt.Errorf("ormstore: encoding run_info: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&entryRow{}).Where(
			"id = ? AND finished_date IS NULL", int64(id),
		).Updates(map[string]any{
			"result":        resultBytes,
			"run_info":      runInfoBytes,
			"finished_date": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("ormstore: entry %d is not announced", id)
		}
		for _, depID := range deps {
			dep := depRow{SourceID: int64(depID), TargetID: int64(id)}
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&dep).Error
			if err != nil {
				return fmt.Errorf("ormstore: recording dependency %d->%d: %w", depID, id, err)
			}
		}
		return nil
	})
}

// CancelEntry implements store.Store: deleting an announced entry is a
// no-op if it is already gone.
func (s *Store) CancelEntry(ctx context.Context, id ref.EntryID) error {
	return s.db.WithContext(ctx).Where(
		"id = ? AND finished_date IS NULL", int64(id),
	).Delete(&entryRow{}).Error
}

// RemoveEntry implements store.Store: the root and every transitive
// consumer are deleted in one transaction; the deps rows referencing
// any of them cascade via the FK constraints declared on depRow.
func (s *Store) RemoveEntry(ctx context.Context, r *ref.Ref) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.findRowTx(tx, r)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		consumers, err := recursiveConsumerIDs(tx, row.ID)
		if err != nil {
			return err
		}
		ids := append(consumers, row.ID)
		return tx.Where("id IN ?", ids).Delete(&entryRow{}).Error
	})
}

func (s *Store) findRowTx(tx *gorm.DB, r *ref.Ref) (*entryRow, error) {
	var row entryRow
	var q *gorm.DB
	if r.EntryID() != 0 {
		q = tx.Where("id = ?", int64(r.EntryID())).First(&row)
	} else {
		q = tx.Where(
			"name = ? AND version = ? AND config_key = ? AND replica = ?",
			r.Name(), r.Version(), string(r.ConfigKey()), r.Replica(),
		).First(&row)
	}
	if errors.Is(q.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if q.Error != nil {
		return nil, q.Error
	}
	return &row, nil
}

// recursiveConsumerIDs returns the ids reachable from rootID by
// repeatedly following source->target edges (spec.md's "closure of
// (source, target) edges").
func recursiveConsumerIDs(tx *gorm.DB, rootID int64) ([]int64, error) {
	seen := map[int64]bool{}
	frontier := []int64{rootID}
	var result []int64
	for len(frontier) > 0 {
		var rows []depRow
		if err := tx.Where("source_id IN ?", frontier).Find(&rows).Error; err != nil {
			return nil, err
		}
		var next []int64
		for _, d := range rows {
			if !seen[d.TargetID] {
				seen[d.TargetID] = true
				result = append(result, d.TargetID)
				next = append(next, d.TargetID)
			}
		}
		frontier = next
	}
	return result, nil
}

// RecursiveConsumers implements store.Store.
func (s *Store) RecursiveConsumers(ctx context.Context, r *ref.Ref) ([]*ref.Ref, error) {
	gdb := s.db.WithContext(ctx)
	row, err := s.findRow(ctx, r)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	ids, err := recursiveConsumerIDs(gdb, row.ID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []entryRow
	if err := gdb.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	refs := make([]*ref.Ref, 0, len(rows))
	for i := range rows {
		rr, err := s.rowToRef(&rows[i])
		if err != nil {
			return nil, err
		}
		refs = append(refs, rr)
	}
	return refs, nil
}
