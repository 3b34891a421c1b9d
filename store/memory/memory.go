/*
 * Copyright 2024 The GridFlow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memory is an in-process implementation of the engine's stores,
// used by tests and by embedders that bring their own persistence for
// records but want the engine self-contained.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/fieldtype"
)

// Store keeps tables, records, automations, links and runs in memory. It
// implements types.RecordStore, types.LinkStore, types.AutomationStore and
// types.RunLog.
type Store struct {
	mu          sync.RWMutex
	tables      map[string]*types.Table
	records     map[string]map[string]*types.Record // tableId -> recordId -> record
	automations map[string]*types.Automation
	order       []string // automation ids in creation order
	links       map[string]*types.SyncLink
	runs        []*types.AutomationRun

	// FailOp, when set, is consulted before every store operation with the
	// operation name (e.g. "CreateRecord"). A non-nil result is returned to
	// the caller; tests use it to inject transient failures.
	FailOp func(op string) error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables:      make(map[string]*types.Table),
		records:     make(map[string]map[string]*types.Record),
		automations: make(map[string]*types.Automation),
		links:       make(map[string]*types.SyncLink),
	}
}

func (s *Store) fail(op string) error {
	if s.FailOp != nil {
		return s.FailOp(op)
	}
	return nil
}

// SaveTable registers (or replaces) a table schema.
func (s *Store) SaveTable(table *types.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table.Id] = table
	if _, ok := s.records[table.Id]; !ok {
		s.records[table.Id] = make(map[string]*types.Record)
	}
}

func (s *Store) GetTable(_ context.Context, tableId string) (*types.Table, error) {
	if err := s.fail("GetTable"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[tableId]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

func (s *Store) GetRecord(_ context.Context, tableId, recordId string) (*types.Record, error) {
	if err := s.fail("GetRecord"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[tableId][recordId]
	if !ok {
		return nil, types.ErrRecordNotFound
	}
	return copyRecord(record), nil
}

func (s *Store) CreateRecord(_ context.Context, tableId string, values types.Values) (*types.Record, error) {
	if err := s.fail("CreateRecord"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[tableId]; !ok {
		return nil, types.ErrTableNotFound
	}
	id, _ := uuid.NewV4()
	now := time.Now()
	record := &types.Record{
		Id:        id.String(),
		TableId:   tableId,
		Values:    values.Copy(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[tableId][record.Id] = record
	return copyRecord(record), nil
}

func (s *Store) UpdateRecord(_ context.Context, tableId, recordId string, values types.Values) (*types.Record, error) {
	if err := s.fail("UpdateRecord"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[tableId][recordId]
	if !ok {
		return nil, types.ErrRecordNotFound
	}
	for fieldId, value := range values {
		record.Values[fieldId] = value
	}
	record.UpdatedAt = time.Now()
	return copyRecord(record), nil
}

func (s *Store) DeleteRecord(_ context.Context, tableId, recordId string) error {
	if err := s.fail("DeleteRecord"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[tableId][recordId]; !ok {
		return types.ErrRecordNotFound
	}
	delete(s.records[tableId], recordId)
	return nil
}

// FindByValues matches records whose values equal every entry of match under
// the field type's equality semantics.
func (s *Store) FindByValues(_ context.Context, tableId string, match types.Values) ([]*types.Record, error) {
	if err := s.fail("FindByValues"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[tableId]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	var out []*types.Record
	for _, record := range s.records[tableId] {
		if matchesRecord(table, record, match) {
			out = append(out, copyRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func matchesRecord(table *types.Table, record *types.Record, match types.Values) bool {
	for fieldId, wanted := range match {
		field := table.FieldById(fieldId)
		if field == nil {
			return false
		}
		equal, err := fieldtype.Equal(field.Type, record.Values[fieldId], wanted)
		if err != nil || !equal {
			return false
		}
	}
	return true
}

func copyRecord(r *types.Record) *types.Record {
	out := *r
	out.Values = r.Values.Copy()
	return &out
}
