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

// Package gormstore persists tables, records, automations, SyncLinks and the
// run log in MySQL or PostgreSQL through gorm. It implements every store
// interface the engine consumes.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/fieldtype"
	"github.com/gridflow/gridflow/utils/json"
)

// Config selects the database dialect and connection.
type Config struct {
	// Type is "mysql" or "postgres".
	Type     string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// Store is the gorm-backed implementation of the engine's stores.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing gorm connection and migrates the schema.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&tableModel{},
		&fieldModel{},
		&recordModel{},
		&automationModel{},
		&syncLinkModel{},
		&automationRunModel{},
	); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

type tableModel struct {
	Id     string `gorm:"primaryKey;size:64"`
	BaseId string `gorm:"size:64;index"`
	Name   string `gorm:"size:255;not null"`
}

func (tableModel) TableName() string { return "tables" }

type fieldModel struct {
	Id      string `gorm:"primaryKey;size:64"`
	TableId string `gorm:"size:64;index;not null"`
	Name    string `gorm:"size:255;not null"`
	Type    string `gorm:"size:32;not null"`
	// Options holds the select option map as JSON.
	Options string `gorm:"type:text"`
	Rank    int    `gorm:"not null;default:0"`
}

func (fieldModel) TableName() string { return "fields" }

type recordModel struct {
	Id      string `gorm:"primaryKey;size:64"`
	TableId string `gorm:"size:64;index;not null"`
	// Data holds the field values map as JSON.
	Data      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (recordModel) TableName() string { return "records" }

// wrap classifies a gorm error: not-found stays a sentinel, anything else is
// a transient store failure the engine may retry.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrRecordNotFound
	}
	return &types.TransientStoreError{Op: op, Err: err}
}

// SaveTable registers (or replaces) a table schema.
func (s *Store) SaveTable(ctx context.Context, table *types.Table) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&tableModel{Id: table.Id, BaseId: table.BaseId, Name: table.Name}).Error; err != nil {
			return err
		}
		if err := tx.Where("table_id = ?", table.Id).Delete(&fieldModel{}).Error; err != nil {
			return err
		}
		for i, f := range table.Fields {
			options := ""
			if len(f.Options) > 0 {
				data, err := json.Marshal(f.Options)
				if err != nil {
					return err
				}
				options = string(data)
			}
			if err := tx.Create(&fieldModel{
				Id:      f.Id,
				TableId: table.Id,
				Name:    f.Name,
				Type:    string(f.Type),
				Options: options,
				Rank:    i,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrap("SaveTable", err)
}

func (s *Store) GetTable(ctx context.Context, tableId string) (*types.Table, error) {
	var tm tableModel
	if err := s.db.WithContext(ctx).First(&tm, "id = ?", tableId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrTableNotFound
		}
		return nil, wrap("GetTable", err)
	}
	var fms []fieldModel
	if err := s.db.WithContext(ctx).Where("table_id = ?", tableId).Order("rank").Find(&fms).Error; err != nil {
		return nil, wrap("GetTable", err)
	}
	table := &types.Table{Id: tm.Id, BaseId: tm.BaseId, Name: tm.Name}
	for _, fm := range fms {
		field := &types.Field{
			Id:      fm.Id,
			TableId: fm.TableId,
			Name:    fm.Name,
			Type:    types.FieldType(fm.Type),
		}
		if fm.Options != "" {
			if err := json.Unmarshal([]byte(fm.Options), &field.Options); err != nil {
				return nil, wrap("GetTable", err)
			}
		}
		table.Fields = append(table.Fields, field)
	}
	return table, nil
}

func (s *Store) GetRecord(ctx context.Context, tableId, recordId string) (*types.Record, error) {
	var rm recordModel
	err := s.db.WithContext(ctx).First(&rm, "id = ? AND table_id = ?", recordId, tableId).Error
	if err != nil {
		return nil, wrap("GetRecord", err)
	}
	return toRecord(&rm)
}

func (s *Store) CreateRecord(ctx context.Context, tableId string, values types.Values) (*types.Record, error) {
	id, _ := uuid.NewV4()
	data, err := json.Marshal(values)
	if err != nil {
		return nil, wrap("CreateRecord", err)
	}
	rm := recordModel{Id: id.String(), TableId: tableId, Data: string(data)}
	if err := s.db.WithContext(ctx).Create(&rm).Error; err != nil {
		return nil, wrap("CreateRecord", err)
	}
	return toRecord(&rm)
}

func (s *Store) UpdateRecord(ctx context.Context, tableId, recordId string, values types.Values) (*types.Record, error) {
	var out *types.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rm recordModel
		if err := tx.First(&rm, "id = ? AND table_id = ?", recordId, tableId).Error; err != nil {
			return err
		}
		current := make(types.Values)
		if rm.Data != "" {
			if err := json.Unmarshal([]byte(rm.Data), &current); err != nil {
				return err
			}
		}
		for fieldId, value := range values {
			current[fieldId] = value
		}
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		rm.Data = string(data)
		if err := tx.Save(&rm).Error; err != nil {
			return err
		}
		out, err = toRecord(&rm)
		return err
	})
	if err != nil {
		return nil, wrap("UpdateRecord", err)
	}
	return out, nil
}

func (s *Store) DeleteRecord(ctx context.Context, tableId, recordId string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND table_id = ?", recordId, tableId).Delete(&recordModel{})
	if result.Error != nil {
		return wrap("DeleteRecord", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.ErrRecordNotFound
	}
	return nil
}

// FindByValues loads the table's records and filters them under the field
// types' equality semantics. Dynamic field values live inside a JSON column,
// so matching happens here rather than in SQL.
func (s *Store) FindByValues(ctx context.Context, tableId string, match types.Values) ([]*types.Record, error) {
	table, err := s.GetTable(ctx, tableId)
	if err != nil {
		return nil, err
	}
	var rms []recordModel
	if err := s.db.WithContext(ctx).Where("table_id = ?", tableId).Order("id").Find(&rms).Error; err != nil {
		return nil, wrap("FindByValues", err)
	}
	var out []*types.Record
	for i := range rms {
		record, err := toRecord(&rms[i])
		if err != nil {
			return nil, err
		}
		if matchesRecord(table, record, match) {
			out = append(out, record)
		}
	}
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

func toRecord(rm *recordModel) (*types.Record, error) {
	record := &types.Record{
		Id:        rm.Id,
		TableId:   rm.TableId,
		Values:    make(types.Values),
		CreatedAt: rm.CreatedAt,
		UpdatedAt: rm.UpdatedAt,
	}
	if rm.Data != "" {
		if err := json.Unmarshal([]byte(rm.Data), &record.Values); err != nil {
			return nil, wrap("toRecord", err)
		}
	}
	return record, nil
}
