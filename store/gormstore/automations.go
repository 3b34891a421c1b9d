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

package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/utils/json"
)

type automationModel struct {
	Id      string `gorm:"primaryKey;size:64"`
	TableId string `gorm:"size:64;index;not null"`
	Name    string `gorm:"size:255;not null"`
	// Trigger and Action hold the variant definitions as JSON.
	Trigger   string `gorm:"type:text;not null"`
	Action    string `gorm:"type:text;not null"`
	Enabled   bool   `gorm:"not null;default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (automationModel) TableName() string { return "automations" }

type syncLinkModel struct {
	Id             string `gorm:"primaryKey;size:64"`
	AutomationId   string `gorm:"size:64;not null;uniqueIndex:idx_automation_source"`
	SourceRecordId string `gorm:"size:64;not null;uniqueIndex:idx_automation_source;index"`
	TargetRecordId string `gorm:"size:64;not null;index"`
	CreatedAt      time.Time
}

func (syncLinkModel) TableName() string { return "sync_links" }

type automationRunModel struct {
	Id           string `gorm:"primaryKey;size:64"`
	AutomationId string `gorm:"size:64;index;not null"`
	EventId      string `gorm:"size:64;index"`
	RecordId     string `gorm:"size:64"`
	Status       string `gorm:"size:32;not null;index"`
	ErrorKind    string `gorm:"size:32"`
	Message      string `gorm:"type:text"`
	CreatedAt    time.Time
}

func (automationRunModel) TableName() string { return "automation_runs" }

func toAutomationModel(a *types.Automation) (*automationModel, error) {
	trigger, err := json.Marshal(a.Trigger)
	if err != nil {
		return nil, err
	}
	action, err := json.Marshal(a.Action)
	if err != nil {
		return nil, err
	}
	return &automationModel{
		Id:        a.Id,
		TableId:   a.TableId,
		Name:      a.Name,
		Trigger:   string(trigger),
		Action:    string(action),
		Enabled:   a.Enabled,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}, nil
}

func toAutomation(am *automationModel) (*types.Automation, error) {
	a := &types.Automation{
		Id:        am.Id,
		TableId:   am.TableId,
		Name:      am.Name,
		Enabled:   am.Enabled,
		CreatedAt: am.CreatedAt,
		UpdatedAt: am.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(am.Trigger), &a.Trigger); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(am.Action), &a.Action); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateAutomation(ctx context.Context, a *types.Automation) error {
	am, err := toAutomationModel(a)
	if err != nil {
		return wrap("CreateAutomation", err)
	}
	return wrap("CreateAutomation", s.db.WithContext(ctx).Create(am).Error)
}

func (s *Store) GetAutomation(ctx context.Context, id string) (*types.Automation, error) {
	var am automationModel
	if err := s.db.WithContext(ctx).First(&am, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrAutomationNotFound
		}
		return nil, wrap("GetAutomation", err)
	}
	return toAutomation(&am)
}

func (s *Store) UpdateAutomation(ctx context.Context, a *types.Automation) error {
	am, err := toAutomationModel(a)
	if err != nil {
		return wrap("UpdateAutomation", err)
	}
	result := s.db.WithContext(ctx).Model(&automationModel{}).Where("id = ?", a.Id).Updates(map[string]interface{}{
		"table_id":   am.TableId,
		"name":       am.Name,
		"trigger":    am.Trigger,
		"action":     am.Action,
		"enabled":    am.Enabled,
		"updated_at": am.UpdatedAt,
	})
	if result.Error != nil {
		return wrap("UpdateAutomation", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.ErrAutomationNotFound
	}
	return nil
}

// DeleteAutomation removes the automation. Its SyncLinks are kept so the
// pairings survive a delete/recreate cycle; the reconciler eventually drops
// links whose records disappear.
func (s *Store) DeleteAutomation(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&automationModel{})
	if result.Error != nil {
		return wrap("DeleteAutomation", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.ErrAutomationNotFound
	}
	return nil
}

func (s *Store) listAutomations(ctx context.Context, query *gorm.DB) ([]*types.Automation, error) {
	var ams []automationModel
	if err := query.Order("created_at, id").Find(&ams).Error; err != nil {
		return nil, wrap("ListAutomations", err)
	}
	out := make([]*types.Automation, 0, len(ams))
	for i := range ams {
		a, err := toAutomation(&ams[i])
		if err != nil {
			return nil, wrap("ListAutomations", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListAll(ctx context.Context) ([]*types.Automation, error) {
	return s.listAutomations(ctx, s.db.WithContext(ctx))
}

func (s *Store) ListForTable(ctx context.Context, tableId string) ([]*types.Automation, error) {
	return s.listAutomations(ctx, s.db.WithContext(ctx).Where("table_id = ?", tableId))
}

func (s *Store) ListEnabledForTable(ctx context.Context, tableId string) ([]*types.Automation, error) {
	return s.listAutomations(ctx, s.db.WithContext(ctx).Where("table_id = ? AND enabled = ?", tableId, true))
}

// ListTwoWaySyncIntoTable filters in Go: the action variant lives in a JSON
// column, so the target table and sync mode are not queryable columns.
func (s *Store) ListTwoWaySyncIntoTable(ctx context.Context, tableId string) ([]*types.Automation, error) {
	enabled, err := s.listAutomations(ctx, s.db.WithContext(ctx).Where("enabled = ?", true))
	if err != nil {
		return nil, err
	}
	var out []*types.Automation
	for _, a := range enabled {
		if a.IsTwoWaySync() && a.Action.TargetTableId == tableId {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetLink(ctx context.Context, automationId, sourceRecordId string) (*types.SyncLink, error) {
	var lm syncLinkModel
	err := s.db.WithContext(ctx).First(&lm, "automation_id = ? AND source_record_id = ?", automationId, sourceRecordId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("GetLink", err)
	}
	return toLink(&lm), nil
}

func (s *Store) GetLinkByTarget(ctx context.Context, automationId, targetRecordId string) (*types.SyncLink, error) {
	var lm syncLinkModel
	err := s.db.WithContext(ctx).First(&lm, "automation_id = ? AND target_record_id = ?", automationId, targetRecordId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("GetLinkByTarget", err)
	}
	return toLink(&lm), nil
}

// CreateLink relies on the unique index over (automation_id,
// source_record_id) for idempotency: losing the insert race returns the
// stored link with created=false.
func (s *Store) CreateLink(ctx context.Context, link types.SyncLink) (*types.SyncLink, bool, error) {
	if link.Id == "" {
		id, _ := uuid.NewV4()
		link.Id = id.String()
	}
	link.CreatedAt = time.Now()
	lm := syncLinkModel{
		Id:             link.Id,
		AutomationId:   link.AutomationId,
		SourceRecordId: link.SourceRecordId,
		TargetRecordId: link.TargetRecordId,
		CreatedAt:      link.CreatedAt,
	}
	err := s.db.WithContext(ctx).Create(&lm).Error
	if err == nil {
		return toLink(&lm), true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, getErr := s.GetLink(ctx, link.AutomationId, link.SourceRecordId)
		if getErr != nil {
			return nil, false, getErr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, wrap("CreateLink", err)
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	return wrap("DeleteLink", s.db.WithContext(ctx).Where("id = ?", id).Delete(&syncLinkModel{}).Error)
}

func (s *Store) DeleteLinksForRecord(ctx context.Context, recordId string) error {
	return wrap("DeleteLinksForRecord",
		s.db.WithContext(ctx).Where("source_record_id = ? OR target_record_id = ?", recordId, recordId).Delete(&syncLinkModel{}).Error)
}

func (s *Store) ListLinks(ctx context.Context, automationId string) ([]*types.SyncLink, error) {
	var lms []syncLinkModel
	if err := s.db.WithContext(ctx).Where("automation_id = ?", automationId).Order("created_at, id").Find(&lms).Error; err != nil {
		return nil, wrap("ListLinks", err)
	}
	out := make([]*types.SyncLink, 0, len(lms))
	for i := range lms {
		out = append(out, toLink(&lms[i]))
	}
	return out, nil
}

func toLink(lm *syncLinkModel) *types.SyncLink {
	return &types.SyncLink{
		Id:             lm.Id,
		AutomationId:   lm.AutomationId,
		SourceRecordId: lm.SourceRecordId,
		TargetRecordId: lm.TargetRecordId,
		CreatedAt:      lm.CreatedAt,
	}
}

func (s *Store) Append(ctx context.Context, run types.AutomationRun) error {
	return wrap("Append", s.db.WithContext(ctx).Create(&automationRunModel{
		Id:           run.Id,
		AutomationId: run.AutomationId,
		EventId:      run.EventId,
		RecordId:     run.RecordId,
		Status:       string(run.Status),
		ErrorKind:    run.ErrorKind,
		Message:      run.Message,
		CreatedAt:    run.CreatedAt,
	}).Error)
}

func (s *Store) ListRuns(ctx context.Context, automationId string, limit int) ([]*types.AutomationRun, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if automationId != "" {
		query = query.Where("automation_id = ?", automationId)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rms []automationRunModel
	if err := query.Find(&rms).Error; err != nil {
		return nil, wrap("ListRuns", err)
	}
	out := make([]*types.AutomationRun, 0, len(rms))
	for _, rm := range rms {
		out = append(out, &types.AutomationRun{
			Id:           rm.Id,
			AutomationId: rm.AutomationId,
			EventId:      rm.EventId,
			RecordId:     rm.RecordId,
			Status:       types.RunStatus(rm.Status),
			ErrorKind:    rm.ErrorKind,
			Message:      rm.Message,
			CreatedAt:    rm.CreatedAt,
		})
	}
	return out, nil
}
