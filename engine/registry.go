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

package engine

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/utils/maps"
)

// Registry is the exposed automation registry: CRUD over Automation
// entities with save-time validation of the structural invariants, so
// misconfigurations surface when the owner saves, not on the first event.
type Registry struct {
	automations types.AutomationStore
	records     types.RecordStore
}

// NewRegistry creates a Registry over the automation and record stores.
func NewRegistry(automations types.AutomationStore, records types.RecordStore) *Registry {
	return &Registry{automations: automations, records: records}
}

// Create validates and stores a new automation. Id and CreatedAt are
// assigned here; Enabled defaults to true when the automation is valid.
func (r *Registry) Create(ctx context.Context, a *types.Automation) error {
	if a.Trigger.TableId == "" {
		a.Trigger.TableId = a.TableId
	}
	if err := r.Validate(ctx, a); err != nil {
		return err
	}
	if a.Id == "" {
		id, _ := uuid.NewV4()
		a.Id = id.String()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	return r.automations.CreateAutomation(ctx, a)
}

// CreateFromConfiguration decodes a free-form configuration map into an
// Automation and creates it. This is the programmatic mirror of the HTTP
// API payload.
func (r *Registry) CreateFromConfiguration(ctx context.Context, tableId string, configuration types.Configuration) (*types.Automation, error) {
	var a types.Automation
	if err := maps.Map2StructTagged(configuration, &a, "json"); err != nil {
		return nil, types.NewConfigurationError("invalid automation configuration: %v", err)
	}
	a.TableId = tableId
	if err := r.Create(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Update validates and stores changes to an existing automation. Existing
// SyncLinks are left in place so re-enabling loses no pairing state.
func (r *Registry) Update(ctx context.Context, a *types.Automation) error {
	existing, err := r.automations.GetAutomation(ctx, a.Id)
	if err != nil {
		return err
	}
	if a.Trigger.TableId == "" {
		a.Trigger.TableId = a.TableId
	}
	if err := r.Validate(ctx, a); err != nil {
		return err
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	return r.automations.UpdateAutomation(ctx, a)
}

// SetEnabled toggles evaluation of the automation. Disabling keeps the
// automation and its SyncLinks.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) (*types.Automation, error) {
	a, err := r.automations.GetAutomation(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Enabled = enabled
	a.UpdatedAt = time.Now()
	if err := r.automations.UpdateAutomation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the automation. SyncLinks survive deletion by design.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.automations.DeleteAutomation(ctx, id)
}

// Get returns one automation by id.
func (r *Registry) Get(ctx context.Context, id string) (*types.Automation, error) {
	return r.automations.GetAutomation(ctx, id)
}

// ListForTable returns all automations of the table in creation order.
func (r *Registry) ListForTable(ctx context.Context, tableId string) ([]*types.Automation, error) {
	return r.automations.ListForTable(ctx, tableId)
}

// ListEnabledForTable returns the enabled automations of the table in
// creation order.
func (r *Registry) ListEnabledForTable(ctx context.Context, tableId string) ([]*types.Automation, error) {
	return r.automations.ListEnabledForTable(ctx, tableId)
}
