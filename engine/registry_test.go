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

package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/engine"
	"github.com/gridflow/gridflow/store/memory"
)

func newRegistry(t *testing.T) (*engine.Registry, *memory.Store) {
	t.Helper()
	store := memory.New()
	saveLeadsCustomers(store)
	return engine.NewRegistry(store, store), store
}

func validAutomation() *types.Automation {
	return &types.Automation{
		Name:    "Copy qualified leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{
			Type: types.TriggerFieldChange, FieldId: "lStatus",
			Condition: &types.Condition{Operator: types.OpEquals, Value: "optQualified"},
		},
		Action: types.AutomationAction{
			Type:          types.ActionCopyToTable,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{
				{SourceFieldId: "lName", TargetFieldId: "cName"},
				{SourceFieldId: "lEmail", TargetFieldId: "cEmail"},
			},
		},
		Enabled: true,
	}
}

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	a := validAutomation()
	require.NoError(t, registry.Create(ctx, a))
	assert.NotEmpty(t, a.Id)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, "tLeads", a.Trigger.TableId, "trigger table filled from the automation")

	got, err := registry.Get(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
}

func TestRegistryCreateFromConfiguration(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	a, err := registry.CreateFromConfiguration(ctx, "tLeads", types.Configuration{
		"name": "Copy qualified leads",
		"trigger": map[string]interface{}{
			"type":    "field_change",
			"fieldId": "lStatus",
			"condition": map[string]interface{}{
				"operator": "equals",
				"value":    "optQualified",
			},
		},
		"action": map[string]interface{}{
			"type":          "copy_to_table",
			"targetTableId": "tCustomers",
			"fieldMappings": []interface{}{
				map[string]interface{}{"sourceFieldId": "lName", "targetFieldId": "cName"},
			},
		},
		"enabled": true,
	})
	require.NoError(t, err)
	assert.Equal(t, types.TriggerFieldChange, a.Trigger.Type)
	assert.Equal(t, types.ActionCopyToTable, a.Action.Type)
	assert.Equal(t, "tCustomers", a.Action.TargetTableId)
	require.Len(t, a.Action.FieldMappings, 1)
	assert.Equal(t, "cName", a.Action.FieldMappings[0].TargetFieldId)
}

func TestRegistryValidation(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	cases := []struct {
		name   string
		mutate func(a *types.Automation)
	}{
		{"missingName", func(a *types.Automation) { a.Name = "" }},
		{"unknownTriggerField", func(a *types.Automation) { a.Trigger.FieldId = "lGhost" }},
		{"triggerTableMismatch", func(a *types.Automation) { a.Trigger.TableId = "tCustomers" }},
		{"missingTargetTable", func(a *types.Automation) { a.Action.TargetTableId = "" }},
		{"unknownTargetField", func(a *types.Automation) {
			a.Action.FieldMappings = []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cGhost"}}
		}},
		{"incompatibleMapping", func(a *types.Automation) {
			// number -> checkbox is not coercible
			a.Action.FieldMappings = []types.FieldMapping{{SourceFieldId: "lScore", TargetFieldId: "cVisible"}}
		}},
		{"orderingOnSelect", func(a *types.Automation) {
			a.Trigger.Condition = &types.Condition{Operator: types.OpGreaterThan, Value: "optNew"}
		}},
		{"containsOnNumber", func(a *types.Automation) {
			a.Trigger.FieldId = "lScore"
			a.Trigger.Condition = &types.Condition{Operator: types.OpContains, Value: float64(1)}
		}},
		{"badExpression", func(a *types.Automation) {
			a.Trigger.Condition = &types.Condition{Operator: types.OpExpression, Value: "new.lScore >"}
		}},
		{"unknownOperator", func(a *types.Automation) {
			a.Trigger.Condition = &types.Condition{Operator: "matches", Value: "x"}
		}},
		{"syncModeOnCopy", func(a *types.Automation) { a.Action.SyncMode = types.SyncTwoWay }},
		{"unknownDuplicateHandling", func(a *types.Automation) { a.Action.DuplicateHandling = "merge" }},
		{"noMappings", func(a *types.Automation) { a.Action.FieldMappings = nil }},
		{"updateRecordOnOtherTable", func(a *types.Automation) {
			a.Action.Type = types.ActionUpdateRecord
			a.Action.TargetTableId = "tCustomers"
		}},
		{"showInTableWithoutVisibilityField", func(a *types.Automation) {
			a.Action.Type = types.ActionShowInTable
		}},
		{"nonInvertibleTwoWayMapping", func(a *types.Automation) {
			// single_select -> multi_select cannot come back
			a.Action.Type = types.ActionSyncToTable
			a.Action.SyncMode = types.SyncTwoWay
			a.Action.FieldMappings = []types.FieldMapping{{SourceFieldId: "lStatus", TargetFieldId: "cTags"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := validAutomation()
			tc.mutate(a)
			err := registry.Create(ctx, a)
			assert.True(t, types.IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestRegistrySetEnabledKeepsLinks(t *testing.T) {
	ctx := context.Background()
	registry, store := newRegistry(t)

	a := validAutomation()
	require.NoError(t, registry.Create(ctx, a))
	_, _, err := store.CreateLink(ctx, types.SyncLink{
		AutomationId:   a.Id,
		SourceRecordId: "rLead",
		TargetRecordId: "rCustomer",
	})
	require.NoError(t, err)

	disabled, err := registry.SetEnabled(ctx, a.Id, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	enabled, err := registry.SetEnabled(ctx, a.Id, true)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)

	link, err := store.GetLink(ctx, a.Id, "rLead")
	require.NoError(t, err)
	assert.NotNil(t, link, "disable/enable must not drop SyncLinks")
}

func TestRegistryUpdatePreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	a := validAutomation()
	require.NoError(t, registry.Create(ctx, a))
	created := a.CreatedAt

	a.Name = "Renamed"
	require.NoError(t, registry.Update(ctx, a))
	got, err := registry.Get(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, created, got.CreatedAt)
}

func TestRegistryDelete(t *testing.T) {
	ctx := context.Background()
	registry, store := newRegistry(t)

	a := validAutomation()
	require.NoError(t, registry.Create(ctx, a))
	_, _, err := store.CreateLink(ctx, types.SyncLink{
		AutomationId:   a.Id,
		SourceRecordId: "rLead",
		TargetRecordId: "rCustomer",
	})
	require.NoError(t, err)

	require.NoError(t, registry.Delete(ctx, a.Id))
	_, err = registry.Get(ctx, a.Id)
	assert.ErrorIs(t, err, types.ErrAutomationNotFound)

	// links survive deletion so a recreate loses no pairing state
	link, err := store.GetLink(ctx, a.Id, "rLead")
	require.NoError(t, err)
	assert.NotNil(t, link)
}

func TestRegistryListForTable(t *testing.T) {
	ctx := context.Background()
	registry, _ := newRegistry(t)

	first := validAutomation()
	require.NoError(t, registry.Create(ctx, first))
	second := validAutomation()
	second.Name = "Second"
	second.Enabled = false
	require.NoError(t, registry.Create(ctx, second))
	_, err := registry.SetEnabled(ctx, second.Id, false)
	require.NoError(t, err)

	all, err := registry.ListForTable(ctx, "tLeads")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.Id, all[0].Id, "creation order")

	enabled, err := registry.ListEnabledForTable(ctx, "tLeads")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, first.Id, enabled[0].Id)
}
