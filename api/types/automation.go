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

package types

import "time"

// TriggerType discriminates the AutomationTrigger variant.
type TriggerType string

const (
	TriggerFieldChange   = TriggerType("field_change")
	TriggerRecordCreated = TriggerType("record_created")
	TriggerRecordUpdated = TriggerType("record_updated")
)

// Operator is a condition operator.
type Operator string

const (
	OpEquals             = Operator("equals")
	OpNotEquals          = Operator("not_equals")
	OpContains           = Operator("contains")
	OpGreaterThan        = Operator("greater_than")
	OpLessThan           = Operator("less_than")
	OpGreaterThanOrEqual = Operator("greater_than_or_equal")
	OpLessThanOrEqual    = Operator("less_than_or_equal")
	// OpExpression evaluates an expr-lang boolean expression against the
	// mutation (variables: record, old, new, changed).
	OpExpression = Operator("expression")
)

// Condition restricts when a trigger fires. For the fixed operator set it is
// evaluated against the trigger field's new value; for OpExpression the value
// holds the expression source.
type Condition struct {
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// AutomationTrigger is a tagged union keyed by Type. FieldId is required for
// field_change and must belong to TableId.
type AutomationTrigger struct {
	Type      TriggerType `json:"type"`
	TableId   string      `json:"tableId"`
	FieldId   string      `json:"fieldId,omitempty"`
	Condition *Condition  `json:"condition,omitempty"`
}

// ActionType discriminates the AutomationAction variant.
type ActionType string

const (
	ActionCreateRecord = ActionType("create_record")
	ActionUpdateRecord = ActionType("update_record")
	ActionCopyFields   = ActionType("copy_fields")
	ActionCopyToTable  = ActionType("copy_to_table")
	ActionMoveToTable  = ActionType("move_to_table")
	ActionSyncToTable  = ActionType("sync_to_table")
	ActionShowInTable  = ActionType("show_in_table")
)

// SyncMode selects the direction of sync_to_table propagation.
type SyncMode string

const (
	SyncOneWay = SyncMode("one_way")
	SyncTwoWay = SyncMode("two_way")
)

// DuplicateHandling is the policy applied when no SyncLink exists yet and an
// existing target record exactly matches all mapped field values.
type DuplicateHandling string

const (
	DuplicateSkip      = DuplicateHandling("skip")
	DuplicateUpdate    = DuplicateHandling("update")
	DuplicateCreateNew = DuplicateHandling("create_new")
)

// FieldMapping declares a source field to target field correspondence used to
// project values across tables. The pair must be type-compatible.
type FieldMapping struct {
	SourceFieldId string `json:"sourceFieldId"`
	TargetFieldId string `json:"targetFieldId"`
}

// AutomationAction is a tagged union keyed by Type.
type AutomationAction struct {
	Type          ActionType     `json:"type"`
	TargetTableId string         `json:"targetTableId"`
	FieldMappings []FieldMapping `json:"fieldMappings,omitempty"`
	// PreserveOriginal keeps the source record after move_to_table.
	PreserveOriginal bool `json:"preserveOriginal,omitempty"`
	// SyncMode applies to sync_to_table only. Defaults to one_way.
	SyncMode SyncMode `json:"syncMode,omitempty"`
	// DuplicateHandling applies to copy_to_table, move_to_table and
	// sync_to_table. Defaults to create_new.
	DuplicateHandling DuplicateHandling `json:"duplicateHandling,omitempty"`
	// VisibilityFieldId/VisibilityValue apply to show_in_table only.
	VisibilityFieldId string      `json:"visibilityFieldId,omitempty"`
	VisibilityValue   interface{} `json:"visibilityValue,omitempty"`
}

// Automation is a rule on one source table. Invariant:
// Trigger.TableId == TableId.
type Automation struct {
	Id        string            `json:"id"`
	Name      string            `json:"name"`
	TableId   string            `json:"tableId"`
	Trigger   AutomationTrigger `json:"trigger"`
	Action    AutomationAction  `json:"action"`
	Enabled   bool              `json:"enabled"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// IsTwoWaySync reports whether the automation propagates target mutations
// back to the source record.
func (a *Automation) IsTwoWaySync() bool {
	return a.Action.Type == ActionSyncToTable && a.Action.SyncMode == SyncTwoWay
}

// InvertMappings returns the field mappings with source and target swapped,
// used for the return trip of a two-way sync.
func InvertMappings(mappings []FieldMapping) []FieldMapping {
	inverted := make([]FieldMapping, len(mappings))
	for i, m := range mappings {
		inverted[i] = FieldMapping{SourceFieldId: m.TargetFieldId, TargetFieldId: m.SourceFieldId}
	}
	return inverted
}
