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

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/condition"
	"github.com/gridflow/gridflow/fieldtype"
)

// Validate checks the structural invariants of an automation against the
// live table schemas. Every violation is a ConfigurationError.
func (r *Registry) Validate(ctx context.Context, a *types.Automation) error {
	if a.Name == "" {
		return types.NewConfigurationError("automation name is required")
	}
	if a.TableId == "" {
		return types.NewConfigurationError("automation requires a source table")
	}
	if a.Trigger.TableId != a.TableId {
		return types.NewConfigurationError("trigger table %s does not match automation table %s", a.Trigger.TableId, a.TableId)
	}
	sourceTable, err := r.records.GetTable(ctx, a.TableId)
	if err != nil {
		return err
	}
	if err := validateTrigger(a.Trigger, sourceTable); err != nil {
		return err
	}
	return r.validateAction(ctx, a, sourceTable)
}

func validateTrigger(trigger types.AutomationTrigger, table *types.Table) error {
	var field *types.Field
	switch trigger.Type {
	case types.TriggerFieldChange:
		if trigger.FieldId == "" {
			return types.NewConfigurationError("field_change trigger requires a field id")
		}
	case types.TriggerRecordCreated, types.TriggerRecordUpdated:
	default:
		return types.NewConfigurationError("unknown trigger type %q", trigger.Type)
	}
	if trigger.FieldId != "" {
		if field = table.FieldById(trigger.FieldId); field == nil {
			return types.NewConfigurationError("trigger field %s does not exist on table %s", trigger.FieldId, table.Id)
		}
	}
	if trigger.Condition == nil {
		return nil
	}
	return validateCondition(*trigger.Condition, field, table)
}

func validateCondition(cond types.Condition, field *types.Field, table *types.Table) error {
	switch cond.Operator {
	case types.OpExpression:
		source, ok := cond.Value.(string)
		if !ok {
			return types.NewConfigurationError("expression condition value must be a string")
		}
		_, err := condition.Compile(source)
		return err
	case types.OpEquals, types.OpNotEquals:
		if field == nil {
			return types.NewConfigurationError("operator %s requires a trigger field", cond.Operator)
		}
		if cond.Value != nil {
			// comparing the value against itself validates its shape
			if _, err := fieldtype.Equal(field.Type, cond.Value, cond.Value); err != nil {
				return err
			}
		}
		return nil
	case types.OpContains:
		if field == nil {
			return types.NewConfigurationError("operator contains requires a trigger field")
		}
		switch field.Type {
		case types.FieldText, types.FieldEmail, types.FieldPhone, types.FieldLink, types.FieldMultiSelect:
			return nil
		default:
			return types.NewConfigurationError("operator contains not supported for field type %s", field.Type)
		}
	case types.OpGreaterThan, types.OpLessThan, types.OpGreaterThanOrEqual, types.OpLessThanOrEqual:
		if field == nil {
			return types.NewConfigurationError("operator %s requires a trigger field", cond.Operator)
		}
		if !fieldtype.IsOrdinal(field.Type) {
			return types.NewConfigurationError("ordering operators not supported for field type %s", field.Type)
		}
		if cond.Value != nil {
			if _, err := fieldtype.Compare(field.Type, cond.Value, cond.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return types.NewConfigurationError("unknown condition operator %q", cond.Operator)
	}
}

func (r *Registry) validateAction(ctx context.Context, a *types.Automation, sourceTable *types.Table) error {
	action := a.Action
	targetTable := sourceTable
	switch action.Type {
	case types.ActionUpdateRecord, types.ActionCopyFields:
		if action.TargetTableId != "" && action.TargetTableId != a.TableId {
			return types.NewConfigurationError("%s acts on the trigger's table, not %s", action.Type, action.TargetTableId)
		}
	case types.ActionCreateRecord, types.ActionCopyToTable, types.ActionMoveToTable, types.ActionSyncToTable, types.ActionShowInTable:
		if action.TargetTableId == "" {
			return types.NewConfigurationError("%s requires a target table", action.Type)
		}
		if action.TargetTableId != a.TableId {
			var err error
			if targetTable, err = r.records.GetTable(ctx, action.TargetTableId); err != nil {
				return err
			}
		}
	default:
		return types.NewConfigurationError("unknown action type %q", action.Type)
	}

	if action.SyncMode != "" && action.Type != types.ActionSyncToTable {
		return types.NewConfigurationError("sync mode applies to sync_to_table only")
	}
	switch action.SyncMode {
	case "", types.SyncOneWay, types.SyncTwoWay:
	default:
		return types.NewConfigurationError("unknown sync mode %q", action.SyncMode)
	}
	switch action.DuplicateHandling {
	case "", types.DuplicateSkip, types.DuplicateUpdate, types.DuplicateCreateNew:
	default:
		return types.NewConfigurationError("unknown duplicate handling %q", action.DuplicateHandling)
	}

	for _, m := range action.FieldMappings {
		sourceField := sourceTable.FieldById(m.SourceFieldId)
		if sourceField == nil {
			return types.NewConfigurationError("source field %s does not exist on table %s", m.SourceFieldId, sourceTable.Id)
		}
		targetField := targetTable.FieldById(m.TargetFieldId)
		if targetField == nil {
			return types.NewConfigurationError("target field %s does not exist on table %s", m.TargetFieldId, targetTable.Id)
		}
		if !fieldtype.CanCoerce(sourceField.Type, targetField.Type) {
			return types.NewConfigurationError("mapping %s -> %s is not type-compatible (%s -> %s)",
				m.SourceFieldId, m.TargetFieldId, sourceField.Type, targetField.Type)
		}
		if a.IsTwoWaySync() && !fieldtype.CanCoerce(targetField.Type, sourceField.Type) {
			return types.NewConfigurationError("mapping %s -> %s is not invertible for a two-way sync (%s -> %s)",
				m.SourceFieldId, m.TargetFieldId, targetField.Type, sourceField.Type)
		}
	}

	switch action.Type {
	case types.ActionShowInTable:
		if action.VisibilityFieldId == "" {
			return types.NewConfigurationError("show_in_table requires a visibility field")
		}
		visField := targetTable.FieldById(action.VisibilityFieldId)
		if visField == nil {
			return types.NewConfigurationError("visibility field %s does not exist on table %s", action.VisibilityFieldId, targetTable.Id)
		}
		if err := fieldtype.ValidateValue(visField, action.VisibilityValue); err != nil {
			return err
		}
		if len(action.FieldMappings) == 0 {
			return types.NewConfigurationError("show_in_table requires field mappings to match target records")
		}
	case types.ActionUpdateRecord, types.ActionCopyFields, types.ActionCreateRecord,
		types.ActionCopyToTable, types.ActionMoveToTable, types.ActionSyncToTable:
		if len(action.FieldMappings) == 0 {
			return types.NewConfigurationError("%s requires field mappings", action.Type)
		}
	}
	return nil
}
