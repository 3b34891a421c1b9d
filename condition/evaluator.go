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

// Package condition evaluates automation triggers against record mutation
// events. Evaluation is pure: no store access, no side effects.
package condition

import (
	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/fieldtype"
)

// Evaluate returns whether the trigger matches the mutation. The table is
// the trigger's source table schema. Errors are configuration errors
// (invalid field reference, ordering operator on a non-ordinal type, value
// type mismatch); the caller skips the automation and records them.
func Evaluate(trigger types.AutomationTrigger, m types.Mutation, table *types.Table) (bool, error) {
	switch trigger.Type {
	case types.TriggerFieldChange:
		if m.Kind != types.RecordCreated && m.Kind != types.RecordUpdated {
			return false, nil
		}
		if trigger.FieldId == "" {
			return false, types.NewConfigurationError("field_change trigger requires a field id")
		}
		field := table.FieldById(trigger.FieldId)
		if field == nil {
			return false, types.NewConfigurationError("trigger field %s does not exist on table %s", trigger.FieldId, table.Id)
		}
		if !m.Changed(trigger.FieldId) {
			return false, nil
		}
		if trigger.Condition == nil {
			return true, nil
		}
		return evalCondition(field, m.NewValues[trigger.FieldId], *trigger.Condition, m)
	case types.TriggerRecordCreated:
		if m.Kind != types.RecordCreated {
			return false, nil
		}
		return evalOptionalCondition(trigger, m, table)
	case types.TriggerRecordUpdated:
		if m.Kind != types.RecordUpdated {
			return false, nil
		}
		return evalOptionalCondition(trigger, m, table)
	default:
		return false, types.NewConfigurationError("unknown trigger type %q", trigger.Type)
	}
}

// ShapeMatches reports whether the trigger's type (and changed field, for
// field_change) matches the mutation, ignoring any condition. Used to decide
// whether a non-matching condition should clear a visibility flag.
func ShapeMatches(trigger types.AutomationTrigger, m types.Mutation) bool {
	switch trigger.Type {
	case types.TriggerFieldChange:
		return (m.Kind == types.RecordCreated || m.Kind == types.RecordUpdated) &&
			trigger.FieldId != "" && m.Changed(trigger.FieldId)
	case types.TriggerRecordCreated:
		return m.Kind == types.RecordCreated
	case types.TriggerRecordUpdated:
		return m.Kind == types.RecordUpdated
	default:
		return false
	}
}

func evalOptionalCondition(trigger types.AutomationTrigger, m types.Mutation, table *types.Table) (bool, error) {
	if trigger.Condition == nil {
		return true, nil
	}
	if trigger.Condition.Operator == types.OpExpression {
		return evalExpression(*trigger.Condition, m)
	}
	if trigger.FieldId == "" {
		return false, types.NewConfigurationError("condition with operator %s requires a field id", trigger.Condition.Operator)
	}
	field := table.FieldById(trigger.FieldId)
	if field == nil {
		return false, types.NewConfigurationError("trigger field %s does not exist on table %s", trigger.FieldId, table.Id)
	}
	return evalCondition(field, m.NewValues[trigger.FieldId], *trigger.Condition, m)
}

// evalCondition applies one operator to the field's new value under the
// field type's declared semantics.
func evalCondition(field *types.Field, value interface{}, cond types.Condition, m types.Mutation) (bool, error) {
	switch cond.Operator {
	case types.OpEquals:
		return fieldtype.Equal(field.Type, value, cond.Value)
	case types.OpNotEquals:
		equal, err := fieldtype.Equal(field.Type, value, cond.Value)
		return !equal, err
	case types.OpContains:
		return fieldtype.Contains(field.Type, value, cond.Value)
	case types.OpGreaterThan:
		return compare(field.Type, value, cond.Value, func(c int) bool { return c > 0 })
	case types.OpLessThan:
		return compare(field.Type, value, cond.Value, func(c int) bool { return c < 0 })
	case types.OpGreaterThanOrEqual:
		return compare(field.Type, value, cond.Value, func(c int) bool { return c >= 0 })
	case types.OpLessThanOrEqual:
		return compare(field.Type, value, cond.Value, func(c int) bool { return c <= 0 })
	case types.OpExpression:
		return evalExpression(cond, m)
	default:
		return false, types.NewConfigurationError("unknown condition operator %q", cond.Operator)
	}
}

func compare(ft types.FieldType, value, conditionValue interface{}, match func(int) bool) (bool, error) {
	if value == nil {
		return false, nil
	}
	c, err := fieldtype.Compare(ft, value, conditionValue)
	if err != nil {
		return false, err
	}
	return match(c), nil
}
