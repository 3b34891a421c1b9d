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

// Package mapper projects values from a source record onto a target table's
// fields through declared field mappings. Projection is atomic: if any
// mapping fails to coerce, no values are returned.
package mapper

import (
	"fmt"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/fieldtype"
)

// MappingError identifies which field mapping made a projection fail.
type MappingError struct {
	SourceFieldId string
	TargetFieldId string
	Err           error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s -> %s: %v", e.SourceFieldId, e.TargetFieldId, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// Project maps the source values onto target fields. With forCreate set,
// unmapped target fields receive their type default (empty string, 0, false,
// empty set or nil); on update they are left untouched. The whole projection
// fails on the first mapping that cannot coerce.
func Project(source types.Values, mappings []types.FieldMapping, sourceTable, targetTable *types.Table, forCreate bool) (types.Values, error) {
	out := make(types.Values, len(mappings))
	for _, m := range mappings {
		sourceField := sourceTable.FieldById(m.SourceFieldId)
		if sourceField == nil {
			return nil, &MappingError{m.SourceFieldId, m.TargetFieldId,
				types.NewConfigurationError("source field %s does not exist on table %s", m.SourceFieldId, sourceTable.Id)}
		}
		targetField := targetTable.FieldById(m.TargetFieldId)
		if targetField == nil {
			return nil, &MappingError{m.SourceFieldId, m.TargetFieldId,
				types.NewConfigurationError("target field %s does not exist on table %s", m.TargetFieldId, targetTable.Id)}
		}
		coerced, err := fieldtype.Coerce(source[m.SourceFieldId], sourceField.Type, targetField.Type)
		if err != nil {
			return nil, &MappingError{m.SourceFieldId, m.TargetFieldId, err}
		}
		out[m.TargetFieldId] = coerced
	}
	if forCreate {
		for _, f := range targetTable.Fields {
			if _, mapped := out[f.Id]; !mapped {
				out[f.Id] = fieldtype.Zero(f.Type)
			}
		}
	}
	return out, nil
}

// ProjectChanged maps only the source fields listed in changed, used for the
// return trip of a two-way sync so an edit to one target field does not
// overwrite the other source fields.
func ProjectChanged(source types.Values, changed []string, mappings []types.FieldMapping, sourceTable, targetTable *types.Table) (types.Values, error) {
	filtered := make([]types.FieldMapping, 0, len(mappings))
	for _, m := range mappings {
		for _, fieldId := range changed {
			if m.SourceFieldId == fieldId {
				filtered = append(filtered, m)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return types.Values{}, nil
	}
	return Project(source, filtered, sourceTable, targetTable, false)
}
