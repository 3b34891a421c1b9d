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

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Values maps field id to the field's value. The value shape must be valid
// for the field's declared type: strings for text-like fields, float64 for
// number, bool for checkbox, an option id string for single_select, a slice
// of option ids for multi_select.
type Values map[string]interface{}

// Copy returns a shallow copy of the values.
func (v Values) Copy() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// FieldIds returns the field ids present in the values.
func (v Values) FieldIds() []string {
	ids := make([]string, 0, len(v))
	for k := range v {
		ids = append(ids, k)
	}
	return ids
}

// Record belongs to one table and holds a value per field id.
type Record struct {
	Id        string    `json:"id"`
	TableId   string    `json:"tableId"`
	Values    Values    `json:"values"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MutationKind classifies a record mutation event.
type MutationKind string

const (
	RecordCreated = MutationKind("created")
	RecordUpdated = MutationKind("updated")
	RecordDeleted = MutationKind("deleted")
)

// Provenance tags a write produced by the engine with the automation that
// produced it and the event it originated from. The engine suppresses
// re-triggering the same automation for its own writes; other automations
// may still react to the write.
type Provenance struct {
	AutomationId  string `json:"automationId"`
	OriginEventId string `json:"originEventId"`
}

// Mutation is one record mutation event. External producers (grid edits,
// CSV import) deliver them with Depth 0 and no Provenance; the engine emits
// them for every write it performs, with the depth counter carried forward.
type Mutation struct {
	EventId         string       `json:"eventId"`
	TableId         string       `json:"tableId"`
	RecordId        string       `json:"recordId"`
	Kind            MutationKind `json:"kind"`
	ChangedFieldIds []string     `json:"changedFieldIds"`
	OldValues       Values       `json:"oldValues"`
	NewValues       Values       `json:"newValues"`
	// Depth is the number of automation hops that produced this event.
	Depth int `json:"depth"`
	// Provenance is nil for user-originated mutations.
	Provenance *Provenance `json:"provenance,omitempty"`
}

// NewMutation creates a mutation event with a generated event id.
func NewMutation(tableId, recordId string, kind MutationKind, changed []string, oldValues, newValues Values) Mutation {
	id, _ := uuid.NewV4()
	return Mutation{
		EventId:         id.String(),
		TableId:         tableId,
		RecordId:        recordId,
		Kind:            kind,
		ChangedFieldIds: changed,
		OldValues:       oldValues,
		NewValues:       newValues,
	}
}

// Changed reports whether the given field id is among the changed fields.
func (m *Mutation) Changed(fieldId string) bool {
	for _, id := range m.ChangedFieldIds {
		if id == fieldId {
			return true
		}
	}
	return false
}
