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

// Package executor performs the concrete effect of a matched automation
// against the target table: create, update, copy, move, sync or show,
// applying the duplicate-handling policy and maintaining SyncLinks. Every
// write it produces is provenance-tagged so the engine can suppress the
// producing automation on its own writes.
package executor

import (
	"context"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/fieldtype"
	"github.com/gridflow/gridflow/mapper"
)

// Executor writes through the record store and keeps SyncLink bookkeeping.
type Executor struct {
	records types.RecordStore
	links   types.LinkStore
}

// New creates an Executor over the given stores.
func New(records types.RecordStore, links types.LinkStore) *Executor {
	return &Executor{records: records, links: links}
}

// Result is the outcome of one automation firing.
type Result struct {
	Status  types.RunStatus
	Message string
	// Writes are the provenance-tagged mutation events of every write that
	// was applied, in order. They are kept even when the action ultimately
	// failed: propagation is forward-only, never rolled back.
	Writes []types.Mutation
}

func skipped(message string) *Result {
	return &Result{Status: types.RunSkipped, Message: message}
}

// Execute performs the automation's action for a matched mutation on the
// source record. sourceTable and targetTable are the resolved schemas (for
// same-table actions they are the same table).
func (x *Executor) Execute(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table) (*Result, error) {
	switch a.Action.Type {
	case types.ActionCreateRecord:
		return x.createRecord(ctx, a, m, source, sourceTable, targetTable)
	case types.ActionUpdateRecord, types.ActionCopyFields:
		return x.updateSameRecord(ctx, a, m, source, sourceTable)
	case types.ActionCopyToTable:
		return x.propagate(ctx, a, m, source, sourceTable, targetTable, false)
	case types.ActionMoveToTable:
		return x.propagate(ctx, a, m, source, sourceTable, targetTable, !a.Action.PreserveOriginal)
	case types.ActionSyncToTable:
		// The forward leg of a sync behaves like a copy; continuity comes
		// from re-triggering on later mutations, the reverse leg from
		// ExecuteReverse.
		return x.propagate(ctx, a, m, source, sourceTable, targetTable, false)
	case types.ActionShowInTable:
		return x.showInTable(ctx, a, m, source, sourceTable, targetTable, true)
	default:
		return nil, types.NewConfigurationError("unknown action type %q", a.Action.Type)
	}
}

// ExecuteClear clears the visibility flag of a show_in_table action. Invoked
// by the engine when the trigger's shape matched but its condition did not,
// so rows are hidden again when they stop qualifying.
func (x *Executor) ExecuteClear(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table) (*Result, error) {
	return x.showInTable(ctx, a, m, source, sourceTable, targetTable, false)
}

// ExecuteReverse propagates a target-table mutation back to the source
// record of a two-way sync, through the inverted mapping, restricted to the
// changed fields.
func (x *Executor) ExecuteReverse(ctx context.Context, a *types.Automation, m types.Mutation, target *types.Record, sourceTable, targetTable *types.Table) (*Result, error) {
	link, err := x.links.GetLinkByTarget(ctx, a.Id, target.Id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return skipped("target record is not sync-linked"), nil
	}
	inverted := types.InvertMappings(a.Action.FieldMappings)
	projected, err := mapper.ProjectChanged(target.Values, m.ChangedFieldIds, inverted, targetTable, sourceTable)
	if err != nil {
		return nil, err
	}
	if len(projected) == 0 {
		return skipped("no mapped field changed"), nil
	}
	before, err := x.records.GetRecord(ctx, a.TableId, link.SourceRecordId)
	if err != nil {
		return nil, err
	}
	updated, err := x.records.UpdateRecord(ctx, a.TableId, link.SourceRecordId, projected)
	if err != nil {
		return nil, err
	}
	write := x.tagged(a, m, types.NewMutation(a.TableId, updated.Id, types.RecordUpdated, projected.FieldIds(), before.Values, updated.Values))
	return &Result{Status: types.RunSuccess, Message: "synced back to source record", Writes: []types.Mutation{write}}, nil
}

func (x *Executor) createRecord(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table) (*Result, error) {
	projected, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, targetTable, true)
	if err != nil {
		return nil, err
	}
	created, err := x.records.CreateRecord(ctx, targetTable.Id, projected)
	if err != nil {
		return nil, err
	}
	write := x.tagged(a, m, types.NewMutation(targetTable.Id, created.Id, types.RecordCreated, created.Values.FieldIds(), nil, created.Values))
	return &Result{Status: types.RunSuccess, Message: "created record " + created.Id, Writes: []types.Mutation{write}}, nil
}

// updateSameRecord covers update_record and copy_fields: both project fields
// of the record onto other fields of the same record.
func (x *Executor) updateSameRecord(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable *types.Table) (*Result, error) {
	projected, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, sourceTable, false)
	if err != nil {
		return nil, err
	}
	if len(projected) == 0 {
		return skipped("no field mappings"), nil
	}
	updated, err := x.records.UpdateRecord(ctx, sourceTable.Id, source.Id, projected)
	if err != nil {
		return nil, err
	}
	write := x.tagged(a, m, types.NewMutation(sourceTable.Id, updated.Id, types.RecordUpdated, projected.FieldIds(), source.Values, updated.Values))
	return &Result{Status: types.RunSuccess, Message: "updated record " + updated.Id, Writes: []types.Mutation{write}}, nil
}

// propagate implements copy_to_table, move_to_table and the forward leg of
// sync_to_table: update the SyncLinked target if one exists, otherwise apply
// the duplicate-handling policy, otherwise create.
func (x *Executor) propagate(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table, deleteSource bool) (*Result, error) {
	result, err := x.propagateForward(ctx, a, m, source, sourceTable, targetTable)
	if err != nil || result.Status == types.RunSkipped {
		return result, err
	}
	if deleteSource {
		// Deletion of the moved original is a normal mutation event: other
		// automations on the source table may react to it, within the same
		// chain depth budget.
		if err := x.records.DeleteRecord(ctx, sourceTable.Id, source.Id); err != nil {
			return result, err
		}
		write := x.tagged(a, m, types.NewMutation(sourceTable.Id, source.Id, types.RecordDeleted, source.Values.FieldIds(), source.Values, nil))
		result.Writes = append(result.Writes, write)
		result.Message += ", source record deleted"
	}
	return result, nil
}

func (x *Executor) propagateForward(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table) (*Result, error) {
	link, err := x.links.GetLink(ctx, a.Id, source.Id)
	if err != nil {
		return nil, err
	}
	if link != nil {
		if result, ok, err := x.updateLinked(ctx, a, m, source, sourceTable, targetTable, link); err != nil || ok {
			return result, err
		}
		// stale link: the target side is gone, start over
	}

	projected, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, targetTable, false)
	if err != nil {
		return nil, err
	}
	candidates, err := x.records.FindByValues(ctx, targetTable.Id, projected)
	if err != nil {
		return nil, err
	}
	policy := a.Action.DuplicateHandling
	if policy == "" {
		policy = types.DuplicateCreateNew
	}
	if len(candidates) > 0 {
		switch policy {
		case types.DuplicateSkip:
			return skipped("matching target record exists"), nil
		case types.DuplicateUpdate:
			match := candidates[0]
			if _, _, err := x.links.CreateLink(ctx, types.SyncLink{
				AutomationId:   a.Id,
				SourceRecordId: source.Id,
				TargetRecordId: match.Id,
			}); err != nil {
				return nil, err
			}
			// All mapped values already match; the link makes future
			// triggers update this record in place.
			return &Result{Status: types.RunSuccess, Message: "linked existing record " + match.Id}, nil
		}
	}

	createValues, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, targetTable, true)
	if err != nil {
		return nil, err
	}
	created, err := x.records.CreateRecord(ctx, targetTable.Id, createValues)
	if err != nil {
		return nil, err
	}
	write := x.tagged(a, m, types.NewMutation(targetTable.Id, created.Id, types.RecordCreated, created.Values.FieldIds(), nil, created.Values))
	result := &Result{Status: types.RunSuccess, Message: "created record " + created.Id, Writes: []types.Mutation{write}}

	stored, createdLink, err := x.links.CreateLink(ctx, types.SyncLink{
		AutomationId:   a.Id,
		SourceRecordId: source.Id,
		TargetRecordId: created.Id,
	})
	if err != nil {
		return result, err
	}
	if !createdLink && stored.TargetRecordId != created.Id {
		// A concurrent writer linked this source record first. Both target
		// records are left intact for manual reconciliation.
		return result, &types.DuplicateRaceError{
			AutomationId:    a.Id,
			SourceRecordId:  source.Id,
			TargetRecordIds: []string{stored.TargetRecordId, created.Id},
		}
	}
	return result, nil
}

// updateLinked refreshes the SyncLinked target record. ok=false with a nil
// error means the link was stale and has been dropped.
func (x *Executor) updateLinked(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table, link *types.SyncLink) (*Result, bool, error) {
	before, err := x.records.GetRecord(ctx, targetTable.Id, link.TargetRecordId)
	if err != nil {
		if err == types.ErrRecordNotFound {
			if err := x.links.DeleteLink(ctx, link.Id); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		return nil, false, err
	}
	projected, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, targetTable, false)
	if err != nil {
		return nil, false, err
	}
	updated, err := x.records.UpdateRecord(ctx, targetTable.Id, link.TargetRecordId, projected)
	if err != nil {
		return nil, false, err
	}
	write := x.tagged(a, m, types.NewMutation(targetTable.Id, updated.Id, types.RecordUpdated, projected.FieldIds(), before.Values, updated.Values))
	return &Result{Status: types.RunSuccess, Message: "updated linked record " + updated.Id, Writes: []types.Mutation{write}}, true, nil
}

// showInTable sets (or clears) the visibility flag on the target records
// whose mapped field values exactly match the source record. It never
// creates records: it reveals rows already present.
func (x *Executor) showInTable(ctx context.Context, a *types.Automation, m types.Mutation, source *types.Record, sourceTable, targetTable *types.Table, show bool) (*Result, error) {
	visField := targetTable.FieldById(a.Action.VisibilityFieldId)
	if visField == nil {
		return nil, types.NewConfigurationError("visibility field %s does not exist on table %s", a.Action.VisibilityFieldId, targetTable.Id)
	}
	value := a.Action.VisibilityValue
	if !show {
		value = fieldtype.Zero(visField.Type)
	}
	if err := fieldtype.ValidateValue(visField, value); err != nil {
		return nil, err
	}
	projected, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, targetTable, false)
	if err != nil {
		return nil, err
	}
	if len(projected) == 0 {
		return nil, types.NewConfigurationError("show_in_table requires field mappings to match target records")
	}
	matches, err := x.records.FindByValues(ctx, targetTable.Id, projected)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return skipped("no matching target record"), nil
	}
	result := &Result{Status: types.RunSuccess}
	for _, match := range matches {
		updated, err := x.records.UpdateRecord(ctx, targetTable.Id, match.Id, types.Values{visField.Id: value})
		if err != nil {
			return result, err
		}
		write := x.tagged(a, m, types.NewMutation(targetTable.Id, updated.Id, types.RecordUpdated, []string{visField.Id}, match.Values, updated.Values))
		result.Writes = append(result.Writes, write)
	}
	if show {
		result.Message = "visibility flag set"
	} else {
		result.Message = "visibility flag cleared"
	}
	return result, nil
}

// tagged stamps a downstream write with the producing automation's
// provenance and the carried chain depth.
func (x *Executor) tagged(a *types.Automation, origin types.Mutation, write types.Mutation) types.Mutation {
	originId := origin.EventId
	if origin.Provenance != nil {
		originId = origin.Provenance.OriginEventId
	}
	write.Depth = origin.Depth + 1
	write.Provenance = &types.Provenance{AutomationId: a.Id, OriginEventId: originId}
	return write
}
