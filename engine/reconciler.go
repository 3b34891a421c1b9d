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
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robfig/cron/v3"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/mapper"
)

// Reconciler is the background SyncLink sweep. It drops links whose source
// or target record is gone (the mutation source is at-least-once, so a
// delete event can be missed) and flags duplicate target records produced by
// the concurrent-create race for manual reconciliation. It never resolves a
// duplicate itself.
type Reconciler struct {
	config types.Config
	stores Stores
	cron   *cron.Cron
}

// NewReconciler creates a reconciler over the engine's stores.
func NewReconciler(config types.Config, stores Stores) *Reconciler {
	return &Reconciler{config: config, stores: stores}
}

// Start schedules the sweep with the given cron spec.
func (r *Reconciler) Start(spec string) error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(spec, func() {
		if err := r.Sweep(context.Background()); err != nil {
			r.config.Logger.Printf("gridflow: link sweep: %v", err)
		}
	}); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop cancels the scheduled sweep.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Sweep runs one reconciliation pass over every automation's links.
func (r *Reconciler) Sweep(ctx context.Context) error {
	automations, err := r.stores.Automations.ListAll(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, a := range automations {
		if err := r.sweepAutomation(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Reconciler) sweepAutomation(ctx context.Context, a *types.Automation) error {
	if a.Action.TargetTableId == "" || a.Action.TargetTableId == a.TableId {
		return nil
	}
	links, err := r.stores.Links.ListLinks(ctx, a.Id)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	sourceTable, err := r.stores.Records.GetTable(ctx, a.TableId)
	if err != nil {
		return err
	}
	targetTable, err := r.stores.Records.GetTable(ctx, a.Action.TargetTableId)
	if err != nil {
		return err
	}
	for _, link := range links {
		source, err := r.stores.Records.GetRecord(ctx, a.TableId, link.SourceRecordId)
		if errors.Is(err, types.ErrRecordNotFound) {
			if err := r.stores.Links.DeleteLink(ctx, link.Id); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		if _, err := r.stores.Records.GetRecord(ctx, a.Action.TargetTableId, link.TargetRecordId); errors.Is(err, types.ErrRecordNotFound) {
			if err := r.stores.Links.DeleteLink(ctx, link.Id); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		if err := r.flagDuplicates(ctx, a, link, source, sourceTable, targetTable); err != nil {
			return err
		}
	}
	return nil
}

// flagDuplicates looks for target records that exactly match the linked
// source's mapped values but are not the linked target: the artifact of two
// writers racing to create "the" matching record.
func (r *Reconciler) flagDuplicates(ctx context.Context, a *types.Automation, link *types.SyncLink, source *types.Record, sourceTable, targetTable *types.Table) error {
	projected, err := mapper.Project(source.Values, a.Action.FieldMappings, sourceTable, targetTable, false)
	if err != nil {
		// static misconfiguration: the event path already reports it
		return nil
	}
	matches, err := r.stores.Records.FindByValues(ctx, targetTable.Id, projected)
	if err != nil {
		return err
	}
	var duplicates []string
	for _, m := range matches {
		if m.Id != link.TargetRecordId {
			duplicates = append(duplicates, m.Id)
		}
	}
	if len(duplicates) == 0 {
		return nil
	}
	raceErr := &types.DuplicateRaceError{
		AutomationId:    a.Id,
		SourceRecordId:  link.SourceRecordId,
		TargetRecordIds: append([]string{link.TargetRecordId}, duplicates...),
	}
	r.config.Logger.Printf("gridflow: %v", raceErr)
	id, _ := uuid.NewV4()
	return r.stores.Runs.Append(ctx, types.AutomationRun{
		Id:           id.String(),
		AutomationId: a.Id,
		RecordId:     link.SourceRecordId,
		Status:       types.RunFailed,
		ErrorKind:    types.ErrKindDuplicateRace,
		Message:      raceErr.Error(),
		CreatedAt:    time.Now(),
	})
}
