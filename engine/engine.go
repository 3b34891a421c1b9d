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

// Package engine orchestrates automation evaluation: it consumes record
// mutation events, matches them against the registered automations of the
// event's table, and drives condition evaluation, field projection and
// action execution, with loop prevention, stable ordering and a bounded
// chain depth.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/condition"
	"github.com/gridflow/gridflow/executor"
)

// Stores groups the external collaborators the engine writes through.
type Stores struct {
	Records     types.RecordStore
	Links       types.LinkStore
	Automations types.AutomationStore
	Runs        types.RunLog
}

// Engine processes mutation events from one logical queue per table, so two
// mutations of the same record are evaluated in arrival order; different
// tables are processed concurrently.
type Engine struct {
	config   types.Config
	stores   Stores
	executor *executor.Executor

	mu     sync.Mutex
	queues map[string]chan types.Mutation

	// pending counts queued but not yet processed events, including
	// cascaded ones, so Wait can observe quiescence.
	pending sync.WaitGroup

	chains *chainTracker

	stopOnce sync.Once
	stopped  chan struct{}

	reconciler *Reconciler
}

// New creates an engine over the given stores. All stores are required
// except Runs, which defaults to a logger-backed sink.
func New(config types.Config, stores Stores) (*Engine, error) {
	if stores.Records == nil || stores.Links == nil || stores.Automations == nil {
		return nil, errors.New("engine requires record, link and automation stores")
	}
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	if stores.Runs == nil {
		stores.Runs = &loggerRunLog{logger: config.Logger}
	}
	e := &Engine{
		config:   config,
		stores:   stores,
		executor: executor.New(stores.Records, stores.Links),
		queues:   make(map[string]chan types.Mutation),
		chains:   newChainTracker(config.OnChainEnd),
		stopped:  make(chan struct{}),
	}
	if config.ReconcileCron != "" {
		e.reconciler = NewReconciler(e.config, e.stores)
		if err := e.reconciler.Start(config.ReconcileCron); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// OnMutation feeds one record mutation event into the engine. External
// producers deliver events with Depth 0 and no Provenance.
func (e *Engine) OnMutation(m types.Mutation) error {
	select {
	case <-e.stopped:
		return errors.New("engine is stopped")
	default:
	}
	if m.EventId == "" {
		id, _ := uuid.NewV4()
		m.EventId = id.String()
	}
	e.enqueue(m)
	return nil
}

// enqueue routes the event to its table's queue, starting the table worker
// on first use.
func (e *Engine) enqueue(m types.Mutation) {
	e.chains.add(e.originOf(m))
	e.pending.Add(1)
	e.mu.Lock()
	queue, ok := e.queues[m.TableId]
	if !ok {
		queue = make(chan types.Mutation, e.config.QueueCapacity)
		e.queues[m.TableId] = queue
		go e.runTable(queue)
	}
	e.mu.Unlock()
	queue <- m
}

func (e *Engine) runTable(queue chan types.Mutation) {
	for {
		select {
		case <-e.stopped:
			return
		case m := <-queue:
			err := e.process(context.Background(), m)
			e.chains.done(e.originOf(m), err)
			e.pending.Done()
		}
	}
}

// Wait blocks until every queued event, including cascaded ones, has been
// processed. Intended for tests and graceful drains.
func (e *Engine) Wait() {
	e.pending.Wait()
}

// Stop shuts the engine down. Queued events are abandoned; the mutation
// source is at-least-once, so they will be redelivered.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopped)
		if e.reconciler != nil {
			e.reconciler.Stop()
		}
	})
}

// process evaluates one event against the automations of its table, in
// creation order, then against two-way syncs targeting the table.
func (e *Engine) process(ctx context.Context, m types.Mutation) error {
	if m.Kind == types.RecordDeleted {
		// A SyncLink dies with either of its sides.
		if err := e.retry(ctx, func() error {
			return e.stores.Links.DeleteLinksForRecord(ctx, m.RecordId)
		}); err != nil {
			e.config.Logger.Printf("gridflow: dropping links for deleted record %s: %v", m.RecordId, err)
		}
	}

	var firstErr error
	automations, err := e.listEnabled(ctx, m.TableId)
	if err != nil {
		e.config.Logger.Printf("gridflow: listing automations for table %s: %v", m.TableId, err)
		return err
	}
	for _, a := range automations {
		if err := e.runAutomation(ctx, a, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Two-way syncs react to mutations on their target table as well.
	if m.Kind == types.RecordUpdated {
		reversed, err := e.listTwoWayInto(ctx, m.TableId)
		if err != nil {
			e.config.Logger.Printf("gridflow: listing two-way syncs into table %s: %v", m.TableId, err)
			return err
		}
		for _, a := range reversed {
			if err := e.runReverse(ctx, a, m); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runAutomation evaluates and executes one automation for one event.
func (e *Engine) runAutomation(ctx context.Context, a *types.Automation, m types.Mutation) error {
	// Loop prevention: an automation never re-triggers on its own writes.
	// Writes produced by other automations pass through.
	if m.Provenance != nil && m.Provenance.AutomationId == a.Id {
		return nil
	}

	sourceTable, err := e.getTable(ctx, a.TableId)
	if err != nil {
		return e.recordFailure(ctx, a, m, err)
	}
	matched, evalErr := condition.Evaluate(a.Trigger, m, sourceTable)
	if evalErr != nil {
		// Static misconfiguration: skip, record, never retry.
		return e.recordFailure(ctx, a, m, evalErr)
	}

	clear := false
	if !matched {
		// show_in_table is set/clear: when the trigger shape matched but
		// the condition did not, the flag is cleared so rows stop being
		// revealed once they no longer qualify.
		if a.Action.Type == types.ActionShowInTable && condition.ShapeMatches(a.Trigger, m) {
			clear = true
		} else {
			return nil
		}
	}

	targetTable := sourceTable
	if a.Action.TargetTableId != "" && a.Action.TargetTableId != a.TableId {
		if targetTable, err = e.getTable(ctx, a.Action.TargetTableId); err != nil {
			return e.recordFailure(ctx, a, m, err)
		}
	}
	source, err := e.getRecord(ctx, a.TableId, m.RecordId)
	if err != nil {
		if errors.Is(err, types.ErrRecordNotFound) {
			return e.recordRun(ctx, a, m, skippedResult("source record no longer exists"))
		}
		return e.recordFailure(ctx, a, m, err)
	}

	var result *executor.Result
	execErr := e.retry(ctx, func() error {
		var err error
		if clear {
			result, err = e.executor.ExecuteClear(ctx, a, m, source, sourceTable, targetTable)
		} else {
			result, err = e.executor.Execute(ctx, a, m, source, sourceTable, targetTable)
		}
		return err
	})
	if result != nil {
		e.propagate(ctx, result.Writes)
	}
	if execErr != nil {
		return e.recordFailure(ctx, a, m, execErr)
	}
	return e.recordRun(ctx, a, m, result)
}

// runReverse propagates a target-table mutation back through a two-way sync.
func (e *Engine) runReverse(ctx context.Context, a *types.Automation, m types.Mutation) error {
	if m.Provenance != nil && m.Provenance.AutomationId == a.Id {
		return nil
	}
	sourceTable, err := e.getTable(ctx, a.TableId)
	if err != nil {
		return e.recordFailure(ctx, a, m, err)
	}
	targetTable, err := e.getTable(ctx, a.Action.TargetTableId)
	if err != nil {
		return e.recordFailure(ctx, a, m, err)
	}
	target, err := e.getRecord(ctx, targetTable.Id, m.RecordId)
	if err != nil {
		if errors.Is(err, types.ErrRecordNotFound) {
			return e.recordRun(ctx, a, m, skippedResult("target record no longer exists"))
		}
		return e.recordFailure(ctx, a, m, err)
	}
	var result *executor.Result
	execErr := e.retry(ctx, func() error {
		var err error
		result, err = e.executor.ExecuteReverse(ctx, a, m, target, sourceTable, targetTable)
		return err
	})
	if result != nil {
		e.propagate(ctx, result.Writes)
	}
	if execErr != nil {
		return e.recordFailure(ctx, a, m, execErr)
	}
	return e.recordRun(ctx, a, m, result)
}

// propagate feeds the engine's own writes back in as mutation events so
// automation chains cascade, dropping any write beyond the depth cap.
func (e *Engine) propagate(ctx context.Context, writes []types.Mutation) {
	for _, write := range writes {
		if write.Depth >= e.config.MaxChainDepth {
			depthErr := &types.ChainDepthExceededError{
				EventId: write.EventId,
				Depth:   write.Depth,
				Limit:   e.config.MaxChainDepth,
			}
			e.config.Logger.Printf("gridflow: %v", depthErr)
			run := types.AutomationRun{
				EventId:   write.EventId,
				RecordId:  write.RecordId,
				Status:    types.RunFailed,
				ErrorKind: types.ErrKindChainDepthExceeded,
				Message:   depthErr.Error(),
			}
			if write.Provenance != nil {
				run.AutomationId = write.Provenance.AutomationId
			}
			e.appendRun(ctx, run)
			e.chains.fail(e.originOf(write), depthErr)
			continue
		}
		e.enqueue(write)
	}
}

// retry re-attempts transient store failures with doubling backoff, up to
// the configured retry limit. Configuration errors are never retried.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	backoff := e.config.RetryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || !types.IsTransientStoreError(err) || attempt >= e.config.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopped:
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (e *Engine) listEnabled(ctx context.Context, tableId string) ([]*types.Automation, error) {
	var automations []*types.Automation
	err := e.retry(ctx, func() error {
		var err error
		automations, err = e.stores.Automations.ListEnabledForTable(ctx, tableId)
		return err
	})
	return automations, err
}

func (e *Engine) listTwoWayInto(ctx context.Context, tableId string) ([]*types.Automation, error) {
	var automations []*types.Automation
	err := e.retry(ctx, func() error {
		var err error
		automations, err = e.stores.Automations.ListTwoWaySyncIntoTable(ctx, tableId)
		return err
	})
	return automations, err
}

func (e *Engine) getTable(ctx context.Context, tableId string) (*types.Table, error) {
	var table *types.Table
	err := e.retry(ctx, func() error {
		var err error
		table, err = e.stores.Records.GetTable(ctx, tableId)
		return err
	})
	return table, err
}

func (e *Engine) getRecord(ctx context.Context, tableId, recordId string) (*types.Record, error) {
	var record *types.Record
	err := e.retry(ctx, func() error {
		var err error
		record, err = e.stores.Records.GetRecord(ctx, tableId, recordId)
		return err
	})
	return record, err
}

func skippedResult(message string) *executor.Result {
	return &executor.Result{Status: types.RunSkipped, Message: message}
}

// recordRun appends a run-log entry for a settled automation firing.
func (e *Engine) recordRun(ctx context.Context, a *types.Automation, m types.Mutation, result *executor.Result) error {
	e.appendRun(ctx, types.AutomationRun{
		AutomationId: a.Id,
		EventId:      m.EventId,
		RecordId:     m.RecordId,
		Status:       result.Status,
		Message:      result.Message,
	})
	return nil
}

// recordFailure classifies the error, records it, and returns it so the
// chain callback observes the failure. Only the failing branch halts.
func (e *Engine) recordFailure(ctx context.Context, a *types.Automation, m types.Mutation, err error) error {
	run := types.AutomationRun{
		AutomationId: a.Id,
		EventId:      m.EventId,
		RecordId:     m.RecordId,
		Message:      err.Error(),
	}
	var race *types.DuplicateRaceError
	switch {
	case types.IsConfigurationError(err):
		run.Status = types.RunSkipped
		run.ErrorKind = types.ErrKindConfiguration
	case errors.As(err, &race):
		run.Status = types.RunFailed
		run.ErrorKind = types.ErrKindDuplicateRace
	case types.IsTransientStoreError(err):
		run.Status = types.RunFailed
		run.ErrorKind = types.ErrKindTransient
	default:
		run.Status = types.RunFailed
	}
	e.config.Logger.Printf("gridflow: automation %s on event %s: %v", a.Id, m.EventId, err)
	e.appendRun(ctx, run)
	return err
}

func (e *Engine) appendRun(ctx context.Context, run types.AutomationRun) {
	if run.Id == "" {
		id, _ := uuid.NewV4()
		run.Id = id.String()
	}
	run.CreatedAt = time.Now()
	if err := e.stores.Runs.Append(ctx, run); err != nil {
		e.config.Logger.Printf("gridflow: appending run log entry: %v", err)
	}
}

// originOf returns the originating event id of the chain an event belongs to.
func (e *Engine) originOf(m types.Mutation) string {
	if m.Provenance != nil && m.Provenance.OriginEventId != "" {
		return m.Provenance.OriginEventId
	}
	return m.EventId
}

// loggerRunLog is the fallback run log when none is configured.
type loggerRunLog struct {
	logger types.Logger
}

func (l *loggerRunLog) Append(_ context.Context, run types.AutomationRun) error {
	l.logger.Printf("gridflow: run automation=%s event=%s status=%s %s", run.AutomationId, run.EventId, run.Status, run.Message)
	return nil
}

func (l *loggerRunLog) ListRuns(context.Context, string, int) ([]*types.AutomationRun, error) {
	return nil, nil
}
