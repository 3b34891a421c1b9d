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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/engine"
	"github.com/gridflow/gridflow/store/memory"
)

func newEngine(t *testing.T, store *memory.Store, opts ...types.Option) *engine.Engine {
	t.Helper()
	opts = append([]types.Option{types.WithRetryBackoff(time.Millisecond)}, opts...)
	e, err := engine.New(types.NewConfig(opts...), engine.Stores{
		Records:     store,
		Links:       store,
		Automations: store,
		Runs:        store,
	})
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return e
}

func saveLeadsCustomers(store *memory.Store) {
	store.SaveTable(&types.Table{
		Id: "tLeads",
		Fields: []*types.Field{
			{Id: "lName", TableId: "tLeads", Type: types.FieldText},
			{Id: "lEmail", TableId: "tLeads", Type: types.FieldEmail},
			{Id: "lScore", TableId: "tLeads", Type: types.FieldNumber},
			{Id: "lStatus", TableId: "tLeads", Type: types.FieldSingleSelect,
				Options: map[string]types.SelectOption{
					"optNew":       {Label: "New"},
					"optQualified": {Label: "Qualified"},
				}},
		},
	})
	store.SaveTable(&types.Table{
		Id: "tCustomers",
		Fields: []*types.Field{
			{Id: "cName", TableId: "tCustomers", Type: types.FieldText},
			{Id: "cEmail", TableId: "tCustomers", Type: types.FieldEmail},
			{Id: "cVisible", TableId: "tCustomers", Type: types.FieldCheckbox},
			{Id: "cTags", TableId: "tCustomers", Type: types.FieldMultiSelect,
				Options: map[string]types.SelectOption{
					"optHot": {Label: "Hot"},
				}},
		},
	})
}

func mustCreateAutomation(t *testing.T, store *memory.Store, a *types.Automation) {
	t.Helper()
	a.Enabled = true
	if a.Trigger.TableId == "" {
		a.Trigger.TableId = a.TableId
	}
	require.NoError(t, store.CreateAutomation(context.Background(), a))
}

func updateEvent(record *types.Record, changed ...string) types.Mutation {
	return types.NewMutation(record.TableId, record.Id, types.RecordUpdated, changed, nil, record.Values)
}

func allRuns(t *testing.T, store *memory.Store) []*types.AutomationRun {
	t.Helper()
	runs, err := store.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	return runs
}

// A field_change trigger without a condition fires exactly once per mutation
// that touches the field, and not at all for other mutations.
func TestFieldChangeFiresExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aQualify",
		Name:    "Copy qualified leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerFieldChange, FieldId: "lStatus"},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
	})
	e := newEngine(t, store)

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada", "lStatus": "optQualified"})
	require.NoError(t, err)

	require.NoError(t, e.OnMutation(updateEvent(lead, "lStatus")))
	e.Wait()

	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Len(t, customers, 1)

	runs := allRuns(t, store)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunSuccess, runs[0].Status)

	// a mutation not touching the trigger field is ignored
	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()
	assert.Len(t, allRuns(t, store), 1)
}

// Leads -> Customers: the single_select condition gates the copy, and
// re-triggering updates the linked record instead of duplicating it.
func TestCopyToTableReTriggerUpdatesLinkedTarget(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aCopy",
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
	})
	e := newEngine(t, store)

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{
		"lName": "Ada", "lEmail": "ada@example.com", "lStatus": "optNew",
	})
	require.NoError(t, err)

	// status moved to an option that does not satisfy the condition
	require.NoError(t, e.OnMutation(updateEvent(lead, "lStatus")))
	e.Wait()
	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Empty(t, customers)

	lead, err = store.UpdateRecord(ctx, "tLeads", lead.Id, types.Values{"lStatus": "optQualified"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lStatus")))
	e.Wait()

	customers, err = store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Ada", customers[0].Values["cName"])

	// a later edit re-triggers and updates the linked record in place
	lead, err = store.UpdateRecord(ctx, "tLeads", lead.Id, types.Values{"lName": "Ada Lovelace"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lName", "lStatus")))
	e.Wait()

	customers, err = store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	require.Len(t, customers, 1, "re-trigger must not duplicate the target")
	assert.Equal(t, "Ada Lovelace", customers[0].Values["cName"])
}

// Duplicate handling "skip": an unlinked exact match on all mapped fields
// leaves the target table untouched and creates no SyncLink.
func TestDuplicateSkipLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aCopy",
		Name:    "Copy leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:              types.ActionCopyToTable,
			TargetTableId:     "tCustomers",
			FieldMappings:     []types.FieldMapping{{SourceFieldId: "lEmail", TargetFieldId: "cEmail"}},
			DuplicateHandling: types.DuplicateSkip,
		},
	})
	e := newEngine(t, store)

	_, err := store.CreateRecord(ctx, "tCustomers", types.Values{"cEmail": "ada@example.com"})
	require.NoError(t, err)
	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lEmail": "ada@example.com"})
	require.NoError(t, err)

	require.NoError(t, e.OnMutation(updateEvent(lead, "lEmail")))
	e.Wait()

	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Len(t, customers, 1)
	link, err := store.GetLink(ctx, "aCopy", lead.Id)
	require.NoError(t, err)
	assert.Nil(t, link)

	runs := allRuns(t, store)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunSkipped, runs[0].Status)
}

// A two-way sync propagates edits in both directions without ping-ponging:
// each leg settles after one hop because an automation never re-triggers on
// its own writes.
func TestTwoWaySyncNoPingPong(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aSync",
		Name:    "Sync leads to customers",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionSyncToTable,
			TargetTableId: "tCustomers",
			SyncMode:      types.SyncTwoWay,
			FieldMappings: []types.FieldMapping{
				{SourceFieldId: "lName", TargetFieldId: "cName"},
				{SourceFieldId: "lEmail", TargetFieldId: "cEmail"},
			},
		},
	})
	e := newEngine(t, store)

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada", "lEmail": "ada@example.com"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()

	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	customer := customers[0]
	assert.Equal(t, "Ada", customer.Values["cName"])

	// edit the target side: the change flows back to the source record
	customer, err = store.UpdateRecord(ctx, "tCustomers", customer.Id, types.Values{"cName": "Countess Ada"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(customer, "cName")))
	e.Wait()

	lead, err = store.GetRecord(ctx, "tLeads", lead.Id)
	require.NoError(t, err)
	assert.Equal(t, "Countess Ada", lead.Values["lName"])
	assert.Equal(t, "ada@example.com", lead.Values["lEmail"], "unchanged mapped field untouched")

	customers, err = store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Len(t, customers, 1, "no extra records from a sync loop")

	// one forward run, one reverse run, nothing else
	runs := allRuns(t, store)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, types.RunSuccess, run.Status)
	}
}

// A chain of automations across tables halts at the depth cap: the capped
// hop's write is dropped, recorded as a failed run, and nothing that was
// already applied is rolled back.
func TestChainDepthCapHaltsCascade(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	const tables = 12
	for i := 1; i <= tables; i++ {
		store.SaveTable(&types.Table{
			Id:     fmt.Sprintf("t%02d", i),
			Fields: []*types.Field{{Id: fmt.Sprintf("f%02d", i), Type: types.FieldText}},
		})
	}
	for i := 1; i < tables; i++ {
		mustCreateAutomation(t, store, &types.Automation{
			Id:      fmt.Sprintf("a%02d", i),
			Name:    fmt.Sprintf("hop %d", i),
			TableId: fmt.Sprintf("t%02d", i),
			Trigger: types.AutomationTrigger{Type: types.TriggerRecordCreated},
			Action: types.AutomationAction{
				Type:          types.ActionCreateRecord,
				TargetTableId: fmt.Sprintf("t%02d", i+1),
				FieldMappings: []types.FieldMapping{{
					SourceFieldId: fmt.Sprintf("f%02d", i),
					TargetFieldId: fmt.Sprintf("f%02d", i+1),
				}},
			},
		})
	}

	var (
		mu       sync.Mutex
		chainErr error
	)
	e := newEngine(t, store, types.WithOnChainEnd(func(_ string, err error) {
		mu.Lock()
		chainErr = err
		mu.Unlock()
	}))

	origin, err := store.CreateRecord(ctx, "t01", types.Values{"f01": "ripple"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(types.NewMutation("t01", origin.Id, types.RecordCreated,
		[]string{"f01"}, nil, origin.Values)))
	e.Wait()

	// hops 1..10 applied: tables t02..t11 hold the propagated record
	for i := 2; i <= 11; i++ {
		records, err := store.FindByValues(ctx, fmt.Sprintf("t%02d", i), types.Values{})
		require.NoError(t, err)
		assert.Len(t, records, 1, "table t%02d", i)
		assert.Equal(t, "ripple", records[0].Values[fmt.Sprintf("f%02d", i)])
	}
	// the 11th hop was cut off at the cap
	records, err := store.FindByValues(ctx, "t12", types.Values{})
	require.NoError(t, err)
	assert.Empty(t, records)

	var depthRuns, successRuns int
	for _, run := range allRuns(t, store) {
		switch {
		case run.ErrorKind == types.ErrKindChainDepthExceeded:
			depthRuns++
			assert.Equal(t, types.RunFailed, run.Status)
		case run.Status == types.RunSuccess:
			successRuns++
		}
	}
	assert.Equal(t, 1, depthRuns)
	assert.Equal(t, 10, successRuns)

	mu.Lock()
	defer mu.Unlock()
	var depthErr *types.ChainDepthExceededError
	assert.True(t, errors.As(chainErr, &depthErr))
}

// Transient store failures are retried with backoff; the action succeeds once
// the store recovers.
func TestTransientFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aCopy",
		Name:    "Copy leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
	})
	e := newEngine(t, store, types.WithMaxRetries(3))

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada"})
	require.NoError(t, err)

	var attempts int
	var mu sync.Mutex
	store.FailOp = func(op string) error {
		if op != "CreateRecord" {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts <= 2 {
			return &types.TransientStoreError{Op: op, Err: errors.New("connection reset")}
		}
		return nil
	}

	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()
	store.FailOp = nil

	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Len(t, customers, 1)

	runs := allRuns(t, store)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunSuccess, runs[0].Status)
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

// Exhausting the retry budget halts only the failing branch and records a
// failed run with the transient error kind.
func TestRetryExhaustionFailsBranch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aCopy",
		Name:    "Copy leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
	})

	var (
		mu       sync.Mutex
		chainErr error
	)
	e := newEngine(t, store, types.WithMaxRetries(2), types.WithOnChainEnd(func(_ string, err error) {
		mu.Lock()
		chainErr = err
		mu.Unlock()
	}))

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada"})
	require.NoError(t, err)

	var attempts int
	store.FailOp = func(op string) error {
		if op != "CreateRecord" {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return &types.TransientStoreError{Op: op, Err: errors.New("connection reset")}
	}

	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()
	store.FailOp = nil

	runs := allRuns(t, store)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunFailed, runs[0].Status)
	assert.Equal(t, types.ErrKindTransient, runs[0].ErrorKind)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts, "first attempt plus two retries")
	assert.True(t, types.IsTransientStoreError(chainErr))
}

// A misconfigured automation (mapping that cannot coerce at runtime) is
// skipped and recorded; other automations on the same event still run.
func TestConfigurationErrorSkipsOnlyTheBrokenAutomation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	// lScore (number) cannot project onto cVisible (checkbox)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aBroken",
		Name:    "Broken mapping",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lScore", TargetFieldId: "cVisible"}},
		},
	})
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aHealthy",
		Name:    "Healthy mapping",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
	})
	e := newEngine(t, store)

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada", "lScore": float64(5)})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()

	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Len(t, customers, 1, "the healthy automation still ran")

	var skipped, succeeded int
	for _, run := range allRuns(t, store) {
		switch run.Status {
		case types.RunSkipped:
			skipped++
			assert.Equal(t, types.ErrKindConfiguration, run.ErrorKind)
			assert.Equal(t, "aBroken", run.AutomationId)
		case types.RunSuccess:
			succeeded++
		}
	}
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, succeeded)
}

// show_in_table clears the visibility flag again when the trigger fires but
// the condition stops matching.
func TestShowInTableClearsWhenConditionStopsMatching(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aShow",
		Name:    "Reveal big customers",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{
			Type: types.TriggerFieldChange, FieldId: "lScore",
			Condition: &types.Condition{Operator: types.OpGreaterThan, Value: float64(50)},
		},
		Action: types.AutomationAction{
			Type:              types.ActionShowInTable,
			TargetTableId:     "tCustomers",
			FieldMappings:     []types.FieldMapping{{SourceFieldId: "lEmail", TargetFieldId: "cEmail"}},
			VisibilityFieldId: "cVisible",
			VisibilityValue:   true,
		},
	})
	e := newEngine(t, store)

	customer, err := store.CreateRecord(ctx, "tCustomers", types.Values{"cEmail": "ada@example.com", "cVisible": false})
	require.NoError(t, err)
	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lEmail": "ada@example.com", "lScore": float64(80)})
	require.NoError(t, err)

	require.NoError(t, e.OnMutation(updateEvent(lead, "lScore")))
	e.Wait()
	got, err := store.GetRecord(ctx, "tCustomers", customer.Id)
	require.NoError(t, err)
	assert.Equal(t, true, got.Values["cVisible"])

	lead, err = store.UpdateRecord(ctx, "tLeads", lead.Id, types.Values{"lScore": float64(10)})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lScore")))
	e.Wait()
	got, err = store.GetRecord(ctx, "tCustomers", customer.Id)
	require.NoError(t, err)
	assert.Equal(t, false, got.Values["cVisible"])
}

// Deleting a record removes the SyncLinks it participates in.
func TestRecordDeletionDropsLinks(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aCopy",
		Name:    "Copy leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionCopyToTable,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
	})
	e := newEngine(t, store)

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()

	link, err := store.GetLink(ctx, "aCopy", lead.Id)
	require.NoError(t, err)
	require.NotNil(t, link)

	require.NoError(t, store.DeleteRecord(ctx, "tLeads", lead.Id))
	require.NoError(t, e.OnMutation(types.NewMutation("tLeads", lead.Id, types.RecordDeleted,
		nil, lead.Values, nil)))
	e.Wait()

	link, err = store.GetLink(ctx, "aCopy", lead.Id)
	require.NoError(t, err)
	assert.Nil(t, link)
}

// A mutation for a record that vanished before evaluation is recorded as a
// skipped run, not a failure.
func TestMissingSourceRecordIsSkipped(t *testing.T) {
	store := memory.New()
	saveLeadsCustomers(store)
	mustCreateAutomation(t, store, &types.Automation{
		Id:      "aCopy",
		Name:    "Copy leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
	})
	e := newEngine(t, store)

	require.NoError(t, e.OnMutation(types.NewMutation("tLeads", "rGone", types.RecordUpdated,
		[]string{"lName"}, nil, types.Values{"lName": "ghost"})))
	e.Wait()

	runs := allRuns(t, store)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunSkipped, runs[0].Status)
}

// Disabled automations are not evaluated.
func TestDisabledAutomationDoesNotRun(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	saveLeadsCustomers(store)
	a := &types.Automation{
		Id:      "aCopy",
		Name:    "Copy leads",
		TableId: "tLeads",
		Trigger: types.AutomationTrigger{Type: types.TriggerRecordUpdated, TableId: "tLeads"},
		Action: types.AutomationAction{
			Type:          types.ActionCreateRecord,
			TargetTableId: "tCustomers",
			FieldMappings: []types.FieldMapping{{SourceFieldId: "lName", TargetFieldId: "cName"}},
		},
		Enabled: false,
	}
	require.NoError(t, store.CreateAutomation(ctx, a))
	e := newEngine(t, store)

	lead, err := store.CreateRecord(ctx, "tLeads", types.Values{"lName": "Ada"})
	require.NoError(t, err)
	require.NoError(t, e.OnMutation(updateEvent(lead, "lName")))
	e.Wait()

	assert.Empty(t, allRuns(t, store))
	customers, err := store.FindByValues(ctx, "tCustomers", types.Values{})
	require.NoError(t, err)
	assert.Empty(t, customers)
}
