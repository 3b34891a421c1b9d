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
	"context"
	"time"
)

// RecordStore is the external record storage the engine writes through.
// Implementations must return ErrRecordNotFound/ErrTableNotFound for unknown
// keys and wrap I/O failures in TransientStoreError so the engine can retry.
type RecordStore interface {
	GetTable(ctx context.Context, tableId string) (*Table, error)
	GetRecord(ctx context.Context, tableId, recordId string) (*Record, error)
	CreateRecord(ctx context.Context, tableId string, values Values) (*Record, error)
	UpdateRecord(ctx context.Context, tableId, recordId string, values Values) (*Record, error)
	DeleteRecord(ctx context.Context, tableId, recordId string) error
	// FindByValues returns the records of the table whose values exactly
	// match every entry of match. Used for duplicate detection.
	FindByValues(ctx context.Context, tableId string, match Values) ([]*Record, error)
}

// SyncLink pairs a source record with the target record it has been
// propagated to, keyed by (automation id, source record id), so repeated
// triggers update the same target instead of duplicating it. Links survive
// automation disable/delete to allow re-enabling without data loss.
type SyncLink struct {
	Id             string    `json:"id"`
	AutomationId   string    `json:"automationId"`
	SourceRecordId string    `json:"sourceRecordId"`
	TargetRecordId string    `json:"targetRecordId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LinkStore persists SyncLinks. Never an in-memory singleton of the engine:
// links must survive restarts and be shared across engine instances.
type LinkStore interface {
	// GetLink returns the link for (automationId, sourceRecordId), or nil.
	GetLink(ctx context.Context, automationId, sourceRecordId string) (*SyncLink, error)
	// GetLinkByTarget returns the link of the automation whose target side
	// is targetRecordId, or nil.
	GetLinkByTarget(ctx context.Context, automationId, targetRecordId string) (*SyncLink, error)
	// CreateLink stores the link. It is idempotent on
	// (automationId, sourceRecordId): when a link already exists the stored
	// link is returned with created=false and no new link is written.
	CreateLink(ctx context.Context, link SyncLink) (*SyncLink, bool, error)
	// DeleteLink removes one link by id.
	DeleteLink(ctx context.Context, id string) error
	// DeleteLinksForRecord removes every link referencing the record on
	// either side.
	DeleteLinksForRecord(ctx context.Context, recordId string) error
	// ListLinks returns all links of the automation.
	ListLinks(ctx context.Context, automationId string) ([]*SyncLink, error)
}

// AutomationStore is the registry of automations. ListEnabledForTable must
// return automations in creation order so chains are deterministic.
type AutomationStore interface {
	CreateAutomation(ctx context.Context, a *Automation) error
	GetAutomation(ctx context.Context, id string) (*Automation, error)
	UpdateAutomation(ctx context.Context, a *Automation) error
	DeleteAutomation(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*Automation, error)
	ListForTable(ctx context.Context, tableId string) ([]*Automation, error)
	ListEnabledForTable(ctx context.Context, tableId string) ([]*Automation, error)
	// ListTwoWaySyncIntoTable returns enabled two-way sync automations whose
	// target table is tableId, in creation order. Used for the return trip.
	ListTwoWaySyncIntoTable(ctx context.Context, tableId string) ([]*Automation, error)
}

// RunStatus classifies one automation firing in the run log.
type RunStatus string

const (
	RunSuccess = RunStatus("success")
	RunSkipped = RunStatus("skipped")
	RunFailed  = RunStatus("failed")
)

// AutomationRun is one audit entry of the run log: the diagnostic surface
// for automation owners.
type AutomationRun struct {
	Id           string    `json:"id"`
	AutomationId string    `json:"automationId"`
	EventId      string    `json:"eventId"`
	RecordId     string    `json:"recordId"`
	Status       RunStatus `json:"status"`
	// ErrorKind is empty on success, otherwise one of: configuration,
	// transient, chain_depth_exceeded, duplicate_race.
	ErrorKind string    `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Error kinds recorded on AutomationRun entries.
const (
	ErrKindConfiguration      = "configuration"
	ErrKindTransient          = "transient"
	ErrKindChainDepthExceeded = "chain_depth_exceeded"
	ErrKindDuplicateRace      = "duplicate_race"
)

// RunLog records automation firings for audit and diagnostics.
type RunLog interface {
	Append(ctx context.Context, run AutomationRun) error
	ListRuns(ctx context.Context, automationId string, limit int) ([]*AutomationRun, error)
}
