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
	"errors"
	"fmt"
)

// ConfigurationError marks a static misconfiguration of an automation:
// invalid field reference, incompatible type mapping, ordering operator on a
// non-ordinal type. Never retried; the automation is skipped for the event.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, v ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, v...)}
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// TransientStoreError wraps an I/O failure of the record store. Retried with
// bounded backoff; exhausting retries halts the failing branch only.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// IsTransientStoreError reports whether err is a TransientStoreError.
func IsTransientStoreError(err error) bool {
	var te *TransientStoreError
	return errors.As(err, &te)
}

// ChainDepthExceededError is recorded when a propagated write would exceed
// the chain depth cap. Non-retryable; already-applied writes are kept.
type ChainDepthExceededError struct {
	EventId string
	Depth   int
	Limit   int
}

func (e *ChainDepthExceededError) Error() string {
	return fmt.Sprintf("chain depth %d exceeds limit %d (event %s)", e.Depth, e.Limit, e.EventId)
}

// DuplicateRaceError is recorded when concurrent writers produced more than
// one target record for the same source record. Not auto-resolved; both
// records are left intact for manual reconciliation.
type DuplicateRaceError struct {
	AutomationId    string
	SourceRecordId  string
	TargetRecordIds []string
}

func (e *DuplicateRaceError) Error() string {
	return fmt.Sprintf("duplicate targets for automation %s source record %s: %v",
		e.AutomationId, e.SourceRecordId, e.TargetRecordIds)
}

// ErrAutomationNotFound is returned by the automation store for unknown ids.
var ErrAutomationNotFound = errors.New("automation not found")

// ErrRecordNotFound is returned by the record store for unknown records.
var ErrRecordNotFound = errors.New("record not found")

// ErrTableNotFound is returned by the record store for unknown tables.
var ErrTableNotFound = errors.New("table not found")
