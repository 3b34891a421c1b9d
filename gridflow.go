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

// Package gridflow is the automation engine of a database-workspace product:
// rules watch record mutations on one table and, when their trigger matches,
// create, update, copy, move, sync or reveal records in another table.
//
// The engine consumes a record-mutation event source and a record store
// supplied by the embedding application, and exposes an automation registry.
//
//	store := memory.New()
//	cfg := types.NewConfig(types.WithMaxChainDepth(10))
//	eng, err := gridflow.New(cfg, engine.Stores{
//		Records:     store,
//		Links:       store,
//		Automations: store,
//		Runs:        store,
//	})
//	...
//	_ = eng.OnMutation(types.NewMutation(tableId, recordId, types.RecordUpdated, changed, old, new))
package gridflow

import (
	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/engine"
)

// New creates an automation engine over the given stores.
func New(config types.Config, stores engine.Stores) (*engine.Engine, error) {
	return engine.New(config, stores)
}

// NewRegistry creates the automation registry service used by the HTTP API
// and by embedders managing automations programmatically.
func NewRegistry(automations types.AutomationStore, records types.RecordStore) *engine.Registry {
	return engine.NewRegistry(automations, records)
}

// NewConfig creates an engine config with defaults, applying the options.
func NewConfig(opts ...types.Option) types.Config {
	return types.NewConfig(opts...)
}
