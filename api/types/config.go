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

import "time"

// Configuration is a free-form component configuration map, decoded into
// typed structs via utils/maps.Map2Struct.
type Configuration map[string]interface{}

// OnChainEndFunc is called once per originating mutation when every hop of
// its automation chain has finished. err is the first error the chain hit,
// nil when every hop succeeded.
type OnChainEndFunc = func(originEventId string, err error)

// Config defines the configuration for the automation engine.
type Config struct {
	// Logger is the logging interface, defaulting to DefaultLogger().
	Logger Logger
	// MaxChainDepth caps cascading automation chains: a propagated write
	// whose depth would exceed the cap aborts that branch and records a
	// ChainDepthExceededError. Default 10.
	MaxChainDepth int
	// MaxRetries is the attempt limit for transient store failures per
	// action step. Default 3.
	MaxRetries int
	// RetryBackoff is the initial backoff between retries, doubled per
	// attempt. Default 100ms.
	RetryBackoff time.Duration
	// QueueCapacity is the per-table mutation queue size. Default 256.
	QueueCapacity int
	// OnChainEnd is an optional callback invoked when a chain settles.
	OnChainEnd OnChainEndFunc
	// ReconcileCron is the cron spec of the SyncLink reconciliation sweep.
	// Empty disables the sweeper.
	ReconcileCron string
}

// NewConfig creates a new Config with default values and applies the
// provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		Logger:        DefaultLogger(),
		MaxChainDepth: 10,
		MaxRetries:    3,
		RetryBackoff:  time.Millisecond * 100,
		QueueCapacity: 256,
	}
	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
