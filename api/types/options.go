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

// Option is a function type that modifies the Config.
type Option func(*Config) error

// WithLogger is an option that sets the logger of the Config.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithMaxChainDepth is an option that sets the chain depth cap.
func WithMaxChainDepth(depth int) Option {
	return func(c *Config) error {
		if depth > 0 {
			c.MaxChainDepth = depth
		}
		return nil
	}
}

// WithMaxRetries is an option that sets the transient-failure attempt limit.
func WithMaxRetries(retries int) Option {
	return func(c *Config) error {
		if retries >= 0 {
			c.MaxRetries = retries
		}
		return nil
	}
}

// WithRetryBackoff is an option that sets the initial retry backoff.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(c *Config) error {
		if backoff > 0 {
			c.RetryBackoff = backoff
		}
		return nil
	}
}

// WithQueueCapacity is an option that sets the per-table queue size.
func WithQueueCapacity(capacity int) Option {
	return func(c *Config) error {
		if capacity > 0 {
			c.QueueCapacity = capacity
		}
		return nil
	}
}

// WithOnChainEnd is an option that sets the chain-settled callback.
func WithOnChainEnd(onChainEnd OnChainEndFunc) Option {
	return func(c *Config) error {
		c.OnChainEnd = onChainEnd
		return nil
	}
}

// WithReconcileCron is an option that enables the SyncLink reconciliation
// sweep with the given cron spec.
func WithReconcileCron(spec string) Option {
	return func(c *Config) error {
		c.ReconcileCron = spec
		return nil
	}
}
