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

import "sync"

// chainTracker counts the in-flight events of each chain, keyed by the
// originating event id, so the engine can tell when a chain has settled.
type chainTracker struct {
	mu       sync.Mutex
	pending  map[string]int
	firstErr map[string]error
	onEnd    func(originEventId string, err error)
}

func newChainTracker(onEnd func(originEventId string, err error)) *chainTracker {
	return &chainTracker{
		pending:  make(map[string]int),
		firstErr: make(map[string]error),
		onEnd:    onEnd,
	}
}

func (t *chainTracker) add(origin string) {
	t.mu.Lock()
	t.pending[origin]++
	t.mu.Unlock()
}

// fail records a chain error without an enqueued event, e.g. a write dropped
// at the depth cap.
func (t *chainTracker) fail(origin string, err error) {
	t.mu.Lock()
	if _, ok := t.firstErr[origin]; !ok {
		t.firstErr[origin] = err
	}
	t.mu.Unlock()
}

// done marks one event of the chain processed. The settle callback fires
// when the last event of the chain finishes; cascaded events are added
// before their producing event is marked done, so the count never dips to
// zero mid-chain.
func (t *chainTracker) done(origin string, err error) {
	t.mu.Lock()
	if err != nil {
		if _, ok := t.firstErr[origin]; !ok {
			t.firstErr[origin] = err
		}
	}
	t.pending[origin]--
	settled := t.pending[origin] <= 0
	var firstErr error
	if settled {
		firstErr = t.firstErr[origin]
		delete(t.pending, origin)
		delete(t.firstErr, origin)
	}
	onEnd := t.onEnd
	t.mu.Unlock()
	if settled && onEnd != nil {
		onEnd(origin, firstErr)
	}
}
