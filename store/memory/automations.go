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

package memory

import (
	"context"

	"github.com/gridflow/gridflow/api/types"
)

func (s *Store) CreateAutomation(_ context.Context, a *types.Automation) error {
	if err := s.fail("CreateAutomation"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.automations[a.Id] = &copied
	s.order = append(s.order, a.Id)
	return nil
}

func (s *Store) GetAutomation(_ context.Context, id string) (*types.Automation, error) {
	if err := s.fail("GetAutomation"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.automations[id]
	if !ok {
		return nil, types.ErrAutomationNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *Store) UpdateAutomation(_ context.Context, a *types.Automation) error {
	if err := s.fail("UpdateAutomation"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.automations[a.Id]; !ok {
		return types.ErrAutomationNotFound
	}
	copied := *a
	s.automations[a.Id] = &copied
	return nil
}

func (s *Store) DeleteAutomation(_ context.Context, id string) error {
	if err := s.fail("DeleteAutomation"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.automations[id]; !ok {
		return types.ErrAutomationNotFound
	}
	delete(s.automations, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// list walks automations in creation order, filtered by keep.
func (s *Store) list(keep func(*types.Automation) bool) []*types.Automation {
	var out []*types.Automation
	for _, id := range s.order {
		a, ok := s.automations[id]
		if !ok || !keep(a) {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out
}

func (s *Store) ListAll(_ context.Context) ([]*types.Automation, error) {
	if err := s.fail("ListAll"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(*types.Automation) bool { return true }), nil
}

func (s *Store) ListForTable(_ context.Context, tableId string) ([]*types.Automation, error) {
	if err := s.fail("ListForTable"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a *types.Automation) bool { return a.TableId == tableId }), nil
}

func (s *Store) ListEnabledForTable(_ context.Context, tableId string) ([]*types.Automation, error) {
	if err := s.fail("ListEnabledForTable"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a *types.Automation) bool { return a.Enabled && a.TableId == tableId }), nil
}

func (s *Store) ListTwoWaySyncIntoTable(_ context.Context, tableId string) ([]*types.Automation, error) {
	if err := s.fail("ListTwoWaySyncIntoTable"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a *types.Automation) bool {
		return a.Enabled && a.IsTwoWaySync() && a.Action.TargetTableId == tableId
	}), nil
}

func (s *Store) Append(_ context.Context, run types.AutomationRun) error {
	if err := s.fail("Append"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := run
	s.runs = append(s.runs, &copied)
	return nil
}

func (s *Store) ListRuns(_ context.Context, automationId string, limit int) ([]*types.AutomationRun, error) {
	if err := s.fail("ListRuns"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.AutomationRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if automationId != "" && s.runs[i].AutomationId != automationId {
			continue
		}
		copied := *s.runs[i]
		out = append(out, &copied)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
