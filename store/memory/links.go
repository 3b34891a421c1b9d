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
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/gridflow/gridflow/api/types"
)

func (s *Store) GetLink(_ context.Context, automationId, sourceRecordId string) (*types.SyncLink, error) {
	if err := s.fail("GetLink"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.AutomationId == automationId && link.SourceRecordId == sourceRecordId {
			out := *link
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) GetLinkByTarget(_ context.Context, automationId, targetRecordId string) (*types.SyncLink, error) {
	if err := s.fail("GetLinkByTarget"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.AutomationId == automationId && link.TargetRecordId == targetRecordId {
			out := *link
			return &out, nil
		}
	}
	return nil, nil
}

// CreateLink is idempotent on (automationId, sourceRecordId): the stored
// link wins and created=false signals the caller lost the race.
func (s *Store) CreateLink(_ context.Context, link types.SyncLink) (*types.SyncLink, bool, error) {
	if err := s.fail("CreateLink"); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.AutomationId == link.AutomationId && existing.SourceRecordId == link.SourceRecordId {
			out := *existing
			return &out, false, nil
		}
	}
	if link.Id == "" {
		id, _ := uuid.NewV4()
		link.Id = id.String()
	}
	link.CreatedAt = time.Now()
	stored := link
	s.links[link.Id] = &stored
	out := stored
	return &out, true, nil
}

func (s *Store) DeleteLink(_ context.Context, id string) error {
	if err := s.fail("DeleteLink"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, id)
	return nil
}

func (s *Store) DeleteLinksForRecord(_ context.Context, recordId string) error {
	if err := s.fail("DeleteLinksForRecord"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, link := range s.links {
		if link.SourceRecordId == recordId || link.TargetRecordId == recordId {
			delete(s.links, id)
		}
	}
	return nil
}

func (s *Store) ListLinks(_ context.Context, automationId string) ([]*types.SyncLink, error) {
	if err := s.fail("ListLinks"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.SyncLink
	for _, link := range s.links {
		if link.AutomationId == automationId {
			copied := *link
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
