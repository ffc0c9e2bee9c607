// Copyright 2025 Foundry
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"context"
	"fmt"
	"sync"
)

// OutcomeStore holds terminal results keyed by request ID with thread-safe
// access. It enforces the exactly-once guarantee: one request ID yields one
// stored RoutingOutcome, and concurrent submissions of the same ID collapse
// onto a single run.
type OutcomeStore struct {
	mu       sync.Mutex
	outcomes map[string]*RoutingOutcome
	inflight map[string]chan struct{}
}

// NewOutcomeStore creates an empty in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		outcomes: make(map[string]*RoutingOutcome),
		inflight: make(map[string]chan struct{}),
	}
}

// Get returns the stored outcome for a request ID.
func (s *OutcomeStore) Get(id string) (*RoutingOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome, ok := s.outcomes[id]
	return outcome, ok
}

// Begin claims a request ID for execution. It returns (nil, true) when the
// caller owns the run, and (outcome, false) when the ID already has a stored
// outcome. If another run for the same ID is in flight, Begin waits for it
// and returns its outcome.
func (s *OutcomeStore) Begin(ctx context.Context, id string) (*RoutingOutcome, bool, error) {
	for {
		s.mu.Lock()
		if outcome, ok := s.outcomes[id]; ok {
			s.mu.Unlock()
			return outcome, false, nil
		}
		done, running := s.inflight[id]
		if !running {
			s.inflight[id] = make(chan struct{})
			s.mu.Unlock()
			return nil, true, nil
		}
		s.mu.Unlock()

		select {
		case <-done:
			// Loop: the owner either stored an outcome or released the claim
			// after a terminal error.
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Complete stores the terminal outcome for a claimed request ID and releases
// waiters. Storing twice for one ID is a programming error.
func (s *OutcomeStore) Complete(id string, outcome *RoutingOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outcomes[id]; ok {
		return fmt.Errorf("duplicate terminal outcome for request %s", id)
	}
	s.outcomes[id] = outcome
	if done, ok := s.inflight[id]; ok {
		close(done)
		delete(s.inflight, id)
	}
	return nil
}

// Release abandons a claim after a terminal error so the ID can be retried.
func (s *OutcomeStore) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if done, ok := s.inflight[id]; ok {
		close(done)
		delete(s.inflight, id)
	}
}

// Len returns the number of stored outcomes.
func (s *OutcomeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}
