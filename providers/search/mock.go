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

package search

import (
	"context"
	"fmt"
	"hash/fnv"

	"foundry/platform/providers/base"
)

// MockProvider serves deterministic canned search results. It is pure: the
// same query always yields the same documents, with no network dependency.
type MockProvider struct{}

// NewMockProvider creates the deterministic mock search provider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string    { return "search" }
func (p *MockProvider) Mode() base.Mode { return base.ModeMock }

// Search returns top canned documents derived from the query text alone.
func (p *MockProvider) Search(_ context.Context, query string, top int) ([]base.DocumentRef, error) {
	if top <= 0 {
		top = DefaultTop
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(query))
	seed := h.Sum32()

	refs := make([]base.DocumentRef, 0, top)
	for i := 0; i < top; i++ {
		// Stable pseudo-score in [0.50, 0.99] keyed by query and rank.
		score := 0.50 + float64((seed+uint32(i)*2654435761)%50)/100.0
		refs = append(refs, base.DocumentRef{
			ID:      fmt.Sprintf("mock-doc-%08x-%d", seed, i),
			Title:   fmt.Sprintf("Reference document %d for %q", i+1, query),
			Snippet: fmt.Sprintf("Canned search result %d matching query %q.", i+1, query),
			Score:   score,
			Source:  "mock-index",
		})
	}
	return refs, nil
}
