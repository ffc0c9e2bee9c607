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

package repointel

import (
	"context"
	"fmt"
	"hash/fnv"

	"foundry/platform/providers/base"
)

// mockLanguagePool is the fixed set of languages the mock draws from.
var mockLanguagePool = []string{"Go", "Python", "TypeScript", "Java", "Rust", "C#"}

// MockProvider serves deterministic canned repository intelligence.
type MockProvider struct{}

// NewMockProvider creates the deterministic mock repo-intel provider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string    { return "repo-intel" }
func (p *MockProvider) Mode() base.Mode { return base.ModeMock }

// Inspect returns stable pseudo-findings keyed by the subject alone.
func (p *MockProvider) Inspect(_ context.Context, subject string) ([]base.TechFinding, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	seed := h.Sum32()

	repoCount := int(seed%40) + 3
	// Reduce in uint32 space first: int(seed) overflows negative on
	// 32-bit platforms and would produce a negative index.
	start := int(seed % uint32(len(mockLanguagePool)))
	langs := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		langs = append(langs, mockLanguagePool[(start+i*7)%len(mockLanguagePool)])
	}

	return []base.TechFinding{
		{
			Subject: subject,
			Signal:  "repo-count",
			Detail:  fmt.Sprintf("%d public repositories", repoCount),
		},
		{
			Subject:   subject,
			Signal:    "primary-language",
			Detail:    langs[0],
			Languages: langs,
		},
	}, nil
}
