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

package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockClient is a deterministic stand-in for a live model. The same request
// always produces the same response. Tests may override RespondFunc to script
// replies or inject failures.
type MockClient struct {
	RespondFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// NewMockClient creates the deterministic mock completion client.
func NewMockClient() *MockClient { return &MockClient{} }

// Name returns the client name.
func (m *MockClient) Name() string { return "mock" }

// Complete produces a canned reply. Requests whose instructions ask for a
// JSON verdict get a stable structured verdict keyed by the prompt; everything
// else gets a short canned prose reply.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, req)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.SystemPrompt))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(req.Prompt))
	seed := h.Sum32()

	var content string
	if strings.Contains(strings.ToLower(req.SystemPrompt+req.Prompt), "json") {
		// Stable score in [0.35, 0.94].
		score := 0.35 + float64(seed%60)/100.0
		verdict := "neutral"
		switch {
		case score >= 0.70:
			verdict = "favorable"
		case score < 0.50:
			verdict = "unfavorable"
		}
		content = fmt.Sprintf(`{"score": %.2f, "verdict": %q, "rationale": "Deterministic mock assessment (seed %08x)."}`,
			score, verdict, seed)
	} else {
		content = fmt.Sprintf("Mock completion (seed %08x): canned analysis for the supplied request.", seed)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      "mock",
		TokensUsed: len(req.Prompt) / 4,
	}, nil
}
