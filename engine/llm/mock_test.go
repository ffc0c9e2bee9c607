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
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestMockClient_Deterministic(t *testing.T) {
	client := NewMockClient()
	req := CompletionRequest{SystemPrompt: "You are an analyst.", Prompt: "Assess supplier acme."}

	a, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Content != b.Content {
		t.Error("identical requests should yield identical replies")
	}

	other, err := client.Complete(context.Background(), CompletionRequest{Prompt: "different"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Content == a.Content {
		t.Error("different prompts should yield different replies")
	}
}

func TestMockClient_StructuredVerdict(t *testing.T) {
	client := NewMockClient()

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Prompt: "Assess this supplier. Respond only with a JSON object.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var verdict struct {
		Score   float64 `json:"score"`
		Verdict string  `json:"verdict"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &verdict); err != nil {
		t.Fatalf("verdict reply should be valid JSON: %v\n%s", err, resp.Content)
	}
	if verdict.Score < 0 || verdict.Score > 1 {
		t.Errorf("score %.2f out of bounds", verdict.Score)
	}
	switch verdict.Verdict {
	case "favorable", "neutral", "unfavorable":
	default:
		t.Errorf("unexpected verdict %q", verdict.Verdict)
	}
}

func TestMockClient_ProseReply(t *testing.T) {
	client := NewMockClient()

	resp, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are a negotiator.",
		Prompt:       "Draft a strategy.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.HasPrefix(resp.Content, "{") {
		t.Error("prose prompt should not yield a structured verdict")
	}
}

func TestMockClient_RespondFuncOverride(t *testing.T) {
	scriptedErr := errors.New("scripted failure")
	client := &MockClient{
		RespondFunc: func(context.Context, CompletionRequest) (*CompletionResponse, error) {
			return nil, scriptedErr
		},
	}

	if _, err := client.Complete(context.Background(), CompletionRequest{Prompt: "x"}); !errors.Is(err, scriptedErr) {
		t.Errorf("expected scripted error, got %v", err)
	}
}
