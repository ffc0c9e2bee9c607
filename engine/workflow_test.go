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
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"foundry/platform/engine/llm"
)

// scriptedModel returns a fixed verdict score for expert prompts and canned
// prose for drafting prompts.
func scriptedModel(score float64) *llm.MockClient {
	return &llm.MockClient{
		RespondFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if strings.Contains(req.Prompt, "JSON object") {
				return &llm.CompletionResponse{
					Content: fmt.Sprintf(`{"score": %.2f, "verdict": "neutral", "rationale": "Scripted."}`, score),
				}, nil
			}
			return &llm.CompletionResponse{Content: "Scripted drafting output."}, nil
		},
	}
}

func newTestEngine(t *testing.T, model llm.Client) *WorkflowEngine {
	t.Helper()
	engine, err := NewWorkflowEngine(EngineConfig{
		Providers: testProviders(),
		Model:     model,
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine
}

func TestNewWorkflowEngine_ConfigErrors(t *testing.T) {
	if _, err := NewWorkflowEngine(EngineConfig{Providers: testProviders()}); !IsConfigError(err) {
		t.Errorf("missing model should be a config error, got %v", err)
	}
	if _, err := NewWorkflowEngine(EngineConfig{Model: llm.NewMockClient()}); !IsConfigError(err) {
		t.Errorf("missing providers should be a config error, got %v", err)
	}
	if _, err := NewWorkflowEngine(EngineConfig{
		Providers: testProviders(),
		Model:     llm.NewMockClient(),
		Weights:   map[AgentID]float64{AgentCompliance: 1.0},
	}); !IsConfigError(err) {
		t.Errorf("invalid weights should be a config error, got %v", err)
	}
}

func TestSubmit_EndToEnd(t *testing.T) {
	engine := newTestEngine(t, llm.NewMockClient())

	outcome, fresh, err := engine.Submit(context.Background(), WorkflowRequest{
		ID:      "req-w1",
		Subject: "Contoso Supply Co",
		Payload: "Three-year sourcing agreement, volume pricing tiers.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fresh {
		t.Error("first submission should produce the outcome")
	}
	if outcome.RequestID != "req-w1" {
		t.Errorf("unexpected request ID %q", outcome.RequestID)
	}
	if len(outcome.Insight.Findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(outcome.Insight.Findings))
	}
	for i, id := range AgentOrder {
		if outcome.Insight.Findings[i].Agent != id {
			t.Errorf("finding %d out of canonical order: %s", i, outcome.Insight.Findings[i].Agent)
		}
	}
	if outcome.Justification == "" {
		t.Error("expected a drafted justification")
	}
	if outcome.Decision.Confidence < 0 || outcome.Decision.Confidence > 1 {
		t.Errorf("confidence %.4f out of bounds", outcome.Decision.Confidence)
	}

	// The route must agree with the competitive judgment.
	wantRoute := RouteToReview
	if outcome.Decision.Competitive {
		wantRoute = RouteToNegotiation
	}
	if outcome.Route != wantRoute {
		t.Errorf("route %s disagrees with competitive=%v", outcome.Route, outcome.Decision.Competitive)
	}
}

func TestSubmit_CompetitiveRoutesToNegotiation(t *testing.T) {
	engine := newTestEngine(t, scriptedModel(0.90))

	outcome, _, err := engine.Submit(context.Background(), WorkflowRequest{ID: "req-w2", Subject: "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Route != RouteToNegotiation {
		t.Errorf("combined score 0.90 should route to negotiation, got %s", outcome.Route)
	}
	if !outcome.Decision.Competitive {
		t.Error("expected competitive decision")
	}
}

func TestSubmit_NonCompetitiveRoutesToReview(t *testing.T) {
	engine := newTestEngine(t, scriptedModel(0.40))

	outcome, _, err := engine.Submit(context.Background(), WorkflowRequest{ID: "req-w3", Subject: "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Route != RouteToReview {
		t.Errorf("combined score 0.40 should route to review, got %s", outcome.Route)
	}
	if outcome.Decision.Competitive {
		t.Error("expected non-competitive decision")
	}
}

func TestSubmit_ReplaySameRequestID(t *testing.T) {
	engine := newTestEngine(t, llm.NewMockClient())
	req := WorkflowRequest{ID: "req-w4", Subject: "acme", Payload: "offer"}

	first, fresh, err := engine.Submit(context.Background(), req)
	if err != nil || !fresh {
		t.Fatalf("first submission failed: fresh=%v err=%v", fresh, err)
	}

	second, fresh, err := engine.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh {
		t.Error("resubmission must replay, not rerun")
	}
	if second != first {
		t.Error("resubmission should return the stored outcome")
	}
}

func TestSubmit_ConcurrentSameIDRunsOnce(t *testing.T) {
	engine := newTestEngine(t, llm.NewMockClient())

	var wg sync.WaitGroup
	var mu sync.Mutex
	freshCount := 0
	outcomes := make([]*RoutingOutcome, 0, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, fresh, err := engine.Submit(context.Background(), WorkflowRequest{ID: "req-w5", Subject: "acme"})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if fresh {
				freshCount++
			}
			outcomes = append(outcomes, outcome)
		}()
	}
	wg.Wait()

	if freshCount != 1 {
		t.Errorf("expected exactly one fresh run, got %d", freshCount)
	}
	for _, o := range outcomes[1:] {
		if o != outcomes[0] {
			t.Error("concurrent submissions of one ID must share a single outcome")
		}
	}
}

func TestSubmit_GeneratesRequestID(t *testing.T) {
	engine := newTestEngine(t, llm.NewMockClient())

	outcome, _, err := engine.Submit(context.Background(), WorkflowRequest{Subject: "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.RequestID == "" {
		t.Error("expected a generated request ID")
	}
}

func TestSubmit_AggregationImpossible(t *testing.T) {
	// Model replies unparseably, so every agent fails internally.
	broken := &llm.MockClient{
		RespondFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("model endpoint down")
		},
	}
	engine := newTestEngine(t, broken)

	_, _, err := engine.Submit(context.Background(), WorkflowRequest{ID: "req-w6", Subject: "acme"})
	if !errors.Is(err, ErrAggregationImpossible) {
		t.Fatalf("expected ErrAggregationImpossible, got %v", err)
	}
	if _, ok := engine.Outcome("req-w6"); ok {
		t.Error("failed request must not store an outcome")
	}

	snap := engine.metrics.Snapshot()
	if snap.FailedRequests != 1 {
		t.Errorf("expected 1 failed request in metrics, got %d", snap.FailedRequests)
	}
}

func TestSubmit_PartialFailureStillRoutes(t *testing.T) {
	// One agent times out; the other two carry the decision.
	agents := []ExpertAgent{
		scoringAgent(AgentCompliance, 0.9, time.Millisecond),
		blockingAgent(AgentCommercial),
		scoringAgent(AgentProcurement, 0.8, time.Millisecond),
	}
	engine, err := NewWorkflowEngine(EngineConfig{
		Providers:    testProviders(),
		Model:        llm.NewMockClient(),
		Agents:       agents,
		AgentTimeout: 30 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	outcome, _, err := engine.Submit(context.Background(), WorkflowRequest{ID: "req-w7", Subject: "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Insight.Complete {
		t.Error("insight should be flagged incomplete after an agent timeout")
	}
	if outcome.Insight.Findings[1].FailReason != ReasonAgentTimeout {
		t.Errorf("expected agent_timeout, got %s", outcome.Insight.Findings[1].FailReason)
	}
	// 0.9*(0.3/0.6) + 0.8*(0.3/0.6) = 0.85 >= 0.75
	if outcome.Route != RouteToNegotiation {
		t.Errorf("expected negotiation route, got %s", outcome.Route)
	}
}

func TestDraftJustification_FallsBackDeterministically(t *testing.T) {
	// Verdict calls succeed, drafting calls fail: the decision must survive
	// with the deterministic justification.
	model := &llm.MockClient{
		RespondFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if strings.Contains(req.Prompt, "JSON object") {
				return &llm.CompletionResponse{Content: `{"score": 0.85, "verdict": "favorable", "rationale": "ok"}`}, nil
			}
			return nil, errors.New("drafting capacity exhausted")
		},
	}
	engine := newTestEngine(t, model)

	outcome, _, err := engine.Submit(context.Background(), WorkflowRequest{ID: "req-w8", Subject: "acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Route != RouteToNegotiation {
		t.Errorf("expected negotiation route, got %s", outcome.Route)
	}
	if !strings.Contains(outcome.Justification, "competitive") {
		t.Errorf("expected deterministic justification, got %q", outcome.Justification)
	}
}

func TestSubmit_DeterministicForIdenticalRequests(t *testing.T) {
	// Two engines, same deterministic model and providers, same request
	// content under different IDs: byte-identical decisions.
	reqA := WorkflowRequest{ID: "req-w9a", Subject: "acme", Payload: "offer"}
	reqB := WorkflowRequest{ID: "req-w9b", Subject: "acme", Payload: "offer"}

	a, _, err := newTestEngine(t, llm.NewMockClient()).Submit(context.Background(), reqA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _, err := newTestEngine(t, llm.NewMockClient()).Submit(context.Background(), reqB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.Insight.CombinedScore != b.Insight.CombinedScore {
		t.Errorf("identical requests diverged: %.6f vs %.6f", a.Insight.CombinedScore, b.Insight.CombinedScore)
	}
	if a.Route != b.Route || a.Decision != b.Decision {
		t.Error("identical requests should yield identical decisions")
	}
}
