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
	"strings"
	"testing"
	"time"

	"foundry/platform/providers/registry"
)

// fakeAgent scripts one agent's behavior for dispatcher tests.
type fakeAgent struct {
	id      AgentID
	analyze func(ctx context.Context) (*ExpertFinding, error)
}

func (a *fakeAgent) ID() AgentID { return a.id }

func (a *fakeAgent) Analyze(ctx context.Context, _ WorkflowRequest, _ *registry.ProviderSet) (*ExpertFinding, error) {
	return a.analyze(ctx)
}

func scoringAgent(id AgentID, score float64, delay time.Duration) ExpertAgent {
	return &fakeAgent{
		id: id,
		analyze: func(ctx context.Context) (*ExpertFinding, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &ExpertFinding{Agent: id, Score: score, Verdict: VerdictNeutral, Status: StatusComplete}, nil
		},
	}
}

func blockingAgent(id AgentID) ExpertAgent {
	return &fakeAgent{
		id: id,
		analyze: func(ctx context.Context) (*ExpertFinding, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func testProviders() *registry.ProviderSet {
	return registry.Build(registry.Credentials{}, registry.Options{})
}

func TestDispatch_AllAgentsReport(t *testing.T) {
	agents := []ExpertAgent{
		scoringAgent(AgentCompliance, 0.8, 20*time.Millisecond),
		scoringAgent(AgentCommercial, 0.9, 20*time.Millisecond),
		scoringAgent(AgentProcurement, 0.7, 20*time.Millisecond),
	}
	d := NewDispatcher(agents, testProviders(), 0)

	start := time.Now()
	findings := d.Dispatch(context.Background(), WorkflowRequest{ID: "req-d1", Subject: "acme"})
	elapsed := time.Since(start)

	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	for i, id := range AgentOrder {
		if findings[i].Agent != id {
			t.Errorf("finding %d: expected agent %s, got %s", i, id, findings[i].Agent)
		}
		if findings[i].Status != StatusComplete {
			t.Errorf("agent %s: expected complete, got %s", id, findings[i].Status)
		}
	}

	// Agents run concurrently: three 20ms agents must not take 60ms.
	if elapsed > 55*time.Millisecond {
		t.Errorf("dispatch took %s; agents appear to run sequentially", elapsed)
	}
}

func TestDispatch_AgentTimeoutIsIsolated(t *testing.T) {
	agents := []ExpertAgent{
		scoringAgent(AgentCompliance, 0.8, time.Millisecond),
		blockingAgent(AgentCommercial),
		scoringAgent(AgentProcurement, 0.7, time.Millisecond),
	}
	d := NewDispatcher(agents, testProviders(), 30*time.Millisecond)

	findings := d.Dispatch(context.Background(), WorkflowRequest{ID: "req-d2", Subject: "acme"})

	if findings[0].Status != StatusComplete || findings[2].Status != StatusComplete {
		t.Error("sibling agents must be unaffected by one agent's timeout")
	}
	if findings[1].Status != StatusFailed {
		t.Fatalf("expected failed finding for timed-out agent, got %s", findings[1].Status)
	}
	if findings[1].FailReason != ReasonAgentTimeout {
		t.Errorf("expected fail reason %s, got %s", ReasonAgentTimeout, findings[1].FailReason)
	}
}

func TestDispatch_AgentErrorBecomesInternalFault(t *testing.T) {
	faulty := &fakeAgent{
		id: AgentCommercial,
		analyze: func(context.Context) (*ExpertFinding, error) {
			return nil, errors.New("model returned garbage")
		},
	}
	agents := []ExpertAgent{
		scoringAgent(AgentCompliance, 0.8, time.Millisecond),
		faulty,
		scoringAgent(AgentProcurement, 0.7, time.Millisecond),
	}
	d := NewDispatcher(agents, testProviders(), 0)

	findings := d.Dispatch(context.Background(), WorkflowRequest{ID: "req-d3", Subject: "acme"})

	if findings[1].Status != StatusFailed {
		t.Fatalf("expected failed finding, got %s", findings[1].Status)
	}
	if findings[1].FailReason != ReasonInternalFault {
		t.Errorf("expected fail reason %s, got %s", ReasonInternalFault, findings[1].FailReason)
	}
}

func TestDispatch_AgentPanicIsRecovered(t *testing.T) {
	panicking := &fakeAgent{
		id: AgentProcurement,
		analyze: func(context.Context) (*ExpertFinding, error) {
			panic("nil map write")
		},
	}
	agents := []ExpertAgent{
		scoringAgent(AgentCompliance, 0.8, time.Millisecond),
		scoringAgent(AgentCommercial, 0.9, time.Millisecond),
		panicking,
	}
	d := NewDispatcher(agents, testProviders(), 0)

	findings := d.Dispatch(context.Background(), WorkflowRequest{ID: "req-d4", Subject: "acme"})

	if findings[2].Status != StatusFailed {
		t.Fatalf("expected failed finding, got %s", findings[2].Status)
	}
	if findings[2].FailReason != ReasonInternalFault {
		t.Errorf("expected fail reason %s, got %s", ReasonInternalFault, findings[2].FailReason)
	}
	if !strings.Contains(findings[2].Rationale, "panic") {
		t.Errorf("rationale should carry the panic detail, got %q", findings[2].Rationale)
	}
}

func TestDispatch_RequestDeadlinePlaceholders(t *testing.T) {
	agents := []ExpertAgent{
		scoringAgent(AgentCompliance, 0.8, time.Millisecond),
		blockingAgent(AgentCommercial),
		blockingAgent(AgentProcurement),
	}
	// Per-agent timeout far beyond the request deadline: the deadline wins.
	d := NewDispatcher(agents, testProviders(), time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	start := time.Now()
	findings := d.Dispatch(ctx, WorkflowRequest{ID: "req-d5", Subject: "acme"})
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("dispatch blocked past the request deadline: %s", elapsed)
	}
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	if findings[0].Status != StatusComplete {
		t.Errorf("fast agent should have reported, got %s", findings[0].Status)
	}
	for _, i := range []int{1, 2} {
		if findings[i].Status != StatusFailed || findings[i].FailReason != ReasonAgentTimeout {
			t.Errorf("unreported agent %s: expected failed/agent_timeout, got %s/%s",
				findings[i].Agent, findings[i].Status, findings[i].FailReason)
		}
	}
}
