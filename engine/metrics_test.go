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
	"testing"
	"time"
)

func TestMetrics_ObserveOutcome(t *testing.T) {
	m := NewMetrics()

	negotiated := sampleOutcome("req-m1")
	m.ObserveOutcome(negotiated, 120*time.Millisecond)

	reviewed := sampleOutcome("req-m2")
	reviewed.Route = RouteToReview
	reviewed.Insight.Findings = []ExpertFinding{
		{Agent: AgentCompliance, Status: StatusComplete, Score: 0.4},
		{Agent: AgentCommercial, Status: StatusFailed, FailReason: ReasonAgentTimeout},
		{Agent: AgentProcurement, Status: StatusComplete, Score: 0.5},
	}
	m.ObserveOutcome(reviewed, 80*time.Millisecond)

	snap := m.Snapshot()
	if snap.TotalRequests != 2 {
		t.Errorf("expected 2 total requests, got %d", snap.TotalRequests)
	}
	if snap.Negotiations != 1 || snap.Reviews != 1 {
		t.Errorf("expected 1 negotiation and 1 review, got %d/%d", snap.Negotiations, snap.Reviews)
	}
	if snap.AvgLatencyMS != 100 {
		t.Errorf("expected average latency 100ms, got %.1f", snap.AvgLatencyMS)
	}
}

func TestMetrics_ObserveFailure(t *testing.T) {
	m := NewMetrics()
	m.ObserveFailure(ErrAggregationImpossible)

	snap := m.Snapshot()
	if snap.FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", snap.FailedRequests)
	}
	if snap.TotalRequests != 1 {
		t.Errorf("expected 1 total request, got %d", snap.TotalRequests)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must register collectors without colliding.
	a := NewMetrics()
	b := NewMetrics()
	if a.Registry() == b.Registry() {
		t.Error("each metrics instance should carry its own registry")
	}
}
