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
	"errors"
	"fmt"
	"time"
)

// AgentID identifies one expert analysis domain. The agent set is closed:
// exactly these three agents run for every request.
type AgentID string

const (
	AgentCompliance  AgentID = "compliance"
	AgentCommercial  AgentID = "commercial"
	AgentProcurement AgentID = "procurement"
)

// AgentOrder is the canonical agent ordering used everywhere findings are
// listed. Aggregation itself is keyed by agent identity, so arrival order
// never affects results.
var AgentOrder = []AgentID{AgentCompliance, AgentCommercial, AgentProcurement}

// WorkflowRequest is one supplier/market-research submission. Immutable once
// created; owned by the engine for the duration of one run.
type WorkflowRequest struct {
	ID          string    `json:"request_id"`
	Subject     string    `json:"subject"` // Supplier or proposal identifier
	Payload     string    `json:"payload"` // Free-form proposal text/metadata
	SubmittedAt time.Time `json:"submitted_at"`
	Deadline    time.Time `json:"deadline,omitempty"` // Zero value = engine default applies
}

// FindingStatus tags how much of an agent's analysis survived.
type FindingStatus string

const (
	StatusComplete FindingStatus = "complete"
	StatusDegraded FindingStatus = "degraded" // Analysis produced, but evidence was missing
	StatusFailed   FindingStatus = "failed"   // No usable analysis from this agent
)

// FailReason explains a Failed finding.
type FailReason string

const (
	ReasonNone          FailReason = ""
	ReasonAgentTimeout  FailReason = "agent_timeout"
	ReasonInternalFault FailReason = "agent_internal_fault"
)

// Verdict is an agent's categorical judgment.
type Verdict string

const (
	VerdictFavorable   Verdict = "favorable"
	VerdictNeutral     Verdict = "neutral"
	VerdictUnfavorable Verdict = "unfavorable"
)

// ExpertFinding is one agent's scored, evidenced opinion about a request.
// Created once per agent per request and never mutated afterwards.
type ExpertFinding struct {
	Agent      AgentID       `json:"agent"`
	Score      float64       `json:"score"` // Bounded to [0,1]
	Verdict    Verdict       `json:"verdict,omitempty"`
	Rationale  string        `json:"rationale,omitempty"`
	Evidence   []string      `json:"evidence,omitempty"` // Provider-returned document/metric identifiers
	Status     FindingStatus `json:"status"`
	FailReason FailReason    `json:"fail_reason,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns,omitempty"`
}

// AggregatedInsight is the deterministic combination of all findings for one
// request. Created exactly once per request and consumed once by the router.
type AggregatedInsight struct {
	RequestID     string              `json:"request_id"`
	Findings      []ExpertFinding     `json:"findings"` // In canonical AgentOrder
	CombinedScore float64             `json:"combined_score"`
	Complete      bool                `json:"complete"` // All agents reported Complete
	Weights       map[AgentID]float64 `json:"weights"`  // Effective (possibly renormalized) weights
}

// Decision is the router's threshold judgment over one AggregatedInsight.
type Decision struct {
	Competitive bool    `json:"competitive"`
	Confidence  float64 `json:"confidence"` // [0,1], distance of the score from the threshold
	Rule        string  `json:"rule"`       // Identifier of the triggering policy rule
}

// RouteKind is where a decided request proceeds next.
type RouteKind string

const (
	RouteToNegotiation RouteKind = "negotiation"
	RouteToReview      RouteKind = "review"
)

// RoutingOutcome is the terminal artifact of one workflow run.
type RoutingOutcome struct {
	RequestID     string            `json:"request_id"`
	Route         RouteKind         `json:"route"`
	Decision      Decision          `json:"decision"`
	Justification string            `json:"justification"`
	Insight       AggregatedInsight `json:"insight"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ErrAggregationImpossible is returned when every agent failed and no
// combined score can exist. It is the only per-request fatal error: the
// caller gets this instead of an outcome, never a silent drop.
var ErrAggregationImpossible = errors.New("aggregation impossible: all expert agents failed")

// ConfigError marks fatal startup misconfiguration (missing model
// credentials, malformed policy file). It is never produced per-request.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration invalid: %s: %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is a fatal configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
