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
	"fmt"
	"math"
)

const (
	// DefaultThreshold is the competitiveness threshold over the combined score.
	DefaultThreshold = 0.75

	// DefaultIncompletePenalty scales confidence down when the insight is
	// incomplete (a Degraded or Failed agent). It never blocks routing.
	DefaultIncompletePenalty = 0.8
)

// Rule identifiers carried on decisions.
const (
	RuleThresholdMet    = "combined-score-at-threshold"
	RuleThresholdNotMet = "combined-score-below-threshold"
)

// RunState tracks one request through the router's state machine. The walk is
// strictly forward: Pending -> Aggregating -> Aggregated -> Routed, with no
// transition back to an earlier state.
type RunState string

const (
	StatePending     RunState = "pending"
	StateAggregating RunState = "aggregating"
	StateAggregated  RunState = "aggregated"
	StateRouted      RunState = "routed"
)

var nextState = map[RunState]RunState{
	StatePending:     StateAggregating,
	StateAggregating: StateAggregated,
	StateAggregated:  StateRouted,
}

// Advance moves to the requested state, rejecting anything but the single
// legal forward transition.
func (s RunState) Advance(to RunState) (RunState, error) {
	if nextState[s] != to {
		return s, fmt.Errorf("illegal state transition %s -> %s", s, to)
	}
	return to, nil
}

// DecisionRouter turns one AggregatedInsight into one Decision and routing
// outcome via a threshold policy.
type DecisionRouter struct {
	threshold float64
	penalty   float64
}

// NewDecisionRouter creates a router. A threshold outside (0,1) or penalty
// outside (0,1] selects the defaults.
func NewDecisionRouter(threshold, penalty float64) *DecisionRouter {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	if penalty <= 0 || penalty > 1 {
		penalty = DefaultIncompletePenalty
	}
	return &DecisionRouter{threshold: threshold, penalty: penalty}
}

// Threshold returns the configured competitiveness threshold.
func (r *DecisionRouter) Threshold() float64 { return r.threshold }

// Route applies the threshold policy. Combined score at or above the
// threshold decides competitive and routes to negotiation; anything else
// routes to review. Confidence is how far the score sits from the threshold,
// scaled to [0,1] and penalized when the insight is incomplete. Routing is
// monotonic in the combined score and never blocks on incompleteness.
func (r *DecisionRouter) Route(insight *AggregatedInsight) (Decision, RouteKind) {
	competitive := insight.CombinedScore >= r.threshold

	// Scale distance by the larger side of the threshold so confidence
	// stays within [0,1] at both extremes.
	span := math.Max(r.threshold, 1-r.threshold)
	confidence := math.Abs(insight.CombinedScore-r.threshold) / span
	confidence = math.Min(1, confidence)
	if !insight.Complete {
		confidence *= r.penalty
	}

	decision := Decision{
		Competitive: competitive,
		Confidence:  confidence,
		Rule:        RuleThresholdNotMet,
	}
	route := RouteToReview
	if competitive {
		decision.Rule = RuleThresholdMet
		route = RouteToNegotiation
	}
	return decision, route
}
