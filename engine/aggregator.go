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
	"log"
)

// DefaultWeights are the fixed per-agent weights. They sum to 1.0.
var DefaultWeights = map[AgentID]float64{
	AgentCompliance:  0.3,
	AgentCommercial:  0.4,
	AgentProcurement: 0.3,
}

// Aggregator fans completed and partial findings into one AggregatedInsight
// using a weighted mean keyed by agent identity. The combination is a pure
// reduction: identical findings produce an identical combined score no matter
// the order agents completed in.
type Aggregator struct {
	weights map[AgentID]float64
}

// NewAggregator creates an aggregator with the given per-agent weights, which
// must cover every agent and sum to 1.0. Nil selects DefaultWeights.
func NewAggregator(weights map[AgentID]float64) (*Aggregator, error) {
	if weights == nil {
		weights = DefaultWeights
	}

	sum := 0.0
	for _, id := range AgentOrder {
		w, ok := weights[id]
		if !ok {
			return nil, fmt.Errorf("missing weight for agent %s", id)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight for agent %s", id)
		}
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		return nil, fmt.Errorf("agent weights must sum to 1.0, got %.4f", sum)
	}

	return &Aggregator{weights: weights}, nil
}

// Aggregate combines one finding per agent into an AggregatedInsight.
//
// Failed findings are excluded from the mean and their weight is
// redistributed proportionally among the remaining agents. Degraded findings
// count at full weight but mark the insight incomplete. When every agent
// failed there is nothing to combine and ErrAggregationImpossible is
// returned; no decision is produced for such a request.
func (a *Aggregator) Aggregate(requestID string, findings []ExpertFinding) (*AggregatedInsight, error) {
	byAgent := make(map[AgentID]ExpertFinding, len(findings))
	for _, f := range findings {
		byAgent[f.Agent] = f
	}

	surviving := 0.0
	complete := true
	for _, id := range AgentOrder {
		f, ok := byAgent[id]
		if !ok || f.Status == StatusFailed {
			complete = false
			continue
		}
		if f.Status == StatusDegraded {
			complete = false
		}
		surviving += a.weights[id]
	}

	if surviving == 0 {
		log.Printf("[Aggregate] request %s: no surviving findings", requestID)
		return nil, ErrAggregationImpossible
	}

	// Renormalize so surviving weights sum to 1.0, then reduce keyed by
	// agent identity in canonical order.
	effective := make(map[AgentID]float64, len(AgentOrder))
	ordered := make([]ExpertFinding, 0, len(AgentOrder))
	combined := 0.0
	for _, id := range AgentOrder {
		f, ok := byAgent[id]
		if !ok {
			continue
		}
		ordered = append(ordered, f)
		if f.Status == StatusFailed {
			effective[id] = 0
			continue
		}
		w := a.weights[id] / surviving
		effective[id] = w
		combined += f.Score * w
	}

	log.Printf("[Aggregate] request %s: combined score %.4f (complete=%v)", requestID, combined, complete)
	return &AggregatedInsight{
		RequestID:     requestID,
		Findings:      ordered,
		CombinedScore: combined,
		Complete:      complete,
		Weights:       effective,
	}, nil
}
