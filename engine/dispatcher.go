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
	"fmt"
	"log"
	"time"

	"foundry/platform/providers/registry"
)

// DefaultAgentTimeout bounds one agent's analysis.
const DefaultAgentTimeout = 30 * time.Second

// Dispatcher fans one request out to the configured agent set, running every
// agent concurrently, and joins their findings at a single barrier. An agent
// that has not reported when the request context expires is recorded as
// Failed with AgentTimeout; the barrier never blocks past the deadline.
type Dispatcher struct {
	agents          []ExpertAgent
	providers       *registry.ProviderSet
	perAgentTimeout time.Duration
}

// NewDispatcher creates a dispatcher over a fixed agent set.
func NewDispatcher(agents []ExpertAgent, providers *registry.ProviderSet, perAgentTimeout time.Duration) *Dispatcher {
	if perAgentTimeout <= 0 {
		perAgentTimeout = DefaultAgentTimeout
	}
	return &Dispatcher{agents: agents, providers: providers, perAgentTimeout: perAgentTimeout}
}

// Dispatch runs all agents for one request and returns exactly one finding
// per agent, in canonical order. It never returns an error: failures are
// absorbed into Failed findings so siblings are unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, req WorkflowRequest) []ExpertFinding {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan ExpertFinding, len(d.agents))

	for _, agent := range d.agents {
		go func(agent ExpertAgent) {
			results <- d.runAgent(runCtx, agent, req)
		}(agent)
	}

	byAgent := make(map[AgentID]ExpertFinding, len(d.agents))
	for len(byAgent) < len(d.agents) {
		select {
		case finding := <-results:
			byAgent[finding.Agent] = finding
		case <-ctx.Done():
			// Request deadline elapsed: cancel outstanding work (best effort)
			// and proceed with whatever findings exist.
			cancel()
			log.Printf("[Dispatch] request %s deadline elapsed with %d/%d agents reported",
				req.ID, len(byAgent), len(d.agents))
			return d.orderedFindings(byAgent)
		}
	}
	return d.orderedFindings(byAgent)
}

// runAgent executes one agent under the per-agent timeout and classifies its
// failure mode.
func (d *Dispatcher) runAgent(ctx context.Context, agent ExpertAgent, req WorkflowRequest) (finding ExpertFinding) {
	agentCtx, cancel := context.WithTimeout(ctx, d.perAgentTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatch] agent %s panicked: %v", agent.ID(), r)
			finding = failedFinding(agent.ID(), ReasonInternalFault, fmt.Sprintf("panic: %v", r), time.Since(start))
		}
	}()

	result, err := agent.Analyze(agentCtx, req, d.providers)
	if err != nil {
		reason := ReasonInternalFault
		if agentCtx.Err() != nil {
			reason = ReasonAgentTimeout
		}
		log.Printf("[Dispatch] agent %s failed (%s): %v", agent.ID(), reason, err)
		return failedFinding(agent.ID(), reason, err.Error(), time.Since(start))
	}

	log.Printf("[Dispatch] agent %s reported %s (score %.2f) in %s",
		agent.ID(), result.Status, result.Score, result.Elapsed)
	return *result
}

// orderedFindings fills in Failed{AgentTimeout} placeholders for unreported
// agents and returns findings in canonical agent order.
func (d *Dispatcher) orderedFindings(byAgent map[AgentID]ExpertFinding) []ExpertFinding {
	findings := make([]ExpertFinding, 0, len(d.agents))
	for _, agent := range d.agents {
		if finding, ok := byAgent[agent.ID()]; ok {
			findings = append(findings, finding)
			continue
		}
		findings = append(findings, failedFinding(agent.ID(), ReasonAgentTimeout, "agent did not report before the request deadline", 0))
	}
	return findings
}

func failedFinding(id AgentID, reason FailReason, detail string, elapsed time.Duration) ExpertFinding {
	return ExpertFinding{
		Agent:      id,
		Status:     StatusFailed,
		FailReason: reason,
		Rationale:  detail,
		Elapsed:    elapsed,
	}
}
