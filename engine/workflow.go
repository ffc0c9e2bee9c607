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
	"strings"
	"time"

	"github.com/google/uuid"

	"foundry/platform/engine/llm"
	"foundry/platform/providers/registry"
)

const (
	// DefaultRequestDeadline bounds one full request when the caller supplies
	// no deadline of its own.
	DefaultRequestDeadline = 2 * time.Minute

	// draftTimeout bounds the supplemental strategy/review drafting call. The
	// decision is already made by then; a slow draft only costs the nicer
	// justification text.
	draftTimeout = 30 * time.Second
)

// WorkflowEngine owns one request end to end: dispatch, fan-in under the
// request deadline, aggregation, routing, outcome drafting, and terminal
// delivery. Requests execute fully independently of each other.
type WorkflowEngine struct {
	dispatcher      *Dispatcher
	aggregator      *Aggregator
	router          *DecisionRouter
	model           llm.Client
	store           *OutcomeStore
	audit           *AuditLogger
	metrics         *Metrics
	requestDeadline time.Duration
}

// EngineConfig assembles a WorkflowEngine.
type EngineConfig struct {
	Agents          []ExpertAgent
	Providers       *registry.ProviderSet
	Model           llm.Client
	Weights         map[AgentID]float64 // Nil = DefaultWeights
	Threshold       float64             // 0 = DefaultThreshold
	Penalty         float64             // 0 = DefaultIncompletePenalty
	AgentTimeout    time.Duration       // 0 = DefaultAgentTimeout
	RequestDeadline time.Duration       // 0 = DefaultRequestDeadline
	Audit           *AuditLogger        // Nil = no-op
	Metrics         *Metrics            // Nil = fresh unregistered metrics
}

// NewWorkflowEngine builds the engine. The agent set defaults to the three
// built-in experts when none is given.
func NewWorkflowEngine(cfg EngineConfig) (*WorkflowEngine, error) {
	if cfg.Model == nil {
		return nil, &ConfigError{Field: "model", Reason: "an LLM client is required"}
	}
	if cfg.Providers == nil {
		return nil, &ConfigError{Field: "providers", Reason: "a provider set is required"}
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents(cfg.Model, 0)
	}
	if cfg.RequestDeadline <= 0 {
		cfg.RequestDeadline = DefaultRequestDeadline
	}

	aggregator, err := NewAggregator(cfg.Weights)
	if err != nil {
		return nil, &ConfigError{Field: "weights", Reason: err.Error()}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	audit := cfg.Audit
	if audit == nil {
		audit = NewNoopAuditLogger()
	}

	return &WorkflowEngine{
		dispatcher:      NewDispatcher(cfg.Agents, cfg.Providers, cfg.AgentTimeout),
		aggregator:      aggregator,
		router:          NewDecisionRouter(cfg.Threshold, cfg.Penalty),
		model:           cfg.Model,
		store:           NewOutcomeStore(),
		audit:           audit,
		metrics:         metrics,
		requestDeadline: cfg.RequestDeadline,
	}, nil
}

// Outcome returns a previously delivered terminal result.
func (e *WorkflowEngine) Outcome(requestID string) (*RoutingOutcome, bool) {
	return e.store.Get(requestID)
}

// Submit runs one request through the pipeline. The boolean reports whether
// this call produced the outcome (false = replayed from the store; the
// terminal result for a request ID is only ever produced once). The only
// error surfaced for a dispatched request is ErrAggregationImpossible.
func (e *WorkflowEngine) Submit(ctx context.Context, req WorkflowRequest) (*RoutingOutcome, bool, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}

	existing, owned, err := e.store.Begin(ctx, req.ID)
	if err != nil {
		return nil, false, err
	}
	if !owned {
		// Begin only yields ownership or a stored outcome; a failed
		// in-flight owner releases the claim and the waiter re-claims.
		log.Printf("[Workflow] request %s replayed from store", req.ID)
		return existing, false, nil
	}

	outcome, err := e.run(ctx, req)
	if err != nil {
		e.store.Release(req.ID)
		e.metrics.ObserveFailure(err)
		return nil, false, err
	}
	if err := e.store.Complete(req.ID, outcome); err != nil {
		// Unreachable while Begin/Complete are paired; surface loudly.
		log.Printf("[Workflow] request %s: %v", req.ID, err)
	}

	e.audit.Record(outcome)
	e.metrics.ObserveOutcome(outcome, time.Since(req.SubmittedAt))
	return outcome, true, nil
}

func (e *WorkflowEngine) run(ctx context.Context, req WorkflowRequest) (*RoutingOutcome, error) {
	started := time.Now()
	state := StatePending

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = started.Add(e.requestDeadline)
	}
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	log.Printf("[Workflow] request %s: dispatching %d agents (deadline %s)",
		req.ID, len(e.dispatcher.agents), deadline.Format(time.RFC3339))

	state, err := state.Advance(StateAggregating)
	if err != nil {
		return nil, err
	}
	findings := e.dispatcher.Dispatch(runCtx, req)

	insight, err := e.aggregator.Aggregate(req.ID, findings)
	if err != nil {
		return nil, err
	}
	if state, err = state.Advance(StateAggregated); err != nil {
		return nil, err
	}

	decision, route := e.router.Route(insight)
	if _, err = state.Advance(StateRouted); err != nil {
		return nil, err
	}

	log.Printf("[Workflow] request %s: routed to %s (competitive=%v, confidence=%.2f) in %s",
		req.ID, route, decision.Competitive, decision.Confidence, time.Since(started))

	return &RoutingOutcome{
		RequestID:     req.ID,
		Route:         route,
		Decision:      decision,
		Justification: e.draftJustification(ctx, route, insight, decision),
		Insight:       *insight,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// draftJustification asks the model for a negotiation strategy or review
// summary. Drafting is best effort: any failure falls back to a
// deterministic justification and never changes the decision.
func (e *WorkflowEngine) draftJustification(ctx context.Context, route RouteKind, insight *AggregatedInsight, decision Decision) string {
	draftCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), draftTimeout)
	defer cancel()

	var system, task string
	if route == RouteToNegotiation {
		system = "You are a skilled negotiator. Create a winning negotiation strategy " +
			"based on the competitive analysis, identifying leverage points and optimal terms."
		task = "Create a negotiation strategy for this competitive proposal:\n"
	} else {
		system = "You review non-competitive proposals. Provide clear reasons for the outcome " +
			"and suggest improvements. Be constructive but decisive."
		task = "Review this non-competitive proposal:\n"
	}

	reply, err := e.model.Complete(draftCtx, llm.CompletionRequest{
		SystemPrompt: system,
		Prompt:       task + renderInsight(insight),
	})
	if err != nil || strings.TrimSpace(reply.Content) == "" {
		log.Printf("[Workflow] request %s: drafting failed, using deterministic justification: %v",
			insight.RequestID, err)
		return fallbackJustification(route, insight, decision)
	}
	return reply.Content
}

// renderInsight formats the expert findings for drafting prompts.
func renderInsight(insight *AggregatedInsight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Combined score: %.4f (complete=%v)\n\n", insight.CombinedScore, insight.Complete)
	for _, f := range insight.Findings {
		fmt.Fprintf(&b, "%s findings [%s, score %.2f, %s]:\n%s\n\n",
			strings.ToUpper(string(f.Agent)), f.Status, f.Score, f.Verdict, f.Rationale)
	}
	return b.String()
}

// fallbackJustification is the deterministic justification used when
// drafting is unavailable.
func fallbackJustification(route RouteKind, insight *AggregatedInsight, decision Decision) string {
	var b strings.Builder
	if route == RouteToNegotiation {
		fmt.Fprintf(&b, "Proposal judged competitive (rule %s): combined score %.4f met the threshold. ",
			decision.Rule, insight.CombinedScore)
	} else {
		fmt.Fprintf(&b, "Proposal judged not competitive (rule %s): combined score %.4f fell below the threshold. ",
			decision.Rule, insight.CombinedScore)
	}
	fmt.Fprintf(&b, "Confidence %.2f.", decision.Confidence)
	for _, f := range insight.Findings {
		fmt.Fprintf(&b, " %s: %s", f.Agent, f.Status)
		if f.Status != StatusFailed {
			fmt.Fprintf(&b, " (%.2f, %s)", f.Score, f.Verdict)
		}
		b.WriteString(".")
	}
	return b.String()
}
