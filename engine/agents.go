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
	"strings"
	"time"

	"foundry/platform/engine/llm"
	"foundry/platform/providers/base"
	"foundry/platform/providers/registry"
)

// gatherFunc collects domain-specific evidence for one agent. Provider
// failures are recorded in the evidence set, never returned.
type gatherFunc func(ctx context.Context, req WorkflowRequest, providers *registry.ProviderSet, backoff time.Duration) *evidenceSet

// expertAgent is the shared implementation behind the three tagged agent
// variants. The variants differ only in identity, system instruction, and
// which provider evidence they gather.
type expertAgent struct {
	id      AgentID
	system  string
	gather  gatherFunc
	model   llm.Client
	backoff time.Duration
}

func (a *expertAgent) ID() AgentID { return a.id }

// Analyze gathers evidence, asks the model for a structured verdict, and
// produces exactly one finding. Missing evidence degrades the finding; only a
// model fault (unreachable or unparseable reply) returns an error.
func (a *expertAgent) Analyze(ctx context.Context, req WorkflowRequest, providers *registry.ProviderSet) (*ExpertFinding, error) {
	start := time.Now()

	ev := a.gather(ctx, req, providers, a.backoff)

	reply, err := a.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: a.system,
		Prompt:       buildExpertPrompt(req, ev),
	})
	if err != nil {
		return nil, fmt.Errorf("model completion failed: %w", err)
	}

	verdict, err := parseVerdict(reply.Content)
	if err != nil {
		return nil, fmt.Errorf("unusable model reply: %w", err)
	}

	finding := &ExpertFinding{
		Agent:     a.id,
		Score:     verdict.Score,
		Verdict:   Verdict(verdict.Verdict),
		Rationale: verdict.Rationale,
		Evidence:  ev.refs,
		Status:    StatusComplete,
		Elapsed:   time.Since(start),
	}
	if len(ev.missing) > 0 {
		finding.Status = StatusDegraded
		finding.Rationale = fmt.Sprintf("%s [missing evidence: %s]",
			finding.Rationale, strings.Join(ev.missing, ", "))
	}
	return finding, nil
}

// NewComplianceAgent analyzes legal, regulatory, and ESG posture. Evidence:
// compliance document search, compliance metrics, security repository signals.
func NewComplianceAgent(model llm.Client, backoff time.Duration) ExpertAgent {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &expertAgent{
		id: AgentCompliance,
		system: "You are a compliance expert. Analyze supplier proposals for legal, " +
			"regulatory, and ESG compliance using the evidence provided.",
		gather:  gatherCompliance,
		model:   model,
		backoff: backoff,
	}
}

// NewCommercialAgent evaluates market competitiveness, pricing, and business
// value. Evidence: financial datasets, market insights, financial documents.
func NewCommercialAgent(model llm.Client, backoff time.Duration) ExpertAgent {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &expertAgent{
		id: AgentCommercial,
		system: "You are a commercial analyst. Evaluate market competitiveness, pricing, " +
			"and business value of supplier proposals using the evidence provided.",
		gather:  gatherCommercial,
		model:   model,
		backoff: backoff,
	}
}

// NewProcurementAgent assesses cost-effectiveness, strategic fit, and
// operational value. Evidence: supplier document search, supplier datasets,
// repository intelligence.
func NewProcurementAgent(model llm.Client, backoff time.Duration) ExpertAgent {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &expertAgent{
		id: AgentProcurement,
		system: "You are a procurement specialist. Assess supplier proposals for " +
			"cost-effectiveness, strategic fit, and operational value using the evidence provided.",
		gather:  gatherProcurement,
		model:   model,
		backoff: backoff,
	}
}

// DefaultAgents builds the closed production agent set in canonical order.
func DefaultAgents(model llm.Client, backoff time.Duration) []ExpertAgent {
	return []ExpertAgent{
		NewComplianceAgent(model, backoff),
		NewCommercialAgent(model, backoff),
		NewProcurementAgent(model, backoff),
	}
}

func gatherCompliance(ctx context.Context, req WorkflowRequest, providers *registry.ProviderSet, backoff time.Duration) *evidenceSet {
	ev := &evidenceSet{}

	docs, err := withRetry(ctx, backoff, func(ctx context.Context) ([]base.DocumentRef, error) {
		return providers.Search.Search(ctx, req.Subject+" compliance ESG", 5)
	})
	if err != nil {
		ev.noteMissing("search.compliance-documents")
	} else {
		ev.addDocs(docs)
	}

	metrics, err := withRetry(ctx, backoff, func(ctx context.Context) (*base.MetricSet, error) {
		return providers.Analytics.QueryDataset(ctx, "compliance", fmt.Sprintf("supplier='%s'", req.Subject))
	})
	if err != nil {
		ev.noteMissing("analytics.compliance-metrics")
	} else {
		ev.addMetrics(metrics)
	}

	tech, err := withRetry(ctx, backoff, func(ctx context.Context) ([]base.TechFinding, error) {
		return providers.RepoIntel.Inspect(ctx, req.Subject)
	})
	if err != nil {
		ev.noteMissing("repo-intel.security-signals")
	} else {
		ev.addTech(tech)
	}

	return ev
}

func gatherCommercial(ctx context.Context, req WorkflowRequest, providers *registry.ProviderSet, backoff time.Duration) *evidenceSet {
	ev := &evidenceSet{}

	metrics, err := withRetry(ctx, backoff, func(ctx context.Context) (*base.MetricSet, error) {
		return providers.Analytics.QueryDataset(ctx, "financials", fmt.Sprintf("company='%s'", req.Subject))
	})
	if err != nil {
		ev.noteMissing("analytics.financials")
	} else {
		ev.addMetrics(metrics)
	}

	market, err := withRetry(ctx, backoff, func(ctx context.Context) (*base.MetricSet, error) {
		return providers.Analytics.QueryDataset(ctx, "market-insights",
			fmt.Sprintf("SELECT * FROM market_data WHERE category = '%s'", req.Subject))
	})
	if err != nil {
		ev.noteMissing("analytics.market-insights")
	} else {
		ev.addMetrics(market)
	}

	docs, err := withRetry(ctx, backoff, func(ctx context.Context) ([]base.DocumentRef, error) {
		return providers.Search.Search(ctx, req.Subject+" financial performance", 5)
	})
	if err != nil {
		ev.noteMissing("search.financial-documents")
	} else {
		ev.addDocs(docs)
	}

	return ev
}

func gatherProcurement(ctx context.Context, req WorkflowRequest, providers *registry.ProviderSet, backoff time.Duration) *evidenceSet {
	ev := &evidenceSet{}

	docs, err := withRetry(ctx, backoff, func(ctx context.Context) ([]base.DocumentRef, error) {
		return providers.Search.Search(ctx, "supplier "+req.Subject, 5)
	})
	if err != nil {
		ev.noteMissing("search.supplier-documents")
	} else {
		ev.addDocs(docs)
	}

	metrics, err := withRetry(ctx, backoff, func(ctx context.Context) (*base.MetricSet, error) {
		return providers.Analytics.QueryDataset(ctx, "suppliers", fmt.Sprintf("category='%s'", req.Subject))
	})
	if err != nil {
		ev.noteMissing("analytics.suppliers")
	} else {
		ev.addMetrics(metrics)
	}

	tech, err := withRetry(ctx, backoff, func(ctx context.Context) ([]base.TechFinding, error) {
		return providers.RepoIntel.Inspect(ctx, req.Subject)
	})
	if err != nil {
		ev.noteMissing("repo-intel.tech-stack")
	} else {
		ev.addTech(tech)
	}

	return ev
}
