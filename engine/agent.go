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
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"foundry/platform/providers/base"
	"foundry/platform/providers/registry"
)

// DefaultRetryBackoff is the fixed pause before the single retry of a
// transient provider call.
const DefaultRetryBackoff = 250 * time.Millisecond

// ExpertAgent is one unit of domain analysis. Analyze must absorb provider
// failures into a Degraded finding; a returned error means an internal fault
// and fails this agent only, never the request. Agents share no mutable
// state: each invocation receives only the immutable request and the
// read-only provider set.
type ExpertAgent interface {
	ID() AgentID
	Analyze(ctx context.Context, req WorkflowRequest, providers *registry.ProviderSet) (*ExpertFinding, error)
}

// withRetry runs one provider call and retries it once, after a fixed
// backoff, when the failure is a transient provider error.
func withRetry[T any](ctx context.Context, backoff time.Duration, call func(context.Context) (T, error)) (T, error) {
	result, err := call(ctx)
	if err == nil || !base.IsTransient(err) || ctx.Err() != nil {
		return result, err
	}

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return result, err
	}
	return call(ctx)
}

// evidenceSet accumulates provider evidence for one agent invocation.
type evidenceSet struct {
	refs    []string // Evidence identifiers carried into the finding
	context []string // Prompt lines summarizing what providers returned
	missing []string // Provider operations that failed after retry
}

func (e *evidenceSet) addDocs(docs []base.DocumentRef) {
	for _, doc := range docs {
		e.refs = append(e.refs, doc.ID)
		e.context = append(e.context, fmt.Sprintf("document %q (score %.2f): %s", doc.Title, doc.Score, doc.Snippet))
	}
}

func (e *evidenceSet) addMetrics(set *base.MetricSet) {
	e.refs = append(e.refs, "dataset:"+set.Dataset)
	// Map order would leak into the prompt bytes and break replay
	// determinism, so metrics render in sorted name order.
	names := make([]string, 0, len(set.Metrics))
	for name := range set.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.context = append(e.context, fmt.Sprintf("metric %s.%s = %.2f", set.Dataset, name, set.Metrics[name]))
	}
}

func (e *evidenceSet) addTech(findings []base.TechFinding) {
	for _, tf := range findings {
		e.refs = append(e.refs, "repo-intel:"+tf.Signal)
		e.context = append(e.context, fmt.Sprintf("repository signal %s: %s", tf.Signal, tf.Detail))
	}
}

func (e *evidenceSet) noteMissing(operation string) {
	e.missing = append(e.missing, operation)
}

// verdictPayload is the structured reply agents request from the model.
type verdictPayload struct {
	Score     float64 `json:"score"`
	Verdict   string  `json:"verdict"`
	Rationale string  `json:"rationale"`
}

// parseVerdict extracts the JSON verdict from a model reply. Models sometimes
// wrap JSON in prose, so parsing starts at the first brace.
func parseVerdict(content string) (*verdictPayload, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("malformed verdict JSON: %w", err)
	}

	payload.Score = math.Max(0, math.Min(1, payload.Score))
	switch Verdict(payload.Verdict) {
	case VerdictFavorable, VerdictNeutral, VerdictUnfavorable:
	default:
		// Model strayed from the enum; derive from the score.
		switch {
		case payload.Score >= 0.70:
			payload.Verdict = string(VerdictFavorable)
		case payload.Score < 0.50:
			payload.Verdict = string(VerdictUnfavorable)
		default:
			payload.Verdict = string(VerdictNeutral)
		}
	}
	return &payload, nil
}

// verdictInstruction is appended to every expert prompt.
const verdictInstruction = `Respond only with a JSON object of the form ` +
	`{"score": <number 0.0-1.0>, "verdict": "favorable"|"neutral"|"unfavorable", "rationale": "<one paragraph>"}. ` +
	`The score expresses how strongly this proposal satisfies your domain.`

// buildExpertPrompt renders the request plus gathered evidence for the model.
func buildExpertPrompt(req WorkflowRequest, ev *evidenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n\nProposal:\n%s\n", req.Subject, req.Payload)

	if len(ev.context) > 0 {
		b.WriteString("\nEvidence gathered:\n")
		for _, line := range ev.context {
			b.WriteString("- " + line + "\n")
		}
	}
	if len(ev.missing) > 0 {
		b.WriteString("\nEvidence unavailable (provider failures):\n")
		for _, op := range ev.missing {
			b.WriteString("- " + op + "\n")
		}
		b.WriteString("Lower your confidence accordingly.\n")
	}

	b.WriteString("\n" + verdictInstruction)
	return b.String()
}
