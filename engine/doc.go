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

/*
Package engine implements the Foundry supplier research decision pipeline.

# Overview

The engine owns one research request end to end. It receives a supplier or
proposal subject and handles:

  - Concurrent fan-out to the three expert agents (compliance, commercial,
    procurement)
  - Deadline-bounded fan-in of expert findings
  - Weighted aggregation into one combined score
  - Threshold routing to negotiation or manual review
  - Model-drafted justifications with a deterministic fallback
  - Outcome storage, audit logging, and metrics

# Pipeline

Each request moves through a strictly forward state machine:

	Pending → Aggregating → Aggregated → Routed

Dispatch runs every agent in its own goroutine under a per-agent timeout.
An agent that fails or times out yields a Failed finding; its weight is
redistributed proportionally among the surviving agents. Only when every
agent fails is the request terminally rejected with
ErrAggregationImpossible.

# Exactly-once outcomes

The OutcomeStore guarantees one stored RoutingOutcome per request ID.
Resubmitting a completed ID replays the stored outcome; concurrent
submissions of one ID collapse onto a single run.

Example:

	engine, err := NewWorkflowEngine(EngineConfig{
	    Providers: registry.Build(creds, registry.Options{}),
	    Model:     model,
	})
	if err != nil {
	    return err
	}
	outcome, fresh, err := engine.Submit(ctx, WorkflowRequest{Subject: "Contoso Supply Co"})

# Expert evidence

Agents gather evidence from the provider set (document search, analytics
datasets, repository intelligence) before asking the model for a structured
verdict. Provider failures are retried once and then degrade the finding
rather than fail it; degraded findings keep their full weight but mark the
aggregated insight incomplete, which scales routing confidence down.
*/
package engine
