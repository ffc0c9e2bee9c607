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

// Package llm provides the model reasoning capability used by expert agents:
// a minimal completion client with one live Azure OpenAI implementation and a
// deterministic mock for tests.
package llm

import (
	"context"
	"time"
)

// Client is the completion interface agents depend on. Implementations must
// be safe for concurrent use.
type Client interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is one prompt sent to the model.
type CompletionRequest struct {
	Prompt       string  // The user message
	SystemPrompt string  // Optional system instruction
	MaxTokens    int     // Maximum tokens to generate (0 = provider default)
	Temperature  float64 // Sampling temperature (negative = provider default)
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensUsed int
	Latency    time.Duration
}
