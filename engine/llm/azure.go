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

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAPIVersion is the default Azure OpenAI API version.
	DefaultAPIVersion = "2024-08-01-preview"

	// DefaultTimeout is the default HTTP timeout for completions.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max output tokens.
	DefaultMaxTokens = 2048

	// DefaultTemperature is the default sampling temperature.
	DefaultTemperature = 0.2
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthType represents the authentication method for Azure OpenAI.
type AuthType string

const (
	// AuthTypeAPIKey uses the api-key header (classic Azure OpenAI).
	AuthTypeAPIKey AuthType = "api-key"

	// AuthTypeBearer uses Authorization: Bearer (Azure AI Foundry endpoints).
	AuthTypeBearer AuthType = "bearer"
)

// AzureConfig contains configuration for the Azure OpenAI client.
type AzureConfig struct {
	Endpoint       string        // Required: resource endpoint URL
	APIKey         string        // Required: API key or bearer token
	DeploymentName string        // Required: deployment name
	APIVersion     string        // Optional (default: 2024-08-01-preview)
	Timeout        time.Duration // Optional (default: 120s)
}

// AzureClient implements Client against the Azure OpenAI chat-completions API.
type AzureClient struct {
	endpoint       string
	apiKey         string
	deploymentName string
	apiVersion     string
	authType       AuthType
	client         HTTPClient
}

// NewAzureClient creates an Azure OpenAI client. All three credential fields
// are required; a missing field is a startup configuration error, not a
// per-request condition.
func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure OpenAI endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure OpenAI API key is required")
	}
	if cfg.DeploymentName == "" {
		return nil, fmt.Errorf("azure OpenAI deployment name is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &AzureClient{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:         cfg.APIKey,
		deploymentName: cfg.DeploymentName,
		apiVersion:     cfg.APIVersion,
		authType:       detectAuthType(cfg.Endpoint),
		client:         &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetHTTPClient overrides the HTTP client (used by tests).
func (c *AzureClient) SetHTTPClient(hc HTTPClient) { c.client = hc }

// Name returns the client name.
func (c *AzureClient) Name() string { return "azure-openai" }

// detectAuthType auto-detects the authentication type from the endpoint URL.
// Classic Azure OpenAI (*.openai.azure.com) uses the api-key header; Azure AI
// Foundry (*.cognitiveservices.azure.com) uses a Bearer token.
func detectAuthType(endpoint string) AuthType {
	if strings.Contains(strings.ToLower(endpoint), ".cognitiveservices.azure.com") {
		return AuthTypeBearer
	}
	return AuthTypeAPIKey
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat completion request to the configured deployment.
func (c *AzureClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := req.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{Messages: messages, MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deploymentName, c.apiVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	switch c.authType {
	case AuthTypeBearer:
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	default:
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure OpenAI API error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("azure OpenAI API error %d: %s: %s", resp.StatusCode, parsed.Error.Code, parsed.Error.Message)
		}
		return nil, fmt.Errorf("azure OpenAI API error: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("azure OpenAI returned no choices")
	}

	return &CompletionResponse{
		Content:    parsed.Choices[0].Message.Content,
		Model:      parsed.Model,
		TokensUsed: parsed.Usage.TotalTokens,
		Latency:    time.Since(start),
	}, nil
}
