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

// Package search provides the document-search provider family backed by an
// Azure AI Search index, with a deterministic mock for credential-less runs.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"foundry/platform/providers/base"
)

const (
	// DefaultAPIVersion is the Azure AI Search REST API version.
	DefaultAPIVersion = "2023-11-01"

	// DefaultIndex is used when no index name is configured.
	DefaultIndex = "supplier-docs"

	// DefaultTimeout bounds one search round trip.
	DefaultTimeout = 30 * time.Second

	// DefaultTop is the result count requested when the caller passes top <= 0.
	DefaultTop = 5
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config contains configuration for the live search provider.
type Config struct {
	Endpoint   string        // Required: search service endpoint URL
	APIKey     string        // Required: admin or query key
	Index      string        // Optional: index name (default: supplier-docs)
	APIVersion string        // Optional: REST API version
	Timeout    time.Duration // Optional: per-call timeout
}

// LiveProvider queries an Azure AI Search index over REST.
type LiveProvider struct {
	endpoint   string
	apiKey     string
	index      string
	apiVersion string
	client     HTTPClient
}

// NewLiveProvider creates a live search provider. Endpoint and API key are
// required; selection between live and mock happens in the registry, once.
func NewLiveProvider(cfg Config) (*LiveProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search API key is required")
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LiveProvider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		index:      cfg.Index,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetHTTPClient overrides the HTTP client (used by tests).
func (p *LiveProvider) SetHTTPClient(c HTTPClient) { p.client = c }

func (p *LiveProvider) Name() string    { return "search" }
func (p *LiveProvider) Mode() base.Mode { return base.ModeLive }

type searchRequest struct {
	Search            string `json:"search"`
	Top               int    `json:"top"`
	IncludeTotalCount bool   `json:"includeTotalCount"`
	QueryType         string `json:"queryType"`
}

type searchResponse struct {
	Value []struct {
		ID      string  `json:"id"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"@search.score"`
	} `json:"value"`
}

// Search runs one query against the configured index.
func (p *LiveProvider) Search(ctx context.Context, query string, top int) ([]base.DocumentRef, error) {
	if top <= 0 {
		top = DefaultTop
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", p.endpoint, p.index, p.apiVersion)
	body, err := json.Marshal(searchRequest{Search: query, Top: top, IncludeTotalCount: true, QueryType: "simple"})
	if err != nil {
		return nil, base.NewUnavailable("search", "Search", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, base.NewUnavailable("search", "Search", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, base.NewTimeout("search", "Search", "search call timed out", err)
		}
		return nil, base.NewUnavailable("search", "Search", "search call failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, base.NewUnavailable("search", "Search",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, base.NewUnavailable("search", "Search", "failed to decode response", err)
	}

	refs := make([]base.DocumentRef, 0, len(parsed.Value))
	for _, doc := range parsed.Value {
		snippet := doc.Content
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		refs = append(refs, base.DocumentRef{
			ID:      doc.ID,
			Title:   doc.Title,
			Snippet: snippet,
			Score:   doc.Score,
			Source:  p.index,
		})
	}
	return refs, nil
}
