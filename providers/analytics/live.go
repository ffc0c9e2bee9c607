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

// Package analytics provides the market-analytics provider family backed by a
// Fabric workspace, with a deterministic mock for credential-less runs.
package analytics

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
	// DefaultBaseURL is the Fabric REST API root.
	DefaultBaseURL = "https://api.fabric.microsoft.com/v1"

	// DefaultTimeout bounds one dataset query round trip.
	DefaultTimeout = 30 * time.Second
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config contains configuration for the live analytics provider.
type Config struct {
	WorkspaceID string        // Required: Fabric workspace identifier
	AccessToken string        // Required: bearer token
	BaseURL     string        // Optional: API root override
	Timeout     time.Duration // Optional: per-call timeout
}

// LiveProvider executes dataset queries against a Fabric workspace.
type LiveProvider struct {
	workspaceID string
	accessToken string
	baseURL     string
	client      HTTPClient
}

// NewLiveProvider creates a live analytics provider.
func NewLiveProvider(cfg Config) (*LiveProvider, error) {
	if cfg.WorkspaceID == "" {
		return nil, fmt.Errorf("analytics workspace ID is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("analytics access token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LiveProvider{
		workspaceID: cfg.WorkspaceID,
		accessToken: cfg.AccessToken,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetHTTPClient overrides the HTTP client (used by tests).
func (p *LiveProvider) SetHTTPClient(c HTTPClient) { p.client = c }

func (p *LiveProvider) Name() string    { return "analytics" }
func (p *LiveProvider) Mode() base.Mode { return base.ModeLive }

type executeQueriesRequest struct {
	Queries            []queryEntry   `json:"queries"`
	SerializerSettings map[string]any `json:"serializerSettings"`
}

type queryEntry struct {
	Query string `json:"query"`
}

type executeQueriesResponse struct {
	Results []struct {
		Tables []struct {
			Rows []map[string]any `json:"rows"`
		} `json:"tables"`
	} `json:"results"`
}

// QueryDataset runs one query against a workspace dataset and folds numeric
// columns into a MetricSet.
func (p *LiveProvider) QueryDataset(ctx context.Context, dataset, query string) (*base.MetricSet, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/workspaces/%s/items/%s/executeQueries", p.baseURL, p.workspaceID, dataset)
	body, err := json.Marshal(executeQueriesRequest{
		Queries:            []queryEntry{{Query: query}},
		SerializerSettings: map[string]any{"includeNulls": false},
	})
	if err != nil {
		return nil, base.NewUnavailable("analytics", "QueryDataset", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, base.NewUnavailable("analytics", "QueryDataset", "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, base.NewTimeout("analytics", "QueryDataset", "dataset query timed out", err)
		}
		return nil, base.NewUnavailable("analytics", "QueryDataset", "dataset query failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, base.NewUnavailable("analytics", "QueryDataset",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var parsed executeQueriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, base.NewUnavailable("analytics", "QueryDataset", "failed to decode response", err)
	}

	set := &base.MetricSet{
		Dataset:  dataset,
		Metrics:  make(map[string]float64),
		Duration: time.Since(start),
	}
	for _, result := range parsed.Results {
		for _, table := range result.Tables {
			set.RowCount += len(table.Rows)
			for _, row := range table.Rows {
				for col, val := range row {
					if num, ok := val.(float64); ok {
						set.Metrics[col] = num
					}
				}
			}
		}
	}
	return set, nil
}
