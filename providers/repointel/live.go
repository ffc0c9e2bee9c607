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

// Package repointel provides the repository-intelligence provider family
// backed by the GitHub REST API, with a deterministic mock for
// credential-less runs.
package repointel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"foundry/platform/providers/base"
)

const (
	// DefaultBaseURL is the GitHub REST API root.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds one API round trip.
	DefaultTimeout = 30 * time.Second

	// userAgent is required by the GitHub API.
	userAgent = "foundry-workflows"

	// repoPageSize caps how many repositories one Inspect call examines.
	repoPageSize = 50
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config contains configuration for the live repo-intel provider.
type Config struct {
	Token   string        // Required: API token (absence selects the mock in the registry)
	BaseURL string        // Optional: API root override
	Timeout time.Duration // Optional: per-call timeout
}

// LiveProvider inspects a subject organization's public repositories.
type LiveProvider struct {
	token   string
	baseURL string
	client  HTTPClient
}

// NewLiveProvider creates a live repo-intel provider.
func NewLiveProvider(cfg Config) (*LiveProvider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("repo-intel token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LiveProvider{
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetHTTPClient overrides the HTTP client (used by tests).
func (p *LiveProvider) SetHTTPClient(c HTTPClient) { p.client = c }

func (p *LiveProvider) Name() string    { return "repo-intel" }
func (p *LiveProvider) Mode() base.Mode { return base.ModeLive }

type repoEntry struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Inspect lists the subject organization's repositories and distills language
// distribution and footprint signals into TechFindings.
func (p *LiveProvider) Inspect(ctx context.Context, subject string) ([]base.TechFinding, error) {
	org := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(subject), " ", "-"))
	if org == "" {
		return nil, base.NewUnavailable("repo-intel", "Inspect", "subject is empty", nil)
	}

	reqURL := fmt.Sprintf("%s/orgs/%s/repos?per_page=%d&sort=updated", p.baseURL, url.PathEscape(org), repoPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, base.NewUnavailable("repo-intel", "Inspect", "failed to create request", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "token "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, base.NewTimeout("repo-intel", "Inspect", "repository listing timed out", err)
		}
		return nil, base.NewUnavailable("repo-intel", "Inspect", "repository listing failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// Unknown org is a valid empty answer, not a provider fault.
		return []base.TechFinding{{Subject: subject, Signal: "repo-count", Detail: "no public repositories found"}}, nil
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, base.NewUnavailable("repo-intel", "Inspect",
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var repos []repoEntry
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, base.NewUnavailable("repo-intel", "Inspect", "failed to decode response", err)
	}

	languages := map[string]int{}
	for _, repo := range repos {
		if repo.Language != "" {
			languages[repo.Language]++
		}
	}

	ranked := make([]string, 0, len(languages))
	for lang := range languages {
		ranked = append(ranked, lang)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if languages[ranked[i]] != languages[ranked[j]] {
			return languages[ranked[i]] > languages[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	findings := []base.TechFinding{
		{
			Subject: subject,
			Signal:  "repo-count",
			Detail:  fmt.Sprintf("%d public repositories", len(repos)),
		},
	}
	if len(ranked) > 0 {
		findings = append(findings, base.TechFinding{
			Subject:   subject,
			Signal:    "primary-language",
			Detail:    ranked[0],
			Languages: ranked,
		})
	}
	return findings, nil
}
