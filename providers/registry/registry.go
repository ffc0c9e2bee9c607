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

// Package registry assembles the integration provider set once per process.
// Each provider family is independently live or mock: the sole selection input
// is whether that family's credentials are present. The pipeline never
// inspects raw environment state itself.
package registry

import (
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"foundry/platform/providers/analytics"
	"foundry/platform/providers/base"
	"foundry/platform/providers/repointel"
	"foundry/platform/providers/search"
)

// Credentials carries the per-family credential sets. Empty required fields
// in a family select the mock implementation for that family only.
type Credentials struct {
	Search    search.Config
	Analytics analytics.Config
	RepoIntel repointel.Config
}

// Options tunes cross-cutting provider behavior.
type Options struct {
	RedisAddr string        // Optional: enables the read-through response cache for live providers
	CacheTTL  time.Duration // Optional: cache entry TTL (default 30s)
}

// ProviderSet is the immutable set of providers handed to every agent. Safe
// for concurrent use: mocks are pure, live providers only share an HTTP client.
type ProviderSet struct {
	Search    base.SearchProvider
	Analytics base.AnalyticsProvider
	RepoIntel base.RepoIntelProvider
}

// ProviderStatus describes one family's selection for the status endpoint.
type ProviderStatus struct {
	Family string    `json:"family"`
	Mode   base.Mode `json:"mode"`
	Cached bool      `json:"cached"`
}

// Build constructs the provider set. Live construction errors fall back to the
// mock for that family so a malformed credential never takes down startup.
func Build(creds Credentials, opts Options) *ProviderSet {
	set := &ProviderSet{}

	var cache *ResponseCache
	if opts.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		cache = NewResponseCache(client, opts.CacheTTL)
	}

	if creds.Search.Endpoint != "" && creds.Search.APIKey != "" {
		live, err := search.NewLiveProvider(creds.Search)
		if err != nil {
			log.Printf("[Registry] search: live init failed, using mock: %v", err)
			set.Search = search.NewMockProvider()
		} else {
			set.Search = live
			if cache != nil {
				set.Search = NewCachedSearch(live, cache)
			}
		}
	} else {
		set.Search = search.NewMockProvider()
	}

	if creds.Analytics.WorkspaceID != "" && creds.Analytics.AccessToken != "" {
		live, err := analytics.NewLiveProvider(creds.Analytics)
		if err != nil {
			log.Printf("[Registry] analytics: live init failed, using mock: %v", err)
			set.Analytics = analytics.NewMockProvider()
		} else {
			set.Analytics = live
			if cache != nil {
				set.Analytics = NewCachedAnalytics(live, cache)
			}
		}
	} else {
		set.Analytics = analytics.NewMockProvider()
	}

	if creds.RepoIntel.Token != "" {
		live, err := repointel.NewLiveProvider(creds.RepoIntel)
		if err != nil {
			log.Printf("[Registry] repo-intel: live init failed, using mock: %v", err)
			set.RepoIntel = repointel.NewMockProvider()
		} else {
			set.RepoIntel = live
			if cache != nil {
				set.RepoIntel = NewCachedRepoIntel(live, cache)
			}
		}
	} else {
		set.RepoIntel = repointel.NewMockProvider()
	}

	log.Printf("[Registry] provider modes: search=%s analytics=%s repo-intel=%s",
		set.Search.Mode(), set.Analytics.Mode(), set.RepoIntel.Mode())
	return set
}

// Status reports the selection of each family.
func (s *ProviderSet) Status() []ProviderStatus {
	return []ProviderStatus{
		{Family: s.Search.Name(), Mode: s.Search.Mode(), Cached: isCached(s.Search)},
		{Family: s.Analytics.Name(), Mode: s.Analytics.Mode(), Cached: isCached(s.Analytics)},
		{Family: s.RepoIntel.Name(), Mode: s.RepoIntel.Mode(), Cached: isCached(s.RepoIntel)},
	}
}

func isCached(p base.Provider) bool {
	type cached interface{ cacheBacked() }
	_, ok := p.(cached)
	return ok
}
