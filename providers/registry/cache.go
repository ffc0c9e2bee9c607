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

package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"foundry/platform/providers/base"
)

// DefaultCacheTTL bounds how long a provider response is reused.
const DefaultCacheTTL = 30 * time.Second

// ResponseCache is a Redis-backed read-through cache for live provider
// responses. It is transparent to callers: identical queries produce
// identical results whether or not an entry was cached. Cache failures are
// swallowed — the live call proceeds.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache creates a response cache around an existing Redis client.
func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResponseCache{client: client, ttl: ttl}
}

func (c *ResponseCache) key(family, operation, input string) string {
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("foundry:providers:%s:%s:%s", family, operation, hex.EncodeToString(sum[:16]))
}

func (c *ResponseCache) get(ctx context.Context, key string, out any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *ResponseCache) set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}

// CachedSearch wraps a live search provider with the response cache.
type CachedSearch struct {
	live  base.SearchProvider
	cache *ResponseCache
}

// NewCachedSearch wraps a live search provider.
func NewCachedSearch(live base.SearchProvider, cache *ResponseCache) *CachedSearch {
	return &CachedSearch{live: live, cache: cache}
}

func (p *CachedSearch) Name() string    { return p.live.Name() }
func (p *CachedSearch) Mode() base.Mode { return p.live.Mode() }
func (p *CachedSearch) cacheBacked()    {}

func (p *CachedSearch) Search(ctx context.Context, query string, top int) ([]base.DocumentRef, error) {
	key := p.cache.key("search", "Search", fmt.Sprintf("%s|%d", query, top))

	var refs []base.DocumentRef
	if p.cache.get(ctx, key, &refs) {
		return refs, nil
	}

	refs, err := p.live.Search(ctx, query, top)
	if err != nil {
		return nil, err
	}
	p.cache.set(ctx, key, refs)
	return refs, nil
}

// CachedAnalytics wraps a live analytics provider with the response cache.
type CachedAnalytics struct {
	live  base.AnalyticsProvider
	cache *ResponseCache
}

// NewCachedAnalytics wraps a live analytics provider.
func NewCachedAnalytics(live base.AnalyticsProvider, cache *ResponseCache) *CachedAnalytics {
	return &CachedAnalytics{live: live, cache: cache}
}

func (p *CachedAnalytics) Name() string    { return p.live.Name() }
func (p *CachedAnalytics) Mode() base.Mode { return p.live.Mode() }
func (p *CachedAnalytics) cacheBacked()    {}

func (p *CachedAnalytics) QueryDataset(ctx context.Context, dataset, query string) (*base.MetricSet, error) {
	key := p.cache.key("analytics", "QueryDataset", dataset+"|"+query)

	var set base.MetricSet
	if p.cache.get(ctx, key, &set) {
		set.Cached = true
		return &set, nil
	}

	result, err := p.live.QueryDataset(ctx, dataset, query)
	if err != nil {
		return nil, err
	}
	p.cache.set(ctx, key, result)
	return result, nil
}

// CachedRepoIntel wraps a live repo-intel provider with the response cache.
type CachedRepoIntel struct {
	live  base.RepoIntelProvider
	cache *ResponseCache
}

// NewCachedRepoIntel wraps a live repo-intel provider.
func NewCachedRepoIntel(live base.RepoIntelProvider, cache *ResponseCache) *CachedRepoIntel {
	return &CachedRepoIntel{live: live, cache: cache}
}

func (p *CachedRepoIntel) Name() string    { return p.live.Name() }
func (p *CachedRepoIntel) Mode() base.Mode { return p.live.Mode() }
func (p *CachedRepoIntel) cacheBacked()    {}

func (p *CachedRepoIntel) Inspect(ctx context.Context, subject string) ([]base.TechFinding, error) {
	key := p.cache.key("repo-intel", "Inspect", subject)

	var findings []base.TechFinding
	if p.cache.get(ctx, key, &findings) {
		return findings, nil
	}

	findings, err := p.live.Inspect(ctx, subject)
	if err != nil {
		return nil, err
	}
	p.cache.set(ctx, key, findings)
	return findings, nil
}
