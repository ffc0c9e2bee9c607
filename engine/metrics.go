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
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks pipeline activity. Each instance carries its own Prometheus
// registry so parallel engines (and tests) never collide on registration; a
// mutex-guarded snapshot backs the JSON metrics endpoint.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	agentFailures   *prometheus.CounterVec

	mu              sync.RWMutex
	totalRequests   int64
	negotiations    int64
	reviews         int64
	failedRequests  int64
	latencies       []int64 // milliseconds
	startTime       time.Time
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foundry_requests_total",
				Help: "Total workflow requests by terminal route",
			},
			[]string{"route"},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "foundry_request_duration_seconds",
				Help:    "End-to-end workflow request duration",
				Buckets: prometheus.DefBuckets,
			},
		),
		agentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foundry_agent_failures_total",
				Help: "Failed expert findings by agent and reason",
			},
			[]string{"agent", "reason"},
		),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.agentFailures)
	return m
}

// Registry exposes the collectors for the /prometheus endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOutcome records one delivered terminal outcome.
func (m *Metrics) ObserveOutcome(outcome *RoutingOutcome, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(string(outcome.Route)).Inc()
	m.requestDuration.Observe(elapsed.Seconds())
	for _, f := range outcome.Insight.Findings {
		if f.Status == StatusFailed {
			m.agentFailures.WithLabelValues(string(f.Agent), string(f.FailReason)).Inc()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	if outcome.Route == RouteToNegotiation {
		m.negotiations++
	} else {
		m.reviews++
	}
	m.latencies = append(m.latencies, elapsed.Milliseconds())
	if len(m.latencies) > 1000 {
		m.latencies = m.latencies[len(m.latencies)-1000:]
	}
}

// ObserveFailure records one terminally failed request.
func (m *Metrics) ObserveFailure(err error) {
	if errors.Is(err, ErrAggregationImpossible) {
		m.requestsTotal.WithLabelValues("aggregation_impossible").Inc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	m.failedRequests++
}

// Snapshot is the JSON shape served by the legacy metrics endpoint.
type Snapshot struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	TotalRequests  int64   `json:"total_requests"`
	Negotiations   int64   `json:"negotiations"`
	Reviews        int64   `json:"reviews"`
	FailedRequests int64   `json:"failed_requests"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
}

// Snapshot returns current counters for the JSON metrics handler.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg float64
	if len(m.latencies) > 0 {
		var sum int64
		for _, l := range m.latencies {
			sum += l
		}
		avg = float64(sum) / float64(len(m.latencies))
	}
	return Snapshot{
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		TotalRequests:  m.totalRequests,
		Negotiations:   m.negotiations,
		Reviews:        m.reviews,
		FailedRequests: m.failedRequests,
		AvgLatencyMS:   avg,
	}
}
