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

package analytics

import (
	"context"
	"hash/fnv"

	"foundry/platform/providers/base"
)

// MockProvider serves deterministic canned analytics. Same dataset and query
// always yield the same metrics.
type MockProvider struct{}

// NewMockProvider creates the deterministic mock analytics provider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string    { return "analytics" }
func (p *MockProvider) Mode() base.Mode { return base.ModeMock }

// QueryDataset returns stable pseudo-metrics keyed by dataset and query.
func (p *MockProvider) QueryDataset(_ context.Context, dataset, query string) (*base.MetricSet, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dataset))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(query))
	seed := h.Sum32()

	return &base.MetricSet{
		Dataset: dataset,
		Metrics: map[string]float64{
			"market_score":   0.50 + float64(seed%50)/100.0,
			"growth_rate":    0.01 + float64((seed>>8)%20)/100.0,
			"price_index":    90 + float64((seed>>16)%20),
			"sample_periods": 12,
		},
		RowCount: int(seed%20) + 5,
	}, nil
}
