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

package base

import (
	"context"
	"errors"
	"time"
)

// Mode indicates whether a provider talks to a live backend or serves
// deterministic canned data.
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// Provider is the common surface shared by every integration provider family.
type Provider interface {
	Name() string // Provider family name (search, analytics, repo-intel)
	Mode() Mode   // live or mock, fixed at construction
}

// SearchProvider exposes a document search index (document research evidence).
type SearchProvider interface {
	Provider
	Search(ctx context.Context, query string, top int) ([]DocumentRef, error)
}

// AnalyticsProvider exposes market/financial analytics datasets.
type AnalyticsProvider interface {
	Provider
	QueryDataset(ctx context.Context, dataset, query string) (*MetricSet, error)
}

// RepoIntelProvider exposes repository intelligence about a subject
// organization (technology stack, public engineering signals).
type RepoIntelProvider interface {
	Provider
	Inspect(ctx context.Context, subject string) ([]TechFinding, error)
}

// DocumentRef identifies one document returned by a search provider.
type DocumentRef struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"` // Index or corpus the document came from
}

// MetricSet holds the result of one analytics dataset query.
type MetricSet struct {
	Dataset  string             `json:"dataset"`
	Metrics  map[string]float64 `json:"metrics"`
	RowCount int                `json:"row_count"`
	Duration time.Duration      `json:"duration"`
	Cached   bool               `json:"cached"`
}

// TechFinding captures one repository-intelligence observation about a subject.
type TechFinding struct {
	Subject   string   `json:"subject"`
	Signal    string   `json:"signal"` // e.g. "primary-language", "repo-count", "security-repos"
	Detail    string   `json:"detail"`
	Languages []string `json:"languages,omitempty"`
}

// ErrorKind classifies provider failures for the retry policy.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
)

// ProviderError represents a failed provider call. Both kinds are transient
// from the pipeline's point of view: the calling agent retries once, then
// degrades its finding instead of failing the request.
type ProviderError struct {
	Provider  string
	Operation string
	Kind      ErrorKind
	Message   string
	Cause     error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + "." + e.Operation + ": " + string(e.Kind) + ": " + e.Message
	if e.Cause != nil {
		msg += " (cause: " + e.Cause.Error() + ")"
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewUnavailable creates a ProviderUnavailable error.
func NewUnavailable(provider, operation, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Operation: operation, Kind: KindUnavailable, Message: message, Cause: cause}
}

// NewTimeout creates a ProviderTimeout error.
func NewTimeout(provider, operation, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Operation: operation, Kind: KindTimeout, Message: message, Cause: cause}
}

// IsTransient reports whether err is a provider-scoped failure eligible for
// the single-retry policy.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// KindOf returns the error kind when err wraps a ProviderError.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
