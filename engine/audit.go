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
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const auditQueueDepth = 1000

// AuditEntry is one persisted record of a routed request.
type AuditEntry struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	Route         string    `json:"route"`
	Competitive   bool      `json:"competitive"`
	Confidence    float64   `json:"confidence"`
	CombinedScore float64   `json:"combined_score"`
	Complete      bool      `json:"complete"`
	AgentStatuses string    `json:"agent_statuses"` // JSON map of agent -> status
	CreatedAt     time.Time `json:"created_at"`
}

// AuditLogger persists one row per routed request, asynchronously so the
// request path never blocks on the database. Without a database it degrades
// to a no-op: auditing loss is acceptable, outcome delivery is not.
type AuditLogger struct {
	db       *sql.DB
	queue    chan *AuditEntry
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

// NewAuditLogger opens the audit database and starts the writer. A
// connection failure logs and returns a no-op logger.
func NewAuditLogger(databaseURL string) *AuditLogger {
	if databaseURL == "" {
		return NewNoopAuditLogger()
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("[Audit] database unavailable, auditing disabled: %v", err)
		return NewNoopAuditLogger()
	}
	if err := createAuditTable(db); err != nil {
		log.Printf("[Audit] failed to ensure audit table: %v", err)
	}

	a := &AuditLogger{
		db:       db,
		queue:    make(chan *AuditEntry, auditQueueDepth),
		shutdown: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// NewNoopAuditLogger creates a logger that drops every entry.
func NewNoopAuditLogger() *AuditLogger {
	return &AuditLogger{shutdown: make(chan struct{})}
}

// NewAuditLoggerWithDB wires an existing database handle (used by tests).
func NewAuditLoggerWithDB(db *sql.DB) *AuditLogger {
	a := &AuditLogger{
		db:       db,
		queue:    make(chan *AuditEntry, auditQueueDepth),
		shutdown: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

func createAuditTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_audit (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			route TEXT NOT NULL,
			competitive BOOLEAN NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			combined_score DOUBLE PRECISION NOT NULL,
			complete BOOLEAN NOT NULL,
			agent_statuses JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Record queues one outcome for persistence. A full queue drops the entry
// rather than stalling the request path.
func (a *AuditLogger) Record(outcome *RoutingOutcome) {
	if a.db == nil {
		return
	}

	statuses := make(map[AgentID]FindingStatus, len(outcome.Insight.Findings))
	for _, f := range outcome.Insight.Findings {
		statuses[f.Agent] = f.Status
	}
	raw, _ := json.Marshal(statuses)

	entry := &AuditEntry{
		ID:            uuid.NewString(),
		RequestID:     outcome.RequestID,
		Route:         string(outcome.Route),
		Competitive:   outcome.Decision.Competitive,
		Confidence:    outcome.Decision.Confidence,
		CombinedScore: outcome.Insight.CombinedScore,
		Complete:      outcome.Insight.Complete,
		AgentStatuses: string(raw),
		CreatedAt:     outcome.CreatedAt,
	}

	select {
	case a.queue <- entry:
	default:
		log.Printf("[Audit] queue full, dropping entry for request %s", outcome.RequestID)
	}
}

func (a *AuditLogger) writer() {
	defer a.wg.Done()
	for {
		select {
		case entry := <-a.queue:
			a.insert(entry)
		case <-a.shutdown:
			// Drain what is already queued before exiting.
			for {
				select {
				case entry := <-a.queue:
					a.insert(entry)
				default:
					return
				}
			}
		}
	}
}

func (a *AuditLogger) insert(entry *AuditEntry) {
	_, err := a.db.Exec(`
		INSERT INTO workflow_audit
			(id, request_id, route, competitive, confidence, combined_score, complete, agent_statuses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.RequestID, entry.Route, entry.Competitive, entry.Confidence,
		entry.CombinedScore, entry.Complete, entry.AgentStatuses, entry.CreatedAt)
	if err != nil {
		log.Printf("[Audit] insert failed for request %s: %v", entry.RequestID, err)
	}
}

// Close stops the writer after draining queued entries.
func (a *AuditLogger) Close() {
	a.once.Do(func() { close(a.shutdown) })
	a.wg.Wait()
	if a.db != nil {
		_ = a.db.Close()
	}
}
