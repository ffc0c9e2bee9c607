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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func auditOutcome(id string) *RoutingOutcome {
	return &RoutingOutcome{
		RequestID: id,
		Route:     RouteToNegotiation,
		Decision:  Decision{Competitive: true, Confidence: 0.8, Rule: RuleThresholdMet},
		Insight: AggregatedInsight{
			RequestID:     id,
			CombinedScore: 0.85,
			Complete:      true,
			Findings: []ExpertFinding{
				{Agent: AgentCompliance, Status: StatusComplete, Score: 0.8},
				{Agent: AgentCommercial, Status: StatusComplete, Score: 0.9},
				{Agent: AgentProcurement, Status: StatusComplete, Score: 0.85},
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestAuditLogger_RecordPersistsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	mock.ExpectExec("INSERT INTO workflow_audit").
		WithArgs(sqlmock.AnyArg(), "req-audit-1", "negotiation", true, 0.8, 0.85, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	logger := NewAuditLoggerWithDB(db)
	logger.Record(auditOutcome("req-audit-1"))
	logger.Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuditLogger_InsertErrorDoesNotPropagate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	mock.ExpectExec("INSERT INTO workflow_audit").
		WillReturnError(errors.New("scripted insert failure"))
	mock.ExpectClose()

	logger := NewAuditLoggerWithDB(db)
	logger.Record(auditOutcome("req-audit-2"))
	logger.Close() // Must not panic; auditing loss is acceptable.

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewAuditLogger_EmptyDSNIsNoop(t *testing.T) {
	logger := NewAuditLogger("")
	logger.Record(auditOutcome("req-audit-3")) // Dropped silently.
	logger.Close()
}

func TestNoopAuditLogger(t *testing.T) {
	logger := NewNoopAuditLogger()
	logger.Record(auditOutcome("req-audit-4"))
	logger.Close()
}
