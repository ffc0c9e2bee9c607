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

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	fn()
	return buf.String()
}

func parseEntry(t *testing.T, line string) LogEntry {
	t.Helper()
	start := strings.Index(line, "{")
	if start < 0 {
		t.Fatalf("no JSON in log line: %q", line)
	}
	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(line[start:])), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v\n%s", err, line)
	}
	return entry
}

func TestLogger_StructuredEntry(t *testing.T) {
	l := New("engine")

	out := captureOutput(t, func() {
		l.Info("req-123", "request routed", map[string]interface{}{"route": "negotiation"})
	})

	entry := parseEntry(t, out)
	if entry.Level != INFO {
		t.Errorf("expected INFO, got %s", entry.Level)
	}
	if entry.Component != "engine" {
		t.Errorf("expected component engine, got %s", entry.Component)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("expected request ID req-123, got %s", entry.RequestID)
	}
	if entry.Message != "request routed" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Fields["route"] != "negotiation" {
		t.Errorf("unexpected fields %v", entry.Fields)
	}
	if entry.Timestamp == "" {
		t.Error("expected timestamp")
	}
}

func TestLogger_Levels(t *testing.T) {
	l := New("engine")

	cases := []struct {
		level LogLevel
		fn    func(string, string, map[string]interface{})
	}{
		{DEBUG, l.Debug},
		{INFO, l.Info},
		{WARN, l.Warn},
		{ERROR, l.Error},
	}
	for _, tc := range cases {
		out := captureOutput(t, func() { tc.fn("req-1", "message", nil) })
		if entry := parseEntry(t, out); entry.Level != tc.level {
			t.Errorf("expected level %s, got %s", tc.level, entry.Level)
		}
	}
}

func TestLogger_ErrorWithErr(t *testing.T) {
	l := New("engine")

	out := captureOutput(t, func() {
		l.ErrorWithErr("req-2", "dispatch failed", errors.New("agent timeout"), nil)
	})

	entry := parseEntry(t, out)
	if entry.Level != ERROR {
		t.Errorf("expected ERROR, got %s", entry.Level)
	}
	if entry.Fields["error"] != "agent timeout" {
		t.Errorf("expected error field, got %v", entry.Fields)
	}
}
