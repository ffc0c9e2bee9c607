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

/*
Package logger provides structured JSON logging for Foundry components.

# Overview

The logger outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (engine, providers, etc.)
  - Container name (for distributed tracing)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("engine")

Log messages with request context:

	log.Info("req-456", "request routed", map[string]interface{}{
	    "route":      "negotiation",
	    "confidence": 0.82,
	})

Log errors with the error attached as a field:

	log.ErrorWithErr("req-456", "dispatch failed", err, nil)

# Output Format

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"engine","container":"engine-xyz","request_id":"req-456",
	 "message":"request routed","fields":{"route":"negotiation"}}

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
