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

// Package main is the entry point for the Foundry workflow engine service.
//
// The engine runs the supplier research decision pipeline:
// - Fans a research request out to compliance, commercial and procurement experts
// - Aggregates expert findings into a weighted combined score
// - Routes each request to negotiation or manual review against a policy threshold
// - Drafts a routing justification via the configured model client
//
// Usage:
//
//	./engine
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8090)
//	AZURE_OPENAI_ENDPOINT - Azure OpenAI endpoint (required)
//	AZURE_OPENAI_API_KEY - Azure OpenAI API key (required)
//	AZURE_OPENAI_DEPLOYMENT - chat completion deployment name (required)
//	AZURE_SEARCH_ENDPOINT - Azure AI Search endpoint (optional, mock fallback)
//	FABRIC_WORKSPACE_ID - Fabric analytics workspace (optional, mock fallback)
//	GITHUB_TOKEN - GitHub API token (optional, mock fallback)
//	REDIS_ADDR - provider response cache address (optional)
//	DATABASE_URL - PostgreSQL connection string for audit trail (optional)
//	FOUNDRY_POLICY_FILE - YAML routing policy overrides (optional)
package main

import (
	"foundry/platform/engine"
)

func main() {
	engine.Run()
}
