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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"foundry/platform/engine/llm"
	"foundry/platform/providers/analytics"
	"foundry/platform/providers/registry"
	"foundry/platform/providers/repointel"
	"foundry/platform/providers/search"
)

// DefaultPort is the service's default listen port.
const DefaultPort = "8090"

// Config is the explicit configuration object built once at startup. The
// pipeline never inspects raw environment state after this point.
type Config struct {
	Port string

	Model     llm.AzureConfig // Required: agent reasoning capability
	Providers registry.Credentials
	RedisAddr string
	Database  string // Optional: audit trail DSN

	Policy Policy
}

// Policy tunes decision behavior. Loaded from an optional YAML file.
type Policy struct {
	Weights           map[AgentID]float64 `yaml:"weights"`
	Threshold         float64             `yaml:"threshold"`
	IncompletePenalty float64             `yaml:"incomplete_penalty"`
	AgentTimeout      Duration            `yaml:"agent_timeout"`
	RequestDeadline   Duration            `yaml:"request_deadline"`
	RetryBackoff      Duration            `yaml:"retry_backoff"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig reads the environment and the optional policy file
// (FOUNDRY_POLICY_FILE). Missing model credentials are fatal here, at process
// initialization, never per-request.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", DefaultPort),
		Model: llm.AzureConfig{
			Endpoint:       os.Getenv("AZURE_OPENAI_ENDPOINT"),
			APIKey:         os.Getenv("AZURE_OPENAI_API_KEY"),
			DeploymentName: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion:     os.Getenv("AZURE_OPENAI_API_VERSION"),
		},
		Providers: registry.Credentials{
			Search: search.Config{
				Endpoint: os.Getenv("AZURE_SEARCH_ENDPOINT"),
				APIKey:   os.Getenv("AZURE_SEARCH_API_KEY"),
				Index:    os.Getenv("AZURE_SEARCH_INDEX_NAME"),
			},
			Analytics: analytics.Config{
				WorkspaceID: os.Getenv("FABRIC_WORKSPACE_ID"),
				AccessToken: os.Getenv("FABRIC_ACCESS_TOKEN"),
			},
			RepoIntel: repointel.Config{
				Token: os.Getenv("GITHUB_TOKEN"),
			},
		},
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Database:  os.Getenv("DATABASE_URL"),
	}

	if cfg.Model.Endpoint == "" {
		return nil, &ConfigError{Field: "AZURE_OPENAI_ENDPOINT", Reason: "model endpoint is required"}
	}
	if cfg.Model.APIKey == "" {
		return nil, &ConfigError{Field: "AZURE_OPENAI_API_KEY", Reason: "model API key is required"}
	}
	if cfg.Model.DeploymentName == "" {
		return nil, &ConfigError{Field: "AZURE_OPENAI_DEPLOYMENT", Reason: "model deployment name is required"}
	}

	if path := os.Getenv("FOUNDRY_POLICY_FILE"); path != "" {
		policy, err := LoadPolicyFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Policy = *policy
	}
	return cfg, nil
}

// LoadPolicyFile parses a YAML policy file. Weight validation happens in the
// aggregator; this only rejects unreadable or malformed files.
func LoadPolicyFile(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "FOUNDRY_POLICY_FILE", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}

	var policy Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, &ConfigError{Field: "FOUNDRY_POLICY_FILE", Reason: fmt.Sprintf("malformed policy: %v", err)}
	}
	return &policy, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
