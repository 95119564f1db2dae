// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds agent service configuration.
//
// # Description
//
// Config centralizes all configuration for the agent service. Values can
// come from a YAML file (LoadConfig), environment variables, or be set
// programmatically for testing. Zero values get defaults in New().
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int `yaml:"port"`

	// GinMode sets the Gin framework mode: debug, release, or test.
	GinMode string `yaml:"gin_mode"`

	// LLMBackend selects the model provider: "openai" or "ollama".
	// Default: "ollama"
	LLMBackend string `yaml:"llm_backend"`

	// LLMBaseURL overrides the provider endpoint. For "openai" this is
	// any OpenAI-compatible server; for "ollama" the Ollama server URL.
	LLMBaseURL string `yaml:"llm_base_url"`

	// LLMAPIKey authenticates to the provider (openai backend only).
	LLMAPIKey string `yaml:"llm_api_key"`

	// LLMModel is the model name sent with every request.
	LLMModel string `yaml:"llm_model"`

	// PromptsDir holds prompt override files. Empty disables overrides.
	PromptsDir string `yaml:"prompts_dir"`

	// MemoryPath is the SQLite file backing conversation memory.
	// Default: "./data/agent_memory.db"
	MemoryPath string `yaml:"memory_path"`

	// SummarizeInterval is the turn count between rolling summaries.
	// Default: 12
	SummarizeInterval int `yaml:"summarize_interval"`

	// MemoryTTL evicts threads idle longer than this. Zero disables the
	// retention sweeper.
	MemoryTTL time.Duration `yaml:"memory_ttl"`

	// RetentionSweepInterval is how often the sweeper runs. Default: 1h.
	RetentionSweepInterval time.Duration `yaml:"retention_sweep_interval"`

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "plantpulse-otel-collector:4317"
	OTelEndpoint string `yaml:"otel_endpoint"`

	// DisableTracing turns off OTLP trace export. Tracing is on by
	// default; the exporter connects lazily so a missing collector only
	// drops spans.
	DisableTracing bool `yaml:"disable_tracing"`

	// APIToken enables bearer auth on /v1 when non-empty.
	APIToken string `yaml:"api_token"`

	// RateLimitRPS and RateLimitBurst configure per-client rate limiting
	// on /v1. Zero RPS disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// SimulatorSeed fixes the production line RNG for reproducible demos.
	// Zero seeds from the clock.
	SimulatorSeed int64 `yaml:"simulator_seed"`
}

// LoadConfig reads a YAML config file and applies environment overrides.
// An empty path skips the file and uses environment plus defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets environment variables override file values, matching how
// the service is configured inside containers.
func (cfg *Config) applyEnv() {
	if v := os.Getenv("AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.GinMode = v
	}
	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		cfg.LLMBackend = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("AGENT_PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	if v := os.Getenv("AGENT_MEMORY_PATH"); v != "" {
		cfg.MemoryPath = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTelEndpoint = v
	}
	if v := os.Getenv("AGENT_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.LLMBaseURL == "" && cfg.LLMBackend == "ollama" {
		cfg.LLMBaseURL = "http://localhost:11434"
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = "qwen2.5:14b"
	}
	if cfg.MemoryPath == "" {
		cfg.MemoryPath = "./data/agent_memory.db"
	}
	if cfg.SummarizeInterval == 0 {
		cfg.SummarizeInterval = 12
	}
	if cfg.RetentionSweepInterval == 0 {
		cfg.RetentionSweepInterval = time.Hour
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "plantpulse-otel-collector:4317"
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 20
	}
	return cfg
}
