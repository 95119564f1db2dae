// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command agent starts the PlantPulse agent HTTP server.
//
// This is the main entry point for the containerized agent service. It
// reads configuration from an optional YAML file plus environment
// variables and starts the server.
//
// # Environment Variables
//
//   - AGENT_CONFIG: Path to a YAML config file (optional)
//   - AGENT_PORT: HTTP server port (default: 12310)
//   - LLM_BACKEND_TYPE: LLM provider - openai or ollama (default: ollama)
//   - LLM_BASE_URL: Provider endpoint override
//   - AGENT_MEMORY_PATH: SQLite conversation memory file
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: plantpulse-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o agent ./cmd/agent
//
//	# Run
//	./agent
//
//	# Or via container
//	podman-compose up agent
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/plantpulse-ai/plantpulse/pkg/logging"
	"github.com/plantpulse-ai/plantpulse/services/agent"
)

func main() {
	logger := logging.New(logging.Config{Service: "agent", JSON: true})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := agent.LoadConfig(os.Getenv("AGENT_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slog.Info("Starting agent",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"memory_path", cfg.MemoryPath,
	)

	svc, err := agent.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Agent error: %v", err)
	}
}
