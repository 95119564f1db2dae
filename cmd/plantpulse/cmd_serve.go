// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/plantpulse-ai/plantpulse/pkg/logging"
	"github.com/plantpulse-ai/plantpulse/services/agent"
)

func runServeCommand(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{Service: "agent", JSON: true})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	path := configPath
	if path == "" {
		path = os.Getenv("AGENT_CONFIG")
	}

	cfg, err := agent.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	svc, err := agent.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("Agent error: %v", err)
	}
}
