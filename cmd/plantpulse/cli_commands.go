// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "plantpulse",
		Short: "A CLI for the PlantPulse production line agent",
		Long: `PlantPulse is a tool for running and talking to the production
line reasoning agent. The agent answers questions about stations,
sensors, and alerts on the simulated line.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the agent HTTP server in the foreground",
		Long:  `Loads configuration from --config (or AGENT_CONFIG) plus environment variables and runs the agent service until interrupted.`,
		Run:   runServeCommand,
	}
	configPath string

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks the agent a single question",
		Long:  `Sends one question to the agent's synchronous chat endpoint and prints the answer along with the reasoning timeline.`,
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	showTimeline bool

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Long:  `Initiates a persistent, interactive chat session against the streaming endpoint. A conversation ID is created on the first turn and reused so the agent keeps context.`,
		Run:   runChatCommand,
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "List the tools the agent can call",
		Run:   runToolsCommand,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether the agent server is up",
		Run:   runHealthCommand,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (overrides AGENT_CONFIG)")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&showTimeline, "timeline", false, "Print the agent's reasoning timeline after the answer")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("resume", "", "Resume a conversation using a specific conversation ID.")

	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(healthCmd)
}
