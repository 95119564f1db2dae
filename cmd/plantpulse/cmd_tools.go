// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

type toolListing struct {
	Tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"tools"`
	Count int `json:"count"`
}

func runToolsCommand(cmd *cobra.Command, args []string) {
	req, err := newAgentRequest(http.MethodGet, getAgentBaseURL()+"/v1/tools", nil)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}

	var listing toolListing
	if err := doJSON(req, 10*time.Second, &listing); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("The agent can call %d tools:\n\n", listing.Count)
	for _, tool := range listing.Tools {
		fmt.Printf("  %-28s %s\n", tool.Name, tool.Description)
	}
}

func runHealthCommand(cmd *cobra.Command, args []string) {
	req, err := newAgentRequest(http.MethodGet, getAgentBaseURL()+"/health", nil)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := doJSON(req, 5*time.Second, &health); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("%s: %s\n", health.Service, health.Status)
}
