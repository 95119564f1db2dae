// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
)

// askTimeout bounds a full synchronous turn including tool calls and
// synthesis on a slow local model.
const askTimeout = 5 * time.Minute

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	body, err := json.Marshal(datatypes.ChatRequest{
		Messages: []datatypes.ChatMessage{{Role: "user", Content: question}},
	})
	if err != nil {
		log.Fatalf("Error encoding request: %v", err)
	}

	req, err := newAgentRequest(http.MethodPost, getAgentBaseURL()+"/v1/chat", body)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}

	var chatResp datatypes.ChatResponse
	if err := doJSON(req, askTimeout, &chatResp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\nAnswer:\n%s\n", chatResp.Content)
	if showTimeline && len(chatResp.Timeline) > 0 {
		fmt.Println("\nReasoning Timeline:")
		for i, entry := range chatResp.Timeline {
			fmt.Printf("%d. [%s] %s\n", i+1, entry.Phase, entry.Message)
		}
	}
	fmt.Println("\n---")
}
