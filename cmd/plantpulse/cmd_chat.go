// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	baseURL := getAgentBaseURL()
	conversationID, _ := cmd.Flags().GetString("resume")

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Println("PlantPulse interactive chat. Type 'exit' or Ctrl-C to quit.")
	if conversationID != "" {
		fmt.Printf("Resuming conversation %s\n", conversationID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		newID, err := streamTurn(ctx, baseURL, conversationID, line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			continue
		}
		if newID != "" {
			conversationID = newID
		}
	}

	if conversationID != "" {
		fmt.Printf("\nConversation ID: %s (resume with --resume %s)\n", conversationID, conversationID)
	}
}

// streamTurn sends one user message to the streaming endpoint, prints
// tokens as they arrive, and returns the conversation ID the server
// assigned or echoed.
func streamTurn(ctx context.Context, baseURL, conversationID, text string) (string, error) {
	body, err := json.Marshal(datatypes.ChatRequest{
		Messages:       []datatypes.ChatMessage{{Role: "user", Content: text}},
		ConversationID: conversationID,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := newAgentRequest(http.MethodPost, baseURL+"/v1/chat/stream", body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: turns can legitimately run for minutes and the
	// server sends keepalive comments while it works.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not reach the agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Scan()
		return "", fmt.Errorf("agent returned status %d: %s", resp.StatusCode, scanner.Text())
	}
	threadID := resp.Header.Get("X-Conversation-Id")

	fmt.Print("\nAgent> ")
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue // keepalive comments and blank separators
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == datatypes.StreamDoneMarker {
			break
		}

		var event datatypes.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		switch event.Type {
		case datatypes.EventTextDelta:
			fmt.Print(event.Delta)
		case datatypes.EventToolCall:
			if msg, ok := event.Args["message"].(string); ok {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", event.ToolName, msg)
			}
		case datatypes.EventError:
			fmt.Fprintf(os.Stderr, "\nServer error: %s\n", event.ErrorText)
		}
	}
	fmt.Println()

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return threadID, fmt.Errorf("reading stream: %w", err)
	}
	return threadID, nil
}
