// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm abstracts the language model behind a small client
// interface with two interchangeable backends: any OpenAI-compatible
// API and a local Ollama server.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are per-call generation parameters. Zero values fall back to
// the backend's defaults.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client is the language model interface used by the reasoning engine.
//
// # Description
//
// Complete returns the full response text in one shot; it backs the
// non-streamed phases (validation, understanding, planning). Stream
// delivers tokens incrementally via onToken and backs synthesis.
//
// # Limitations
//
//   - onToken is called from the transport goroutine; a non-nil return
//     aborts the stream and is propagated out of Stream.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
	Stream(ctx context.Context, messages []Message, params Params, onToken func(token string) error) error
}
