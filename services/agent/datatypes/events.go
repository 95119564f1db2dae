// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file defines the event payloads carried by the streaming chat
// endpoints. The same JSON shapes flow over SSE and WebSocket.
package datatypes

// Event type discriminators. A turn always emits, in order: one start,
// one text-start, zero or more tool-call and text-delta events, one
// text-end, one finish, then the [DONE] terminator.
const (
	EventStart     = "start"
	EventTextStart = "text-start"
	EventToolCall  = "tool-call"
	EventTextDelta = "text-delta"
	EventTextEnd   = "text-end"
	EventFinish    = "finish"
	EventError     = "error"

	// StreamDoneMarker terminates the stream after the finish event.
	StreamDoneMarker = "[DONE]"
)

// FinishReasonStop is the finish reason for a normally completed turn.
const FinishReasonStop = "stop"

// StreamEvent is the JSON payload of one streaming event. Fields are
// populated per Type; unused fields are omitted from the wire form.
//
//   - start: MessageID
//   - text-start / text-end: ID
//   - text-delta: ID, Delta
//   - tool-call: ToolCallID, ToolName, Args
//   - finish: FinishReason, Metadata
//   - error: ErrorText
type StreamEvent struct {
	Type         string          `json:"type"`
	MessageID    string          `json:"messageId,omitempty"`
	ID           string          `json:"id,omitempty"`
	Delta        string          `json:"delta,omitempty"`
	ToolCallID   string          `json:"toolCallId,omitempty"`
	ToolName     string          `json:"toolName,omitempty"`
	Args         map[string]any  `json:"args,omitempty"`
	FinishReason string          `json:"finishReason,omitempty"`
	Metadata     *FinishMetadata `json:"metadata,omitempty"`
	ErrorText    string          `json:"errorText,omitempty"`
}

// FinishMetadata is attached to the finish event so clients can render
// the reasoning trace alongside the answer.
type FinishMetadata struct {
	Steps    []string        `json:"steps"`
	Timeline []TimelineEntry `json:"timeline"`
	Data     map[string]any  `json:"data"`
	Question string          `json:"question"`
}
