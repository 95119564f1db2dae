// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains request and response types for the chat endpoints.
// The streaming endpoint emits the event payloads defined in events.go;
// the synchronous endpoint returns ChatResponse.
package datatypes

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Checked in bytes, not runes, to bound memory.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100

	// MaxReactIterationsLimit bounds the client-supplied iteration budget.
	MaxReactIterationsLimit = 10
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces the per-message content size limit.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// MessagePart is a typed fragment of a chat message. Clients built on
// message-part protocols send text as parts instead of a flat content
// string; both forms are accepted.
type MessagePart struct {
	Type string `json:"type" validate:"required"`
	Text string `json:"text,omitempty" validate:"omitempty,maxbytes"`
}

// ChatMessage is one turn of conversation history in a request.
type ChatMessage struct {
	ID      string        `json:"id,omitempty"`
	Role    string        `json:"role" validate:"required,oneof=user assistant system"`
	Content string        `json:"content,omitempty" validate:"omitempty,maxbytes"`
	Parts   []MessagePart `json:"parts,omitempty" validate:"omitempty,dive"`
}

// Text returns the message content, falling back to concatenated text
// parts when the flat content field is empty.
func (m ChatMessage) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var b strings.Builder
	for _, part := range m.Parts {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// ChatRequest is the body of POST /v1/chat and POST /v1/chat/stream.
//
// # Fields
//
//   - Messages: Required. Conversation history, 1-100 messages. The last
//     user message is the question for this turn.
//   - ConversationID: Optional. Stable thread identifier. When present it
//     becomes both the message ID and the memory thread key; when absent
//     a fresh msg-<uuid> identifier is generated per turn.
//   - MaxIterations: Optional. Overrides the ReAct iteration budget
//     (1-10). Zero means the server default of 5.
//
// # Validation
//
// Uses go-playground/validator. Message content is limited to 32KB per
// message; at most 100 messages per request.
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages" validate:"required,min=1,max=100,dive"`
	ConversationID string        `json:"conversation_id,omitempty"`
	MaxIterations  int           `json:"max_iterations,omitempty" validate:"gte=0,lte=10"`
}

// Validate validates the ChatRequest fields after JSON binding.
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return err
	}
	if r.Question() == "" {
		return fmt.Errorf("no user message with text content")
	}
	return nil
}

// Question returns the text of the most recent user message.
func (r *ChatRequest) Question() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return strings.TrimSpace(r.Messages[i].Text())
		}
	}
	return ""
}

// =============================================================================
// Chat Response Types
// =============================================================================

// ChatResponse is the body returned by the synchronous chat endpoint.
type ChatResponse struct {
	MessageID string          `json:"message_id"`
	Content   string          `json:"content"`
	Steps     []string        `json:"steps"`
	Timeline  []TimelineEntry `json:"timeline"`
	Data      map[string]any  `json:"data"`
}

// =============================================================================
// Identifier Helpers
// =============================================================================

// threadSuffixChars is the alphabet for generated thread ID suffixes.
const threadSuffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewMessageID returns a fresh msg-<uuid> identifier.
func NewMessageID() string {
	return "msg-" + uuid.NewString()
}

// NewTextID returns a fresh txt-<uuid> identifier for a text block.
func NewTextID() string {
	return "txt-" + uuid.NewString()
}

// NewThreadID returns a thread key of the form thread-<millis>-<suffix>.
func NewThreadID() string {
	suffix := make([]byte, 7)
	for i := range suffix {
		suffix[i] = threadSuffixChars[rand.Intn(len(threadSuffixChars))]
	}
	return fmt.Sprintf("thread-%d-%s", time.Now().UnixMilli(), suffix)
}
