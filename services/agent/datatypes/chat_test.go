// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
)

func TestChatRequest_Validate_Success(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: "Which station is the bottleneck?"},
		},
	}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestChatRequest_Validate_EmptyMessages(t *testing.T) {
	req := &ChatRequest{Messages: []ChatMessage{}}
	if err := req.Validate(); err == nil {
		t.Error("expected error for empty messages, got nil")
	}
}

func TestChatRequest_Validate_BadRole(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "operator", Content: "hi"},
		},
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for unknown role, got nil")
	}
}

func TestChatRequest_Validate_OversizeContent(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: strings.Repeat("a", MaxMessageContentBytes+1)},
		},
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for oversize content, got nil")
	}
}

func TestChatRequest_Validate_NoUserMessage(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "assistant", Content: "hello"},
		},
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error when no user message present, got nil")
	}
}

func TestChatRequest_Validate_MaxIterationsRange(t *testing.T) {
	req := &ChatRequest{
		Messages:      []ChatMessage{{Role: "user", Content: "hi"}},
		MaxIterations: MaxReactIterationsLimit + 1,
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for max_iterations above limit, got nil")
	}
}

func TestChatRequest_Question_LastUserWins(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "answer"},
			{Role: "user", Content: "second question"},
		},
	}
	if q := req.Question(); q != "second question" {
		t.Errorf("expected last user message, got %q", q)
	}
}

func TestChatMessage_Text_Parts(t *testing.T) {
	msg := ChatMessage{
		Role: "user",
		Parts: []MessagePart{
			{Type: "text", Text: "show me "},
			{Type: "image", Text: "ignored"},
			{Type: "text", Text: "station ST001"},
		},
	}
	if got := msg.Text(); got != "show me station ST001" {
		t.Errorf("unexpected text: %q", got)
	}

	// Flat content wins over parts.
	msg.Content = "flat"
	if got := msg.Text(); got != "flat" {
		t.Errorf("expected flat content, got %q", got)
	}
}

func TestIdentifierHelpers(t *testing.T) {
	if msg := NewMessageID(); !strings.HasPrefix(msg, "msg-") {
		t.Errorf("unexpected message id: %q", msg)
	}
	if txt := NewTextID(); !strings.HasPrefix(txt, "txt-") {
		t.Errorf("unexpected text id: %q", txt)
	}

	thread := NewThreadID()
	if !strings.HasPrefix(thread, "thread-") {
		t.Errorf("unexpected thread id: %q", thread)
	}
	parts := strings.Split(thread, "-")
	if len(parts) != 3 || len(parts[2]) != 7 {
		t.Errorf("thread id should be thread-<millis>-<7 chars>, got %q", thread)
	}
	if NewThreadID() == thread {
		t.Error("thread ids should not repeat")
	}
}
