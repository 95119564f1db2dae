// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/llm"
	"github.com/plantpulse-ai/plantpulse/services/agent/memory"
)

// Builder constructs the message lists sent to the model for each phase.
type Builder struct {
	hub *Hub
}

// NewBuilder creates a Builder over the hub. Panics on nil hub.
func NewBuilder(hub *Hub) *Builder {
	if hub == nil {
		panic("prompts: hub is required")
	}
	return &Builder{hub: hub}
}

// withMemory appends the conversation context block to a system prompt.
func withMemory(system, memoryContext string) string {
	if memoryContext == "" {
		return system
	}
	return system + "\n\nConversation context:\n" + memoryContext
}

// InputValidation builds the phase 1 messages.
func (b *Builder) InputValidation(question, memoryContext string) ([]llm.Message, error) {
	system, err := b.hub.Get(NameInputValidation)
	if err != nil {
		return nil, err
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: withMemory(system, memoryContext)},
		{Role: llm.RoleUser, Content: question},
	}, nil
}

// Understanding builds the phase 2 messages.
func (b *Builder) Understanding(question, memoryContext string) ([]llm.Message, error) {
	system, err := b.hub.Get(NameUnderstanding)
	if err != nil {
		return nil, err
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: withMemory(system, memoryContext)},
		{Role: llm.RoleUser, Content: question},
	}, nil
}

// Planning builds the phase 3 messages. The user content is the question
// plus the intent analysis as indented JSON.
func (b *Builder) Planning(question string, intent *datatypes.IntentAnalysis, memoryContext string) ([]llm.Message, error) {
	system, err := b.hub.Get(NamePlanning)
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(map[string]any{
		"question":        question,
		"intent_analysis": intent,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode planning payload: %w", err)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: withMemory(system, memoryContext)},
		{Role: llm.RoleUser, Content: string(payload)},
	}, nil
}

// React builds one reasoning-loop step. The scratchpad carries previous
// Thought/Action/Observation triples.
func (b *Builder) React(question, scratchpad string) ([]llm.Message, error) {
	system, err := b.hub.Get(NameReact)
	if err != nil {
		return nil, err
	}

	user := "Question: " + question
	if scratchpad != "" {
		user += "\n\nScratchpad:\n" + scratchpad
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, nil
}

// OutputValidation builds the phase 5 messages from the gathered state.
func (b *Builder) OutputValidation(state *datatypes.AgentState) ([]llm.Message, error) {
	system, err := b.hub.Get(NameOutputValidation)
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(map[string]any{
		"original_question": state.Question,
		"intent":            state.Intent,
		"tool_results":      state.ToolResults,
		"observations":      state.Observations,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode validation payload: %w", err)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: string(payload)},
	}, nil
}

// Synthesis builds the phase 6 messages. With no tool plan and no tool
// results the direct path answers from the question alone; otherwise the
// data path hands the model a JSON context of everything gathered.
func (b *Builder) Synthesis(state *datatypes.AgentState, memoryContext string) ([]llm.Message, error) {
	if len(state.ToolPlan) == 0 && len(state.ToolResults) == 0 {
		system, err := b.hub.Get(NameSynthesisDirect)
		if err != nil {
			return nil, err
		}
		return []llm.Message{
			{Role: llm.RoleSystem, Content: withMemory(system, memoryContext)},
			{Role: llm.RoleUser, Content: state.Question},
		}, nil
	}

	system, err := b.hub.Get(NameSynthesisData)
	if err != nil {
		return nil, err
	}

	var intentSummary, primaryIntent string
	if state.Intent != nil {
		intentSummary = state.Intent.Summary
		primaryIntent = state.Intent.PrimaryIntent
	}

	validation := map[string]any{
		"confidence":   1.0,
		"warnings":     []string{},
		"missing_info": []string{},
	}
	if state.OutputValidation != nil {
		validation["confidence"] = state.OutputValidation.Confidence
		validation["warnings"] = state.OutputValidation.Warnings
		validation["missing_info"] = state.OutputValidation.MissingInfo
	}

	payload, err := json.MarshalIndent(map[string]any{
		"question":       state.Question,
		"intent_summary": intentSummary,
		"primary_intent": primaryIntent,
		"tool_results":   state.ToolResults,
		"observations":   state.Observations,
		"validation":     validation,
		"errors":         state.ToolErrors(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode synthesis context: %w", err)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: withMemory(system, memoryContext)},
		{Role: llm.RoleUser, Content: string(payload)},
	}, nil
}

// Summary builds the rolling-summary messages from recent history.
func (b *Builder) Summary(currentSummary string, recent []memory.Message) ([]llm.Message, error) {
	system, err := b.hub.Get(NameSummary)
	if err != nil {
		return nil, err
	}

	var lines []string
	if currentSummary != "" {
		lines = append(lines, "Current summary:\n"+currentSummary, "")
	}
	lines = append(lines, "Conversation:")
	for _, m := range recent {
		lines = append(lines, "- "+m.Role+": "+m.Content)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: strings.Join(lines, "\n")},
	}, nil
}
