// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the agent service.
//
// This file contains the reasoning state that flows through the phased
// engine: per-phase verdicts, the tool plan, ReAct loop bookkeeping, and
// the timeline surfaced to clients. For HTTP wire types see chat.go, for
// stream event payloads see events.go.
package datatypes

import "time"

// =============================================================================
// Phase and Status Enumerations
// =============================================================================

// Phase names as they appear in timeline entries and step strings.
const (
	PhaseInputValidation  = "input_validation"
	PhaseUnderstanding    = "understanding"
	PhasePlanning         = "planning"
	PhaseExecution        = "execution"
	PhaseReact            = "react_reasoning"
	PhaseOutputValidation = "output_validation"
	PhaseSynthesis        = "synthesis"
)

// ValidationStatus is the verdict of input validation.
type ValidationStatus string

const (
	// StatusValid means the question is safe, clear, and on topic.
	StatusValid ValidationStatus = "valid"

	// StatusInvalid means the question must not be answered with tools.
	StatusInvalid ValidationStatus = "invalid"

	// StatusNeedsClarification means the question is too vague to act on.
	StatusNeedsClarification ValidationStatus = "needs_clarification"

	// StatusOffTopic means the question is unrelated to the production line.
	StatusOffTopic ValidationStatus = "off_topic"
)

// Proceedable reports whether the verdict allows tool use. Anything other
// than StatusValid routes straight to synthesis.
func (s ValidationStatus) Proceedable() bool {
	return s == StatusValid
}

// LoopStatus describes how the ReAct loop ended.
type LoopStatus string

const (
	// LoopIterating means the loop is still running.
	LoopIterating LoopStatus = "iterating"

	// LoopFinished means the model emitted a finish action.
	LoopFinished LoopStatus = "finished"

	// LoopCapped means the iteration budget was exhausted. This is a
	// normal terminal state, not an error.
	LoopCapped LoopStatus = "capped"
)

// ExecutionStrategy selects how a tool plan is executed.
type ExecutionStrategy string

const (
	// StrategySequential runs plan items one at a time in plan order.
	StrategySequential ExecutionStrategy = "sequential"

	// StrategyParallel runs independent plan items concurrently.
	StrategyParallel ExecutionStrategy = "parallel"
)

// DefaultMaxIterations is the ReAct iteration budget when the client
// does not override it.
const DefaultMaxIterations = 5

// =============================================================================
// Per-Phase Result Types
// =============================================================================

// InputValidation is the phase 1 verdict on the user's question.
type InputValidation struct {
	Status                 ValidationStatus `json:"status"`
	IsSafe                 bool             `json:"is_safe"`
	IsClear                bool             `json:"is_clear"`
	IsRelevant             bool             `json:"is_relevant"`
	Reason                 string           `json:"reason"`
	SuggestedClarification string           `json:"suggested_clarification,omitempty"`
}

// IntentAnalysis is the phase 2 reading of what the user wants.
type IntentAnalysis struct {
	PrimaryIntent    string         `json:"primary_intent"`
	Entities         []string       `json:"entities"`
	Constraints      map[string]any `json:"constraints"`
	RequiresLiveData bool           `json:"requires_live_data"`
	Confidence       float64        `json:"confidence"`
	Summary          string         `json:"summary"`
}

// ToolPlanItem is one entry of the phase 3 execution plan.
type ToolPlanItem struct {
	Name     string         `json:"name"`
	Args     map[string]any `json:"args"`
	Purpose  string         `json:"purpose"`
	Priority int            `json:"priority"`
}

// ToolResult is the outcome of a single tool invocation.
type ToolResult struct {
	ToolName        string `json:"tool_name"`
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// ReActStep is one Thought/Action/Observation cycle of the reasoning loop.
type ReActStep struct {
	Iteration   int            `json:"iteration"`
	Thought     string         `json:"thought"`
	Action      string         `json:"action"`
	ActionInput map[string]any `json:"action_input,omitempty"`
	Observation string         `json:"observation"`
}

// OutputValidation is the phase 5 verdict on gathered results.
type OutputValidation struct {
	IsComplete  bool     `json:"is_complete"`
	IsAccurate  bool     `json:"is_accurate"`
	IsSafe      bool     `json:"is_safe"`
	Confidence  float64  `json:"confidence"`
	MissingInfo []string `json:"missing_info,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// TimelineEntry is one reasoning step surfaced to clients.
type TimelineEntry struct {
	Phase     string   `json:"phase"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	DataKeys  []string `json:"data_keys,omitempty"`
}

// =============================================================================
// Agent State
// =============================================================================

// AgentState is the single mutable record threaded through all six phases
// of a turn. Handlers create it via NewState, the reasoning engine fills
// it in, and the finish event exposes its steps, timeline, and data.
//
// # Thread Safety
//
// AgentState is owned by exactly one turn and must not be shared across
// goroutines without external synchronization. Parallel plan execution
// collects results before touching the state.
type AgentState struct {
	Question string `json:"question"`
	ThreadID string `json:"thread_id"`

	InputValidation   *InputValidation      `json:"input_validation,omitempty"`
	Intent            *IntentAnalysis       `json:"intent,omitempty"`
	ToolPlan          []ToolPlanItem        `json:"tool_plan,omitempty"`
	ExecutionStrategy ExecutionStrategy     `json:"execution_strategy"`
	ToolResults       map[string]ToolResult `json:"tool_results,omitempty"`
	Observations      []string              `json:"observations,omitempty"`
	OutputValidation  *OutputValidation     `json:"output_validation,omitempty"`
	FinalResponse     string                `json:"final_response,omitempty"`

	ReactEnabled       bool        `json:"react_enabled"`
	ReactSteps         []ReActStep `json:"react_steps,omitempty"`
	ReactIteration     int         `json:"react_iteration"`
	ReactMaxIterations int         `json:"react_max_iterations"`
	ReactScratchpad    string      `json:"react_scratchpad,omitempty"`

	Steps        []string        `json:"steps"`
	Timeline     []TimelineEntry `json:"timeline"`
	Data         map[string]any  `json:"data"`
	CurrentPhase string          `json:"current_phase"`
	Error        string          `json:"error,omitempty"`
}

// NewState creates the initial state for a turn.
func NewState(question, threadID string) *AgentState {
	return &AgentState{
		Question:           question,
		ThreadID:           threadID,
		ExecutionStrategy:  StrategySequential,
		ToolResults:        make(map[string]ToolResult),
		ReactEnabled:       true,
		ReactMaxIterations: DefaultMaxIterations,
		Steps:              []string{},
		Timeline:           []TimelineEntry{},
		Data:               make(map[string]any),
		CurrentPhase:       PhaseInputValidation,
	}
}

// AppendTimeline records a reasoning step in both the timeline and the
// flat steps list. Timestamps are UTC RFC 3339.
func (s *AgentState) AppendTimeline(phase, message string, dataKeys []string) {
	s.Timeline = append(s.Timeline, TimelineEntry{
		Phase:     phase,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DataKeys:  dataKeys,
	})
	s.Steps = append(s.Steps, "["+phase+"] "+message)
	s.CurrentPhase = phase
}

// ToolErrors returns the accumulated tool error strings from the data map.
func (s *AgentState) ToolErrors() []string {
	raw, ok := s.Data["tool_errors"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// AddToolError appends an error string to data["tool_errors"].
func (s *AgentState) AddToolError(msg string) {
	s.Data["tool_errors"] = append(s.ToolErrors(), msg)
}
