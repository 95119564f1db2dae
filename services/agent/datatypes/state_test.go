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
	"time"
)

func TestNewState_Defaults(t *testing.T) {
	state := NewState("What is the OEE?", "thread-1")

	if state.Question != "What is the OEE?" {
		t.Errorf("unexpected question: %q", state.Question)
	}
	if state.ThreadID != "thread-1" {
		t.Errorf("unexpected thread id: %q", state.ThreadID)
	}
	if !state.ReactEnabled {
		t.Error("react should be enabled by default")
	}
	if state.ReactMaxIterations != DefaultMaxIterations {
		t.Errorf("expected max iterations %d, got %d", DefaultMaxIterations, state.ReactMaxIterations)
	}
	if state.ExecutionStrategy != StrategySequential {
		t.Errorf("expected sequential strategy, got %q", state.ExecutionStrategy)
	}
	if state.CurrentPhase != PhaseInputValidation {
		t.Errorf("expected initial phase %q, got %q", PhaseInputValidation, state.CurrentPhase)
	}
	if state.Steps == nil || state.Timeline == nil || state.Data == nil || state.ToolResults == nil {
		t.Error("collections must be initialized, not nil")
	}
}

func TestAppendTimeline(t *testing.T) {
	state := NewState("q", "t")
	state.AppendTimeline(PhaseUnderstanding, "Analyzed intent", []string{"intent"})

	if len(state.Timeline) != 1 {
		t.Fatalf("expected 1 timeline entry, got %d", len(state.Timeline))
	}
	entry := state.Timeline[0]
	if entry.Phase != PhaseUnderstanding || entry.Message != "Analyzed intent" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %q", entry.Timestamp)
	}
	if len(state.Steps) != 1 || state.Steps[0] != "[understanding] Analyzed intent" {
		t.Errorf("unexpected steps: %v", state.Steps)
	}
	if state.CurrentPhase != PhaseUnderstanding {
		t.Errorf("current phase not advanced: %q", state.CurrentPhase)
	}
}

func TestToolErrors_Accumulate(t *testing.T) {
	state := NewState("q", "t")
	if errs := state.ToolErrors(); errs != nil {
		t.Errorf("expected nil before any errors, got %v", errs)
	}

	state.AddToolError("get_station: Error - not found")
	state.AddToolError("calculate_oee: Error - timeout")

	errs := state.ToolErrors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if !strings.Contains(errs[1], "timeout") {
		t.Errorf("unexpected second error: %q", errs[1])
	}
}

func TestToolErrors_FromDecodedJSON(t *testing.T) {
	// After a JSON round trip data["tool_errors"] holds []any, not []string.
	state := NewState("q", "t")
	state.Data["tool_errors"] = []any{"a: Error - x", "b: Error - y"}

	errs := state.ToolErrors()
	if len(errs) != 2 || errs[0] != "a: Error - x" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidationStatus_Proceedable(t *testing.T) {
	if !StatusValid.Proceedable() {
		t.Error("valid must proceed")
	}
	for _, s := range []ValidationStatus{StatusInvalid, StatusNeedsClarification, StatusOffTopic} {
		if s.Proceedable() {
			t.Errorf("%q must not proceed", s)
		}
	}
}
