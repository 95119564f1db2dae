// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reasoning implements the phased engine behind every turn:
//
//  1. input validation
//  2. understanding (intent analysis)
//  3. planning
//  4. execution (plan execution or the ReAct loop)
//  5. output validation
//  6. synthesis (streamed, see synthesis.go)
//
// Phases 1-3 and 5 degrade softly: a model or parse failure is absorbed
// into a permissive default and the turn continues. Only synthesis
// failure is fatal to a turn. The iteration cap of the ReAct loop is a
// normal terminal state, not an error.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/llm"
	"github.com/plantpulse-ai/plantpulse/services/agent/prompts"
	"github.com/plantpulse-ai/plantpulse/services/agent/tools"
)

// =============================================================================
// Engine
// =============================================================================

// Engine runs the phased reasoning pipeline over an AgentState.
//
// # Thread Safety
//
// Engine itself is stateless and safe for concurrent use; each turn owns
// its AgentState.
type Engine struct {
	client  llm.Client
	invoker tools.Invoker
	builder *prompts.Builder
	logger  *slog.Logger

	// PhaseParams are the generation parameters for the JSON phases.
	PhaseParams llm.Params

	// SynthesisParams are the generation parameters for the final answer.
	SynthesisParams llm.Params
}

// NewEngine creates an Engine. Panics on nil dependencies; the engine is
// wired once at service start.
func NewEngine(client llm.Client, invoker tools.Invoker, builder *prompts.Builder, logger *slog.Logger) *Engine {
	if client == nil {
		panic("reasoning: llm client is required")
	}
	if invoker == nil {
		panic("reasoning: tool invoker is required")
	}
	if builder == nil {
		panic("reasoning: prompt builder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:          client,
		invoker:         invoker,
		builder:         builder,
		logger:          logger,
		PhaseParams:     llm.Params{Temperature: 0.1, MaxTokens: 1024},
		SynthesisParams: llm.Params{Temperature: 0.7, MaxTokens: 2048},
	}
}

// Run executes phases 1 through 5. Synthesis is separate so transports
// can stream it. Run never returns an error: every failure before
// synthesis is recoverable by design of the error taxonomy.
func (e *Engine) Run(ctx context.Context, state *datatypes.AgentState, memoryContext string) {
	tracer := otel.Tracer("plantpulse/agent/reasoning")
	ctx, span := tracer.Start(ctx, "reasoning.run",
		trace.WithAttributes(attribute.String("thread.id", state.ThreadID)))
	defer span.End()

	e.validateInput(ctx, state, memoryContext)

	// Non-actionable input finalizes immediately: no later phase runs, so
	// a rejected turn's timeline carries only the phase 1 verdict until
	// synthesis adds the rejection answer.
	if state.InputValidation != nil && !state.InputValidation.Status.Proceedable() {
		return
	}

	e.analyzeIntent(ctx, state, memoryContext)
	e.planExecution(ctx, state, memoryContext)

	switch e.decideRoute(state) {
	case routeReact:
		state.AppendTimeline(datatypes.PhaseExecution, "Execution delegated to reasoning loop", nil)
		e.runReactLoop(ctx, state)
	case routePlan:
		e.executePlan(ctx, state)
	default:
		state.AppendTimeline(datatypes.PhaseExecution, "Execution skipped (no tools required)", nil)
	}

	e.validateOutput(ctx, state)
	span.SetAttributes(
		attribute.Int("tools.called", len(state.ToolResults)),
		attribute.Int("react.iterations", state.ReactIteration),
	)
}

// =============================================================================
// Phase 1: Input Validation
// =============================================================================

func (e *Engine) validateInput(ctx context.Context, state *datatypes.AgentState, memoryContext string) {
	var verdict datatypes.InputValidation
	err := e.completeJSON(ctx, func() ([]llm.Message, error) {
		return e.builder.InputValidation(state.Question, memoryContext)
	}, &verdict)
	if err != nil {
		// Soft failure: assume valid and continue.
		e.logger.Warn("input validation unavailable", "error", err)
		state.Data["validation_error"] = err.Error()
		verdict = datatypes.InputValidation{
			Status:     datatypes.StatusValid,
			IsSafe:     true,
			IsClear:    true,
			IsRelevant: true,
			Reason:     "validation unavailable, proceeding",
		}
	}
	if verdict.Status == "" {
		verdict.Status = datatypes.StatusValid
	}
	state.InputValidation = &verdict
	state.Data["input_validation"] = verdict
	state.AppendTimeline(datatypes.PhaseInputValidation,
		fmt.Sprintf("Input validated: %s", verdict.Status), []string{"input_validation"})
}

// =============================================================================
// Phase 2: Understanding
// =============================================================================

func (e *Engine) analyzeIntent(ctx context.Context, state *datatypes.AgentState, memoryContext string) {
	var intent datatypes.IntentAnalysis
	err := e.completeJSON(ctx, func() ([]llm.Message, error) {
		return e.builder.Understanding(state.Question, memoryContext)
	}, &intent)
	if err != nil {
		e.logger.Warn("intent analysis unavailable", "error", err)
		state.Data["understanding_error"] = err.Error()
		intent = fallbackIntent(state.Question)
	}
	state.Intent = &intent
	state.Data["intent"] = intent
	state.AppendTimeline(datatypes.PhaseUnderstanding,
		fmt.Sprintf("Intent: %s (live data: %t)", intent.PrimaryIntent, intent.RequiresLiveData),
		[]string{"intent"})
}

// fallbackIntent is the permissive default when understanding fails.
// Greetings are recognized heuristically so they still take the direct
// path; everything else is treated as a live-data inquiry.
func fallbackIntent(question string) datatypes.IntentAnalysis {
	greetings := []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "thanks", "thank you"}
	lower := strings.ToLower(strings.TrimSpace(question))
	for _, g := range greetings {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+",") || strings.HasPrefix(lower, g+"!") {
			return datatypes.IntentAnalysis{
				PrimaryIntent:    "greeting",
				RequiresLiveData: false,
				Confidence:       0.5,
				Summary:          "User greeting",
			}
		}
	}
	return datatypes.IntentAnalysis{
		PrimaryIntent:    "General inquiry",
		RequiresLiveData: true,
		Confidence:       0.5,
		Summary:          "General inquiry",
	}
}

// =============================================================================
// Phase 3: Planning
// =============================================================================

// planResponse is the JSON shape expected from the planning prompt.
type planResponse struct {
	ToolPlan          []datatypes.ToolPlanItem `json:"tool_plan"`
	ExecutionStrategy string                   `json:"execution_strategy"`
}

func (e *Engine) planExecution(ctx context.Context, state *datatypes.AgentState, memoryContext string) {
	var plan planResponse
	err := e.completeJSON(ctx, func() ([]llm.Message, error) {
		return e.builder.Planning(state.Question, state.Intent, memoryContext)
	}, &plan)
	if err != nil {
		e.logger.Warn("planning unavailable", "error", err)
		state.Data["planning_error"] = err.Error()
		state.AppendTimeline(datatypes.PhasePlanning, "Planning failed, continuing without a plan", nil)
		return
	}

	// Drop plan items that name tools outside the catalog.
	catalog := e.invoker.Catalog()
	var kept []datatypes.ToolPlanItem
	var dropped []string
	for _, item := range plan.ToolPlan {
		if catalog.Has(item.Name) {
			kept = append(kept, item)
		} else {
			dropped = append(dropped, item.Name)
		}
	}
	if len(dropped) > 0 {
		state.Data["plan_filtered"] = dropped
		e.logger.Warn("plan referenced unknown tools", "dropped", dropped)
	}

	state.ToolPlan = kept
	if plan.ExecutionStrategy == string(datatypes.StrategyParallel) {
		state.ExecutionStrategy = datatypes.StrategyParallel
	}
	state.Data["tool_plan"] = kept
	state.AppendTimeline(datatypes.PhasePlanning,
		fmt.Sprintf("Planned %d tool call(s), strategy %s", len(kept), state.ExecutionStrategy),
		[]string{"tool_plan"})
}

// =============================================================================
// Routing
// =============================================================================

type route int

const (
	routeFinalize route = iota
	routeReact
	routePlan
)

// decideRoute picks the execution path after planning. Non-actionable
// input never reaches routing (Run returns after phase 1); live-data
// questions with the loop enabled go to ReAct; otherwise a non-empty
// plan executes directly; with nothing to do the turn finalizes.
func (e *Engine) decideRoute(state *datatypes.AgentState) route {
	if state.ReactEnabled && state.Intent != nil && state.Intent.RequiresLiveData {
		return routeReact
	}
	if len(state.ToolPlan) > 0 {
		return routePlan
	}
	return routeFinalize
}

// =============================================================================
// Phase 4: Plan Execution
// =============================================================================

func (e *Engine) executePlan(ctx context.Context, state *datatypes.AgentState) {
	if state.ExecutionStrategy == datatypes.StrategyParallel {
		e.executePlanParallel(ctx, state)
	} else {
		for _, item := range state.ToolPlan {
			result := e.invoker.Invoke(ctx, item.Name, item.Args)
			e.recordToolResult(state, result)
		}
	}

	state.Data["tools"] = state.ToolResults
	state.AppendTimeline(datatypes.PhaseExecution,
		fmt.Sprintf("Executed %d tool call(s)", len(state.ToolPlan)), []string{"tools"})
}

// executePlanParallel runs all plan items concurrently and merges the
// results in plan order so observations stay deterministic.
func (e *Engine) executePlanParallel(ctx context.Context, state *datatypes.AgentState) {
	results := make([]datatypes.ToolResult, len(state.ToolPlan))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range state.ToolPlan {
		g.Go(func() error {
			results[i] = e.invoker.Invoke(gctx, item.Name, item.Args)
			return nil
		})
	}
	_ = g.Wait() // invocations never return errors, failures live in the results

	for _, result := range results {
		e.recordToolResult(state, result)
	}
}

// recordToolResult merges one tool outcome into the state.
func (e *Engine) recordToolResult(state *datatypes.AgentState, result datatypes.ToolResult) {
	state.ToolResults[result.ToolName] = result
	if result.Success {
		state.Observations = append(state.Observations, result.ToolName+": "+compactJSON(result.Data))
		return
	}
	msg := result.ToolName + ": Error - " + result.Error
	state.Observations = append(state.Observations, msg)
	state.AddToolError(msg)
}

// =============================================================================
// Phase 5: Output Validation
// =============================================================================

func (e *Engine) validateOutput(ctx context.Context, state *datatypes.AgentState) {
	var verdict datatypes.OutputValidation

	if len(state.ToolResults) == 0 {
		// Nothing to validate; direct answers are trusted.
		verdict = datatypes.OutputValidation{
			IsComplete: true, IsAccurate: true, IsSafe: true, Confidence: 1.0,
		}
	} else {
		err := e.completeJSON(ctx, func() ([]llm.Message, error) {
			return e.builder.OutputValidation(state)
		}, &verdict)
		if err != nil {
			e.logger.Warn("output validation unavailable", "error", err)
			state.Data["output_validation_error"] = err.Error()
			verdict = fallbackOutputValidation(state)
		}
	}

	// An exhausted iteration budget lowers trust in the answer.
	if capped, _ := state.Data["react_status"].(string); capped == string(datatypes.LoopCapped) {
		verdict.Warnings = append(verdict.Warnings, "Agent reached max iterations without finishing")
		verdict.Confidence *= 0.8
	}

	state.OutputValidation = &verdict
	state.Data["output_validation"] = verdict
	state.AppendTimeline(datatypes.PhaseOutputValidation,
		fmt.Sprintf("Output validated (confidence %.2f)", verdict.Confidence),
		[]string{"output_validation"})
}

// fallbackOutputValidation derives a verdict from the tool success rate
// when the model cannot judge the results.
func fallbackOutputValidation(state *datatypes.AgentState) datatypes.OutputValidation {
	total := len(state.ToolResults)
	if total == 0 {
		return datatypes.OutputValidation{IsComplete: true, IsAccurate: true, IsSafe: true, Confidence: 1.0}
	}
	successful := 0
	for _, result := range state.ToolResults {
		if result.Success {
			successful++
		}
	}
	confidence := float64(successful) / float64(total)
	return datatypes.OutputValidation{
		IsComplete: successful == total,
		IsAccurate: true,
		IsSafe:     true,
		Confidence: confidence,
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// completeJSON runs a completion and decodes the response into out,
// tolerating markdown code fences around the JSON body.
func (e *Engine) completeJSON(ctx context.Context, build func() ([]llm.Message, error), out any) error {
	messages, err := build()
	if err != nil {
		return err
	}
	raw, err := e.client.Complete(ctx, messages, e.PhaseParams)
	if err != nil {
		return err
	}
	body := extractJSON(raw)
	if body == "" {
		return fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

// extractJSON strips markdown code fences and isolates the outermost
// JSON object of a model response.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// compactJSON renders a value as one-line JSON for observations.
func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
