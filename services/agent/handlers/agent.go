// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the agent: synchronous
// chat, SSE streaming chat, WebSocket chat, and the supporting endpoints.
package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/llm"
	"github.com/plantpulse-ai/plantpulse/services/agent/memory"
	"github.com/plantpulse-ai/plantpulse/services/agent/observability"
	"github.com/plantpulse-ai/plantpulse/services/agent/prompts"
	"github.com/plantpulse-ai/plantpulse/services/agent/reasoning"
)

const (
	// heartbeatInterval keeps SSE connections alive through load balancer
	// idle timeouts (60s for ALB/Nginx defaults).
	heartbeatInterval = 15 * time.Second

	// memoryContextTurns is how many recent turns feed prompt context.
	memoryContextTurns = 10

	// summaryMaxTokens bounds the rolling summary completion.
	summaryMaxTokens = 320
)

// =============================================================================
// Struct Definition
// =============================================================================

// ChatHandler serves the chat endpoints. One instance is shared across
// all requests; per-turn state lives in AgentState.
type ChatHandler struct {
	engine  *reasoning.Engine
	store   *memory.Store
	builder *prompts.Builder
	client  llm.Client
	metrics *observability.AgentMetrics
	logger  *slog.Logger
}

// =============================================================================
// Constructor
// =============================================================================

// NewChatHandler creates the chat handler. Panics on nil engine, store,
// builder, or client; wiring happens once at service start. A nil metrics
// gets an unexported registry, which tests use to avoid collisions.
func NewChatHandler(engine *reasoning.Engine, store *memory.Store, builder *prompts.Builder, client llm.Client, metrics *observability.AgentMetrics, logger *slog.Logger) *ChatHandler {
	if engine == nil {
		panic("handlers: engine is required")
	}
	if store == nil {
		panic("handlers: memory store is required")
	}
	if builder == nil {
		panic("handlers: prompt builder is required")
	}
	if client == nil {
		panic("handlers: llm client is required")
	}
	if metrics == nil {
		metrics = observability.NewAgentMetrics(prometheus.NewRegistry())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		engine:  engine,
		store:   store,
		builder: builder,
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

// =============================================================================
// Turn Execution
// =============================================================================

// runTurn executes phases 1-5 for one request under the thread lock and
// returns the state plus the memory context used. The caller streams or
// returns synthesis and then calls persistTurn while still holding the
// lock.
func (h *ChatHandler) runTurn(ctx context.Context, req *datatypes.ChatRequest, threadID string) (*datatypes.AgentState, string) {
	memoryContext := ""
	if memCtx, err := h.store.Context(ctx, threadID, memoryContextTurns); err != nil {
		// Memory is additive context; a read failure must not fail the turn.
		h.logger.Warn("memory context unavailable", "thread", threadID, "error", err)
	} else {
		memoryContext = memory.FormatContext(memCtx)
	}

	state := datatypes.NewState(req.Question(), threadID)
	if req.MaxIterations > 0 {
		state.ReactMaxIterations = req.MaxIterations
	}

	start := time.Now()
	h.engine.Run(ctx, state, memoryContext)
	h.recordTurnMetrics(state, time.Since(start))
	return state, memoryContext
}

// recordTurnMetrics translates the finished state into counters.
func (h *ChatHandler) recordTurnMetrics(state *datatypes.AgentState, elapsed time.Duration) {
	h.metrics.RecordPhase("pipeline", elapsed.Seconds())
	for name, result := range state.ToolResults {
		h.metrics.RecordToolCall(name, result.Success)
	}
	if status, ok := state.Data["react_status"].(string); ok {
		h.metrics.RecordReactIterations(status, state.ReactIteration)
	}
}

// persistTurn stores the exchange and refreshes the rolling summary when
// the thread crosses a summary boundary. Persistence failures are logged,
// never surfaced: the client already has its answer.
func (h *ChatHandler) persistTurn(ctx context.Context, threadID, question, answer string) {
	if err := h.store.AddMessage(ctx, threadID, "user", question, nil); err != nil {
		h.logger.Warn("persist user turn failed", "thread", threadID, "error", err)
		return
	}
	if err := h.store.AddMessage(ctx, threadID, "assistant", answer, nil); err != nil {
		h.logger.Warn("persist assistant turn failed", "thread", threadID, "error", err)
		return
	}

	should, err := h.store.ShouldSummarize(ctx, threadID)
	if err != nil || !should {
		return
	}
	h.refreshSummary(ctx, threadID)
}

// persistPartialTurn stores a cancelled turn's partial answer so the
// thread record stays coherent across the disconnect. The assistant
// message is flagged incomplete; nothing is stored when no tokens had
// been delivered, and a cancelled turn never triggers a summary refresh.
func (h *ChatHandler) persistPartialTurn(ctx context.Context, threadID, question, partial string) {
	if strings.TrimSpace(partial) == "" {
		return
	}
	if err := h.store.AddMessage(ctx, threadID, "user", question, nil); err != nil {
		h.logger.Warn("persist user turn failed", "thread", threadID, "error", err)
		return
	}
	meta := map[string]any{"incomplete": true}
	if err := h.store.AddMessage(ctx, threadID, "assistant", partial, meta); err != nil {
		h.logger.Warn("persist partial answer failed", "thread", threadID, "error", err)
	}
}

// refreshSummary folds the recent turns into the rolling summary.
func (h *ChatHandler) refreshSummary(ctx context.Context, threadID string) {
	current, err := h.store.Summary(ctx, threadID)
	if err != nil {
		h.logger.Warn("load summary failed", "thread", threadID, "error", err)
		return
	}
	recent, err := h.store.Recent(ctx, threadID, memory.DefaultSummarizeInterval)
	if err != nil {
		h.logger.Warn("load recent turns failed", "thread", threadID, "error", err)
		return
	}

	messages, err := h.builder.Summary(current, recent)
	if err != nil {
		h.logger.Warn("build summary prompt failed", "thread", threadID, "error", err)
		return
	}
	summary, err := h.client.Complete(ctx, messages, llm.Params{Temperature: 0.2, MaxTokens: summaryMaxTokens})
	if err != nil {
		h.logger.Warn("summary completion failed", "thread", threadID, "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}
	if err := h.store.SetSummary(ctx, threadID, summary); err != nil {
		h.logger.Warn("store summary failed", "thread", threadID, "error", err)
		return
	}
	h.logger.Info("conversation summarized", "thread", threadID)
}

// resolveThread returns the request's conversation id, minting a new
// thread id for first turns.
func resolveThread(req *datatypes.ChatRequest) string {
	if req.ConversationID != "" {
		return req.ConversationID
	}
	return datatypes.NewThreadID()
}

// timelineEvents maps reasoning steps onto tool-call events in timeline
// order. Entries for skipped phases are not surfaced; clients only see
// work that actually happened.
func timelineEvents(messageID string, state *datatypes.AgentState) []datatypes.StreamEvent {
	events := make([]datatypes.StreamEvent, 0, len(state.Timeline))
	step := 0
	for _, entry := range state.Timeline {
		step++
		if strings.Contains(entry.Message, "skipped") {
			continue
		}
		events = append(events, datatypes.StreamEvent{
			Type:       datatypes.EventToolCall,
			MessageID:  messageID,
			ToolCallID: "step-" + strconv.Itoa(step),
			ToolName:   entry.Phase,
			Args: map[string]any{
				"message":   entry.Message,
				"timestamp": entry.Timestamp,
			},
		})
	}
	return events
}
