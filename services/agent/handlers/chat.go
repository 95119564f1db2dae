// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/observability"
)

// HandleChat serves POST /v1/chat.
//
// # Description
//
// Runs one full agent turn synchronously and returns the final answer
// with the reasoning steps, timeline, and data in a single JSON body.
// Same pipeline as the streaming endpoint; the answer is simply buffered
// instead of streamed.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	tracer := otel.Tracer("plantpulse/agent/handlers")
	ctx, span := tracer.Start(c.Request.Context(), "chat.sync")
	defer span.End()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordError(observability.EndpointChatSync, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		h.metrics.RecordError(observability.EndpointChatSync, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threadID := resolveThread(&req)
	span.SetAttributes(attribute.String("thread.id", threadID))

	unlock := h.store.LockThread(threadID)
	defer unlock()

	start := time.Now()
	state, memoryContext := h.runTurn(ctx, &req, threadID)

	answer, err := h.engine.Synthesize(ctx, state, memoryContext, func(string) error { return nil })
	success := err == nil
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		h.metrics.RecordError(observability.EndpointChatSync, observability.ErrorCodeLLMError)
		answer = fmt.Sprintf("Unable to generate response: %v", err)
		state.FinalResponse = answer
	}

	h.persistTurn(context.WithoutCancel(ctx), threadID, state.Question, answer)
	h.metrics.RecordRequest(observability.EndpointChatSync, success)
	h.metrics.RecordStreamDuration(observability.EndpointChatSync, time.Since(start).Seconds(), success)

	c.Header("X-Conversation-Id", threadID)
	c.JSON(http.StatusOK, datatypes.ChatResponse{
		MessageID: datatypes.NewMessageID(),
		Content:   answer,
		Steps:     state.Steps,
		Timeline:  state.Timeline,
		Data:      state.Data,
	})
}
