// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/observability"
)

// HandleChatStream serves POST /v1/chat/stream.
//
// # Description
//
// Runs one full agent turn and streams it as SSE data frames in protocol
// order: start, text-start, one tool-call per surfaced reasoning step,
// text-delta per synthesis token, text-end, finish (with steps, timeline,
// data, and the question in its metadata), then the [DONE] marker.
//
// A heartbeat goroutine emits comment pings while the reasoning phases
// run so load balancers do not cut the connection before the first token.
//
// # Limitations
//
//   - Once streaming has begun, errors are reported in-band; the HTTP
//     status is already 200.
func (h *ChatHandler) HandleChatStream(c *gin.Context) {
	tracer := otel.Tracer("plantpulse/agent/handlers")
	ctx, span := tracer.Start(c.Request.Context(), "chat.stream")
	defer span.End()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	SetSSEHeaders(c.Writer)
	writer, err := NewStreamWriter(c.Writer)
	if err != nil {
		h.metrics.RecordError(observability.EndpointChatStream, observability.ErrorCodeInternal)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	h.metrics.StreamStarted(observability.EndpointChatStream)
	defer h.metrics.StreamEnded(observability.EndpointChatStream)

	threadID := resolveThread(&req)
	span.SetAttributes(attribute.String("thread.id", threadID))
	c.Header("X-Conversation-Id", threadID)

	unlock := h.store.LockThread(threadID)
	defer unlock()

	// Keepalive pings until the turn completes.
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatDone:
				return
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
				h.metrics.RecordKeepAlive(observability.EndpointChatStream)
			}
		}
	}()

	start := time.Now()
	messageID := datatypes.NewMessageID()
	textID := datatypes.NewTextID()

	emit := func(event datatypes.StreamEvent) bool {
		if err := writer.WriteEvent(event); err != nil {
			h.logger.Warn("stream write failed", "thread", threadID, "error", err)
			return false
		}
		return true
	}

	if !emit(datatypes.StreamEvent{Type: datatypes.EventStart, MessageID: messageID}) {
		return
	}

	state, memoryContext := h.runTurn(ctx, &req, threadID)

	if ctx.Err() != nil {
		h.handleStreamAbort(ctx, span, observability.EndpointChatStream)
		return
	}

	if !emit(datatypes.StreamEvent{Type: datatypes.EventTextStart, MessageID: messageID, ID: textID}) {
		return
	}
	for _, event := range timelineEvents(messageID, state) {
		if !emit(event) {
			return
		}
	}

	firstToken := true
	answer, synthErr := h.engine.Synthesize(ctx, state, memoryContext, func(token string) error {
		if firstToken {
			firstToken = false
			h.metrics.RecordTimeToFirstToken(observability.EndpointChatStream, time.Since(start).Seconds())
		}
		if err := writer.WriteEvent(datatypes.StreamEvent{
			Type:      datatypes.EventTextDelta,
			MessageID: messageID,
			ID:        textID,
			Delta:     token,
		}); err != nil {
			return err
		}
		return nil
	})

	success := synthErr == nil
	if synthErr != nil {
		if ctx.Err() != nil {
			h.handleStreamAbort(ctx, span, observability.EndpointChatStream)
			// answer holds whatever tokens reached the client; keep them
			// so the thread record is not silently truncated.
			h.persistPartialTurn(context.WithoutCancel(ctx), threadID, state.Question, answer)
			return
		}
		// Synthesis failure is the one fatal phase; the message itself
		// becomes the answer so the client is never left empty-handed.
		span.RecordError(synthErr)
		span.SetStatus(codes.Error, "synthesis failed")
		h.metrics.RecordError(observability.EndpointChatStream, observability.ErrorCodeLLMError)
		answer = fmt.Sprintf("Unable to generate response: %v", synthErr)
		state.FinalResponse = answer
		emit(datatypes.StreamEvent{
			Type:      datatypes.EventTextDelta,
			MessageID: messageID,
			ID:        textID,
			Delta:     answer,
		})
	}

	emit(datatypes.StreamEvent{Type: datatypes.EventTextEnd, MessageID: messageID, ID: textID})
	emit(datatypes.StreamEvent{
		Type:         datatypes.EventFinish,
		MessageID:    messageID,
		FinishReason: datatypes.FinishReasonStop,
		Metadata: &datatypes.FinishMetadata{
			Steps:    state.Steps,
			Timeline: state.Timeline,
			Data:     state.Data,
			Question: state.Question,
		},
	})
	if err := writer.WriteDone(); err != nil {
		h.logger.Warn("write done marker failed", "thread", threadID, "error", err)
	}

	h.persistTurn(context.WithoutCancel(ctx), threadID, state.Question, answer)
	h.metrics.RecordRequest(observability.EndpointChatStream, success)
	h.metrics.RecordStreamDuration(observability.EndpointChatStream, time.Since(start).Seconds(), success)
}

// handleStreamAbort records a client disconnect or deadline without
// writing further frames.
func (h *ChatHandler) handleStreamAbort(ctx context.Context, span trace.Span, endpoint observability.Endpoint) {
	if errors.Is(ctx.Err(), context.Canceled) {
		h.metrics.RecordClientDisconnect(endpoint)
		h.metrics.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
		span.SetStatus(codes.Error, "client disconnected")
		return
	}
	h.metrics.RecordError(endpoint, observability.ErrorCodeTimeout)
	span.SetStatus(codes.Error, "deadline exceeded")
}
