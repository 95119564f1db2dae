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
	"github.com/gorilla/websocket"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/observability"
)

// wsUpgrader upgrades chat connections. Origin checking is delegated to
// the auth middleware in front of the route.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsWriter adapts a WebSocket connection to the StreamWriter contract so
// the turn logic is shared with the SSE path. Events go out as JSON text
// frames; the done marker is a text frame containing "[DONE]".
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) WriteEvent(event datatypes.StreamEvent) error {
	return w.conn.WriteJSON(event)
}

func (w *wsWriter) WriteDone() error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(datatypes.StreamDoneMarker))
}

func (w *wsWriter) WriteKeepAlive() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

var _ StreamWriter = (*wsWriter)(nil)

// HandleChatWS serves GET /v1/chat/ws.
//
// # Description
//
// Upgrades to WebSocket and serves chat turns over it: each client text
// frame is a ChatRequest, each turn is answered with the same event
// sequence as the SSE endpoint, delivered as JSON frames. The connection
// stays open for follow-up turns until the client closes it.
func (h *ChatHandler) HandleChatWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.metrics.RecordError(observability.EndpointChatWS, observability.ErrorCodeInternal)
		return
	}
	defer conn.Close()

	h.metrics.StreamStarted(observability.EndpointChatWS)
	defer h.metrics.StreamEnded(observability.EndpointChatWS)

	for {
		var req datatypes.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "error", err)
				h.metrics.RecordClientDisconnect(observability.EndpointChatWS)
			}
			return
		}
		if err := req.Validate(); err != nil {
			h.metrics.RecordError(observability.EndpointChatWS, observability.ErrorCodeValidation)
			_ = conn.WriteJSON(datatypes.StreamEvent{Type: datatypes.EventError, ErrorText: err.Error()})
			continue
		}
		h.serveWSTurn(c.Request.Context(), &wsWriter{conn: conn}, &req)
	}
}

// serveWSTurn runs one turn over an established connection.
func (h *ChatHandler) serveWSTurn(ctx context.Context, writer StreamWriter, req *datatypes.ChatRequest) {
	threadID := resolveThread(req)
	unlock := h.store.LockThread(threadID)
	defer unlock()

	start := time.Now()
	messageID := datatypes.NewMessageID()
	textID := datatypes.NewTextID()

	if err := writer.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventStart, MessageID: messageID}); err != nil {
		return
	}

	state, memoryContext := h.runTurn(ctx, req, threadID)

	if err := writer.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventTextStart, MessageID: messageID, ID: textID}); err != nil {
		return
	}
	for _, event := range timelineEvents(messageID, state) {
		if err := writer.WriteEvent(event); err != nil {
			return
		}
	}

	answer, synthErr := h.engine.Synthesize(ctx, state, memoryContext, func(token string) error {
		return writer.WriteEvent(datatypes.StreamEvent{
			Type:      datatypes.EventTextDelta,
			MessageID: messageID,
			ID:        textID,
			Delta:     token,
		})
	})
	success := synthErr == nil
	if synthErr != nil {
		if ctx.Err() != nil {
			h.metrics.RecordClientDisconnect(observability.EndpointChatWS)
			h.metrics.RecordError(observability.EndpointChatWS, observability.ErrorCodeClientDisconnect)
			h.persistPartialTurn(context.WithoutCancel(ctx), threadID, state.Question, answer)
			return
		}
		h.metrics.RecordError(observability.EndpointChatWS, observability.ErrorCodeLLMError)
		answer = fmt.Sprintf("Unable to generate response: %v", synthErr)
		state.FinalResponse = answer
		_ = writer.WriteEvent(datatypes.StreamEvent{
			Type:      datatypes.EventTextDelta,
			MessageID: messageID,
			ID:        textID,
			Delta:     answer,
		})
	}

	_ = writer.WriteEvent(datatypes.StreamEvent{Type: datatypes.EventTextEnd, MessageID: messageID, ID: textID})
	_ = writer.WriteEvent(datatypes.StreamEvent{
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
	_ = writer.WriteDone()

	h.persistTurn(context.WithoutCancel(ctx), threadID, state.Question, answer)
	h.metrics.RecordRequest(observability.EndpointChatWS, success)
	h.metrics.RecordStreamDuration(observability.EndpointChatWS, time.Since(start).Seconds(), success)
}
