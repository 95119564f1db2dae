// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/llm"
	"github.com/plantpulse-ai/plantpulse/services/agent/memory"
	"github.com/plantpulse-ai/plantpulse/services/agent/observability"
	"github.com/plantpulse-ai/plantpulse/services/agent/prompts"
	"github.com/plantpulse-ai/plantpulse/services/agent/reasoning"
	"github.com/plantpulse-ai/plantpulse/services/agent/simulator"
	"github.com/plantpulse-ai/plantpulse/services/agent/tools"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// stubClient replays scripted completions and stream tokens.
type stubClient struct {
	completions []string
	calls       int
	tokens      []string
	streamErr   error
}

func (c *stubClient) Complete(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	if len(c.completions) == 0 {
		return "", errors.New("no scripted completion")
	}
	i := c.calls
	if i >= len(c.completions) {
		i = len(c.completions) - 1
	}
	c.calls++
	return c.completions[i], nil
}

func (c *stubClient) Stream(ctx context.Context, messages []llm.Message, params llm.Params, onToken func(string) error) error {
	if c.streamErr != nil {
		return c.streamErr
	}
	for _, token := range c.tokens {
		if err := onToken(token); err != nil {
			return err
		}
	}
	return nil
}

var _ llm.Client = (*stubClient)(nil)

// directTurnScript drives a turn that needs no tools.
var directTurnScript = []string{
	`{"status":"valid","is_safe":true,"is_clear":true,"is_relevant":true,"reason":"ok"}`,
	`{"primary_intent":"greeting","requires_live_data":false,"confidence":0.95,"summary":"greeting"}`,
	`{"tool_plan":[],"execution_strategy":"sequential"}`,
}

type fixture struct {
	handler *ChatHandler
	store   *memory.Store
	router  *gin.Engine
}

func newFixture(t *testing.T, client llm.Client) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub, err := prompts.NewHub("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { hub.Close() })
	builder := prompts.NewBuilder(hub)

	store, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"), memory.DefaultSummarizeInterval)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	invoker := tools.NewInvoker(simulator.NewWithSeed(1), nil)
	engine := reasoning.NewEngine(client, invoker, builder, nil)
	metrics := observability.NewAgentMetrics(prometheus.NewRegistry())
	handler := NewChatHandler(engine, store, builder, client, metrics, nil)

	router := gin.New()
	router.POST("/v1/chat", handler.HandleChat)
	router.POST("/v1/chat/stream", handler.HandleChatStream)
	return &fixture{handler: handler, store: store, router: router}
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// parseSSE returns the decoded events plus whether [DONE] terminated the
// stream.
func parseSSE(t *testing.T, body string) ([]datatypes.StreamEvent, bool) {
	t.Helper()
	var events []datatypes.StreamEvent
	done := false
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == datatypes.StreamDoneMarker {
			done = true
			continue
		}
		var event datatypes.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event), "bad event payload: %s", payload)
		events = append(events, event)
	}
	return events, done
}

func chatBody(question string) map[string]any {
	return map[string]any{
		"messages": []map[string]any{{"role": "user", "content": question}},
	}
}

// =============================================================================
// Streaming Tests
// =============================================================================

func TestHandleChatStream_EventOrder(t *testing.T) {
	client := &stubClient{completions: directTurnScript, tokens: []string{"Hello", " there"}}
	fx := newFixture(t, client)

	rec := postJSON(t, fx.router, "/v1/chat/stream", chatBody("hi"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events, done := parseSSE(t, rec.Body.String())
	require.True(t, done, "stream must end with [DONE]")

	var types []string
	for _, event := range events {
		types = append(types, event.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, datatypes.EventStart, types[0])
	assert.Equal(t, datatypes.EventTextStart, types[1])
	assert.Equal(t, datatypes.EventFinish, types[len(types)-1])
	assert.Equal(t, datatypes.EventTextEnd, types[len(types)-2])

	// Deltas reassemble into the full answer, in order.
	var answer strings.Builder
	for _, event := range events {
		if event.Type == datatypes.EventTextDelta {
			answer.WriteString(event.Delta)
		}
	}
	assert.Equal(t, "Hello there", answer.String())

	// All tool-call events appear between text-start and the first delta.
	firstDelta := -1
	lastToolCall := -1
	for i, event := range events {
		if event.Type == datatypes.EventTextDelta && firstDelta < 0 {
			firstDelta = i
		}
		if event.Type == datatypes.EventToolCall {
			lastToolCall = i
		}
	}
	require.GreaterOrEqual(t, lastToolCall, 0, "timeline must surface tool-call events")
	assert.Less(t, lastToolCall, firstDelta)

	finish := events[len(events)-1]
	require.NotNil(t, finish.Metadata)
	assert.Equal(t, datatypes.FinishReasonStop, finish.FinishReason)
	assert.Equal(t, "hi", finish.Metadata.Question)
	assert.NotEmpty(t, finish.Metadata.Steps)
	assert.Len(t, finish.Metadata.Timeline, len(finish.Metadata.Steps))
}

func TestHandleChatStream_ToolCallIDsAreStepNumbers(t *testing.T) {
	client := &stubClient{completions: directTurnScript, tokens: []string{"hi"}}
	fx := newFixture(t, client)

	rec := postJSON(t, fx.router, "/v1/chat/stream", chatBody("hello"))
	events, _ := parseSSE(t, rec.Body.String())

	for _, event := range events {
		if event.Type != datatypes.EventToolCall {
			continue
		}
		assert.True(t, strings.HasPrefix(event.ToolCallID, "step-"), event.ToolCallID)
		assert.NotEmpty(t, event.ToolName)
		assert.Contains(t, event.Args, "message")
	}
}

func TestHandleChatStream_RejectedInputSkipsPhases(t *testing.T) {
	client := &stubClient{
		completions: []string{
			`{"status":"off_topic","is_safe":true,"is_clear":true,"is_relevant":false,"reason":"not production"}`,
		},
		tokens: []string{"I can only help with the production line."},
	}
	fx := newFixture(t, client)

	rec := postJSON(t, fx.router, "/v1/chat/stream", chatBody("write me a poem"))
	events, done := parseSSE(t, rec.Body.String())
	require.True(t, done)

	// A rejected turn exposes only the verdict and the rejection answer,
	// on the wire and in the finish metadata alike.
	finish := events[len(events)-1]
	require.NotNil(t, finish.Metadata)
	require.Len(t, finish.Metadata.Timeline, 2)
	assert.Equal(t, "input_validation", finish.Metadata.Timeline[0].Phase)
	assert.Equal(t, "synthesis", finish.Metadata.Timeline[1].Phase)
	assert.NotContains(t, finish.Metadata.Data, "output_validation")

	var toolCalls int
	for _, event := range events {
		if event.Type == datatypes.EventToolCall {
			toolCalls++
			msg, _ := event.Args["message"].(string)
			assert.NotContains(t, msg, "skipped")
		}
	}
	assert.Equal(t, 1, toolCalls, "only the validation verdict is surfaced")
}

func TestHandleChatStream_SynthesisFailureStreamsFallback(t *testing.T) {
	client := &stubClient{completions: directTurnScript, streamErr: errors.New("model offline")}
	fx := newFixture(t, client)

	rec := postJSON(t, fx.router, "/v1/chat/stream", chatBody("hi"))
	events, done := parseSSE(t, rec.Body.String())
	require.True(t, done, "failed synthesis still terminates the stream cleanly")

	var answer strings.Builder
	for _, event := range events {
		if event.Type == datatypes.EventTextDelta {
			answer.WriteString(event.Delta)
		}
	}
	assert.Contains(t, answer.String(), "Unable to generate response:")
	assert.Contains(t, answer.String(), "model offline")
}

// disconnectingClient delivers part of the answer, then severs the
// request context the way a closed client connection does.
type disconnectingClient struct {
	stubClient
	cancel context.CancelFunc
}

func (c *disconnectingClient) Stream(ctx context.Context, messages []llm.Message, params llm.Params, onToken func(string) error) error {
	if err := onToken("ST001 is running at"); err != nil {
		return err
	}
	c.cancel()
	return context.Canceled
}

func TestHandleChatStream_CancelledMidStreamPersistsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &disconnectingClient{
		stubClient: stubClient{completions: directTurnScript},
		cancel:     cancel,
	}
	fx := newFixture(t, client)

	body := chatBody("is ST001 running?")
	body["conversation_id"] = "thread-cancel-1"
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", bytes.NewReader(raw)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	// The stream stops without a finish frame or [DONE].
	events, done := parseSSE(t, rec.Body.String())
	assert.False(t, done, "aborted stream must not emit [DONE]")
	for _, event := range events {
		assert.NotEqual(t, datatypes.EventFinish, event.Type)
	}

	// The partial answer survives in the thread, flagged incomplete.
	msgs, err := fx.store.Recent(context.Background(), "thread-cancel-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "is ST001 running?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "ST001 is running at", msgs[1].Content)
	assert.Contains(t, msgs[1].Metadata, "incomplete")
}

func TestHandleChatStream_RejectsInvalidBody(t *testing.T) {
	fx := newFixture(t, &stubClient{completions: directTurnScript})

	rec := postJSON(t, fx.router, "/v1/chat/stream", map[string]any{"messages": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, fx.router, "/v1/chat/stream", map[string]any{
		"messages":       []map[string]any{{"role": "user", "content": "hi"}},
		"max_iterations": 50,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatStream_PersistsTurn(t *testing.T) {
	client := &stubClient{completions: directTurnScript, tokens: []string{"Hello!"}}
	fx := newFixture(t, client)

	body := chatBody("hi")
	body["conversation_id"] = "thread-test-1"
	rec := postJSON(t, fx.router, "/v1/chat/stream", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thread-test-1", rec.Header().Get("X-Conversation-Id"))

	msgs, err := fx.store.Recent(context.Background(), "thread-test-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Hello!", msgs[1].Content)
}

// =============================================================================
// Synchronous Endpoint Tests
// =============================================================================

func TestHandleChat_ReturnsAnswerAndTrace(t *testing.T) {
	client := &stubClient{completions: directTurnScript, tokens: []string{"Hello", "!"}}
	fx := newFixture(t, client)

	rec := postJSON(t, fx.router, "/v1/chat", chatBody("hi"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hello!", resp.Content)
	assert.True(t, strings.HasPrefix(resp.MessageID, "msg-"))
	assert.NotEmpty(t, resp.Steps)
	assert.Len(t, resp.Timeline, len(resp.Steps))
}

func TestHandleChat_UsesLastUserMessage(t *testing.T) {
	client := &stubClient{completions: directTurnScript, tokens: []string{"ok"}}
	fx := newFixture(t, client)

	rec := postJSON(t, fx.router, "/v1/chat", map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": "first question"},
			{"role": "assistant", "content": "first answer"},
			{"role": "user", "content": "second question"},
		},
		"conversation_id": "thread-test-2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := fx.store.Recent(context.Background(), "thread-test-2", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second question", msgs[0].Content)
}
