// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// openAIClient speaks to OpenAI or any API-compatible server (vLLM,
// llama.cpp, LM Studio) via the chat completions endpoint.
type openAIClient struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAI creates a Client for an OpenAI-compatible backend. baseURL
// may be empty for the hosted API; model is the default used when
// Params.Model is empty.
func NewOpenAI(apiKey, baseURL, model string) Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIClient{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: model,
	}
}

func (c *openAIClient) request(messages []Message, params Params) openai.ChatCompletionRequest {
	model := params.Model
	if model == "" {
		model = c.defaultModel
	}
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    converted,
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxTokens,
	}
}

func (c *openAIClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, params))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) Stream(ctx context.Context, messages []Message, params Params, onToken func(string) error) error {
	req := c.request(messages, params)
	req.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read completion stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onToken(delta); err != nil {
				return err
			}
		}
	}
}

var _ Client = (*openAIClient)(nil)
