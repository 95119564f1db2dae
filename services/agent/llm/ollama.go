// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ollamaClient runs against a local Ollama server.
type ollamaClient struct {
	llm          *ollama.LLM
	defaultModel string
}

// NewOllama creates a Client for a local Ollama server. serverURL may be
// empty for the default http://localhost:11434.
func NewOllama(serverURL, model string) (Client, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &ollamaClient{llm: client, defaultModel: model}, nil
}

func convertMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func (c *ollamaClient) callOptions(params Params) []llms.CallOption {
	var opts []llms.CallOption
	if params.Model != "" {
		opts = append(opts, llms.WithModel(params.Model))
	}
	if params.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(params.Temperature))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	return opts
}

func (c *ollamaClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, convertMessages(messages), c.callOptions(params)...)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama generate: empty choices")
	}
	return resp.Choices[0].Content, nil
}

func (c *ollamaClient) Stream(ctx context.Context, messages []Message, params Params, onToken func(string) error) error {
	opts := c.callOptions(params)
	opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return onToken(string(chunk))
	}))

	if _, err := c.llm.GenerateContent(ctx, convertMessages(messages), opts...); err != nil {
		return fmt.Errorf("ollama stream: %w", err)
	}
	return nil
}

var _ Client = (*ollamaClient)(nil)
