// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"context"
	"strings"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
)

// emptyAnswerFallback is streamed when the model produces nothing.
const emptyAnswerFallback = "Happy to help. Could you share a bit more detail?"

// =============================================================================
// Phase 6: Synthesis
// =============================================================================

// Synthesize streams the final answer token by token through onToken and
// returns the full text. This is the only phase whose failure is fatal
// to a turn: handlers wrap the returned error into the user-visible
// "Unable to generate response" message.
//
// On a stream error the tokens already delivered are returned alongside
// the error so a cancelled turn can still persist its partial answer.
//
// An empty model response is not an error; the fallback text is streamed
// instead so the client always receives content.
func (e *Engine) Synthesize(ctx context.Context, state *datatypes.AgentState, memoryContext string, onToken func(string) error) (string, error) {
	messages, err := e.builder.Synthesis(state, memoryContext)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	err = e.client.Stream(ctx, messages, e.SynthesisParams, func(token string) error {
		buf.WriteString(token)
		return onToken(token)
	})
	if err != nil {
		return buf.String(), err
	}

	answer := buf.String()
	if strings.TrimSpace(answer) == "" {
		answer = emptyAnswerFallback
		if err := onToken(answer); err != nil {
			return buf.String(), err
		}
	}

	state.FinalResponse = answer
	state.AppendTimeline(datatypes.PhaseSynthesis, "Response synthesized", nil)
	return answer, nil
}
