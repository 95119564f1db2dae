// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/llm"
)

// actionFinish is the ReAct action that terminates the loop with an answer.
const actionFinish = "finish"

// reactResponse is the JSON shape of one reasoning-loop step.
type reactResponse struct {
	Thought     string         `json:"thought"`
	Action      string         `json:"action"`
	ActionInput map[string]any `json:"action_input"`
}

// =============================================================================
// ReAct Loop
// =============================================================================

// runReactLoop drives Thought/Action/Observation cycles until the model
// emits a finish action or the iteration budget runs out. Hitting the
// cap is a normal outcome; output validation lowers confidence for it,
// the loop itself records no error.
func (e *Engine) runReactLoop(ctx context.Context, state *datatypes.AgentState) datatypes.LoopStatus {
	catalog := e.invoker.Catalog()
	status := datatypes.LoopIterating

	for state.ReactIteration < state.ReactMaxIterations {
		state.ReactIteration++

		var resp reactResponse
		err := e.completeJSON(ctx, func() ([]llm.Message, error) {
			return e.builder.React(state.Question, state.ReactScratchpad)
		}, &resp)
		if err != nil {
			// A lost step still consumes an iteration; the observation
			// tells the model what happened on the next pass.
			e.logger.Warn("reasoning step unavailable", "iteration", state.ReactIteration, "error", err)
			e.appendReactStep(state, datatypes.ReActStep{
				Iteration:   state.ReactIteration,
				Thought:     "",
				Action:      "",
				Observation: "Error: could not parse reasoning step",
			})
			continue
		}

		step := datatypes.ReActStep{
			Iteration:   state.ReactIteration,
			Thought:     resp.Thought,
			Action:      resp.Action,
			ActionInput: resp.ActionInput,
		}

		if resp.Action == actionFinish {
			answer, _ := resp.ActionInput["answer"].(string)
			step.Observation = "Final Answer: " + answer
			e.appendReactStep(state, step)
			state.Data["react_answer"] = answer
			status = datatypes.LoopFinished
			break
		}

		switch {
		case !catalog.Has(resp.Action):
			step.Observation = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %s",
				resp.Action, catalog.NamesString())
			state.AddToolError(step.Observation)
		default:
			if _, verr := catalog.ValidateArgs(resp.Action, resp.ActionInput); verr != nil {
				step.Observation = fmt.Sprintf("Error: Invalid arguments for %s: %v", resp.Action, verr)
				state.AddToolError(step.Observation)
				break
			}
			result := e.invoker.Invoke(ctx, resp.Action, resp.ActionInput)
			state.ToolResults[result.ToolName] = result
			if result.Success {
				step.Observation = compactJSON(result.Data)
				state.Observations = append(state.Observations, result.ToolName+": "+step.Observation)
			} else {
				msg := result.ToolName + ": Error - " + result.Error
				step.Observation = msg
				state.Observations = append(state.Observations, msg)
				state.AddToolError(msg)
			}
		}

		e.appendReactStep(state, step)
	}

	if status == datatypes.LoopIterating {
		status = datatypes.LoopCapped
	}
	state.Data["react_status"] = string(status)
	state.Data["react_steps"] = state.ReactSteps
	state.AppendTimeline(datatypes.PhaseReact,
		fmt.Sprintf("Reasoning loop %s after %d iteration(s)", status, state.ReactIteration),
		[]string{"react_steps"})
	return status
}

// appendReactStep stores a loop step and extends the scratchpad the next
// prompt will see.
func (e *Engine) appendReactStep(state *datatypes.AgentState, step datatypes.ReActStep) {
	state.ReactSteps = append(state.ReactSteps, step)

	var b strings.Builder
	if state.ReactScratchpad != "" {
		b.WriteString(state.ReactScratchpad)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Thought: %s\n", step.Thought)
	fmt.Fprintf(&b, "Action: %s", step.Action)
	if len(step.ActionInput) > 0 {
		fmt.Fprintf(&b, " %s", compactJSON(step.ActionInput))
	}
	fmt.Fprintf(&b, "\nObservation: %s", step.Observation)
	state.ReactScratchpad = b.String()
}
