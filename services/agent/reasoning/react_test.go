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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
)

func TestReactLoop_ToolThenFinish(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{text: validVerdict},
		{text: liveIntent},
		{text: emptyPlan},
		{text: `{"thought":"check the station","action":"get_station_status","action_input":{"station_id":"ST001"}}`},
		{text: `{"thought":"I have the status","action":"finish","action_input":{"answer":"ST001 is running"}}`},
		{text: goodVerdict},
	}}
	e := newTestEngine(t, client)

	state := datatypes.NewState("is ST001 running?", "t1")
	e.Run(context.Background(), state, "")

	assert.Equal(t, string(datatypes.LoopFinished), state.Data["react_status"])
	assert.Equal(t, "ST001 is running", state.Data["react_answer"])
	require.Len(t, state.ReactSteps, 2)
	assert.Equal(t, 1, state.ReactSteps[0].Iteration)
	assert.Equal(t, "Final Answer: ST001 is running", state.ReactSteps[1].Observation)
	assert.Contains(t, state.ToolResults, "get_station_status")

	// The second prompt carries the first step in the scratchpad.
	assert.Contains(t, state.ReactScratchpad, "Thought: check the station")
	assert.Contains(t, state.ReactScratchpad, "Action: get_station_status")
	assert.Contains(t, state.ReactScratchpad, "Observation: {")
}

func TestReactLoop_CapIsNotAnError(t *testing.T) {
	// The script repeats its last step, so the loop never finishes.
	client := &scriptClient{steps: []scriptStep{
		{text: validVerdict},
		{text: liveIntent},
		{text: emptyPlan},
		{text: `{"thought":"look again","action":"get_production_metrics","action_input":{}}`},
	}}
	e := newTestEngine(t, client)

	state := datatypes.NewState("keep checking the line", "t1")
	state.ReactMaxIterations = 3
	e.Run(context.Background(), state, "")

	assert.Equal(t, string(datatypes.LoopCapped), state.Data["react_status"])
	assert.Equal(t, 3, state.ReactIteration)
	assert.Len(t, state.ReactSteps, 3)
	assert.Empty(t, state.Error, "hitting the cap must not set an error")

	// Output validation records the cap and discounts confidence.
	require.NotNil(t, state.OutputValidation)
	assert.Contains(t, state.OutputValidation.Warnings, "Agent reached max iterations without finishing")
	assert.InDelta(t, 0.95*0.8, state.OutputValidation.Confidence, 1e-9)
}

func TestReactLoop_UnknownTool(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{text: validVerdict},
		{text: liveIntent},
		{text: emptyPlan},
		{text: `{"thought":"try something","action":"teleport_station","action_input":{}}`},
		{text: `{"thought":"give up","action":"finish","action_input":{"answer":"no such capability"}}`},
		{text: goodVerdict},
	}}
	e := newTestEngine(t, client)

	state := datatypes.NewState("move ST001 to building 2", "t1")
	e.Run(context.Background(), state, "")

	require.Len(t, state.ReactSteps, 2)
	obs := state.ReactSteps[0].Observation
	assert.True(t, strings.HasPrefix(obs, "Error: Tool 'teleport_station' not found. Available tools: "), obs)
	assert.Contains(t, obs, "get_all_stations")
	assert.Empty(t, state.ToolResults, "unknown tool must not record a result")
}

func TestReactLoop_InvalidArguments(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{text: validVerdict},
		{text: liveIntent},
		{text: emptyPlan},
		{text: `{"thought":"check it","action":"get_station","action_input":{}}`},
		{text: `{"thought":"ask properly","action":"finish","action_input":{"answer":"need a station id"}}`},
		{text: goodVerdict},
	}}
	e := newTestEngine(t, client)

	state := datatypes.NewState("check the station", "t1")
	e.Run(context.Background(), state, "")

	require.Len(t, state.ReactSteps, 2)
	assert.True(t, strings.HasPrefix(state.ReactSteps[0].Observation, "Error: Invalid arguments for get_station:"),
		state.ReactSteps[0].Observation)
	assert.NotEmpty(t, state.ToolErrors())
}

func TestReactLoop_UnparsableStepConsumesIteration(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{text: validVerdict},
		{text: liveIntent},
		{text: emptyPlan},
		{text: "I think I should probably check the stations"},
		{text: `{"thought":"done","action":"finish","action_input":{"answer":"all good"}}`},
		{text: goodVerdict},
	}}
	e := newTestEngine(t, client)

	state := datatypes.NewState("how is the line?", "t1")
	e.Run(context.Background(), state, "")

	require.Len(t, state.ReactSteps, 2)
	assert.Equal(t, "Error: could not parse reasoning step", state.ReactSteps[0].Observation)
	assert.Equal(t, 2, state.ReactIteration)
	assert.Equal(t, string(datatypes.LoopFinished), state.Data["react_status"])
}

func TestReactLoop_FailedToolRecordedAsObservation(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{text: validVerdict},
		{text: liveIntent},
		{text: emptyPlan},
		{text: `{"thought":"check it","action":"get_station","action_input":{"station_id":"ST999"}}`},
		{text: `{"thought":"bad id","action":"finish","action_input":{"answer":"ST999 does not exist"}}`},
		{text: goodVerdict},
	}}
	e := newTestEngine(t, client)

	state := datatypes.NewState("status of ST999?", "t1")
	e.Run(context.Background(), state, "")

	require.Len(t, state.ReactSteps, 2)
	assert.Equal(t, "get_station: Error - Station ST999 not found", state.ReactSteps[0].Observation)
	assert.Contains(t, state.ToolResults, "get_station")
	assert.False(t, state.ToolResults["get_station"].Success)
}
