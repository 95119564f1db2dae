// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/plantpulse-ai/plantpulse/services/agent/datatypes"
	"github.com/plantpulse-ai/plantpulse/services/agent/simulator"
)

// =============================================================================
// Interface Definition
// =============================================================================

// DefaultTimeout bounds every tool invocation.
const DefaultTimeout = 30 * time.Second

// ErrUnknownTool is returned when a tool name is not in the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolTimeout is returned when a tool exceeds its invocation timeout.
var ErrToolTimeout = errors.New("tool timed out")

// Invoker runs catalog tools against the production line.
//
// # Description
//
// Invoke validates arguments against the tool's schema, executes the tool
// under a timeout, and always returns a ToolResult: failures are reported
// through the result's Error field, never by aborting the caller.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; parallel plan
// execution invokes several tools at once.
type Invoker interface {
	// Catalog returns the tool catalog backing this invoker.
	Catalog() *Catalog

	// Invoke runs one tool. The returned result has Success=false with a
	// populated Error field on validation failure, execution failure, or
	// timeout.
	Invoke(ctx context.Context, name string, args map[string]any) datatypes.ToolResult
}

// =============================================================================
// Struct Definition
// =============================================================================

// simInvoker executes tools against the in-process simulator.
type simInvoker struct {
	sim     *simulator.Simulator
	catalog *Catalog
	timeout time.Duration
	logger  *slog.Logger
}

// =============================================================================
// Constructor
// =============================================================================

// NewInvoker creates an Invoker over the given simulator.
//
// Panics if sim is nil: the invoker is wired at service start and a nil
// simulator is a programming error, not a runtime condition.
func NewInvoker(sim *simulator.Simulator, logger *slog.Logger) Invoker {
	if sim == nil {
		panic("tools: simulator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &simInvoker{
		sim:     sim,
		catalog: NewCatalog(),
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// =============================================================================
// Methods
// =============================================================================

func (inv *simInvoker) Catalog() *Catalog {
	return inv.catalog
}

func (inv *simInvoker) Invoke(ctx context.Context, name string, args map[string]any) datatypes.ToolResult {
	tracer := otel.Tracer("plantpulse/agent/tools")
	ctx, span := tracer.Start(ctx, "tool."+name)
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	start := time.Now()
	fail := func(msg string) datatypes.ToolResult {
		span.SetStatus(codes.Error, msg)
		inv.logger.Warn("tool call failed", "tool", name, "error", msg)
		return datatypes.ToolResult{
			ToolName:        name,
			Success:         false,
			Error:           msg,
			ExecutionTimeMS: time.Since(start).Milliseconds(),
		}
	}

	normalized, err := inv.catalog.ValidateArgs(name, args)
	if err != nil {
		return fail(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	type outcome struct {
		data any
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := inv.dispatch(name, normalized)
		done <- outcome{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(fmt.Sprintf("Tool %s timed out after %d seconds", name, int(inv.timeout.Seconds())))
		}
		return fail(ctx.Err().Error())
	case out := <-done:
		if out.err != nil {
			return fail(out.err.Error())
		}
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int64("tool.duration_ms", elapsed.Milliseconds()))
		inv.logger.Debug("tool call complete", "tool", name, "duration_ms", elapsed.Milliseconds())
		return datatypes.ToolResult{
			ToolName:        name,
			Success:         true,
			Data:            out.data,
			ExecutionTimeMS: elapsed.Milliseconds(),
		}
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// dispatch maps a validated call onto the simulator.
func (inv *simInvoker) dispatch(name string, args map[string]any) (any, error) {
	switch name {
	case "get_all_stations":
		return inv.sim.AllStations(), nil
	case "get_station":
		return inv.sim.StationByID(stringArg(args, "station_id"))
	case "get_station_status":
		return inv.sim.StationStatusByID(stringArg(args, "station_id"))
	case "get_production_metrics":
		return inv.sim.Metrics(), nil
	case "calculate_oee":
		return inv.sim.CalculateOEE(stringArg(args, "station_id"))
	case "find_bottleneck":
		return inv.sim.FindBottleneck(stringSliceArg(args, "stations")), nil
	case "get_stations_by_status":
		return inv.sim.StationsByStatus(stringArg(args, "status")), nil
	case "get_maintenance_schedule":
		return inv.sim.MaintenanceSchedule(), nil
	case "update_station_status":
		return inv.sim.UpdateStationStatus(stringArg(args, "station_id"), stringArg(args, "status"))
	case "get_recent_runs":
		return inv.sim.RecentRuns(intArg(args, "limit")), nil
	case "get_alarm_log":
		return inv.sim.AlarmLog(intArg(args, "limit")), nil
	case "get_station_energy":
		return inv.sim.StationEnergy(stringArg(args, "station_id"))
	case "get_scrap_summary":
		return inv.sim.ScrapSummaryReport(), nil
	case "get_product_mix":
		return inv.sim.ProductMix(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Compile-time interface check.
var _ Invoker = (*simInvoker)(nil)
