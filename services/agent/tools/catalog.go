// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools exposes the production-line tool catalog and the invoker
// that runs tools against the simulator.
//
// Each tool has a typed argument struct with validator tags. Raw argument
// maps from the model are decoded into the struct, defaulted, validated,
// and normalized back to a map before execution. This keeps malformed
// model output away from the data layer.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/plantpulse-ai/plantpulse/pkg/validation"
)

// =============================================================================
// Argument Types
// =============================================================================

// emptyArgs is used by tools that take no arguments.
type emptyArgs struct{}

// stationArgs requires a station identifier.
type stationArgs struct {
	StationID string `json:"station_id" validate:"required"`
}

// optionalStationArgs takes an optional station identifier.
type optionalStationArgs struct {
	StationID string `json:"station_id,omitempty"`
}

// statusArgs requires a station status value.
type statusArgs struct {
	Status string `json:"status" validate:"required,oneof=running idle maintenance error"`
}

// updateStatusArgs requires both a station and the new status.
type updateStatusArgs struct {
	StationID string `json:"station_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=running idle maintenance error"`
}

// limitArgs takes a bounded result limit with a per-tool default.
type limitArgs struct {
	Limit int `json:"limit" validate:"gte=1,lte=500"`
}

// stationListArgs takes an optional list of station identifiers.
type stationListArgs struct {
	Stations []string `json:"stations,omitempty"`
}

// =============================================================================
// Catalog
// =============================================================================

// Spec describes one tool in the catalog.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// validate decodes, defaults, and checks raw arguments, returning
	// the normalized form.
	validate func(args map[string]any) (map[string]any, error)
}

// Catalog holds the tool specs in a stable order.
//
// # Thread Safety
//
// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	specs []Spec
	index map[string]int
}

// argValidate is the validator for tool argument structs.
var argValidate = validator.New()

// NewCatalog builds the full production-line tool catalog.
func NewCatalog() *Catalog {
	specs := []Spec{
		{
			Name:        "get_all_stations",
			Description: "List every station on the line with full telemetry.",
			validate:    noArgs,
		},
		{
			Name:        "get_station",
			Description: "Full record for a single station by id.",
			validate:    requireStation,
		},
		{
			Name:        "get_station_status",
			Description: "Condensed status view for a single station.",
			validate:    requireStation,
		},
		{
			Name:        "get_production_metrics",
			Description: "Line-wide production snapshot: units, efficiency, downtime.",
			validate:    noArgs,
		},
		{
			Name:        "calculate_oee",
			Description: "Overall Equipment Effectiveness for one station or the whole line.",
			validate:    optionalStation,
		},
		{
			Name:        "find_bottleneck",
			Description: "Slowest running station, optionally restricted to given stations.",
			validate:    stationList,
		},
		{
			Name:        "get_stations_by_status",
			Description: "All stations currently in a given status.",
			validate: func(args map[string]any) (map[string]any, error) {
				return decodeArgs[statusArgs](args)
			},
		},
		{
			Name:        "get_maintenance_schedule",
			Description: "Per-station maintenance urgency, most overdue first.",
			validate:    noArgs,
		},
		{
			Name:        "update_station_status",
			Description: "Set a station's status (running, idle, maintenance, error).",
			validate:    updateStationStatus,
		},
		{
			Name:        "get_recent_runs",
			Description: "Recent production runs, newest first (limit 1-500, default 5).",
			validate:    limitValidator(5),
		},
		{
			Name:        "get_alarm_log",
			Description: "Recent alarms, newest first (limit 1-500, default 10).",
			validate:    limitValidator(10),
		},
		{
			Name:        "get_station_energy",
			Description: "Energy consumption snapshot for a single station.",
			validate:    requireStation,
		},
		{
			Name:        "get_scrap_summary",
			Description: "Aggregate scrap rate and top defect codes across runs.",
			validate:    noArgs,
		},
		{
			Name:        "get_product_mix",
			Description: "Good-unit output by product across recent runs.",
			validate:    noArgs,
		},
	}

	index := make(map[string]int, len(specs))
	for i, spec := range specs {
		index[spec.Name] = i
	}
	return &Catalog{specs: specs, index: index}
}

// Specs returns the catalog in stable order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Names returns all tool names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.specs))
	for i, spec := range c.specs {
		names[i] = spec.Name
	}
	return names
}

// Has reports whether a tool exists.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// ValidateArgs normalizes and validates arguments for the named tool.
// Unknown tools yield an "Unknown tool" error; invalid arguments yield
// a descriptive validation error.
func (c *Catalog) ValidateArgs(name string, args map[string]any) (map[string]any, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, fmt.Errorf("Unknown tool: %s", name)
	}
	return c.specs[i].validate(args)
}

// NamesString renders the catalog names for error observations.
func (c *Catalog) NamesString() string {
	return strings.Join(c.Names(), ", ")
}

// =============================================================================
// Validation Helpers
// =============================================================================

func noArgs(args map[string]any) (map[string]any, error) {
	return decodeArgs[emptyArgs](args)
}

func requireStation(args map[string]any) (map[string]any, error) {
	out, err := decodeArgs[stationArgs](args)
	if err != nil {
		return nil, err
	}
	return canonicalStations(out)
}

func optionalStation(args map[string]any) (map[string]any, error) {
	out, err := decodeArgs[optionalStationArgs](args)
	if err != nil {
		return nil, err
	}
	return canonicalStations(out)
}

func stationList(args map[string]any) (map[string]any, error) {
	out, err := decodeArgs[stationListArgs](args)
	if err != nil {
		return nil, err
	}
	return canonicalStations(out)
}

func updateStationStatus(args map[string]any) (map[string]any, error) {
	out, err := decodeArgs[updateStatusArgs](args)
	if err != nil {
		return nil, err
	}
	return canonicalStations(out)
}

// canonicalStations rewrites station identifiers to canonical uppercase
// form and rejects malformed ones before they reach the simulator.
func canonicalStations(args map[string]any) (map[string]any, error) {
	if raw, ok := args["station_id"].(string); ok && raw != "" {
		id, err := validation.SanitizeStationID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		args["station_id"] = id
	}
	if list, ok := args["stations"].([]any); ok {
		for i, v := range list {
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			id, err := validation.SanitizeStationID(s)
			if err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			list[i] = id
		}
	}
	return args, nil
}

// limitValidator returns a validate func that applies a default limit
// before range checking.
func limitValidator(defaultLimit int) func(map[string]any) (map[string]any, error) {
	return func(args map[string]any) (map[string]any, error) {
		if args == nil {
			args = map[string]any{}
		}
		if _, ok := args["limit"]; !ok {
			args["limit"] = defaultLimit
		}
		return decodeArgs[limitArgs](args)
	}
}

// decodeArgs round-trips a raw argument map through the typed struct T,
// running validator tags, and returns the normalized map form.
func decodeArgs[T any](args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	// Unknown keys are dropped rather than rejected; models often add
	// stray fields and the typed struct is the contract.
	var typed T
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if err := argValidate.Struct(&typed); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	normalized, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("normalize args: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, fmt.Errorf("normalize args: %w", err)
	}
	return out, nil
}
