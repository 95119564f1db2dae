// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"strings"
	"testing"
)

func TestCatalog_Size(t *testing.T) {
	catalog := NewCatalog()
	if got := len(catalog.Names()); got != 14 {
		t.Errorf("expected 14 tools, got %d: %v", got, catalog.Names())
	}
}

func TestCatalog_UnknownTool(t *testing.T) {
	catalog := NewCatalog()
	_, err := catalog.ValidateArgs("do_magic", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "Unknown tool: do_magic") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestValidateArgs_RequiredStation(t *testing.T) {
	catalog := NewCatalog()

	if _, err := catalog.ValidateArgs("get_station", nil); err == nil {
		t.Error("expected error when station_id missing")
	}

	args, err := catalog.ValidateArgs("get_station", map[string]any{"station_id": "ST001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["station_id"] != "ST001" {
		t.Errorf("station_id lost in normalization: %v", args)
	}
}

func TestValidateArgs_OptionalStation(t *testing.T) {
	catalog := NewCatalog()
	if _, err := catalog.ValidateArgs("calculate_oee", nil); err != nil {
		t.Errorf("calculate_oee should accept empty args: %v", err)
	}
	if _, err := catalog.ValidateArgs("calculate_oee", map[string]any{"station_id": "ST002"}); err != nil {
		t.Errorf("calculate_oee should accept station_id: %v", err)
	}
}

func TestValidateArgs_StatusEnum(t *testing.T) {
	catalog := NewCatalog()

	if _, err := catalog.ValidateArgs("get_stations_by_status", map[string]any{"status": "running"}); err != nil {
		t.Errorf("running should be valid: %v", err)
	}
	if _, err := catalog.ValidateArgs("get_stations_by_status", map[string]any{"status": "exploded"}); err == nil {
		t.Error("expected error for invalid status")
	}

	if _, err := catalog.ValidateArgs("update_station_status", map[string]any{"station_id": "ST001"}); err == nil {
		t.Error("expected error when status missing")
	}
	if _, err := catalog.ValidateArgs("update_station_status",
		map[string]any{"station_id": "ST001", "status": "maintenance"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateArgs_LimitDefaults(t *testing.T) {
	catalog := NewCatalog()

	args, err := catalog.ValidateArgs("get_recent_runs", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := args["limit"]; got != float64(5) {
		t.Errorf("expected default limit 5, got %v", got)
	}

	args, err = catalog.ValidateArgs("get_alarm_log", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := args["limit"]; got != float64(10) {
		t.Errorf("expected default limit 10, got %v", got)
	}
}

func TestValidateArgs_LimitBounds(t *testing.T) {
	catalog := NewCatalog()

	if _, err := catalog.ValidateArgs("get_recent_runs", map[string]any{"limit": 0}); err == nil {
		t.Error("expected error for limit 0")
	}
	if _, err := catalog.ValidateArgs("get_recent_runs", map[string]any{"limit": 501}); err == nil {
		t.Error("expected error for limit 501")
	}
	if _, err := catalog.ValidateArgs("get_recent_runs", map[string]any{"limit": 500}); err != nil {
		t.Errorf("limit 500 should be valid: %v", err)
	}
}

func TestValidateArgs_UnknownKeysDropped(t *testing.T) {
	catalog := NewCatalog()
	args, err := catalog.ValidateArgs("get_station", map[string]any{
		"station_id": "ST001",
		"verbose":    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := args["verbose"]; ok {
		t.Error("unknown keys should be dropped during normalization")
	}
}

func TestValidateArgs_StationIDCanonicalized(t *testing.T) {
	catalog := NewCatalog()

	args, err := catalog.ValidateArgs("get_station", map[string]any{"station_id": " st001 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["station_id"] != "ST001" {
		t.Errorf("expected canonical ST001, got %v", args["station_id"])
	}

	if _, err := catalog.ValidateArgs("get_station", map[string]any{"station_id": "ST001; DROP TABLE"}); err == nil {
		t.Error("expected error for malformed station id")
	}
	if _, err := catalog.ValidateArgs("update_station_status",
		map[string]any{"station_id": "not-a-station", "status": "idle"}); err == nil {
		t.Error("expected error for malformed station id on update")
	}

	args, err = catalog.ValidateArgs("find_bottleneck", map[string]any{
		"stations": []any{"st001", "qc12"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := args["stations"].([]any)
	if list[0] != "ST001" || list[1] != "QC12" {
		t.Errorf("station list not canonicalized: %v", list)
	}
}

func TestValidateArgs_StationList(t *testing.T) {
	catalog := NewCatalog()
	args, err := catalog.ValidateArgs("find_bottleneck", map[string]any{
		"stations": []any{"ST001", "ST002"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := args["stations"].([]any)
	if !ok || len(list) != 2 {
		t.Errorf("stations list lost in normalization: %v", args)
	}
}
