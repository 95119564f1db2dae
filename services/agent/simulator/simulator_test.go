// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package simulator

import (
	"strings"
	"sync"
	"testing"
)

func TestAllStations(t *testing.T) {
	sim := NewWithSeed(42)
	stations := sim.AllStations()

	if len(stations) != 5 {
		t.Fatalf("expected 5 stations, got %d", len(stations))
	}
	if stations[0].ID != "ST001" || stations[4].ID != "ST005" {
		t.Errorf("stations out of line order: %v", stations)
	}
	for _, st := range stations {
		if st.Throughput < 50 || st.Throughput > 150 {
			t.Errorf("%s throughput out of range: %f", st.ID, st.Throughput)
		}
		if st.Efficiency < 75 || st.Efficiency > 98 {
			t.Errorf("%s efficiency out of range: %f", st.ID, st.Efficiency)
		}
		if st.Uptime < 85 || st.Uptime > 99 {
			t.Errorf("%s uptime out of range: %f", st.ID, st.Uptime)
		}
	}
}

func TestStationByID_Unknown(t *testing.T) {
	sim := NewWithSeed(1)
	if _, err := sim.StationByID("ST999"); err == nil {
		t.Error("expected error for unknown station")
	} else if !strings.Contains(err.Error(), "ST999 not found") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestUpdateStationStatus(t *testing.T) {
	sim := NewWithSeed(1)

	upd, err := sim.UpdateStationStatus("ST001", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !upd.Success || upd.NewStatus != "error" {
		t.Errorf("unexpected update: %+v", upd)
	}

	st, _ := sim.StationByID("ST001")
	if st.Status != "error" {
		t.Errorf("status not persisted, got %q", st.Status)
	}

	if _, err := sim.UpdateStationStatus("ST001", "broken"); err == nil {
		t.Error("expected error for invalid status")
	}
	if _, err := sim.UpdateStationStatus("ST042", "idle"); err == nil {
		t.Error("expected error for unknown station")
	}
}

func TestMetrics(t *testing.T) {
	sim := NewWithSeed(7)

	// Force a deterministic status mix.
	for i, id := range []string{"ST001", "ST002", "ST003", "ST004", "ST005"} {
		status := "running"
		if i >= 3 {
			status = "idle"
		}
		if _, err := sim.UpdateStationStatus(id, status); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	m := sim.Metrics()
	if m.TargetUnits != 1000 {
		t.Errorf("expected target 1000, got %d", m.TargetUnits)
	}
	if m.DowntimeHours != 1.0 { // two non-running stations at 0.5h each
		t.Errorf("expected 1.0 downtime hours, got %f", m.DowntimeHours)
	}
	if m.TotalUnitsProduced <= 0 {
		t.Errorf("expected positive unit count, got %d", m.TotalUnitsProduced)
	}

	want := 0
	for _, st := range sim.AllStations() {
		if st.Status == "running" {
			want += int(st.Throughput * 0.8)
		}
	}
	if m.TotalUnitsProduced > want+int(150*0.8)*3 {
		t.Errorf("unit count implausible: %d", m.TotalUnitsProduced)
	}
}

func TestCalculateOEE_Station(t *testing.T) {
	sim := NewWithSeed(3)
	report, err := sim.CalculateOEE("ST002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.StationID != "ST002" {
		t.Errorf("unexpected station: %q", report.StationID)
	}
	if report.Quality < 90 || report.Quality > 98 {
		t.Errorf("quality out of range: %f", report.Quality)
	}

	want := (report.Availability / 100) * (report.Performance / 100) * (report.Quality / 100) * 100
	if diff := report.OEE - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("OEE arithmetic off: got %f, want %f", report.OEE, want)
	}
}

func TestCalculateOEE_Line(t *testing.T) {
	sim := NewWithSeed(3)
	report, err := sim.CalculateOEE("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OverallOEE <= 0 || report.AverageAvailability <= 0 {
		t.Errorf("line report incomplete: %+v", report)
	}

	if _, err := sim.CalculateOEE("ST404"); err == nil {
		t.Error("expected error for unknown station")
	}
}

func TestFindBottleneck(t *testing.T) {
	sim := NewWithSeed(11)
	for _, id := range []string{"ST001", "ST002", "ST003", "ST004", "ST005"} {
		if _, err := sim.UpdateStationStatus(id, "running"); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	report := sim.FindBottleneck(nil)
	if report.StationID == "" {
		t.Fatal("expected a bottleneck station")
	}
	for _, st := range sim.AllStations() {
		if st.Throughput < report.Throughput {
			t.Errorf("%s is slower than reported bottleneck %s", st.ID, report.StationID)
		}
	}
	if !strings.Contains(report.Recommendation, report.StationName) {
		t.Errorf("recommendation should name the station: %q", report.Recommendation)
	}
}

func TestFindBottleneck_NoRunning(t *testing.T) {
	sim := NewWithSeed(11)
	for _, id := range []string{"ST001", "ST002", "ST003", "ST004", "ST005"} {
		if _, err := sim.UpdateStationStatus(id, "idle"); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	report := sim.FindBottleneck(nil)
	if report.Bottleneck != "No running stations" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestFindBottleneck_Subset(t *testing.T) {
	sim := NewWithSeed(11)
	report := sim.FindBottleneck([]string{"ST001", "ST002", "ST404"})
	if report.StationID != "ST001" && report.StationID != "ST002" {
		t.Errorf("bottleneck should come from the subset, got %q", report.StationID)
	}
}

func TestMaintenanceSchedule(t *testing.T) {
	sim := NewWithSeed(5)
	items := sim.MaintenanceSchedule()

	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].DaysSinceMaintenance > items[i-1].DaysSinceMaintenance {
			t.Error("schedule not sorted by days since maintenance")
		}
	}
	for _, item := range items {
		if item.DaysUntilNext < 0 {
			t.Errorf("days until next cannot be negative: %+v", item)
		}
		switch {
		case item.DaysSinceMaintenance > 25 && item.Priority != "high":
			t.Errorf("expected high priority: %+v", item)
		case item.DaysSinceMaintenance > 20 && item.DaysSinceMaintenance <= 25 && item.Priority != "medium":
			t.Errorf("expected medium priority: %+v", item)
		}
	}
}

func TestRecentRuns(t *testing.T) {
	sim := NewWithSeed(1)
	runs := sim.RecentRuns(2)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].EndedAt < runs[1].EndedAt {
		t.Error("runs not sorted newest first")
	}
	if runs[0].RunID != "R-2403" {
		t.Errorf("expected most recent run R-2403, got %s", runs[0].RunID)
	}
}

func TestAlarmLog(t *testing.T) {
	sim := NewWithSeed(1)
	alarms := sim.AlarmLog(10)
	if len(alarms) != 3 {
		t.Fatalf("expected 3 alarms, got %d", len(alarms))
	}
	if alarms[0].ID != "AL-9001" {
		t.Errorf("expected newest alarm AL-9001 first, got %s", alarms[0].ID)
	}

	if got := sim.AlarmLog(1); len(got) != 1 {
		t.Errorf("limit not applied, got %d alarms", len(got))
	}
}

func TestStationEnergy(t *testing.T) {
	sim := NewWithSeed(2)
	snap, err := sim.StationEnergy("ST003")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.KWhLastHour < 8 || snap.KWhLastHour > 18 {
		t.Errorf("kwh_last_hour out of range: %f", snap.KWhLastHour)
	}
	if _, err := sim.StationEnergy("ST404"); err == nil {
		t.Error("expected error for unknown station")
	}
}

func TestScrapSummaryReport(t *testing.T) {
	sim := NewWithSeed(1)
	summary := sim.ScrapSummaryReport()

	if summary.TotalGood != 1550 {
		t.Errorf("expected 1550 good units, got %d", summary.TotalGood)
	}
	if summary.TotalScrap != 37 {
		t.Errorf("expected 37 scrap units, got %d", summary.TotalScrap)
	}

	want := float64(37) / float64(1550+37) * 100
	if diff := summary.ScrapRate - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("scrap rate off: got %f, want %f", summary.ScrapRate, want)
	}
	if len(summary.TopDefects) == 0 {
		t.Fatal("expected defect counts")
	}
	for i := 1; i < len(summary.TopDefects); i++ {
		if summary.TopDefects[i].Count > summary.TopDefects[i-1].Count {
			t.Error("defects not sorted by count")
		}
	}
}

func TestProductMix(t *testing.T) {
	sim := NewWithSeed(1)
	mix := sim.ProductMix()

	byProduct := make(map[string]int)
	for _, pc := range mix {
		byProduct[pc.Product] = pc.GoodUnits
	}
	if byProduct["Widget-A"] != 870 {
		t.Errorf("expected 870 Widget-A units, got %d", byProduct["Widget-A"])
	}
	if byProduct["Widget-B"] != 380 || byProduct["Widget-C"] != 300 {
		t.Errorf("unexpected mix: %v", byProduct)
	}
}

func TestConcurrentAccess(t *testing.T) {
	sim := NewWithSeed(9)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = sim.AllStations()
			_ = sim.Metrics()
		}()
		go func() {
			defer wg.Done()
			_, _ = sim.UpdateStationStatus("ST001", "idle")
			_, _ = sim.CalculateOEE("")
		}()
	}
	wg.Wait()
}
