// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package simulator models a small production line with five stations,
// a run log, an alarm log, and per-station energy snapshots. It is the
// data source behind every tool in the catalog.
//
// Values are synthetic but shaped like real manufacturing data (run and
// defect records are loosely inspired by the public SECOM and Bosch
// quality datasets).
//
// # Thread Safety
//
// All methods are safe for concurrent use. Station state is guarded by
// a read-write mutex; run, alarm, and energy data are immutable after
// construction.
package simulator

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/plantpulse-ai/plantpulse/pkg/validation"
)

// =============================================================================
// Data Model
// =============================================================================

// Station is one production station on the line.
type Station struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"` // running, idle, maintenance, error
	Throughput      float64 `json:"throughput"` // units per hour
	Efficiency      float64 `json:"efficiency"` // percentage
	Temperature     float64 `json:"temperature"` // celsius
	Pressure        float64 `json:"pressure"` // psi
	LastMaintenance string  `json:"last_maintenance"`
	Uptime          float64 `json:"uptime"` // percentage
}

// StationStatus is the condensed status view of a station.
type StationStatus struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Uptime     float64 `json:"uptime"`
	Efficiency float64 `json:"efficiency"`
}

// ProductionMetrics is a line-wide snapshot.
type ProductionMetrics struct {
	TotalUnitsProduced int     `json:"total_units_produced"`
	TargetUnits        int     `json:"target_units"`
	Efficiency         float64 `json:"efficiency"`
	DowntimeHours      float64 `json:"downtime_hours"`
	QualityRate        float64 `json:"quality_rate"`
	EnergyConsumption  float64 `json:"energy_consumption"` // kWh
	Timestamp          string  `json:"timestamp"`
}

// Run is one completed production run.
type Run struct {
	RunID        string   `json:"run_id"`
	Product      string   `json:"product"`
	Line         string   `json:"line"`
	Shift        string   `json:"shift"`
	GoodUnits    int      `json:"good_units"`
	ScrapUnits   int      `json:"scrap_units"`
	CycleTimeAvg float64  `json:"cycle_time_avg_s"`
	DefectCodes  []string `json:"defect_codes"`
	StartedAt    string   `json:"started_at"`
	EndedAt      string   `json:"ended_at"`
}

// Alarm is one entry of the alarm log.
type Alarm struct {
	ID        string `json:"id"`
	StationID string `json:"station_id"`
	Severity  string `json:"severity"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// EnergySnapshot is the energy consumption view of one station.
type EnergySnapshot struct {
	StationID   string  `json:"station_id"`
	KWhLastHour float64 `json:"kwh_last_hour"`
	KWhLast24h  float64 `json:"kwh_last_24h"`
	PeakKW      float64 `json:"peak_kw"`
}

// OEEReport is an Overall Equipment Effectiveness calculation, either
// for one station or averaged across the line.
type OEEReport struct {
	StationID           string  `json:"station_id,omitempty"`
	Availability        float64 `json:"availability,omitempty"`
	Performance         float64 `json:"performance,omitempty"`
	Quality             float64 `json:"quality"`
	OEE                 float64 `json:"oee,omitempty"`
	OverallOEE          float64 `json:"overall_oee,omitempty"`
	AverageAvailability float64 `json:"average_availability,omitempty"`
	AveragePerformance  float64 `json:"average_performance,omitempty"`
}

// BottleneckReport identifies the slowest running station.
type BottleneckReport struct {
	StationID      string  `json:"bottleneck_station_id,omitempty"`
	StationName    string  `json:"bottleneck_station_name,omitempty"`
	Throughput     float64 `json:"throughput"`
	Efficiency     float64 `json:"efficiency,omitempty"`
	Status         string  `json:"status,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	Bottleneck     string  `json:"bottleneck,omitempty"` // set when no station qualifies
}

// MaintenanceItem is one row of the maintenance schedule.
type MaintenanceItem struct {
	StationID            string `json:"station_id"`
	StationName          string `json:"station_name"`
	DaysSinceMaintenance int    `json:"days_since_maintenance"`
	DaysUntilNext        int    `json:"days_until_next"`
	Priority             string `json:"priority"`
}

// DefectCount pairs a defect code with its occurrence count.
type DefectCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// ScrapSummary aggregates scrap across all runs.
type ScrapSummary struct {
	TotalGood  int           `json:"total_good"`
	TotalScrap int           `json:"total_scrap"`
	ScrapRate  float64       `json:"scrap_rate"`
	TopDefects []DefectCount `json:"top_defects"`
}

// ProductCount is good-unit output for one product.
type ProductCount struct {
	Product   string `json:"product"`
	GoodUnits int    `json:"good_units"`
}

// StatusUpdate is the acknowledgement of a station status change.
type StatusUpdate struct {
	Success   bool   `json:"success"`
	StationID string `json:"station_id"`
	NewStatus string `json:"new_status"`
}

// =============================================================================
// Simulator
// =============================================================================

// maintenanceIntervalDays is the nominal maintenance cycle length.
const maintenanceIntervalDays = 30

// Simulator holds the full production line state.
type Simulator struct {
	mu       sync.RWMutex
	rng      *rand.Rand
	stations map[string]*Station
	order    []string // station iteration order
	runs     []Run
	alarms   []Alarm
	energy   map[string]EnergySnapshot
}

// New creates a Simulator seeded from the current time.
func New() *Simulator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed creates a Simulator with a fixed seed so tests can rely on
// reproducible station data.
func NewWithSeed(seed int64) *Simulator {
	s := &Simulator{
		rng:      rand.New(rand.NewSource(seed)),
		stations: make(map[string]*Station),
		energy:   make(map[string]EnergySnapshot),
	}
	s.initStations()
	s.loadSampleRuns()
	s.loadSampleAlarms()
	s.loadEnergySnapshots()
	return s
}

func (s *Simulator) initStations() {
	configs := []struct{ id, name string }{
		{"ST001", "Assembly Station 1"},
		{"ST002", "Quality Check Station"},
		{"ST003", "Packaging Station"},
		{"ST004", "Assembly Station 2"},
		{"ST005", "Testing Station"},
	}

	// Weighted toward running so the line usually has active stations.
	statusPool := []string{"running", "running", "running", "idle", "maintenance"}

	for _, cfg := range configs {
		s.stations[cfg.id] = &Station{
			ID:          cfg.id,
			Name:        cfg.name,
			Status:      statusPool[s.rng.Intn(len(statusPool))],
			Throughput:  s.uniform(50, 150),
			Efficiency:  s.uniform(75, 98),
			Temperature: s.uniform(20, 45),
			Pressure:    s.uniform(10, 50),
			LastMaintenance: time.Now().
				AddDate(0, 0, -(1 + s.rng.Intn(30))).
				Format(time.RFC3339),
			Uptime: s.uniform(85, 99),
		}
		s.order = append(s.order, cfg.id)
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// =============================================================================
// Station Queries
// =============================================================================

// AllStations returns every station in line order.
func (s *Simulator) AllStations() []Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Station, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.stations[id])
	}
	return out
}

// StationByID returns one station's full record.
func (s *Simulator) StationByID(id string) (Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stations[id]
	if !ok {
		return Station{}, fmt.Errorf("Station %s not found", id)
	}
	return *st, nil
}

// StationStatusByID returns the condensed status view of one station.
func (s *Simulator) StationStatusByID(id string) (StationStatus, error) {
	st, err := s.StationByID(id)
	if err != nil {
		return StationStatus{}, err
	}
	return StationStatus{
		ID:         st.ID,
		Name:       st.Name,
		Status:     st.Status,
		Uptime:     st.Uptime,
		Efficiency: st.Efficiency,
	}, nil
}

// StationsByStatus returns all stations currently in the given status.
func (s *Simulator) StationsByStatus(status string) []Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Station
	for _, id := range s.order {
		if s.stations[id].Status == status {
			out = append(out, *s.stations[id])
		}
	}
	return out
}

// UpdateStationStatus sets a station's status after validating both the
// station and the status value.
func (s *Simulator) UpdateStationStatus(id, status string) (StatusUpdate, error) {
	if err := validation.ValidateStationStatus(status); err != nil {
		return StatusUpdate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[id]
	if !ok {
		return StatusUpdate{}, fmt.Errorf("Station %s not found", id)
	}
	st.Status = status
	return StatusUpdate{Success: true, StationID: id, NewStatus: status}, nil
}

// =============================================================================
// Line Metrics
// =============================================================================

// Metrics returns a line-wide production snapshot. Total units counts
// only running stations at 80% of rated throughput; downtime charges
// half an hour per non-running station.
func (s *Simulator) Metrics() ProductionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	totalUnits := 0
	var effSum float64
	down := 0
	for _, st := range s.stations {
		effSum += st.Efficiency
		if st.Status == "running" {
			totalUnits += int(st.Throughput * 0.8)
		} else {
			down++
		}
	}

	return ProductionMetrics{
		TotalUnitsProduced: totalUnits,
		TargetUnits:        1000,
		Efficiency:         effSum / float64(len(s.stations)),
		DowntimeHours:      float64(down) * 0.5,
		QualityRate:        s.uniform(92, 99),
		EnergyConsumption:  s.uniform(500, 1200),
		Timestamp:          time.Now().Format(time.RFC3339),
	}
}

// CalculateOEE computes Overall Equipment Effectiveness. With a station
// ID it reports that station; with an empty ID it averages the line.
// OEE = availability x performance x quality, as percentages.
func (s *Simulator) CalculateOEE(stationID string) (OEEReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quality := 0.90 + s.rng.Float64()*0.08

	if stationID != "" {
		st, ok := s.stations[stationID]
		if !ok {
			return OEEReport{}, fmt.Errorf("Station %s not found", stationID)
		}
		availability := st.Uptime / 100
		performance := st.Efficiency / 100
		return OEEReport{
			StationID:    stationID,
			Availability: availability * 100,
			Performance:  performance * 100,
			Quality:      quality * 100,
			OEE:          availability * performance * quality * 100,
		}, nil
	}

	var availSum, perfSum float64
	for _, st := range s.stations {
		availSum += st.Uptime
		perfSum += st.Efficiency
	}
	n := float64(len(s.stations))
	avgAvail := availSum / n
	avgPerf := perfSum / n

	return OEEReport{
		OverallOEE:          (avgAvail / 100) * (avgPerf / 100) * quality * 100,
		AverageAvailability: avgAvail,
		AveragePerformance:  avgPerf,
		Quality:             quality * 100,
	}, nil
}

// FindBottleneck returns the lowest-throughput station among the given
// IDs, or among all running stations when ids is empty.
func (s *Simulator) FindBottleneck(ids []string) BottleneckReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Station
	if len(ids) > 0 {
		for _, id := range ids {
			if st, ok := s.stations[id]; ok {
				candidates = append(candidates, st)
			}
		}
	} else {
		for _, id := range s.order {
			if s.stations[id].Status == "running" {
				candidates = append(candidates, s.stations[id])
			}
		}
	}

	if len(candidates) == 0 {
		return BottleneckReport{Bottleneck: "No running stations", Throughput: 0}
	}

	bottleneck := candidates[0]
	for _, st := range candidates[1:] {
		if st.Throughput < bottleneck.Throughput {
			bottleneck = st
		}
	}

	return BottleneckReport{
		StationID:      bottleneck.ID,
		StationName:    bottleneck.Name,
		Throughput:     bottleneck.Throughput,
		Efficiency:     bottleneck.Efficiency,
		Status:         bottleneck.Status,
		Recommendation: fmt.Sprintf("Optimize %s to improve overall throughput", bottleneck.Name),
	}
}

// MaintenanceSchedule derives per-station maintenance urgency from the
// last maintenance date, most overdue first.
func (s *Simulator) MaintenanceSchedule() []MaintenanceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]MaintenanceItem, 0, len(s.stations))
	for _, id := range s.order {
		st := s.stations[id]
		last, err := time.Parse(time.RFC3339, st.LastMaintenance)
		if err != nil {
			continue
		}
		daysSince := int(time.Since(last).Hours() / 24)
		daysUntil := maintenanceIntervalDays - daysSince
		if daysUntil < 0 {
			daysUntil = 0
		}

		priority := "low"
		switch {
		case daysSince > 25:
			priority = "high"
		case daysSince > 20:
			priority = "medium"
		}

		items = append(items, MaintenanceItem{
			StationID:            st.ID,
			StationName:          st.Name,
			DaysSinceMaintenance: daysSince,
			DaysUntilNext:        daysUntil,
			Priority:             priority,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].DaysSinceMaintenance > items[j].DaysSinceMaintenance
	})
	return items
}

// =============================================================================
// Runs, Alarms, Energy
// =============================================================================

func (s *Simulator) loadSampleRuns() {
	now := time.Now()
	ts := func(d time.Duration) string { return now.Add(-d).Format(time.RFC3339) }

	s.runs = []Run{
		{
			RunID: "R-2401", Product: "Widget-A", Line: "L1", Shift: "A",
			GoodUnits: 420, ScrapUnits: 6, CycleTimeAvg: 5.8,
			DefectCodes: []string{"D14"},
			StartedAt:   ts(6 * time.Hour), EndedAt: ts(4 * time.Hour),
		},
		{
			RunID: "R-2402", Product: "Widget-B", Line: "L2", Shift: "A",
			GoodUnits: 380, ScrapUnits: 12, CycleTimeAvg: 6.1,
			DefectCodes: []string{"D07", "D21"},
			StartedAt:   ts(4 * time.Hour), EndedAt: ts(2 * time.Hour),
		},
		{
			RunID: "R-2403", Product: "Widget-A", Line: "L1", Shift: "B",
			GoodUnits: 450, ScrapUnits: 4, CycleTimeAvg: 5.5,
			DefectCodes: []string{},
			StartedAt:   ts(2 * time.Hour), EndedAt: ts(10 * time.Minute),
		},
		{
			RunID: "R-2404", Product: "Widget-C", Line: "L3", Shift: "B",
			GoodUnits: 300, ScrapUnits: 15, CycleTimeAvg: 7.2,
			DefectCodes: []string{"D04", "D19"},
			StartedAt:   ts(3 * time.Hour), EndedAt: ts(80 * time.Minute),
		},
	}
}

func (s *Simulator) loadSampleAlarms() {
	now := time.Now()
	ts := func(d time.Duration) string { return now.Add(-d).Format(time.RFC3339) }

	s.alarms = []Alarm{
		{
			ID: "AL-9001", StationID: "ST002", Severity: "high",
			Code: "VISION_MISALIGN", Message: "Vision system detected part misalignment",
			Timestamp: ts(35 * time.Minute),
		},
		{
			ID: "AL-9002", StationID: "ST003", Severity: "medium",
			Code: "LABEL_LOW_CONTRAST", Message: "Label contrast below threshold",
			Timestamp: ts(65 * time.Minute),
		},
		{
			ID: "AL-9003", StationID: "ST005", Severity: "low",
			Code: "TEMP_DRIFT", Message: "Chamber temperature drifted +1.5C",
			Timestamp: ts(130 * time.Minute),
		},
	}
}

func (s *Simulator) loadEnergySnapshots() {
	round2 := func(v float64) float64 { return float64(int(v*100)) / 100 }
	for _, id := range s.order {
		s.energy[id] = EnergySnapshot{
			StationID:   id,
			KWhLastHour: round2(s.uniform(8, 18)),
			KWhLast24h:  round2(s.uniform(160, 360)),
			PeakKW:      round2(s.uniform(4, 9)),
		}
	}
}

// RecentRuns returns up to limit runs, newest end time first.
func (s *Simulator) RecentRuns(limit int) []Run {
	out := make([]Run, len(s.runs))
	copy(out, s.runs)
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt > out[j].EndedAt })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// AlarmLog returns up to limit alarms, newest first.
func (s *Simulator) AlarmLog(limit int) []Alarm {
	out := make([]Alarm, len(s.alarms))
	copy(out, s.alarms)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// StationEnergy returns the energy snapshot for one station.
func (s *Simulator) StationEnergy(id string) (EnergySnapshot, error) {
	snap, ok := s.energy[id]
	if !ok {
		return EnergySnapshot{}, fmt.Errorf("Station %s not found", id)
	}
	return snap, nil
}

// ScrapSummaryReport aggregates scrap rate and top defect codes across
// all runs.
func (s *Simulator) ScrapSummaryReport() ScrapSummary {
	totalGood, totalScrap := 0, 0
	defectCounts := make(map[string]int)
	for _, run := range s.runs {
		totalGood += run.GoodUnits
		totalScrap += run.ScrapUnits
		for _, code := range run.DefectCodes {
			defectCounts[code]++
		}
	}

	var scrapRate float64
	if totalGood > 0 {
		scrapRate = float64(totalScrap) / float64(totalGood+totalScrap) * 100
	}

	top := make([]DefectCount, 0, len(defectCounts))
	for code, count := range defectCounts {
		top = append(top, DefectCount{Code: code, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Code < top[j].Code
	})

	return ScrapSummary{
		TotalGood:  totalGood,
		TotalScrap: totalScrap,
		ScrapRate:  scrapRate,
		TopDefects: top,
	}
}

// ProductMix returns good-unit output by product.
func (s *Simulator) ProductMix() []ProductCount {
	counts := make(map[string]int)
	var names []string
	for _, run := range s.runs {
		if _, seen := counts[run.Product]; !seen {
			names = append(names, run.Product)
		}
		counts[run.Product] += run.GoodUnits
	}

	out := make([]ProductCount, 0, len(names))
	for _, name := range names {
		out = append(out, ProductCount{Product: name, GoodUnits: counts[name]})
	}
	return out
}
