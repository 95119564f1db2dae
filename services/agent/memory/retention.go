// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"context"
	"log/slog"
	"time"
)

// Clock abstracts time for the retention sweeper so tests can drive it
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }

// =============================================================================
// Retention Sweeper
// =============================================================================

// Retention periodically purges threads that have been idle longer than
// the configured TTL. A TTL of zero disables sweeping entirely.
type Retention struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	clock    Clock
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewRetention creates a sweeper over the store. interval <= 0 defaults
// to one hour; a nil clock uses the system clock.
func NewRetention(store *Store, ttl, interval time.Duration, clock Clock, logger *slog.Logger) *Retention {
	if store == nil {
		panic("memory: store is required")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		store:    store,
		ttl:      ttl,
		interval: interval,
		clock:    clock,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. No-op when the TTL is zero.
func (r *Retention) Start() {
	if r.ttl <= 0 {
		close(r.done)
		return
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.SweepOnce(context.Background())
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (r *Retention) Stop() {
	close(r.stop)
	<-r.done
}

// SweepOnce purges idle threads once. Exposed for tests and for a final
// sweep during shutdown.
func (r *Retention) SweepOnce(ctx context.Context) {
	cutoff := r.clock.Now().Add(-r.ttl)
	removed, err := r.store.PurgeThreadsBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		r.logger.Info("retention sweep", "messages_removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	}
}
