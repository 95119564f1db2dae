// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prompts manages the system prompts used by each reasoning
// phase. Prompts ship as built-in defaults; operators can override any
// of them by dropping "<name>.txt" or "<name>.md" files into a prompts
// directory, which is hot-reloaded on change.
package prompts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrPromptNotFound is returned when a prompt name has neither an
// override nor a built-in default.
var ErrPromptNotFound = errors.New("prompt not found")

// =============================================================================
// Hub
// =============================================================================

// Hub resolves prompt names to prompt text.
//
// # Thread Safety
//
// Hub is safe for concurrent use; overrides are guarded by a read-write
// mutex and swapped atomically on reload.
type Hub struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	overrides map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewHub creates a Hub. dir may be empty, in which case only built-in
// defaults are served and no watcher is started.
func NewHub(dir string, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		dir:       dir,
		logger:    logger,
		overrides: map[string]string{},
		done:      make(chan struct{}),
	}

	if dir == "" {
		return h, nil
	}

	if err := h.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch prompt dir: %w", err)
	}
	h.watcher = watcher
	go h.watch()

	return h, nil
}

// Get returns the prompt text for name: file override first, then the
// built-in default.
func (h *Hub) Get(name string) (string, error) {
	h.mu.RLock()
	text, ok := h.overrides[name]
	h.mu.RUnlock()
	if ok {
		return text, nil
	}
	if text, ok := defaults[name]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %s", ErrPromptNotFound, name)
}

// Close stops the file watcher.
func (h *Hub) Close() error {
	if h.watcher == nil {
		return nil
	}
	close(h.done)
	return h.watcher.Close()
}

// reload rebuilds the override map from the prompts directory.
func (h *Hub) reload() error {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return fmt.Errorf("read prompt dir: %w", err)
	}

	overrides := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		raw, err := os.ReadFile(filepath.Join(h.dir, entry.Name()))
		if err != nil {
			h.logger.Warn("skipping unreadable prompt file", "file", entry.Name(), "error", err)
			continue
		}
		overrides[name] = strings.TrimSpace(string(raw))
	}

	h.mu.Lock()
	h.overrides = overrides
	h.mu.Unlock()
	h.logger.Debug("prompts reloaded", "overrides", len(overrides))
	return nil
}

// watch reloads overrides whenever the prompts directory changes.
func (h *Hub) watch() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := h.reload(); err != nil {
					h.logger.Warn("prompt reload failed", "error", err)
				}
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("prompt watcher error", "error", err)
		}
	}
}
