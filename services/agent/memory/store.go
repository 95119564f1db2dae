// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memory persists conversation history and rolling summaries in
// SQLite, keyed by thread. Every N turns (default 12) the agent condenses
// older history into the summary so prompt context stays bounded.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSummarizeInterval is the turn count between summary refreshes.
const DefaultSummarizeInterval = 12

// Message is one stored conversation turn.
type Message struct {
	ID        int64  `json:"id"`
	ThreadID  string `json:"thread_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Metadata  string `json:"metadata,omitempty"`
}

// Context is the memory view handed to prompt builders.
type Context struct {
	Summary string
	Recent  []Message
}

// =============================================================================
// Store
// =============================================================================

// Store is the SQLite-backed conversation store.
//
// # Thread Safety
//
// The underlying *sql.DB is safe for concurrent use. LockThread provides
// per-thread serialization so two concurrent turns on the same thread do
// not interleave their read-modify-write cycles; distinct threads never
// block each other.
type Store struct {
	db       *sql.DB
	interval int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
CREATE TABLE IF NOT EXISTS summaries (
	thread_id TEXT PRIMARY KEY,
	summary TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Open opens (or creates) the store at path. Use ":memory:" for an
// ephemeral store in tests. summarizeInterval <= 0 selects the default.
func Open(path string, summarizeInterval int) (*Store, error) {
	if summarizeInterval <= 0 {
		summarizeInterval = DefaultSummarizeInterval
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// modernc sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{
		db:       db,
		interval: summarizeInterval,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LockThread acquires the per-thread mutex and returns the unlock func.
//
//	unlock := store.LockThread(threadID)
//	defer unlock()
func (s *Store) LockThread(threadID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[threadID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// AddMessage appends one turn to a thread. Metadata may be nil.
func (s *Store) AddMessage(ctx context.Context, threadID, role, content string, metadata map[string]any) error {
	var meta string
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (thread_id, role, content, created_at, metadata) VALUES (?, ?, ?, ?, ?)`,
		threadID, role, content, time.Now().UTC().Format(time.RFC3339), meta)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for a thread in chronological order.
func (s *Store) Recent(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, created_at, COALESCE(metadata, '')
		 FROM messages WHERE thread_id = ? ORDER BY id DESC LIMIT ?`,
		threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var reversed []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt, &m.Metadata); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first; callers want chronological.
	out := make([]Message, len(reversed))
	for i, m := range reversed {
		out[len(reversed)-1-i] = m
	}
	return out, nil
}

// Summary returns the rolling summary for a thread, empty if none.
func (s *Store) Summary(ctx context.Context, threadID string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM summaries WHERE thread_id = ?`, threadID).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query summary: %w", err)
	}
	return summary, nil
}

// SetSummary upserts the rolling summary for a thread.
func (s *Store) SetSummary(ctx context.Context, threadID, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (thread_id, summary, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		threadID, summary, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// CountMessages returns the number of stored turns for a thread.
func (s *Store) CountMessages(ctx context.Context, threadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE thread_id = ?`, threadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ShouldSummarize reports whether the thread just crossed a summary
// boundary: count is a non-zero multiple of the interval.
func (s *Store) ShouldSummarize(ctx context.Context, threadID string) (bool, error) {
	count, err := s.CountMessages(ctx, threadID)
	if err != nil {
		return false, err
	}
	return count >= s.interval && count%s.interval == 0, nil
}

// Context returns the summary plus recent turns for prompt building.
func (s *Store) Context(ctx context.Context, threadID string, limit int) (Context, error) {
	summary, err := s.Summary(ctx, threadID)
	if err != nil {
		return Context{}, err
	}
	recent, err := s.Recent(ctx, threadID, limit)
	if err != nil {
		return Context{}, err
	}
	return Context{Summary: summary, Recent: recent}, nil
}

// PurgeThreadsBefore deletes every thread whose newest message is older
// than cutoff, along with its summary. Returns the number of messages
// removed.
func (s *Store) PurgeThreadsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id IN (
			SELECT thread_id FROM messages GROUP BY thread_id HAVING MAX(created_at) < ?
		)`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	removed, _ := res.RowsAffected()

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE thread_id NOT IN (SELECT DISTINCT thread_id FROM messages)`)
	if err != nil {
		return removed, fmt.Errorf("purge summaries: %w", err)
	}
	return removed, nil
}
