package state

import (
	"fmt"
	"time"
)

// JournalEntry is one consumed orchestration event, kept for the status
// view and for post-hoc inspection of what the automation did.
type JournalEntry struct {
	// Seq is the monotonically increasing journal position.
	Seq int64
	// Type is the event type string.
	Type string
	// Summary is the event's one-line description.
	Summary string
	// Timestamp is when the event was journaled.
	Timestamp time.Time
}

// AppendEvent records a consumed event in the journal.
func (db *DB) AppendEvent(eventType, summary string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO events (type, summary, created_at) VALUES (?, ?, ?)
	`, eventType, summary, formatTime(at))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// RecentEvents returns the most recent journal entries, newest first.
func (db *DB) RecentEvents(limit int) ([]JournalEntry, error) {
	rows, err := db.Query(`
		SELECT seq, type, summary, created_at
		FROM events ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var createdAt string
		if err := rows.Scan(&e.Seq, &e.Type, &e.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ts, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse event %d timestamp: %w", e.Seq, err)
		}
		e.Timestamp = ts
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneEvents caps the journal at keep entries, deleting the oldest.
// Returns the number of entries deleted.
func (db *DB) PruneEvents(keep int) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM events WHERE seq NOT IN (
			SELECT seq FROM events ORDER BY seq DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
