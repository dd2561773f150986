// ABOUTME: SQLite persistence for MCP session lifecycle events
// ABOUTME: Append-only log of streams opening, being replaced, and closing

package store

import (
	"context"
	"fmt"
	"time"
)

// RecordSessionEvent appends a session lifecycle event.
func (s *SQLiteStore) RecordSessionEvent(ctx context.Context, event *SessionEvent) error {
	query := `
		INSERT INTO session_events (id, session_id, kind, remote_addr, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.SessionID,
		string(event.Kind),
		event.RemoteAddr,
		event.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting session event: %w", err)
	}
	return nil
}

// ListSessionEvents returns events oldest first. An empty sessionID lists all sessions.
func (s *SQLiteStore) ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]*SessionEvent, error) {
	query := `SELECT id, session_id, kind, remote_addr, created_at FROM session_events`
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at ASC, rowid ASC LIMIT ?"
	args = append(args, effectiveLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*SessionEvent
	for rows.Next() {
		var (
			ev        SessionEvent
			kind      string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &kind, &ev.RemoteAddr, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		ev.Kind = SessionEventKind(kind)
		if ev.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session event rows: %w", err)
	}
	return events, nil
}
