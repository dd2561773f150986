// ABOUTME: SQLite persistence for the tool call ledger
// ABOUTME: Records every tools/call outcome and aggregates per-tool statistics

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordToolCall inserts a tool call record.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, call *ToolCall) error {
	query := `
		INSERT INTO tool_calls (id, session_id, tool_name, arguments, status, error, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		call.ID,
		call.SessionID,
		call.ToolName,
		call.Arguments,
		string(call.Status),
		call.Error,
		call.Duration.Milliseconds(),
		call.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", call.ID,
		"tool_name", call.ToolName,
		"status", call.Status,
	)
	return nil
}

// GetToolCall retrieves a tool call by ID.
func (s *SQLiteStore) GetToolCall(ctx context.Context, id string) (*ToolCall, error) {
	query := `
		SELECT id, session_id, tool_name, arguments, status, error, duration_ms, started_at
		FROM tool_calls
		WHERE id = ?
	`

	call, err := scanToolCall(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return call, err
}

// ListToolCalls returns tool calls newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, filter ToolCallFilter) ([]*ToolCall, error) {
	query := `
		SELECT id, session_id, tool_name, arguments, status, error, duration_ms, started_at
		FROM tool_calls
		WHERE 1=1
	`
	args := []any{}

	if filter.ToolName != "" {
		query += " AND tool_name = ?"
		args = append(args, filter.ToolName)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, effectiveLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []*ToolCall
	for rows.Next() {
		call, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool call rows: %w", err)
	}
	return calls, nil
}

// SummarizeToolCalls aggregates calls started at or after since, ordered by tool name.
func (s *SQLiteStore) SummarizeToolCalls(ctx context.Context, since time.Time) ([]ToolCallSummary, error) {
	query := `
		SELECT
			tool_name,
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM tool_calls
		WHERE started_at >= ?
		GROUP BY tool_name
		ORDER BY tool_name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("querying tool call summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []ToolCallSummary
	for rows.Next() {
		var sum ToolCallSummary
		var avgMS float64
		if err := rows.Scan(&sum.ToolName, &sum.Total, &sum.Failed, &sum.Rejected, &avgMS); err != nil {
			return nil, fmt.Errorf("scanning tool call summary: %w", err)
		}
		sum.AvgDuration = time.Duration(avgMS * float64(time.Millisecond))
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summary rows: %w", err)
	}
	return summaries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToolCall(row rowScanner) (*ToolCall, error) {
	var (
		call       ToolCall
		status     string
		durationMS int64
		startedAt  string
	)
	err := row.Scan(
		&call.ID,
		&call.SessionID,
		&call.ToolName,
		&call.Arguments,
		&status,
		&call.Error,
		&durationMS,
		&startedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning tool call: %w", err)
	}

	call.Status = ToolCallStatus(status)
	call.Duration = time.Duration(durationMS) * time.Millisecond
	call.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	return &call, nil
}
