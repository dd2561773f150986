// ABOUTME: Store interfaces and data types for the gateway's persistent ledger
// ABOUTME: Defines tool call records and session lifecycle events

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ToolCallStatus is the outcome of a tool call.
type ToolCallStatus string

const (
	ToolCallOK       ToolCallStatus = "ok"
	ToolCallFailed   ToolCallStatus = "error"
	ToolCallRejected ToolCallStatus = "rejected"
)

// ToolCall is one executed (or rejected) tools/call request.
type ToolCall struct {
	ID        string
	SessionID string
	ToolName  string
	Arguments string
	Status    ToolCallStatus
	Error     string
	Duration  time.Duration
	StartedAt time.Time
}

// ToolCallFilter narrows ListToolCalls. Zero values mean no filter.
type ToolCallFilter struct {
	ToolName  string
	SessionID string
	Status    ToolCallStatus
	Since     time.Time
	Limit     int
}

// ToolCallSummary aggregates calls for one tool.
type ToolCallSummary struct {
	ToolName    string
	Total       int
	Failed      int
	Rejected    int
	AvgDuration time.Duration
}

// SessionEventKind describes a session lifecycle transition.
type SessionEventKind string

const (
	SessionOpened   SessionEventKind = "opened"
	SessionReplaced SessionEventKind = "replaced"
	SessionClosed   SessionEventKind = "closed"
)

// SessionEvent records a stream opening, being replaced, or closing.
type SessionEvent struct {
	ID         string
	SessionID  string
	Kind       SessionEventKind
	RemoteAddr string
	CreatedAt  time.Time
}

// DefaultListLimit caps list queries that do not set a limit.
const DefaultListLimit = 100

// Store is the persistence interface used by the gateway.
type Store interface {
	RecordToolCall(ctx context.Context, call *ToolCall) error
	GetToolCall(ctx context.Context, id string) (*ToolCall, error)
	ListToolCalls(ctx context.Context, filter ToolCallFilter) ([]*ToolCall, error)
	SummarizeToolCalls(ctx context.Context, since time.Time) ([]ToolCallSummary, error)

	RecordSessionEvent(ctx context.Context, event *SessionEvent) error
	ListSessionEvents(ctx context.Context, sessionID string, limit int) ([]*SessionEvent, error)

	Close() error
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
