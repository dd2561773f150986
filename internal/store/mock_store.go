// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	toolCalls []*ToolCall
	events    []*SessionEvent
	closed    bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// RecordToolCall stores a copy of call.
func (m *MockStore) RecordToolCall(_ context.Context, call *ToolCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *call
	m.toolCalls = append(m.toolCalls, &c)
	return nil
}

// GetToolCall retrieves a tool call by ID.
func (m *MockStore) GetToolCall(_ context.Context, id string) (*ToolCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.toolCalls {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListToolCalls returns matching calls newest first.
func (m *MockStore) ListToolCalls(_ context.Context, filter ToolCallFilter) ([]*ToolCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ToolCall
	for _, c := range m.toolCalls {
		if filter.ToolName != "" && c.ToolName != filter.ToolName {
			continue
		}
		if filter.SessionID != "" && c.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && c.StartedAt.Before(filter.Since) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit := effectiveLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SummarizeToolCalls aggregates calls per tool.
func (m *MockStore) SummarizeToolCalls(_ context.Context, since time.Time) ([]ToolCallSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byTool := make(map[string]*ToolCallSummary)
	totals := make(map[string]time.Duration)
	for _, c := range m.toolCalls {
		if c.StartedAt.Before(since) {
			continue
		}
		sum, ok := byTool[c.ToolName]
		if !ok {
			sum = &ToolCallSummary{ToolName: c.ToolName}
			byTool[c.ToolName] = sum
		}
		sum.Total++
		switch c.Status {
		case ToolCallFailed:
			sum.Failed++
		case ToolCallRejected:
			sum.Rejected++
		}
		totals[c.ToolName] += c.Duration.Truncate(time.Millisecond)
	}

	out := make([]ToolCallSummary, 0, len(byTool))
	for name, sum := range byTool {
		sum.AvgDuration = totals[name] / time.Duration(sum.Total)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolName < out[j].ToolName })
	return out, nil
}

// RecordSessionEvent stores a copy of event.
func (m *MockStore) RecordSessionEvent(_ context.Context, event *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *event
	m.events = append(m.events, &e)
	return nil
}

// ListSessionEvents returns events in insertion order.
func (m *MockStore) ListSessionEvents(_ context.Context, sessionID string, limit int) ([]*SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*SessionEvent
	for _, e := range m.events {
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == effectiveLimit(limit) {
			break
		}
	}
	return out, nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
