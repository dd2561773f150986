// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Keeps its filtering and summaries in line with SQLiteStore

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockStore_ToolCalls(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	now := time.Now()

	_ = m.RecordToolCall(ctx, &ToolCall{ID: "1", ToolName: "echo", Status: ToolCallOK, Duration: 4 * time.Millisecond, StartedAt: now})
	_ = m.RecordToolCall(ctx, &ToolCall{ID: "2", ToolName: "echo", Status: ToolCallFailed, Duration: 8 * time.Millisecond, StartedAt: now.Add(time.Second)})
	_ = m.RecordToolCall(ctx, &ToolCall{ID: "3", ToolName: "signer_status", Status: ToolCallOK, StartedAt: now.Add(2 * time.Second)})

	calls, _ := m.ListToolCalls(ctx, ToolCallFilter{ToolName: "echo"})
	if len(calls) != 2 || calls[0].ID != "2" {
		t.Fatalf("expected newest echo call first, got %+v", calls)
	}

	if _, err := m.GetToolCall(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	summaries, _ := m.SummarizeToolCalls(ctx, time.Time{})
	if len(summaries) != 2 || summaries[0].ToolName != "echo" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	if summaries[0].Failed != 1 || summaries[0].AvgDuration != 6*time.Millisecond {
		t.Errorf("unexpected echo summary: %+v", summaries[0])
	}
}

func TestMockStore_SessionEventsAndClose(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	_ = m.RecordSessionEvent(ctx, &SessionEvent{ID: "1", SessionID: "a", Kind: SessionOpened})
	_ = m.RecordSessionEvent(ctx, &SessionEvent{ID: "2", SessionID: "b", Kind: SessionOpened})

	events, _ := m.ListSessionEvents(ctx, "b", 0)
	if len(events) != 1 || events[0].ID != "2" {
		t.Errorf("unexpected events: %+v", events)
	}

	_ = m.Close()
	if !m.Closed() {
		t.Error("expected store to report closed")
	}
}
