// ABOUTME: Tests for the tool router including validation, timeouts, and panics.
// ABOUTME: Also checks the concurrency cap and that every call lands in the ledger.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sei-mcp-gateway/internal/schema"
	"github.com/2389/sei-mcp-gateway/internal/store"
)

type memRecorder struct {
	mu    sync.Mutex
	calls []*store.ToolCall
	err   error
}

func (m *memRecorder) RecordToolCall(_ context.Context, call *store.ToolCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *memRecorder) snapshot() []*store.ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.ToolCall(nil), m.calls...)
}

// setupRouterTest creates a ready registry holding tools and a router over it.
func setupRouterTest(t *testing.T, cfg RouterConfig, tools ...*Tool) (*Router, *memRecorder) {
	t.Helper()
	registry := NewRegistry(nil)
	require.NoError(t, registry.RegisterPack(&Pack{ID: "test", Tools: tools}))
	registry.MarkReady()

	rec := &memRecorder{}
	cfg.Registry = registry
	cfg.Recorder = rec
	return NewRouter(cfg), rec
}

func TestRouterCall(t *testing.T) {
	greet := &Tool{
		Name: "greet",
		InputSchema: schema.Object(map[string]*schema.Schema{
			"name": schema.String("who to greet"),
		}, "name"),
		Handler: func(_ context.Context, args json.RawMessage) (any, error) {
			var in struct{ Name string }
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return map[string]string{"greeting": "hello " + in.Name}, nil
		},
	}

	t.Run("routes to handler and records success", func(t *testing.T) {
		router, rec := setupRouterTest(t, RouterConfig{}, greet)
		ctx := WithSession(context.Background(), "sess-1")

		result, err := router.Call(ctx, "greet", json.RawMessage(`{"name":"sei"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"greeting": "hello sei"}, result)

		calls := rec.snapshot()
		require.Len(t, calls, 1)
		assert.Equal(t, "greet", calls[0].ToolName)
		assert.Equal(t, "sess-1", calls[0].SessionID)
		assert.Equal(t, store.ToolCallOK, calls[0].Status)
		assert.NotEmpty(t, calls[0].ID)
	})

	t.Run("unknown tool", func(t *testing.T) {
		router, rec := setupRouterTest(t, RouterConfig{}, greet)
		_, err := router.Call(context.Background(), "nope", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
		assert.Empty(t, rec.snapshot())
	})

	t.Run("invalid arguments are rejected before the handler", func(t *testing.T) {
		router, rec := setupRouterTest(t, RouterConfig{}, greet)
		_, err := router.Call(context.Background(), "greet", json.RawMessage(`{"name":7}`))
		assert.ErrorIs(t, err, ErrInvalidArguments)

		calls := rec.snapshot()
		require.Len(t, calls, 1)
		assert.Equal(t, store.ToolCallRejected, calls[0].Status)
	})

	t.Run("missing arguments count as an empty object", func(t *testing.T) {
		var got string
		tool := &Tool{Name: "noargs", Handler: func(_ context.Context, args json.RawMessage) (any, error) {
			got = string(args)
			return "ok", nil
		}}
		router, _ := setupRouterTest(t, RouterConfig{}, tool)

		_, err := router.Call(context.Background(), "noargs", json.RawMessage("null"))
		require.NoError(t, err)
		assert.Equal(t, "{}", got)
	})

	t.Run("handler errors are returned and recorded", func(t *testing.T) {
		boom := errors.New("rpc unavailable")
		tool := &Tool{Name: "fail", Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, boom
		}}
		router, rec := setupRouterTest(t, RouterConfig{}, tool)

		_, err := router.Call(context.Background(), "fail", nil)
		assert.ErrorIs(t, err, boom)

		calls := rec.snapshot()
		require.Len(t, calls, 1)
		assert.Equal(t, store.ToolCallFailed, calls[0].Status)
		assert.Equal(t, "rpc unavailable", calls[0].Error)
	})

	t.Run("recorder failures do not fail the call", func(t *testing.T) {
		router, rec := setupRouterTest(t, RouterConfig{}, greet)
		rec.err = errors.New("disk full")

		_, err := router.Call(context.Background(), "greet", json.RawMessage(`{"name":"x"}`))
		assert.NoError(t, err)
	})
}

func TestRouterNotInitialized(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(newTestTool("a")))
	router := NewRouter(RouterConfig{Registry: registry})

	_, err := router.Call(context.Background(), "a", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	registry.MarkReady()
	_, err = router.Call(context.Background(), "a", nil)
	assert.NoError(t, err)
}

func TestRouterTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := &Tool{Name: "slow", Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return "late", nil
		}
	}}
	router, rec := setupRouterTest(t, RouterConfig{Timeout: 50 * time.Millisecond}, slow)
	defer close(release)

	start := time.Now()
	_, err := router.Call(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, store.ToolCallFailed, calls[0].Status)
}

func TestRouterCallerCancellation(t *testing.T) {
	blocked := &Tool{Name: "blocked", Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	router, _ := setupRouterTest(t, RouterConfig{}, blocked)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := router.Call(ctx, "blocked", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRouterPanicRecovery(t *testing.T) {
	tool := &Tool{Name: "panics", Handler: func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	}}
	router, _ := setupRouterTest(t, RouterConfig{}, tool)

	_, err := router.Call(context.Background(), "panics", nil)
	require.ErrorIs(t, err, ErrToolPanicked)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRouterConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	tool := &Tool{Name: "busy", Handler: func(context.Context, json.RawMessage) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}}
	router, _ := setupRouterTest(t, RouterConfig{MaxConcurrent: 2}, tool)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := router.Call(context.Background(), "busy", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRouterTimedOutHandlerKeepsSlot(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	stubborn := &Tool{Name: "stubborn", Handler: func(context.Context, json.RawMessage) (any, error) {
		started.Add(1)
		<-release
		return "done", nil
	}}
	router, _ := setupRouterTest(t, RouterConfig{MaxConcurrent: 1, Timeout: 30 * time.Millisecond}, stubborn)

	_, err := router.Call(context.Background(), "stubborn", nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, router.Running())

	// The abandoned handler still holds the only slot.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = router.Call(ctx, "stubborn", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	require.Eventually(t, func() bool { return router.Running() == 0 }, 2*time.Second, 5*time.Millisecond)

	// The slot is free again once the handler returns.
	go func() {
		_, _ = router.Call(context.Background(), "stubborn", nil)
	}()
	require.Eventually(t, func() bool { return started.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRouterShutdown(t *testing.T) {
	router, _ := setupRouterTest(t, RouterConfig{}, newTestTool("a"))

	require.NoError(t, router.Shutdown(context.Background()))

	_, err := router.Call(context.Background(), "a", nil)
	assert.ErrorIs(t, err, ErrRouterClosed)
}

func TestRouterDefaults(t *testing.T) {
	router := NewRouter(RouterConfig{Registry: NewRegistry(nil)})
	assert.Equal(t, DefaultTimeout, router.Timeout())
}
