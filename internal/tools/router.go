// ABOUTME: Routes tool calls to registered handlers with validation and limits.
// ABOUTME: Handles argument checks, timeouts, panics, concurrency caps, and the call ledger.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	"github.com/2389/sei-mcp-gateway/internal/schema"
	"github.com/2389/sei-mcp-gateway/internal/store"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrInvalidArguments indicates the arguments failed schema validation.
var ErrInvalidArguments = errors.New("invalid arguments")

// ErrNotInitialized indicates the registry has not finished loading tools.
var ErrNotInitialized = errors.New("tool registry not initialized")

// ErrTimeout indicates the handler did not finish within the call timeout.
var ErrTimeout = errors.New("tool execution timed out")

// ErrToolPanicked indicates the handler panicked.
var ErrToolPanicked = errors.New("tool panicked")

// ErrRouterClosed indicates the router is shutting down.
var ErrRouterClosed = errors.New("router closed")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 30 * time.Second

// DefaultMaxConcurrent bounds in-flight handlers when no limit is configured.
const DefaultMaxConcurrent = 16

// maxRecordedArgs caps the argument bytes copied into the ledger.
const maxRecordedArgs = 4096

// Recorder persists a ledger entry for every completed call.
type Recorder interface {
	RecordToolCall(ctx context.Context, call *store.ToolCall) error
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry      *Registry
	Logger        *slog.Logger
	Timeout       time.Duration
	MaxConcurrent int
	Recorder      Recorder // optional
}

// Router executes tool calls against a Registry.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	sem      *semaphore.Weighted
	recorder Recorder

	inflight conc.WaitGroup
	running  atomic.Int64
	closed   atomic.Bool
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: cfg.Registry,
		logger:   logger,
		timeout:  timeout,
		sem:      semaphore.NewWeighted(int64(limit)),
		recorder: cfg.Recorder,
	}
}

// Timeout returns the per-call timeout.
func (r *Router) Timeout() time.Duration {
	return r.timeout
}

// Call validates args against the tool's schema and runs its handler.
// Errors wrap one of the package sentinels so callers can map them with errors.Is.
func (r *Router) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	if r.closed.Load() {
		return nil, ErrRouterClosed
	}
	if r.registry == nil || !r.registry.Ready() {
		return nil, ErrNotInitialized
	}

	tool, ok := r.registry.Lookup(name)
	if !ok {
		r.logger.Debug("tool not found in registry", "tool_name", name)
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	callID := uuid.New().String()
	started := time.Now()

	if err := schema.Validate(tool.InputSchema, args); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		r.record(ctx, callID, name, args, started, err)
		return nil, err
	}

	r.logger.Info("→ dispatching tool",
		"tool_name", name,
		"call_id", callID,
		"session_id", SessionFromContext(ctx),
	)

	result, err := r.execute(ctx, tool, args)
	r.record(ctx, callID, name, args, started, err)

	if err != nil {
		r.logger.Warn("tool error",
			"tool_name", name,
			"call_id", callID,
			"duration", time.Since(started),
			"error", err,
		)
		return nil, err
	}

	r.logger.Info("← tool responded",
		"tool_name", name,
		"call_id", callID,
		"duration", time.Since(started),
	)
	return result, nil
}

type outcome struct {
	result any
	err    error
}

// execute runs the handler under the call timeout, converting panics to errors.
// The handler keeps running after a timeout until it observes ctx, and keeps
// its concurrency slot until it returns.
func (r *Router) execute(ctx context.Context, tool *Tool, args json.RawMessage) (any, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)

	done := make(chan outcome, 1)
	r.running.Add(1)
	r.inflight.Go(func() {
		defer r.sem.Release(1)
		defer r.running.Add(-1)
		defer cancel()
		var out outcome
		if rec := panics.Try(func() { out.result, out.err = tool.Handler(ctx, args) }); rec != nil {
			out = outcome{err: fmt.Errorf("%w: %v", ErrToolPanicked, rec.Value)}
		}
		done <- out
	})

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		}
		return nil, ctx.Err()
	}
}

// record writes the ledger entry. Failures are logged, never returned.
func (r *Router) record(ctx context.Context, callID, name string, args json.RawMessage, started time.Time, callErr error) {
	if r.recorder == nil {
		return
	}

	recorded := string(args)
	if len(recorded) > maxRecordedArgs {
		recorded = recorded[:maxRecordedArgs]
	}

	call := &store.ToolCall{
		ID:        callID,
		SessionID: SessionFromContext(ctx),
		ToolName:  name,
		Arguments: recorded,
		Status:    store.ToolCallOK,
		StartedAt: started.UTC(),
		Duration:  time.Since(started),
	}
	switch {
	case errors.Is(callErr, ErrInvalidArguments):
		call.Status = store.ToolCallRejected
		call.Error = callErr.Error()
	case callErr != nil:
		call.Status = store.ToolCallFailed
		call.Error = callErr.Error()
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.recorder.RecordToolCall(recCtx, call); err != nil {
		r.logger.Warn("failed to record tool call", "call_id", callID, "error", err)
	}
}

// Running returns the number of handlers still executing, including ones
// whose callers already gave up on them.
func (r *Router) Running() int {
	return int(r.running.Load())
}

// Shutdown rejects new calls and waits for running handlers or ctx, whichever is first.
func (r *Router) Shutdown(ctx context.Context) error {
	r.closed.Store(true)

	waited := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tool handlers: %w", ctx.Err())
	}
}
