// ABOUTME: SSE session registry mapping session ids to open event streams.
// ABOUTME: Each session drains a FIFO queue on one worker so responses keep submission order.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/2389/sei-mcp-gateway/internal/store"
)

// ErrSessionClosed indicates the session's stream has ended.
var ErrSessionClosed = errors.New("session closed")

// ErrStreamingUnsupported indicates the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// ErrShuttingDown indicates the registry no longer accepts streams.
var ErrShuttingDown = errors.New("server shutting down")

// sessionQueueSize bounds messages waiting for a session's worker.
const sessionQueueSize = 64

// job is one queued message for a session's worker.
type job func(ctx context.Context)

// Session is one open SSE stream.
type Session struct {
	id         string
	remoteAddr string
	createdAt  time.Time

	w       http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan job
	worker conc.WaitGroup
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Done is closed when the stream ends for any reason.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Enqueue schedules fn on the session's worker after everything queued before it.
func (s *Session) Enqueue(fn func(ctx context.Context)) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	select {
	case s.queue <- fn:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Send pushes a JSON-RPC response to the client as an SSE message event.
func (s *Session) Send(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return s.writeEvent("message", data)
}

func (s *Session) writeEvent(event string, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ping writes an SSE comment frame so intermediaries keep the stream open.
func (s *Session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// start writes the SSE headers and the endpoint event.
func (s *Session) start() error {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)

	return s.writeEvent("endpoint", []byte("/messages?sessionId="+s.id))
}

func (s *Session) run() {
	s.worker.Go(func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case fn := <-s.queue:
				fn(s.ctx)
			}
		}
	})
}

// terminate ends the stream. No writes happen after it returns.
func (s *Session) terminate() {
	s.cancel()
	s.writeMu.Lock()
	s.closed = true
	s.writeMu.Unlock()
}

// wait blocks until the worker has exited. Queued jobs not yet started are discarded.
func (s *Session) wait() {
	s.worker.Wait()
}

// EventRecorder persists session lifecycle events.
type EventRecorder interface {
	RecordSessionEvent(ctx context.Context, event *store.SessionEvent) error
}

// Sessions is the registry of open streams keyed by session id.
type Sessions struct {
	mu      sync.RWMutex
	byID    map[string]*Session
	closing bool // set by CloseAll; Open refuses new streams
	logger  *slog.Logger
	events  EventRecorder

	// onRemove runs after an entry leaves the map through Close or release.
	onRemove func(id string)
}

func newSessions(logger *slog.Logger, events EventRecorder) *Sessions {
	return &Sessions{
		byID:   make(map[string]*Session),
		logger: logger,
		events: events,
	}
}

// Open registers a stream for requestedID (or a fresh UUID when empty) and
// writes the endpoint event. A session already registered under the id is
// replaced and its stream terminated.
func (m *Sessions) Open(ctx context.Context, requestedID string, w http.ResponseWriter, remoteAddr string) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	id := requestedID
	if id == "" {
		id = uuid.New().String()
	}

	sctx, cancel := context.WithCancel(ctx)
	sess := &Session{
		id:         id,
		remoteAddr: remoteAddr,
		createdAt:  time.Now(),
		w:          w,
		flusher:    flusher,
		ctx:        sctx,
		cancel:     cancel,
		queue:      make(chan job, sessionQueueSize),
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		cancel()
		return nil, ErrShuttingDown
	}
	old := m.byID[id]
	m.byID[id] = sess
	m.mu.Unlock()

	if old != nil {
		m.logger.Warn("session id reused, replacing open stream",
			"session_id", id,
			"old_remote_addr", old.remoteAddr,
			"new_remote_addr", remoteAddr,
		)
		old.terminate()
		m.record(id, store.SessionReplaced, old.remoteAddr)
	}

	if err := sess.start(); err != nil {
		m.discard(sess)
		sess.terminate()
		return nil, fmt.Errorf("writing endpoint event: %w", err)
	}

	sess.run()
	m.logger.Info("session opened",
		"session_id", id,
		"remote_addr", remoteAddr,
		"client_provided_id", requestedID != "",
	)
	m.record(id, store.SessionOpened, remoteAddr)
	return sess, nil
}

// Get returns the open session registered under id.
func (m *Sessions) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.byID[id]
	return sess, ok
}

// Close removes the session and terminates its stream. Unknown ids are a no-op.
func (m *Sessions) Close(id string) bool {
	m.mu.Lock()
	sess, ok := m.byID[id]
	delete(m.byID, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	sess.terminate()
	m.removed(sess)
	return true
}

// release removes sess only if it is still the registered entry for its id,
// so a replaced stream disconnecting late never evicts its successor.
func (m *Sessions) release(sess *Session) bool {
	m.mu.Lock()
	current, ok := m.byID[sess.id]
	if ok && current == sess {
		delete(m.byID, sess.id)
	}
	m.mu.Unlock()

	if !ok || current != sess {
		return false
	}
	m.removed(sess)
	return true
}

// discard drops a session that never finished opening. No lifecycle events are emitted.
func (m *Sessions) discard(sess *Session) {
	m.mu.Lock()
	if m.byID[sess.id] == sess {
		delete(m.byID, sess.id)
	}
	m.mu.Unlock()
}

func (m *Sessions) removed(sess *Session) {
	m.logger.Info("session closed",
		"session_id", sess.id,
		"duration", time.Since(sess.createdAt).Round(time.Millisecond),
	)
	m.record(sess.id, store.SessionClosed, sess.remoteAddr)
	if m.onRemove != nil {
		m.onRemove(sess.id)
	}
}

// IDs returns the open session ids, sorted. Never nil.
func (m *Sessions) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions.
func (m *Sessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// CloseAll stops accepting streams, then closes every open session, logging each one.
func (m *Sessions) CloseAll() {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	for _, id := range m.IDs() {
		m.logger.Info("closing session", "session_id", id)
		m.Close(id)
	}
}

func (m *Sessions) record(id string, kind store.SessionEventKind, remoteAddr string) {
	if m.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := m.events.RecordSessionEvent(ctx, &store.SessionEvent{
		ID:         uuid.New().String(),
		SessionID:  id,
		Kind:       kind,
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		m.logger.Warn("failed to record session event", "session_id", id, "kind", kind, "error", err)
	}
}
