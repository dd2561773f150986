// ABOUTME: Per-session sliding window of recently seen request IDs.
// ABOUTME: Rejects retried tools/call requests that reuse an ID inside the window.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxPerScope bounds the IDs tracked for a single scope.
const DefaultMaxPerScope = 1024

type seenKey struct {
	key     string
	expires time.Time
}

// bucket tracks keys for one scope, oldest at the front.
type bucket struct {
	keys  map[string]*list.Element
	order *list.List
}

func (b *bucket) removeFront() {
	front := b.order.Front()
	if front == nil {
		return
	}
	k, _ := front.Value.(*seenKey)
	b.order.Remove(front)
	delete(b.keys, k.key)
}

// Window remembers keys per scope for a fixed TTL.
// A zero TTL disables it: Seen always reports false and nothing is stored.
type Window struct {
	mu          sync.Mutex
	scopes      map[string]*bucket
	ttl         time.Duration
	maxPerScope int
	now         func() time.Time
	done        chan struct{}
	closed      bool
}

// NewWindow creates a window. A background goroutine sweeps expired keys
// until Close is called.
func NewWindow(ttl time.Duration, maxPerScope int) *Window {
	if maxPerScope <= 0 {
		maxPerScope = DefaultMaxPerScope
	}
	w := &Window{
		scopes:      make(map[string]*bucket),
		ttl:         ttl,
		maxPerScope: maxPerScope,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	if ttl > 0 {
		go w.sweepLoop()
	}
	return w
}

// Enabled reports whether the window tracks anything.
func (w *Window) Enabled() bool {
	return w != nil && w.ttl > 0
}

// Seen atomically checks whether key was seen in scope within the TTL and
// marks it if not. Returns true for a duplicate.
func (w *Window) Seen(scope, key string) bool {
	if !w.Enabled() {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	b, ok := w.scopes[scope]
	if !ok {
		b = &bucket{keys: make(map[string]*list.Element), order: list.New()}
		w.scopes[scope] = b
	}

	if elem, exists := b.keys[key]; exists {
		k, _ := elem.Value.(*seenKey)
		if now.Before(k.expires) {
			return true
		}
		b.order.Remove(elem)
		delete(b.keys, key)
	}

	if len(b.keys) >= w.maxPerScope {
		b.removeFront()
	}
	b.keys[key] = b.order.PushBack(&seenKey{key: key, expires: now.Add(w.ttl)})
	return false
}

// Forget drops every key remembered for scope.
func (w *Window) Forget(scope string) {
	if !w.Enabled() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.scopes, scope)
}

// Len returns the number of keys tracked across all scopes.
func (w *Window) Len() int {
	if !w.Enabled() {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, b := range w.scopes {
		n += len(b.keys)
	}
	return n
}

func (w *Window) sweepLoop() {
	interval := w.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.done:
			return
		}
	}
}

// sweep removes expired keys and empty scopes. Keys are in expiry order
// within a bucket, so each bucket stops at its first live key.
func (w *Window) sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for scope, b := range w.scopes {
		for front := b.order.Front(); front != nil; front = b.order.Front() {
			k, _ := front.Value.(*seenKey)
			if now.Before(k.expires) {
				break
			}
			b.removeFront()
		}
		if len(b.keys) == 0 {
			delete(w.scopes, scope)
		}
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
