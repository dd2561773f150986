// ABOUTME: Response sinks for the two delivery paths of a JSON-RPC reply.
// ABOUTME: httpSink writes the POST body; streamSink pushes onto an open SSE session.

package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ResponseSink delivers the outcome of one inbound message.
type ResponseSink interface {
	// Send delivers a JSON-RPC response.
	Send(ctx context.Context, resp *Response) error
	// Ack acknowledges a message that has no response.
	Ack()
}

// httpSink answers on the POST that carried the message.
type httpSink struct {
	w      http.ResponseWriter
	logger *slog.Logger
}

func (h *httpSink) Send(_ context.Context, resp *Response) error {
	h.w.Header().Set("Content-Type", "application/json")
	h.w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(h.w).Encode(resp); err != nil {
		h.logger.Warn("failed to encode JSON-RPC response", "error", err)
		return err
	}
	return nil
}

func (h *httpSink) Ack() {
	h.w.WriteHeader(http.StatusOK)
}

// streamSink pushes onto a session. The POST was already acknowledged.
type streamSink struct {
	sess *Session
}

func (s *streamSink) Send(ctx context.Context, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return ErrSessionClosed
	}
	return s.sess.Send(resp)
}

func (s *streamSink) Ack() {}
