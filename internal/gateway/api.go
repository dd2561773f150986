// ABOUTME: Read-only HTTP API over the tool-call ledger and session history
// ABOUTME: Serves /api/calls, /api/calls/summary, /api/calls/{id}, and /api/sessions/{id}/events

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/sei-mcp-gateway/internal/store"
)

// maxListLimit caps the limit query parameter.
const maxListLimit = 500

// ToolCallResponse is the JSON form of one ledger entry.
type ToolCallResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id,omitempty"`
	ToolName   string `json:"tool_name"`
	Arguments  string `json:"arguments"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}

// ToolSummaryResponse is the JSON form of per-tool aggregates.
type ToolSummaryResponse struct {
	ToolName      string  `json:"tool_name"`
	Total         int     `json:"total"`
	Failed        int     `json:"failed"`
	Rejected      int     `json:"rejected"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// SessionEventResponse is the JSON form of a session lifecycle event.
type SessionEventResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Kind       string `json:"kind"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/calls", g.handleListCalls)
	mux.HandleFunc("GET /api/calls/summary", g.handleCallSummary)
	mux.HandleFunc("GET /api/calls/{id}", g.handleGetCall)
	mux.HandleFunc("GET /api/sessions/{id}/events", g.handleSessionEvents)
}

func toToolCallResponse(c *store.ToolCall) ToolCallResponse {
	return ToolCallResponse{
		ID:         c.ID,
		SessionID:  c.SessionID,
		ToolName:   c.ToolName,
		Arguments:  c.Arguments,
		Status:     string(c.Status),
		Error:      c.Error,
		DurationMS: c.Duration.Milliseconds(),
		StartedAt:  c.StartedAt.Format(time.RFC3339Nano),
	}
}

// handleListCalls handles GET /api/calls, newest first.
// Optional filters: tool, session, status, since (RFC 3339), limit.
func (g *Gateway) handleListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := parseSince(q.Get("since"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := store.ToolCallStatus(q.Get("status"))
	switch status {
	case "", store.ToolCallOK, store.ToolCallFailed, store.ToolCallRejected:
	default:
		g.sendJSONError(w, http.StatusBadRequest, "status must be ok, error, or rejected")
		return
	}

	calls, err := g.store.ListToolCalls(r.Context(), store.ToolCallFilter{
		ToolName:  q.Get("tool"),
		SessionID: q.Get("session"),
		Status:    status,
		Since:     since,
		Limit:     limit,
	})
	if err != nil {
		g.logger.Error("failed to list tool calls", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ToolCallResponse, len(calls))
	for i, c := range calls {
		response[i] = toToolCallResponse(c)
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGetCall handles GET /api/calls/{id}.
func (g *Gateway) handleGetCall(w http.ResponseWriter, r *http.Request) {
	call, err := g.store.GetToolCall(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "tool call not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get tool call", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toToolCallResponse(call))
}

// handleCallSummary handles GET /api/calls/summary with an optional since filter.
func (g *Gateway) handleCallSummary(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := g.store.SummarizeToolCalls(r.Context(), since)
	if err != nil {
		g.logger.Error("failed to summarize tool calls", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ToolSummaryResponse, len(summaries))
	for i, s := range summaries {
		response[i] = ToolSummaryResponse{
			ToolName:      s.ToolName,
			Total:         s.Total,
			Failed:        s.Failed,
			Rejected:      s.Rejected,
			AvgDurationMS: float64(s.AvgDuration) / float64(time.Millisecond),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSessionEvents handles GET /api/sessions/{id}/events, oldest first.
func (g *Gateway) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := g.store.ListSessionEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		g.logger.Error("failed to list session events", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]SessionEventResponse, len(events))
	for i, e := range events {
		response[i] = SessionEventResponse{
			ID:         e.ID,
			SessionID:  e.SessionID,
			Kind:       string(e.Kind),
			RemoteAddr: e.RemoteAddr,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	writeJSON(w, http.StatusOK, response)
}

var (
	errBadLimit = errors.New("limit must be a positive integer")
	errBadSince = errors.New("since must be an RFC 3339 timestamp")
)

// parseLimit reads an optional positive limit, capped at maxListLimit. Zero means the store default.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errBadLimit
	}
	return min(limit, maxListLimit), nil
}

func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errBadSince
	}
	return t, nil
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
