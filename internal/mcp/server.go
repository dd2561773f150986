// ABOUTME: MCP server over SSE plus plain HTTP JSON-RPC, sharing one tool registry.
// ABOUTME: Routes each POST to its session stream or answers it directly in the body.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/sei-mcp-gateway/internal/dedupe"
	"github.com/2389/sei-mcp-gateway/internal/signer"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

// DefaultKeepaliveInterval is how often an idle stream receives a ping comment.
const DefaultKeepaliveInterval = 25 * time.Second

// Config holds configuration for the MCP server.
type Config struct {
	Registry *tools.Registry
	Router   *tools.Router
	Keys     *signer.KeyStore
	Events   EventRecorder // optional session event ledger
	Logger   *slog.Logger

	ServerName        string
	ServerVersion     string
	KeepaliveInterval time.Duration
	// DedupeWindow rejects a repeated tools/call id on one session for this long. Zero disables it.
	DedupeWindow time.Duration
}

// Server implements the MCP HTTP endpoints.
type Server struct {
	registry      *tools.Registry
	router        *tools.Router
	keys          *signer.KeyStore
	logger        *slog.Logger
	sessions      *Sessions
	dedupe        *dedupe.Window
	serverName    string
	serverVersion string
	keepalive     time.Duration
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Keys == nil {
		return nil, errors.New("key store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "EVM-Server"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "1.0.0"
	}
	keepalive := cfg.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = DefaultKeepaliveInterval
	}

	s := &Server{
		registry:      cfg.Registry,
		router:        cfg.Router,
		keys:          cfg.Keys,
		logger:        logger,
		sessions:      newSessions(logger, cfg.Events),
		dedupe:        dedupe.NewWindow(cfg.DedupeWindow, dedupe.DefaultMaxPerScope),
		serverName:    name,
		serverVersion: version,
		keepalive:     keepalive,
	}
	s.sessions.onRemove = s.dedupe.Forget
	return s, nil
}

// Sessions exposes the session registry.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// RegisterRoutes registers the MCP endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sse", s.handleSSE)
	mux.HandleFunc("POST /messages", s.handleMessages)
	mux.HandleFunc("POST /{$}", s.handleMessages)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /config", s.handleConfig)
}

// Handler returns the MCP endpoints wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return WithCORS(mux)
}

// WithCORS allows any origin and answers preflight requests with 204.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Private-Key")
		h.Set("Access-Control-Expose-Headers", "Content-Type, Access-Control-Allow-Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleSSE opens a stream and holds it until the client leaves or the session is replaced or closed.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Ready() {
		s.logger.Warn("server not initialized yet, rejecting SSE connection", "remote_addr", r.RemoteAddr)
		http.Error(w, "Server not initialized", http.StatusServiceUnavailable)
		return
	}

	sess, err := s.sessions.Open(r.Context(), r.URL.Query().Get("sessionId"), w, r.RemoteAddr)
	if err != nil {
		if errors.Is(err, ErrStreamingUnsupported) {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		if errors.Is(err, ErrShuttingDown) {
			http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
			return
		}
		s.logger.Warn("failed to open session", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-sess.Done():
			break loop
		case <-ticker.C:
			if err := sess.ping(); err != nil {
				break loop
			}
		}
	}

	s.sessions.release(sess)
	sess.terminate()
	sess.wait()
}

// handleMessages accepts one JSON-RPC message and routes its response.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendDirect(w, errorResponse(nil, JSONRPCInternalError, "Internal error: failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendDirect(w, errorResponse(nil, JSONRPCInvalidRequest, "Invalid Request: request body too large"))
		return
	}

	if sessionID != "" {
		if sess, ok := s.sessions.Get(sessionID); ok {
			sink := &streamSink{sess: sess}
			err := sess.Enqueue(func(ctx context.Context) {
				s.handleMessage(ctx, sink, sessionID, body)
			})
			if err == nil {
				w.WriteHeader(http.StatusOK)
				return
			}
			s.logger.Debug("session closed before message was queued", "session_id", sessionID)
		} else {
			s.logger.Debug("no matching session, answering directly", "session_id", sessionID)
		}
	}

	s.handleMessage(r.Context(), &httpSink{w: w, logger: s.logger}, "", body)
}

func (s *Server) sendDirect(w http.ResponseWriter, resp *Response) {
	sink := &httpSink{w: w, logger: s.logger}
	_ = sink.Send(context.Background(), resp)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status              string   `json:"status"`
	Server              string   `json:"server"`
	ActiveConnections   int      `json:"activeConnections"`
	ConnectedSessionIDs []string `json:"connectedSessionIds"`
}

// Health reports the server state and open sessions.
func (s *Server) Health() HealthStatus {
	state := "initializing"
	if s.registry.Ready() {
		state = "initialized"
	}
	ids := s.sessions.IDs()
	return HealthStatus{
		Status:              "ok",
		Server:              state,
		ActiveConnections:   len(ids),
		ConnectedSessionIDs: ids,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Health())
}

type configRequest struct {
	PrivateKey string `json:"privateKey"`
}

// handleConfig replaces the signing key used by tools.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBodySize)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.PrivateKey) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Private key is required"})
		return
	}

	if err := s.keys.Update(req.PrivateKey); err != nil {
		if errors.Is(err, signer.ErrInvalidKey) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Private key must be a 32-byte hex secp256k1 key"})
			return
		}
		s.logger.Error("failed to update private key", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update private key"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Private key updated successfully",
	})
}

// handleRoot redirects stream clients to /sse and describes the server to everyone else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/event-stream"):
		target := "/sse"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
	case strings.Contains(accept, "text/html"):
		s.handleCatalog(w, r)
	default:
		writeJSON(w, http.StatusOK, s.info())
	}
}

// ServerDescription is the JSON body of GET /.
type ServerDescription struct {
	Name              string            `json:"name"`
	Version           string            `json:"version"`
	Endpoints         map[string]string `json:"endpoints"`
	Status            string            `json:"status"`
	ActiveConnections int               `json:"activeConnections"`
}

func (s *Server) info() ServerDescription {
	status := "initializing"
	if s.registry.Ready() {
		status = "ready"
	}
	return ServerDescription{
		Name:    s.serverName,
		Version: s.serverVersion,
		Endpoints: map[string]string{
			"sse":      "/sse",
			"messages": "/messages",
			"health":   "/health",
			"config":   "/config",
		},
		Status:            status,
		ActiveConnections: s.sessions.Len(),
	}
}

// Close refuses new streams and ends every open session. The server keeps
// answering direct HTTP requests.
func (s *Server) Close() {
	s.sessions.CloseAll()
	s.dedupe.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
