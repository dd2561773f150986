// ABOUTME: Tests for gateway wiring, the ledger API, and the run/shutdown lifecycle
// ABOUTME: Uses an in-memory ledger and httptest servers

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/sei-mcp-gateway/internal/config"
	"github.com/2389/sei-mcp-gateway/internal/store"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Path = store.MemoryPath
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

func newTestGateway(t *testing.T, cfg *config.Config) (*Gateway, *httptest.Server) {
	t.Helper()
	t.Setenv(EnvDBPath, "")

	gw, err := New(cfg, slog.Default())
	require.NoError(t, err)

	ts := httptest.NewServer(gw.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw, ts
}

func rpc(t *testing.T, ts *httptest.Server, body string) map[string]any {
	t.Helper()
	resp, err := http.Post(ts.URL+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return msg
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestNew_RegistersBuiltinsAndIsReady(t *testing.T) {
	gw, ts := newTestGateway(t, testConfig())

	assert.True(t, gw.registry.Ready())

	msg := rpc(t, ts, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	var names []string
	for _, item := range msg["result"].(map[string]any)["tools"].([]any) {
		names = append(names, item.(map[string]any)["name"].(string))
	}
	for _, want := range []string{"echo", "abi_selector", "signer_status", "yei_token_info", "yei_build_transaction"} {
		assert.Contains(t, names, want)
	}
}

func TestNew_ServerNameFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MCP.ServerName = "Sei-Tools"
	_, ts := newTestGateway(t, cfg)

	msg := rpc(t, ts, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	info := msg["result"].(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, "Sei-Tools", info["name"])
}

func TestNew_PrivateKeyFromEnv(t *testing.T) {
	t.Setenv(EnvPrivateKey, "0x"+testKey)
	gw, ts := newTestGateway(t, testConfig())

	assert.True(t, gw.keys.Configured())

	msg := rpc(t, ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"signer_status"}}`)
	assert.Equal(t, true, msg["result"].(map[string]any)["configured"])
}

func TestNew_InvalidPrivateKeyIsIgnored(t *testing.T) {
	t.Setenv(EnvPrivateKey, "not-a-key")
	gw, _ := newTestGateway(t, testConfig())
	assert.False(t, gw.keys.Configured())
}

func TestLedgerAPI(t *testing.T) {
	_, ts := newTestGateway(t, testConfig())

	rpc(t, ts, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"x":5}}}`)
	rpc(t, ts, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"abi_selector","arguments":{"signature":""}}}`)
	rpc(t, ts, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"abi_selector","arguments":{"signature":"transfer(address,uint256)"}}}`)

	var calls []ToolCallResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/calls", &calls))
	require.Len(t, calls, 3)
	assert.Equal(t, "abi_selector", calls[0].ToolName, "newest first")
	assert.Equal(t, "ok", calls[0].Status)
	assert.Equal(t, "rejected", calls[1].Status)
	assert.Equal(t, "echo", calls[2].ToolName)
	assert.JSONEq(t, `{"x":5}`, calls[2].Arguments)

	t.Run("filters", func(t *testing.T) {
		var filtered []ToolCallResponse
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/calls?tool=abi_selector&status=rejected", &filtered))
		require.Len(t, filtered, 1)
		assert.Contains(t, filtered[0].Error, "invalid arguments")

		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/calls?limit=1", &filtered))
		assert.Len(t, filtered, 1)
	})

	t.Run("single call", func(t *testing.T) {
		var call ToolCallResponse
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/calls/"+calls[2].ID, &call))
		assert.Equal(t, "echo", call.ToolName)

		assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/calls/missing", nil))
	})

	t.Run("summary", func(t *testing.T) {
		var summary []ToolSummaryResponse
		require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/calls/summary", &summary))
		require.Len(t, summary, 2)
		assert.Equal(t, "abi_selector", summary[0].ToolName)
		assert.Equal(t, 2, summary[0].Total)
		assert.Equal(t, 1, summary[0].Rejected)
		assert.Equal(t, "echo", summary[1].ToolName)
	})

	t.Run("bad parameters", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/calls?limit=0", nil))
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/calls?since=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/calls?status=maybe", nil))
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/calls/summary?since=x", nil))
	})
}

func TestSessionEventsAPI(t *testing.T) {
	gw, ts := newTestGateway(t, testConfig())

	resp, err := http.Get(ts.URL + "/sse?sessionId=audit-me")
	require.NoError(t, err)
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: endpoint\n", line)
	require.NoError(t, resp.Body.Close())

	assert.Eventually(t, func() bool { return gw.MCP().Sessions().Len() == 0 }, 3*time.Second, 10*time.Millisecond)

	var events []SessionEventResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/sessions/audit-me/events", &events))
	require.Len(t, events, 2)
	assert.Equal(t, "opened", events[0].Kind)
	assert.Equal(t, "closed", events[1].Kind)
}

func TestHealthService(t *testing.T) {
	t.Run("disabled without grpc_addr", func(t *testing.T) {
		gw, _ := newTestGateway(t, testConfig())
		assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, gw.HealthStatus(context.Background(), ""))
	})

	t.Run("serving until shutdown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Server.GRPCAddr = "127.0.0.1:0"
		gw, _ := newTestGateway(t, cfg)

		ctx := context.Background()
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, gw.HealthStatus(ctx, ""))
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, gw.HealthStatus(ctx, HealthService))

		require.NoError(t, gw.Shutdown(ctx))
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, gw.HealthStatus(ctx, ""))
	})
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	t.Setenv(EnvDBPath, "")

	gw, err := New(cfg, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	require.Eventually(t, func() bool { return gw.Addr() != nil }, 3*time.Second, 10*time.Millisecond)
	base := "http://" + gw.Addr().String()

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, base+"/health", &health))
	assert.Equal(t, "initialized", health["server"])

	// An open stream must not block shutdown.
	stream, err := http.Get(base + "/sse")
	require.NoError(t, err)
	defer stream.Body.Close()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = io.ReadAll(stream.Body)
	assert.NoError(t, err, "stream ends cleanly")

	assert.False(t, gw.registry.Ready())
	assert.NoError(t, gw.Shutdown(context.Background()), "second shutdown returns the first result")
}

func TestRun_InFlightCallDoesNotFailShutdown(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	gw, err := New(testConfig(), slog.Default())
	require.NoError(t, err)
	gw.shutdownTimeout = 200 * time.Millisecond

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, gw.registry.Register(&tools.Tool{
		Name: "stall",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			close(started)
			<-release
			return "finished", nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()
	require.Eventually(t, func() bool { return gw.Addr() != nil }, 3*time.Second, 10*time.Millisecond)

	go func() {
		resp, err := http.Post("http://"+gw.Addr().String()+"/messages", "application/json",
			strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"stall"}}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("tool call never started")
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the grace period")
	}
	assert.Equal(t, 1, gw.router.Running())
}

func TestRun_ListenError(t *testing.T) {
	blocker := httptest.NewServer(http.NotFoundHandler())
	defer blocker.Close()

	cfg := testConfig()
	host, port := splitHostPort(t, blocker.Listener.Addr().String())
	cfg.Server.Host = host
	cfg.Server.Port = port
	t.Setenv(EnvDBPath, "")

	gw, err := New(cfg, slog.Default())
	require.NoError(t, err)

	err = gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}

func TestDisplayURL(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:5004":   "http://localhost:5004",
		"[::]:5004":      "http://localhost:5004",
		"127.0.0.1:8080": "http://127.0.0.1:8080",
	}
	for in, want := range tests {
		addr := fakeAddr(in)
		assert.Equal(t, want, displayURL(addr), in)
	}
}

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, rawPort, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(rawPort)
	require.NoError(t, err)
	return host, port
}
