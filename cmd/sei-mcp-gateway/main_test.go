// ABOUTME: Tests for the CLI: config rendering, logging, and client commands
// ABOUTME: Client commands run against an in-process gateway

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sei-mcp-gateway/internal/config"
	"github.com/2389/sei-mcp-gateway/internal/gateway"
	"github.com/2389/sei-mcp-gateway/internal/store"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/sei-mcp.toml")
	assert.Equal(t, "/etc/sei-mcp.toml", getConfigPath())

	t.Setenv(EnvConfig, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "sei-mcp", "gateway.yaml"), getConfigPath())
}

func TestRenderConfig_Loads(t *testing.T) {
	a := initAnswers{
		Host:         "127.0.0.1",
		Port:         5010,
		GRPCAddr:     "127.0.0.1:50051",
		ServerName:   "EVM-Server",
		CallTimeout:  "20s",
		DedupeWindow: "1m",
		DBPath:       filepath.Join(t.TempDir(), "ledger.db"),
		Tailscale:    true,
		TSHostname:   "sei-mcp",
		TSEphemeral:  true,
		LogLevel:     "debug",
		LogFormat:    "json",
	}

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(renderConfig(a)), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5010", cfg.HTTPAddr())
	assert.Equal(t, "127.0.0.1:50051", cfg.Server.GRPCAddr)
	assert.Equal(t, 20*time.Second, cfg.Tools.CallTimeout)
	assert.Equal(t, time.Minute, cfg.MCP.DedupeWindow)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.True(t, cfg.Tailscale.Ephemeral)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestRunInit_AcceptsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sei-mcp", "gateway.yaml")
	t.Setenv(EnvConfig, path)
	t.Setenv("XDG_DATA_HOME", dir)

	// Every prompt takes its default.
	require.NoError(t, runInit(strings.NewReader(strings.Repeat("\n", 20))))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.False(t, cfg.Tailscale.Enabled)
	assert.Equal(t, filepath.Join(dir, "sei-mcp", "ledger.db"), cfg.Database.Path)
}

func TestSetupLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
		logger.Info("hidden")
		logger.Warn("shown", "tool_name", "echo")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "shown", rec["msg"])
		assert.Equal(t, "echo", rec["tool_name"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
		logger.With("component", "mcp").WithGroup("req").Debug("dispatch", "method", "ping", slog.Group("ids", "session", "s1"))

		out := buf.String()
		assert.Contains(t, out, "[mcp]")
		assert.Contains(t, out, "dispatch")
		assert.Contains(t, out, "req.method=")
		assert.Contains(t, out, "req.ids.session=")
		assert.True(t, strings.HasSuffix(out, "\n"))
		assert.Equal(t, 1, strings.Count(out, "\n"))
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewAPIClient(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://localhost:5004", newAPIClient(cfg).baseURL)

	cfg.Server.Host = "10.1.2.3"
	cfg.Server.Port = 7000
	assert.Equal(t, "http://10.1.2.3:7000", newAPIClient(cfg).baseURL)

	cfg.Tailscale.Enabled = true
	assert.Equal(t, "http://sei-mcp", newAPIClient(cfg).baseURL)
}

func newTestClient(t *testing.T) *apiClient {
	t.Helper()
	t.Setenv(gateway.EnvDBPath, "")

	cfg := config.Default()
	cfg.Database.Path = store.MemoryPath
	gw, err := gateway.New(cfg, slog.Default())
	require.NoError(t, err)

	ts := httptest.NewServer(gw.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })

	return &apiClient{baseURL: ts.URL, http: ts.Client()}
}

func TestClientCommands(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, checkHealth(ctx, c, &out))
		assert.Contains(t, out.String(), "healthy (0 open session(s))")
	})

	t.Run("tools", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, listTools(ctx, c, &out))
		assert.Contains(t, out.String(), "abi_selector")
		assert.Contains(t, out.String(), "yei_build_transaction")
	})

	t.Run("calls", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, showCalls(ctx, c, &out, "", 10))
		assert.Contains(t, out.String(), "no tool calls recorded")

		var echoed json.RawMessage
		require.NoError(t, c.rpc(ctx, "tools/call", map[string]any{"name": "echo", "arguments": map[string]int{"x": 5}}, &echoed))
		assert.JSONEq(t, `{"x":5}`, string(echoed))

		out.Reset()
		require.NoError(t, showCalls(ctx, c, &out, "echo", 10))
		assert.Contains(t, out.String(), "echo")

		out.Reset()
		require.NoError(t, showSummary(ctx, c, &out))
		assert.Contains(t, out.String(), "TOTAL")
		assert.Contains(t, out.String(), "echo")
	})

	t.Run("rpc errors surface", func(t *testing.T) {
		var result any
		err := c.rpc(ctx, "tools/call", map[string]any{"name": "nope"}, &result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Tool not found")
	})

	t.Run("http errors surface", func(t *testing.T) {
		err := c.getJSON(ctx, "/api/calls?limit=-1", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
	})
}

func TestClientCommands_ServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c := &apiClient{baseURL: ts.URL, http: &http.Client{Timeout: time.Second}}
	assert.Error(t, checkHealth(context.Background(), c, &bytes.Buffer{}))
}
