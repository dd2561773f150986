// ABOUTME: Client-side commands that query a running gateway over HTTP
// ABOUTME: health, tools (via JSON-RPC tools/list), and calls (via the ledger API)

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/sei-mcp-gateway/internal/config"
	"github.com/2389/sei-mcp-gateway/internal/gateway"
	"github.com/2389/sei-mcp-gateway/internal/mcp"
)

// apiClient talks to a running gateway.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient targets the server described by cfg.
func newAPIClient(cfg *config.Config) *apiClient {
	if cfg.Tailscale.Enabled {
		return &apiClient{baseURL: "http://" + cfg.Tailscale.Hostname, http: &http.Client{Timeout: 10 * time.Second}}
	}
	host := cfg.Server.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return &apiClient{
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *apiClient) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, v)
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *mcp.RPCError   `json:"error"`
}

// rpc sends one JSON-RPC request on the direct HTTP path and decodes its result.
func (c *apiClient) rpc(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": mcp.JSONRPCVersion,
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var reply rpcReply
	if err := c.do(req, &reply); err != nil {
		return err
	}
	if reply.Error != nil {
		return reply.Error
	}
	return json.Unmarshal(reply.Result, result)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	return checkHealth(ctx, newAPIClient(cfg), os.Stdout)
}

func checkHealth(ctx context.Context, c *apiClient, w io.Writer) error {
	var health mcp.HealthStatus
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if health.Server != "initialized" {
		return fmt.Errorf("unhealthy: server is %s", health.Server)
	}

	fmt.Fprintf(w, "healthy (%d open session(s))\n", health.ActiveConnections)
	for _, id := range health.ConnectedSessionIDs {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

func runTools(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	return listTools(ctx, newAPIClient(cfg), os.Stdout)
}

func listTools(ctx context.Context, c *apiClient, w io.Writer) error {
	var result mcp.ListToolsResult
	if err := c.rpc(ctx, "tools/list", struct{}{}, &result); err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}

	bold := color.New(color.Bold)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, tool := range result.Tools {
		fmt.Fprintf(tw, "%s\t%s\n", bold.Sprint(tool.Name), tool.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d tool(s)\n", len(result.Tools))
	return nil
}

func runCalls(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calls", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of calls to show")
	tool := fs.String("tool", "", "only show calls to this tool")
	summary := fs.Bool("summary", false, "show per-tool totals instead of individual calls")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	c := newAPIClient(cfg)
	if *summary {
		return showSummary(ctx, c, os.Stdout)
	}
	return showCalls(ctx, c, os.Stdout, *tool, *limit)
}

func showCalls(ctx context.Context, c *apiClient, w io.Writer, tool string, limit int) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if tool != "" {
		q.Set("tool", tool)
	}

	var calls []gateway.ToolCallResponse
	if err := c.getJSON(ctx, "/api/calls?"+q.Encode(), &calls); err != nil {
		return fmt.Errorf("listing calls: %w", err)
	}
	if len(calls) == 0 {
		fmt.Fprintln(w, "no tool calls recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTOOL\tSTATUS\tDURATION\tSESSION")
	for _, call := range calls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%s\n",
			call.StartedAt, call.ToolName, statusLabel(call.Status), call.DurationMS, call.SessionID)
	}
	return tw.Flush()
}

func showSummary(ctx context.Context, c *apiClient, w io.Writer) error {
	var summary []gateway.ToolSummaryResponse
	if err := c.getJSON(ctx, "/api/calls/summary", &summary); err != nil {
		return fmt.Errorf("summarizing calls: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tTOTAL\tFAILED\tREJECTED\tAVG")
	for _, s := range summary {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1fms\n", s.ToolName, s.Total, s.Failed, s.Rejected, s.AvgDurationMS)
	}
	return tw.Flush()
}

func statusLabel(status string) string {
	switch status {
	case "ok":
		return color.GreenString(status)
	case "rejected":
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}
