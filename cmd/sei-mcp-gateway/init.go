// ABOUTME: Interactive `init` command that writes a gateway config file
// ABOUTME: Prompts for listener, ledger, tailscale, and logging settings

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/sei-mcp-gateway/internal/config"
)

// initAnswers holds the values collected by runInit.
type initAnswers struct {
	Host         string
	Port         int
	GRPCAddr     string
	ServerName   string
	CallTimeout  string
	DedupeWindow string
	DBPath       string
	Tailscale    bool
	TSHostname   string
	TSAuthKey    string
	TSEphemeral  bool
	LogLevel     string
	LogFormat    string
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("sei-mcp-gateway configuration setup")
	fmt.Println("===================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	def := config.Default()
	var a initAnswers

	fmt.Println("\n--- Server ---")
	a.Host = prompt(reader, "Listen host", def.Server.Host)
	port, err := strconv.Atoi(prompt(reader, "Listen port", strconv.Itoa(def.Server.Port)))
	if err != nil {
		return fmt.Errorf("port must be a number: %w", err)
	}
	a.Port = port
	a.GRPCAddr = prompt(reader, "gRPC health address (empty to disable)", "")

	fmt.Println("\n--- MCP ---")
	a.ServerName = prompt(reader, "Server name", def.MCP.ServerName)
	a.CallTimeout = prompt(reader, "Tool call timeout", def.Tools.CallTimeout.String())
	a.DedupeWindow = prompt(reader, "Duplicate request id window (0s disables)", "0s")

	fmt.Println("\n--- Ledger ---")
	a.DBPath = prompt(reader, "SQLite database path", def.Database.Path)

	fmt.Println("\n--- Tailscale ---")
	a.Tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, "Tailscale hostname", def.Tailscale.Hostname)
		a.TSAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		a.TSEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", def.Logging.Level)
	a.LogFormat = prompt(reader, "Log format (text/json)", def.Logging.Format)

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// The written file must load as-is.
	if _, err := config.Load(outputFile); err != nil {
		return fmt.Errorf("written config does not load: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Println("  sei-mcp-gateway serve")
	return nil
}

// renderConfig produces the YAML written by init.
func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# sei-mcp-gateway configuration\n")
	b.WriteString("# Generated by sei-mcp-gateway init\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  host: %q\n", a.Host)
	fmt.Fprintf(&b, "  port: %d\n", a.Port)
	if a.GRPCAddr != "" {
		fmt.Fprintf(&b, "  grpc_addr: %q\n", a.GRPCAddr)
	}
	b.WriteString("\n")

	b.WriteString("mcp:\n")
	fmt.Fprintf(&b, "  server_name: %q\n", a.ServerName)
	fmt.Fprintf(&b, "  keepalive_interval: %q\n", config.DefaultKeepaliveInterval.String())
	fmt.Fprintf(&b, "  dedupe_window: %q\n", a.DedupeWindow)
	b.WriteString("\n")

	b.WriteString("tools:\n")
	fmt.Fprintf(&b, "  call_timeout: %q\n", a.CallTimeout)
	fmt.Fprintf(&b, "  max_concurrent: %d\n", config.DefaultMaxConcurrent)
	b.WriteString("\n")

	b.WriteString("database:\n")
	fmt.Fprintf(&b, "  path: %q\n", a.DBPath)
	b.WriteString("\n")

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.Tailscale)
	if a.Tailscale {
		fmt.Fprintf(&b, "  hostname: %q\n", a.TSHostname)
		if a.TSAuthKey != "" {
			fmt.Fprintf(&b, "  auth_key: %q\n", a.TSAuthKey)
		}
		fmt.Fprintf(&b, "  ephemeral: %t\n", a.TSEphemeral)
	}
	b.WriteString("\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n", a.LogFormat)
	return b.String()
}

func yes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		fmt.Println()
		return defaultVal
	}
	if input == "" {
		return defaultVal
	}
	return input
}
