// ABOUTME: Entry point for sei-mcp-gateway, the MCP tool server for Sei EVM clients
// ABOUTME: Serves MCP over SSE and plain HTTP, and queries a running server

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/sei-mcp-gateway/internal/config"
	"github.com/2389/sei-mcp-gateway/internal/gateway"
)

// version is set with -ldflags "-X main.version=..." at build time.
var version = "dev"

const banner = `
           _                                               _
 ___  ___ (_)      _ __ ___   ___ _ __         __ _  __ _| |_ ___
/ __|/ _ \| |_____| '_ ' _ \ / __| '_ \ _____ / _' |/ _' | __/ _ \
\__ \  __/| |_____| | | | | | (__| |_) |_____| (_| | (_| | ||  __/
|___/\___||_|     |_| |_| |_|\___| .__/       \__, |\__,_|\__\___|
                                 |_|          |___/
`

// EnvConfig names the config file, overriding the XDG location.
const EnvConfig = "SEI_MCP_CONFIG"

// getConfigPath returns the path to the gateway config file.
// Priority: SEI_MCP_CONFIG env var > XDG_CONFIG_HOME/sei-mcp/gateway.yaml > ~/.config/sei-mcp/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "sei-mcp", "gateway.yaml")
}

func usage() {
	fmt.Println("Usage: sei-mcp-gateway <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the MCP server")
	fmt.Println("  init      Create a new config file interactively")
	fmt.Println("  health    Check a running server's health")
	fmt.Println("  tools     List the tools a running server exposes")
	fmt.Println("  calls     Show recent tool calls from a running server (--limit, --tool, --summary)")
	fmt.Println("  version   Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "health":
		err = runHealth(ctx)
	case "tools":
		err = runTools(ctx)
	case "calls":
		err = runCalls(ctx, args)
	case "version", "--version", "-v":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file when present, otherwise runs on defaults.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, fromFile, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	if !fromFile {
		configPath = "(defaults)"
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.HTTPAddr())
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s (health)\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Ledger:    %s\n", cfg.Database.Path)
	if cfg.MCP.DedupeWindow > 0 {
		green.Print("    ▶ ")
		fmt.Printf("Dedupe:    %s\n", cfg.MCP.DedupeWindow)
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if os.Getenv(gateway.EnvPrivateKey) == "" {
		yellow.Println("    ! no signing key yet; POST /config or set " + gateway.EnvPrivateKey)
	}

	fmt.Println()

	logger.Info("starting sei-mcp-gateway",
		"version", version,
		"config", configPath,
		"http_addr", cfg.HTTPAddr(),
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("goodbye")
	return nil
}
