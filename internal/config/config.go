// ABOUTME: Configuration loading and parsing for sei-mcp-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvServerPort = "MCP_SERVER_PORT"
	EnvServerHost = "MCP_SERVER_HOST"
)

// Defaults used when neither the file nor the environment sets a value.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 5004
	DefaultServerName        = "EVM-Server"
	DefaultServerVersion     = "1.0.0"
	DefaultKeepaliveInterval = 25 * time.Second
	DefaultCallTimeout       = 30 * time.Second
	DefaultMaxConcurrent     = 16
)

// Config represents the complete sei-mcp-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	MCP       MCPConfig       `yaml:"mcp" toml:"mcp"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
	// GRPCAddr enables the gRPC health service when set.
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
}

// MCPConfig holds protocol-facing settings
type MCPConfig struct {
	ServerName    string `yaml:"server_name" toml:"server_name"`
	ServerVersion string `yaml:"server_version" toml:"server_version"`

	KeepaliveInterval time.Duration `yaml:"-" toml:"-"`
	DedupeWindow      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	KeepaliveIntervalRaw string `yaml:"keepalive_interval" toml:"keepalive_interval"`
	DedupeWindowRaw      string `yaml:"dedupe_window" toml:"dedupe_window"`
}

// ToolsConfig holds tool execution limits
type ToolsConfig struct {
	CallTimeout    time.Duration `yaml:"-" toml:"-"`
	CallTimeoutRaw string        `yaml:"call_timeout" toml:"call_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent" toml:"max_concurrent"`
}

// DatabaseConfig holds the call ledger location. ":memory:" keeps it in RAM.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DataDir returns the directory holding the ledger database.
// Priority: XDG_DATA_HOME/sei-mcp > ~/.local/share/sei-mcp
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "sei-mcp")
}

// Default returns a configuration that runs with no file present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		MCP: MCPConfig{
			ServerName:        DefaultServerName,
			ServerVersion:     DefaultServerVersion,
			KeepaliveInterval: DefaultKeepaliveInterval,
		},
		Tools: ToolsConfig{
			CallTimeout:   DefaultCallTimeout,
			MaxConcurrent: DefaultMaxConcurrent,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(DataDir(), "ledger.db"),
		},
		Tailscale: TailscaleConfig{
			Hostname: "sei-mcp",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Values the file leaves out keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
// The boolean reports whether a file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, true, err
		}
	}

	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func finish(cfg *Config) error {
	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnv lets the environment override the listen address.
func applyEnv(cfg *Config) error {
	if host := strings.TrimSpace(os.Getenv(EnvServerHost)); host != "" {
		cfg.Server.Host = host
	}
	if raw := strings.TrimSpace(os.Getenv(EnvServerPort)); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s=%q is not a port number", EnvServerPort, raw)
		}
		cfg.Server.Port = port
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"mcp.keepalive_interval", cfg.MCP.KeepaliveIntervalRaw, &cfg.MCP.KeepaliveInterval},
		{"mcp.dedupe_window", cfg.MCP.DedupeWindowRaw, &cfg.MCP.DedupeWindow},
		{"tools.call_timeout", cfg.Tools.CallTimeoutRaw, &cfg.Tools.CallTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.MCP.KeepaliveInterval <= 0 {
		return fmt.Errorf("mcp.keepalive_interval must be positive")
	}
	if c.MCP.DedupeWindow < 0 {
		return fmt.Errorf("mcp.dedupe_window must not be negative")
	}
	if c.Tools.CallTimeout <= 0 {
		return fmt.Errorf("tools.call_timeout must be positive")
	}
	if c.Tools.MaxConcurrent < 0 {
		return fmt.Errorf("tools.max_concurrent must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}

	return nil
}

// HTTPAddr returns the host:port the MCP HTTP server listens on.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
