// Package config handles configuration loading for sei-mcp-gateway.
//
// The gateway runs without any file: Default supplies every value and the
// MCP_SERVER_HOST and MCP_SERVER_PORT environment variables move the
// listener (0.0.0.0:5004 otherwise). A file, YAML or TOML by extension,
// overrides whatever it names.
//
// # Environment Variable Expansion
//
// Values can reference environment variables before parsing:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  host: "0.0.0.0"
//	  port: 5004
//	  grpc_addr: ""              # set to serve grpc.health.v1
//
//	mcp:
//	  server_name: "EVM-Server"
//	  server_version: "1.0.0"
//	  keepalive_interval: "25s"  # ": ping" comment cadence on idle streams
//	  dedupe_window: "0s"        # >0 rejects repeated tools/call ids per session
//
//	tools:
//	  call_timeout: "30s"
//	  max_concurrent: 16
//
//	database:
//	  path: "~/.local/share/sei-mcp/ledger.db"   # or ":memory:"
//
//	tailscale:
//	  enabled: false
//	  hostname: "sei-mcp"
//	  auth_key: ""
//	  state_dir: ""
//	  ephemeral: false
//
//	logging:
//	  level: "info"              # debug, info, warn, error
//	  format: "text"             # text or json
//
// Durations use time.ParseDuration syntax.
package config
