// Package gateway orchestrates the sei-mcp-gateway server components.
//
// # Overview
//
// New builds everything from a config.Config:
//
//   - the SQLite call ledger (store.NewSQLiteStore, SEI_MCP_DB_PATH overrides the path)
//   - the signing key store, seeded from SEI_PRIVATE_KEY when set
//   - the tool registry with every built-in pack, then marked ready
//   - the tool router, recording each call in the ledger
//   - the MCP server, recording session lifecycle events in the ledger
//   - an optional gRPC server exposing grpc.health.v1 when server.grpc_addr is set
//
// # HTTP Endpoints
//
// The MCP endpoints (/sse, /messages, /, /health, /config) come from the mcp
// package. The gateway adds a read-only view of the ledger:
//
//	GET /api/calls?tool=&session=&status=&since=&limit=
//	GET /api/calls/summary?since=
//	GET /api/calls/{id}
//	GET /api/sessions/{id}/events?limit=
//
// # Listeners
//
// Run listens on server.host:server.port, or joins the tailnet through tsnet
// and listens on :80 when tailscale.enabled is set. The servers run in an
// errgroup; the first failure or the end of the context triggers shutdown.
//
// # Shutdown
//
// Shutdown marks the health service NOT_SERVING, closes every MCP session,
// drains HTTP, waits for running tool handlers, stops gRPC and tsnet, then
// closes the ledger and the registry.
package gateway
