// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - ToolCall: one tools/call request with its outcome, duration, and session
//   - SessionEvent: a stream opening, being replaced by a reconnect, or closing
//
// Both tables are append-only ledgers. Nothing in the request path reads them;
// the CLI's calls command and operators do.
//
// # SQLite Configuration
//
// File databases use WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// The special path ":memory:" opens a private in-memory database limited to a
// single connection.
//
// # Migrations
//
// Migrations are embedded from internal/store/migrations/ and applied with a
// goose provider every time the store is opened.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
