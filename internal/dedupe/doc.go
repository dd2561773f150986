// Package dedupe tracks recently seen request IDs per MCP session so a
// client retrying a tools/call with the same ID inside a configurable window
// is rejected instead of executing the tool twice.
package dedupe
