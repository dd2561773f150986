// ABOUTME: Context helpers carrying call metadata into tool handlers.
// ABOUTME: The MCP layer tags calls with the session that issued them.

package tools

import "context"

type sessionKey struct{}

// WithSession returns a context tagged with the MCP session issuing a call.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session ID set by WithSession, or "".
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
