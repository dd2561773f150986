// Package mcp implements the Model Context Protocol server for external tool access.
//
// # Transport
//
// Two delivery paths share one tool registry:
//
//   - GET /sse opens a Server-Sent Events stream. The first event is
//     "endpoint", whose data is the URL to POST messages to
//     (/messages?sessionId=<id>). Responses arrive as "message" events.
//   - POST /messages without a matching sessionId is plain request/response:
//     the JSON-RPC reply is the HTTP body.
//
// When the sessionId names an open stream, the POST is answered with an
// empty 200 straight away and the reply is pushed onto the stream. Messages
// for one session are processed one at a time, in the order they were
// received. Unknown session ids fall back to the direct path.
//
// A client may choose its own session id with GET /sse?sessionId=<id>. If the
// id is already open, the newer stream replaces the older one, which is
// terminated.
//
// # Methods
//
//   - initialize: echoes the client's protocolVersion and advertises tools,
//     resources and prompts capabilities
//   - tools/list: every registered tool with its JSON Schema
//   - tools/call: validates arguments, runs the tool, returns its value as result
//   - ping: returns {}
//   - notifications/*: acknowledged with an empty 200
//
// # Errors
//
// JSON-RPC traffic always uses HTTP 200. Failures are error envelopes:
//
//	-32600 invalid request (wrong jsonrpc version, missing method, duplicate id)
//	-32601 method or tool not found
//	-32602 invalid params or arguments
//	-32603 internal error (malformed body, tool failure, timeout, panic)
//	-32000 server not initialized
//
// # Other endpoints
//
// GET /health reports open sessions, POST /config sets the signing key, and
// GET / either redirects event-stream clients to /sse, renders an HTML tool
// catalog for browsers, or describes the server as JSON.
package mcp
