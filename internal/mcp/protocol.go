// ABOUTME: JSON-RPC 2.0 envelope types and MCP result shapes.
// ABOUTME: Parses inbound messages tolerantly and recovers ids from malformed bodies.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JSONRPCVersion is the only protocol version accepted in the jsonrpc field.
const JSONRPCVersion = "2.0"

// DefaultProtocolVersion is advertised when initialize omits protocolVersion.
const DefaultProtocolVersion = "2024-11-05"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603

	// JSONRPCNotInitialized is returned while the tool registry is still loading.
	JSONRPCNotInitialized = -32000
)

// Request is an inbound JSON-RPC message. ID is nil when the client sent none.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the message is an MCP notification, which is
// acknowledged without a response envelope.
func (r *Request) IsNotification() bool {
	return strings.HasPrefix(r.Method, "notifications/")
}

// HasID reports whether the message carries a non-null id.
func (r *Request) HasID() bool {
	return len(r.ID) > 0 && string(r.ID) != "null"
}

// Response is an outbound JSON-RPC message carrying exactly one of Result or Error.
type Response struct {
	ID     json.RawMessage
	Result any
	Error  *RPCError
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// MarshalJSON always emits id, and emits result (possibly null) unless Error is set.
func (r *Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *RPCError       `json:"error"`
		}{JSONRPCVersion, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{JSONRPCVersion, id, r.Result})
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{ID: id, Error: &RPCError{Code: code, Message: message}}
}

// idPattern finds a top-level-looking "id" member in text that failed to parse.
var idPattern = regexp.MustCompile(`"id"\s*:\s*("(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?|null)`)

// recoverID extracts the request id from a body that could not be decoded.
func recoverID(body []byte) json.RawMessage {
	m := idPattern.FindSubmatch(body)
	if m == nil {
		return nil
	}
	id := json.RawMessage(bytes.Clone(m[1]))
	if !json.Valid(id) {
		return nil
	}
	return id
}

// parseRequest decodes one JSON-RPC message. On failure it returns the error
// response to send, carrying the request id when it can be recovered.
func parseRequest(body []byte) (*Request, *Response) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errorResponse(nil, JSONRPCInternalError, "Internal error: empty request body")
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errorResponse(recoverID(trimmed), JSONRPCInternalError,
			fmt.Sprintf("Internal error: malformed message: %v", err))
	}

	// A missing jsonrpc member is tolerated; a wrong one is not.
	if req.JSONRPC != "" && req.JSONRPC != JSONRPCVersion {
		return nil, errorResponse(req.ID, JSONRPCInvalidRequest,
			fmt.Sprintf("Invalid Request: unsupported jsonrpc version %q", req.JSONRPC))
	}
	if req.Method == "" {
		return nil, errorResponse(req.ID, JSONRPCInvalidRequest, "Invalid Request: method is required")
	}
	return &req, nil
}

// InitializeParams are the params for initialize.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities advertises the feature groups the server answers.
type ServerCapabilities struct {
	Tools     struct{} `json:"tools"`
	Resources struct{} `json:"resources"`
	Prompts   struct{} `json:"prompts"`
}

// ServerInfo names the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolInfo represents an MCP tool definition.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
