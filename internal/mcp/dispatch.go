// ABOUTME: Protocol method dispatch for inbound JSON-RPC messages.
// ABOUTME: Maps initialize, tools/list, tools/call, and notifications onto the tool runtime.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/2389/sei-mcp-gateway/internal/schema"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

// handleMessage parses body, dispatches it, and delivers the outcome through sink.
func (s *Server) handleMessage(ctx context.Context, sink ResponseSink, sessionID string, body []byte) {
	req, errResp := parseRequest(body)
	if errResp != nil {
		s.logger.Warn("rejected malformed message", "session_id", sessionID, "error", errResp.Error.Message)
		s.deliver(ctx, sink, sessionID, errResp)
		return
	}

	var resp *Response
	if rec := panics.Try(func() { resp = s.dispatch(ctx, sessionID, req) }); rec != nil {
		s.logger.Error("panic while dispatching", "method", req.Method, "panic", rec.Value)
		resp = errorResponse(req.ID, JSONRPCInternalError, fmt.Sprintf("Internal error: %v", rec.Value))
	}

	if resp == nil {
		sink.Ack()
		return
	}
	s.deliver(ctx, sink, sessionID, resp)
}

func (s *Server) deliver(ctx context.Context, sink ResponseSink, sessionID string, resp *Response) {
	if err := sink.Send(ctx, resp); err != nil {
		s.logger.Warn("dropping response for closed channel",
			"session_id", sessionID,
			"id", string(resp.ID),
			"error", err,
		)
	}
}

// dispatch runs one request. A nil response means acknowledge without a body.
func (s *Server) dispatch(ctx context.Context, sessionID string, req *Request) *Response {
	start := time.Now()
	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.IsNotification(),
		"session_id", sessionID,
	)

	if req.IsNotification() {
		if req.HasID() {
			s.logger.Warn("notification sent with an id", "method", req.Method, "id", string(req.ID))
		}
		return nil
	}

	var resp *Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "ping":
		resp = resultResponse(req.ID, struct{}{})
	case "tools/list":
		resp = s.handleToolsList(req)
	case "tools/call":
		resp = s.handleToolsCall(ctx, sessionID, req)
	default:
		resp = errorResponse(req.ID, JSONRPCMethodNotFound, "Method not found: "+req.Method)
	}

	s.logger.Debug("MCP request complete",
		"method", req.Method,
		"session_id", sessionID,
		"is_error", resp.Error != nil,
		"duration", time.Since(start),
	)
	return resp
}

func (s *Server) handleInitialize(req *Request) *Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		// Unknown or malformed params fall back to the default version.
		_ = json.Unmarshal(req.Params, &params)
	}
	version := params.ProtocolVersion
	if version == "" {
		version = DefaultProtocolVersion
	}

	return resultResponse(req.ID, InitializeResult{
		ProtocolVersion: version,
		ServerInfo: ServerInfo{
			Name:    s.serverName,
			Version: s.serverVersion,
		},
	})
}

func (s *Server) handleToolsList(req *Request) *Response {
	if !s.registry.Ready() {
		return errorResponse(req.ID, JSONRPCNotInitialized, "server not initialized")
	}

	list := s.registry.ListTools()
	result := ListToolsResult{Tools: make([]ToolInfo, len(list))}
	for i, tool := range list {
		result.Tools[i] = ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema.ToJSONSchema(tool.InputSchema),
		}
	}

	s.logger.Debug("tools/list", "count", len(list))
	return resultResponse(req.ID, result)
}

func (s *Server) handleToolsCall(ctx context.Context, sessionID string, req *Request) *Response {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "Invalid params: "+err.Error())
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "Invalid params: tool name is required")
	}

	if sessionID != "" && req.HasID() && s.dedupe.Seen(sessionID, string(req.ID)) {
		s.logger.Warn("duplicate tools/call id", "session_id", sessionID, "id", string(req.ID), "tool_name", params.Name)
		return errorResponse(req.ID, JSONRPCInvalidRequest, "duplicate request id")
	}

	result, err := s.router.Call(tools.WithSession(ctx, sessionID), params.Name, params.Arguments)
	if err != nil {
		return s.toolErrorResponse(req.ID, params.Name, err)
	}
	return resultResponse(req.ID, result)
}

// toolErrorResponse maps router errors onto JSON-RPC error codes.
func (s *Server) toolErrorResponse(id json.RawMessage, toolName string, err error) *Response {
	switch {
	case errors.Is(err, tools.ErrNotInitialized):
		return errorResponse(id, JSONRPCNotInitialized, "server not initialized")
	case errors.Is(err, tools.ErrToolNotFound):
		return errorResponse(id, JSONRPCMethodNotFound, "Tool not found or invalid handler: "+toolName)
	case errors.Is(err, tools.ErrInvalidArguments):
		return errorResponse(id, JSONRPCInvalidParams, fmt.Sprintf("Invalid arguments for tool %s: %v", toolName, err))
	default:
		return errorResponse(id, JSONRPCInternalError, fmt.Sprintf("Error calling tool %s: %v", toolName, err))
	}
}
