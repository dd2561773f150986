// ABOUTME: Tests for JSON-RPC parsing and response encoding.
// ABOUTME: Covers id recovery from malformed bodies and the result-or-error invariant.

package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantID   string
	}{
		{name: "valid", body: `{"jsonrpc":"2.0","id":1,"method":"ping"}`},
		{name: "missing jsonrpc is tolerated", body: `{"id":"a","method":"ping"}`},
		{name: "wrong jsonrpc", body: `{"jsonrpc":"1.0","id":3,"method":"ping"}`, wantCode: JSONRPCInvalidRequest, wantID: "3"},
		{name: "missing method", body: `{"jsonrpc":"2.0","id":4}`, wantCode: JSONRPCInvalidRequest, wantID: "4"},
		{name: "truncated keeps numeric id", body: `{"jsonrpc":"2.0","id":9,"method":`, wantCode: JSONRPCInternalError, wantID: "9"},
		{name: "truncated keeps string id", body: `{"id":"req-\"7\"","method":"tools/call","params":{`, wantCode: JSONRPCInternalError, wantID: `"req-\"7\""`},
		{name: "garbage has null id", body: `not json at all`, wantCode: JSONRPCInternalError, wantID: "null"},
		{name: "wrong shape keeps id", body: `{"id":12,"method":42}`, wantCode: JSONRPCInternalError, wantID: "12"},
		{name: "empty body", body: ``, wantCode: JSONRPCInternalError, wantID: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, resp := parseRequest([]byte(tt.body))
			if tt.wantCode == 0 {
				require.Nil(t, resp)
				require.NotNil(t, req)
				return
			}
			require.Nil(t, req)
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			raw, err := json.Marshal(resp)
			require.NoError(t, err)
			var decoded struct {
				ID json.RawMessage `json:"id"`
			}
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, tt.wantID, string(decoded.ID))
		})
	}
}

func TestRequest_IsNotification(t *testing.T) {
	assert.True(t, (&Request{Method: "notifications/initialized"}).IsNotification())
	assert.True(t, (&Request{Method: "notifications/cancelled", ID: json.RawMessage("3")}).IsNotification())
	assert.False(t, (&Request{Method: "tools/call"}).IsNotification())
	assert.False(t, (&Request{Method: "bogus/method", ID: json.RawMessage("null")}).IsNotification())
}

func TestRequest_HasID(t *testing.T) {
	assert.False(t, (&Request{}).HasID())
	assert.False(t, (&Request{ID: json.RawMessage("null")}).HasID())
	assert.True(t, (&Request{ID: json.RawMessage("0")}).HasID())
	assert.True(t, (&Request{ID: json.RawMessage(`"a"`)}).HasID())
}

func TestResponse_MarshalJSON(t *testing.T) {
	t.Run("nil result is still emitted", func(t *testing.T) {
		raw, err := json.Marshal(resultResponse(json.RawMessage("1"), nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":null}`, string(raw))
	})

	t.Run("error omits result", func(t *testing.T) {
		raw, err := json.Marshal(errorResponse(json.RawMessage(`"x"`), JSONRPCMethodNotFound, "Method not found: foo"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"Method not found: foo"}}`, string(raw))
	})

	t.Run("missing id encodes as null", func(t *testing.T) {
		raw, err := json.Marshal(errorResponse(nil, JSONRPCInternalError, "boom"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"boom"}}`, string(raw))
	})
}
