// ABOUTME: Tests for schema rendering and argument validation.
// ABOUTME: Covers nil schemas, nested objects, enums, and gojsonschema failures.

package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSONSchema_Nil(t *testing.T) {
	out := ToJSONSchema(nil)

	assert.Equal(t, "object", out["type"])
	assert.Equal(t, map[string]any{}, out["properties"])
	assert.Equal(t, []string{}, out["required"])
	assert.Equal(t, Draft, out["$schema"])
}

func TestToJSONSchema_Object(t *testing.T) {
	s := Object(map[string]*Schema{
		"symbol": String("Token symbol").WithEnum("USDC", "WSEI"),
		"amount": Number("Amount").WithRange(0, 1000),
		"tags":   Array(String(""), "Labels"),
	}, "symbol", "amount").Strict()

	raw, err := MarshalJSONSchema(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, false, decoded["additionalProperties"])
	assert.Equal(t, []any{"amount", "symbol"}, decoded["required"])

	props := decoded["properties"].(map[string]any)
	symbol := props["symbol"].(map[string]any)
	assert.Equal(t, []any{"USDC", "WSEI"}, symbol["enum"])
	amount := props["amount"].(map[string]any)
	assert.Equal(t, float64(1000), amount["maximum"])
	tags := props["tags"].(map[string]any)
	assert.Equal(t, "string", tags["items"].(map[string]any)["type"])

	_, nested := symbol["$schema"]
	assert.False(t, nested, "$schema only appears at the root")
}

func TestToJSONSchema_OmitsUnsetAdditional(t *testing.T) {
	out := ToJSONSchema(Object(nil))
	_, ok := out["additionalProperties"]
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	s := Object(map[string]*Schema{
		"signature": String("Function signature").WithPattern(`^[A-Za-z_][A-Za-z0-9_]*\(.*\)$`),
		"count":     Integer("How many"),
	}, "signature")

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: `{"signature":"transfer(address,uint256)","count":2}`},
		{name: "missing required", doc: `{"count":2}`, wantErr: true},
		{name: "wrong type", doc: `{"signature":"f()","count":"two"}`, wantErr: true},
		{name: "pattern mismatch", doc: `{"signature":"not a signature"}`, wantErr: true},
		{name: "malformed json", doc: `{"signature":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(s, json.RawMessage(tt.doc))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalid))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_EmptyDocumentIsEmptyObject(t *testing.T) {
	assert.NoError(t, Validate(nil, nil))
	assert.NoError(t, Validate(Object(nil), json.RawMessage("null")))

	err := Validate(Object(map[string]*Schema{"x": Number("")}, "x"), nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate_StrictRejectsExtras(t *testing.T) {
	s := Object(map[string]*Schema{"a": String("")}).Strict()
	assert.ErrorIs(t, Validate(s, json.RawMessage(`{"a":"x","b":1}`)), ErrInvalid)
	assert.NoError(t, Validate(Object(nil).Open(), json.RawMessage(`{"b":1}`)))
}
