// ABOUTME: Base pack provides general-purpose tools: echo, abi_selector, signer_status.
// ABOUTME: Always registered so a fresh gateway has something to call.

package builtins

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/sei-mcp-gateway/internal/schema"
	"github.com/2389/sei-mcp-gateway/internal/signer"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

// BasePackID identifies the base pack in the registry.
const BasePackID = "builtin:base"

// BasePack creates the base pack. keys backs signer_status.
func BasePack(keys *signer.KeyStore) *tools.Pack {
	b := &baseHandlers{keys: keys}
	return &tools.Pack{
		ID: BasePackID,
		Tools: []*tools.Tool{
			{
				Name:        "echo",
				Description: "Return the arguments unchanged",
				InputSchema: schema.Object(nil).Open(),
				Handler:     b.Echo,
			},
			{
				Name:        "abi_selector",
				Description: "Compute the 4-byte EVM function selector for a Solidity signature",
				InputSchema: schema.Object(map[string]*schema.Schema{
					"signature": schema.String("Canonical signature, e.g. transfer(address,uint256)").
						WithPattern(`^[A-Za-z_][A-Za-z0-9_]*\(.*\)$`),
				}, "signature").Strict(),
				Handler: b.ABISelector,
			},
			{
				Name:        "signer_status",
				Description: "Report whether a signing key is configured, with its address and fingerprint",
				InputSchema: schema.Object(nil).Strict(),
				Handler:     b.SignerStatus,
			},
		},
	}
}

type baseHandlers struct {
	keys *signer.KeyStore
}

// Echo returns its input verbatim.
func (b *baseHandlers) Echo(_ context.Context, args json.RawMessage) (any, error) {
	return args, nil
}

type abiSelectorInput struct {
	Signature string `json:"signature"`
}

type abiSelectorOutput struct {
	Signature string `json:"signature"`
	Selector  string `json:"selector"`
}

func (b *baseHandlers) ABISelector(_ context.Context, args json.RawMessage) (any, error) {
	var in abiSelectorInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	// Canonical signatures carry no whitespace.
	sig := strings.Join(strings.Fields(in.Signature), "")
	sel := signer.Selector(sig)
	return abiSelectorOutput{
		Signature: sig,
		Selector:  "0x" + hex.EncodeToString(sel[:]),
	}, nil
}

func (b *baseHandlers) SignerStatus(_ context.Context, _ json.RawMessage) (any, error) {
	if b.keys == nil {
		return signer.Status{}, nil
	}
	return b.keys.Status(), nil
}
