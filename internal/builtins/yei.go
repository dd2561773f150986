// ABOUTME: Yei pack exposes the Yei lending market catalog and call encoding.
// ABOUTME: Builds unsigned Pool transactions; nothing here touches the network.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/2389/sei-mcp-gateway/internal/schema"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

// YeiPackID identifies the Yei pack in the registry.
const YeiPackID = "builtin:yei"

// Interest rate modes accepted by borrow and repay.
const (
	rateModeStable   = 1
	rateModeVariable = 2
)

// YeiPack creates the Yei lending pack.
func YeiPack() *tools.Pack {
	addressPattern := `^0x[0-9a-fA-F]{40}$`
	return &tools.Pack{
		ID: YeiPackID,
		Tools: []*tools.Tool{
			{
				Name:        "yei_token_info",
				Description: "Look up a Yei-listed token by symbol or address; omit both to list every token",
				InputSchema: schema.Object(map[string]*schema.Schema{
					"symbol": schema.String("Token symbol, e.g. USDC (case-insensitive)"),
					"address": schema.String("Token contract address").
						WithPattern(addressPattern),
				}).Strict(),
				Handler: tokenInfo,
			},
			{
				Name:        "yei_build_transaction",
				Description: "Build an unsigned Yei Pool supply, withdraw, borrow, or repay transaction",
				InputSchema: schema.Object(map[string]*schema.Schema{
					"action": schema.String("Pool operation").
						WithEnum("supply", "withdraw", "borrow", "repay"),
					"asset": schema.String("Token symbol or address"),
					"amount": schema.String("Decimal amount in token units, e.g. 1.5").
						WithPattern(`^[0-9]*\.?[0-9]+$`),
					"account": schema.String("Address supplying, receiving, or owing the funds").
						WithPattern(addressPattern),
					"interestRateMode": schema.Integer("1 = stable, 2 = variable (borrow and repay only)").
						WithRange(rateModeStable, rateModeVariable).
						WithDefault(rateModeVariable),
				}, "action", "asset", "amount", "account").Strict(),
				Handler: buildTransaction,
			},
		},
	}
}

type tokenInfoInput struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

func tokenInfo(_ context.Context, args json.RawMessage) (any, error) {
	var in tokenInfoInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	query := in.Symbol
	if query == "" {
		query = in.Address
	}
	if query == "" {
		return map[string]any{"tokens": Tokens()}, nil
	}

	tok, ok := LookupToken(query)
	if !ok {
		return nil, fmt.Errorf("token not supported: %s", query)
	}
	return tok, nil
}

type buildTxInput struct {
	Action           string `json:"action"`
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	Account          string `json:"account"`
	InterestRateMode *int   `json:"interestRateMode"`
}

// UnsignedTx is a Pool call ready to be signed by the caller's wallet.
type UnsignedTx struct {
	To              string `json:"to"`
	Data            string `json:"data"`
	Value           string `json:"value"`
	Function        string `json:"function"`
	Asset           Token  `json:"asset"`
	AmountBaseUnits string `json:"amountBaseUnits"`
}

func buildTransaction(_ context.Context, args json.RawMessage) (any, error) {
	var in buildTxInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	tok, ok := LookupToken(in.Asset)
	if !ok {
		return nil, fmt.Errorf("token not supported: %s", in.Asset)
	}
	amount, err := parseUnits(in.Amount, tok.Decimals)
	if err != nil {
		return nil, err
	}
	asset, err := parseAddress(tok.Address)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress(in.Account)
	if err != nil {
		return nil, err
	}
	mode := big.NewInt(rateModeVariable)
	if in.InterestRateMode != nil {
		mode = big.NewInt(int64(*in.InterestRateMode))
	}

	call, err := encodePoolCall(in.Action, asset, amount, account, mode)
	if err != nil {
		return nil, err
	}
	return UnsignedTx{
		To:              YeiPoolProxy,
		Data:            hexutil.Encode(call.Data),
		Value:           "0",
		Function:        call.Signature,
		Asset:           tok,
		AmountBaseUnits: amount.String(),
	}, nil
}
