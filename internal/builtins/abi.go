// ABOUTME: Yei Pool ABI and call encoding built on go-ethereum's accounts/abi.
// ABOUTME: Also validates addresses and scales decimal token amounts to base units.

package builtins

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAmount indicates an amount string that cannot be scaled to base units.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrInvalidAddress indicates a malformed 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid address")

// referralCode is passed to supply and borrow; Yei has no referral program.
const referralCode uint16 = 0

// poolABI covers the Pool entry points exposed by yei_build_transaction.
const poolABI = `[
	{"type":"function","name":"supply","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","outputs":[{"name":"","type":"uint256"}],"inputs":[
		{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"to","type":"address"}]},
	{"type":"function","name":"borrow","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"interestRateMode","type":"uint256"},{"name":"referralCode","type":"uint16"},
		{"name":"onBehalfOf","type":"address"}]},
	{"type":"function","name":"repay","stateMutability":"nonpayable","outputs":[{"name":"","type":"uint256"}],"inputs":[
		{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"interestRateMode","type":"uint256"},{"name":"onBehalfOf","type":"address"}]}
]`

var poolContract = mustParseABI(poolABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing pool ABI: %v", err))
	}
	return parsed
}

// poolCall is one encoded Pool invocation.
type poolCall struct {
	Signature string
	Data      []byte
}

// encodePoolCall packs action's arguments in Pool parameter order.
func encodePoolCall(action string, asset common.Address, amount *big.Int, account common.Address, rateMode *big.Int) (poolCall, error) {
	method, ok := poolContract.Methods[action]
	if !ok {
		return poolCall{}, fmt.Errorf("unknown action: %s", action)
	}

	var args []any
	switch action {
	case "supply":
		args = []any{asset, amount, account, referralCode}
	case "withdraw":
		args = []any{asset, amount, account}
	case "borrow":
		args = []any{asset, amount, rateMode, referralCode, account}
	case "repay":
		args = []any{asset, amount, rateMode, account}
	}

	data, err := poolContract.Pack(action, args...)
	if err != nil {
		return poolCall{}, fmt.Errorf("encoding %s: %w", action, err)
	}
	return poolCall{Signature: method.Sig, Data: data}, nil
}

// parseUnits scales a decimal string like "1.5" by 10^decimals.
func parseUnits(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.Sign() == 0 {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: overflows uint256", ErrInvalidAmount)
	}
	return v, nil
}

func parseAddress(addr string) (common.Address, error) {
	s := strings.TrimSpace(addr)
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(s), nil
}
