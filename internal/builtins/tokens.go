// ABOUTME: Catalog of assets listed on the Yei lending market on Sei EVM.
// ABOUTME: Lookups are case-insensitive by symbol or by contract address.

package builtins

import (
	"sort"
	"strings"
)

// YeiPoolProxy is the Yei Pool contract that lending calls are sent to.
const YeiPoolProxy = "0x4a4d9abD36F923cBA0Af62A39C01dEC2944fb638"

// Token describes one Yei-listed asset and its reserve tokens.
type Token struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	Decimals          int    `json:"decimals"`
	AToken            string `json:"aToken,omitempty"`
	VariableDebtToken string `json:"variableDebtToken,omitempty"`
	StableDebtToken   string `json:"stableDebtToken,omitempty"`
}

var yeiTokens = []Token{
	{
		Symbol: "USDC", Name: "USD Coin", Decimals: 6,
		Address:           "0x3894085Ef7Ff0f0aeDf52E2A2704928d1Ec074F1",
		AToken:            "0xc1a6F27a4CcbABB1C2b1F8E98478e52d3D3cB935",
		VariableDebtToken: "0x5Bfc2d187e8c7F51BE6d547B43A1b3160D72a142",
		StableDebtToken:   "0xe8348837A3be3212e50f030dff935ae0a0ea4b54",
	},
	{
		Symbol: "USDT", Name: "Tether USD", Decimals: 6,
		Address:           "0xB75D0B03c06A926e488e2659DF1A861F860bD3d1",
		AToken:            "0x945C042a18A90Dd7adb88922387D12EfE32F4171",
		VariableDebtToken: "0x25eA70DC3332b9960E1284D57ED2f6A90d4a8373",
		StableDebtToken:   "0x04Ba7e1387dcBE7e1fC43Dc8dE5dE8A73a77b1ee",
	},
	{
		Symbol: "ISEI", Name: "Interest SEI", Decimals: 6,
		Address:           "0x5cf6826140c1c56ff49c808a1a75407cd1df9423",
		AToken:            "0x160345fc359604fc6e70e3c5facbde5f7a9342d8",
		VariableDebtToken: "0x43edd7f3831b08fe70b7555ddd373c8bf65a9050",
		StableDebtToken:   "0x43edd7f3831b08fe70b7555ddd373c8bf65a9050",
	},
	{
		Symbol: "WSEI", Name: "Wrapped SEI", Decimals: 18,
		Address:           "0xE30feDd158A2e3b13e9badaeABaFc5516e95e8C7",
		AToken:            "0x809FF4801aA5bDb33045d1fEC810D082490D63a4",
		VariableDebtToken: "0x648e683aaE7C18132564F8B48C625aE5038A9607",
		StableDebtToken:   "0x4dE99D1f91A1d731966fa250b432fF17C9C234d9",
	},
	{Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18, Address: "0x160345fc359604fc6e70e3c5facbde5f7a9342d8"},
	{Symbol: "WBTC", Name: "Wrapped Bitcoin", Decimals: 8, Address: "0x0555e30da8f98308edb960aa94c0db47230d2b9c"},
	{Symbol: "fastUSD", Name: "Fast USD", Decimals: 18, Address: "0x37a4dd9ced2b19cfe8fac251cd727b5787e45269"},
	{Symbol: "sfastUSD", Name: "Staked Fast USD", Decimals: 18, Address: "0xdf77686d99667ae56bc18f539b777dbc2bbe3e9f"},
	{Symbol: "sfrxETH", Name: "Staked frxETH", Decimals: 18, Address: "0x3ec3849c33291a9ef4c5db86de593eb4a37fde45"},
	{Symbol: "frxUSD", Name: "Frax USD", Decimals: 18, Address: "0x80eede496655fb9047dd39d9f418d5483ed600df"},
	{Symbol: "sfrxUSD", Name: "Staked frxUSD", Decimals: 18, Address: "0x5bff88ca1442c2496f7e475e9e7786383bc070c0"},
	{Symbol: "frxETH", Name: "Frax ETH", Decimals: 18, Address: "0x43edd7f3831b08fe70b7555ddd373c8bf65a9050"},
}

// LookupToken finds a token by symbol or address, ignoring case.
func LookupToken(symbolOrAddress string) (Token, bool) {
	q := strings.TrimSpace(symbolOrAddress)
	for _, t := range yeiTokens {
		if strings.EqualFold(t.Symbol, q) || strings.EqualFold(t.Address, q) {
			return t, true
		}
	}
	return Token{}, false
}

// Tokens returns the catalog sorted by symbol.
func Tokens() []Token {
	out := append([]Token(nil), yeiTokens...)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Symbol) < strings.ToLower(out[j].Symbol)
	})
	return out
}
