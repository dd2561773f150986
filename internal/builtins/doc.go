// Package builtins provides the tool packs compiled into the gateway.
//
// # Tool Packs
//
// Base Pack (builtin:base):
//
//   - echo: Return the arguments unchanged
//   - abi_selector: 4-byte selector for a Solidity function signature
//   - signer_status: Whether a signing key is configured, and its fingerprint
//
// Yei Pack (builtin:yei):
//
//   - yei_token_info: Token catalog lookups by symbol or address
//   - yei_build_transaction: Unsigned Pool supply/withdraw/borrow/repay calldata
//
// # Registration
//
//	builtins.RegisterAll(registry, keys)
//
// Each tool declares a schema.Schema; the router validates arguments against
// it before a handler runs, so handlers only decode the fields they need.
package builtins
