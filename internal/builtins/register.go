// ABOUTME: Registration helpers for built-in tool packs.
// ABOUTME: Called by the gateway during startup before the registry is marked ready.

package builtins

import (
	"github.com/2389/sei-mcp-gateway/internal/signer"
	"github.com/2389/sei-mcp-gateway/internal/tools"
)

// RegisterAll registers every built-in pack with the registry.
func RegisterAll(registry *tools.Registry, keys *signer.KeyStore) error {
	for _, pack := range []*tools.Pack{BasePack(keys), YeiPack()} {
		if err := registry.RegisterPack(pack); err != nil {
			return err
		}
	}
	return nil
}
