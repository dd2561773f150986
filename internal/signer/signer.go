// ABOUTME: Process-wide signing key state shared by tool callbacks.
// ABOUTME: Updated through POST /config; only the address and a Keccak fingerprint leave the store.

package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey indicates the supplied key is not a usable secp256k1 private key.
var ErrInvalidKey = errors.New("invalid private key")

// Status describes the configured key without exposing it.
type Status struct {
	Configured  bool      `json:"configured"`
	Address     string    `json:"address,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// KeyStore holds the signing key used by tool callbacks.
type KeyStore struct {
	mu        sync.RWMutex
	key       *ecdsa.PrivateKey
	updatedAt time.Time
	logger    *slog.Logger
}

// NewKeyStore creates an empty key store. Pass nil logger for default.
func NewKeyStore(logger *slog.Logger) *KeyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyStore{logger: logger}
}

// Update replaces the signing key. The key is hex, with or without a 0x prefix.
func (k *KeyStore) Update(hexKey string) error {
	key, err := ParseKey(hexKey)
	if err != nil {
		return err
	}
	// A concurrent Update may zero key once it is swapped in.
	address, fp := crypto.PubkeyToAddress(key.PublicKey).Hex(), fingerprint(key)

	k.mu.Lock()
	old := k.key
	k.key = key
	k.updatedAt = time.Now().UTC()
	k.mu.Unlock()
	zero(old)

	k.logger.Info("signing key updated", "address", address, "fingerprint", fp)
	return nil
}

// Clear forgets the signing key.
func (k *KeyStore) Clear() {
	k.mu.Lock()
	old := k.key
	k.key = nil
	k.updatedAt = time.Now().UTC()
	k.mu.Unlock()
	zero(old)
}

// Configured reports whether a key is present.
func (k *KeyStore) Configured() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key != nil
}

// Status returns a redacted view of the key state.
func (k *KeyStore) Status() Status {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.key == nil {
		return Status{UpdatedAt: k.updatedAt}
	}
	return Status{
		Configured:  true,
		Address:     crypto.PubkeyToAddress(k.key.PublicKey).Hex(),
		Fingerprint: fingerprint(k.key),
		UpdatedAt:   k.updatedAt,
	}
}

// ParseKey decodes a hex secp256k1 private key. The scalar must be 32 bytes,
// non-zero, and below the curve order.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	s := strings.TrimSpace(hexKey)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// Selector returns the 4-byte function selector for a Solidity signature,
// e.g. "transfer(address,uint256)" -> a9059cbb.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature)))
	return sel
}

// fingerprint is the first 8 hex chars of the key's Keccak hash.
func fingerprint(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.Keccak256(crypto.FromECDSA(key))[:4])
}

func zero(key *ecdsa.PrivateKey) {
	if key == nil {
		return
	}
	b := key.D.Bits()
	for i := range b {
		b[i] = 0
	}
}
