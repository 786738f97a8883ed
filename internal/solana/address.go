package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that addr is a plausible wallet public key: base58,
// exactly 32 bytes, on the ed25519 curve. Program-derived addresses are
// deliberately off-curve and are rejected; tracking one would never produce
// owner-matched token balances.
func ValidateAddress(addr string) error {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode %q: %w", addr, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", addr, len(decoded))
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return fmt.Errorf("address %q is off-curve", addr)
	}
	return nil
}
