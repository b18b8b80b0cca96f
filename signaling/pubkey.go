package signaling

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// validatePubkeyBytes parses raw as a secp256k1 public key. Nostr keys are
// 32-byte BIP340 x-only keys; prefix with the even-Y compressed marker
// (0x02) before handing them to decred's SEC1 parser, which only accepts
// 33/65-byte encodings.
func validatePubkeyBytes(raw []byte) error {
	switch len(raw) {
	case 32:
		_, err := secp256k1.ParsePubKey(append([]byte{0x02}, raw...))
		if err != nil {
			return fmt.Errorf("invalid x-only pubkey: %w", err)
		}
		return nil
	case 33, 65:
		_, err := secp256k1.ParsePubKey(raw)
		if err != nil {
			return fmt.Errorf("invalid pubkey: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("pubkey must be 32, 33, or 65 bytes, got %d", len(raw))
	}
}
