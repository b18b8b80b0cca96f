// Package signaling implements the hello-broadcast and gift-wrapped
// directed-message codec of spec.md §4.5: filter construction, envelope
// marshaling, expiration/replay filtering, and legacy-shape normalization.
// The relay bus and the gift-wrap cryptographic primitives themselves stay
// external collaborators (spec.md §6) - Bus and GiftWrapper below are the
// stated interfaces; this package only implements the pure codec logic.
package signaling

import "encoding/hex"

// SignalingKind is the Nostr-style event kind used for all signaling
// traffic (spec.md §4.5/§8).
const SignalingKind = 25050

// MaxEventAgeSec bounds how old an event's created_at may be, in seconds,
// before Decode treats it as expired.
const MaxEventAgeSec = 30

// HelloExpirationSec is the lifetime written into a hello event's
// expiration tag (spec.md §4.5: "nowSec + 300").
const HelloExpirationSec = 300

// Event is a Nostr-style signaling event as carried on the bus.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Tag returns the first value of tag name t (Nostr tags are
// [name, value, ...] arrays), or ("", false) if absent.
func (e Event) Tag(name string) (string, bool) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

// HasTagValue reports whether any tag named t carries value v anywhere in
// its value list (used for "#l":["hello"] / "#p":[pubkey] style checks).
func (e Event) HasTagValue(name, value string) bool {
	for _, tag := range e.Tags {
		if len(tag) < 2 || tag[0] != name {
			continue
		}
		for _, v := range tag[1:] {
			if v == value {
				return true
			}
		}
	}
	return false
}

// ValidatePubkeyHex reports whether s decodes to a well-formed secp256k1
// public key: either a 32-byte BIP340 x-only key (the Nostr convention) or
// a standard 33/65-byte SEC1-encoded key.
func ValidatePubkeyHex(s string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	return validatePubkeyBytes(raw)
}
