package blob

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lauri000/hashtree/internal/swaperr"
)

// PrivacyGuard enforces spec §4.2's privacy invariant: a blob may only be
// admitted through an upload path that encrypts it (CID carries a key), and
// a hash may only be served to peers once it is known to be safe to share -
// that is, either it arrived over the exchange protocol (someone else
// already offered it to the network) or it was uploaded with a key.
//
// Plaintext local-only blobs (no key, never exchanged) must never be handed
// to a peer; PrivacyGuard is the single place that decision is made so it
// cannot be bypassed by a new call site forgetting to check.
type PrivacyGuard struct {
	mu        sync.RWMutex
	shareable mapset.Set[common.Hash]
}

// NewPrivacyGuard creates an empty guard: nothing is shareable until marked.
func NewPrivacyGuard() *PrivacyGuard {
	return &PrivacyGuard{shareable: mapset.NewSet[common.Hash]()}
}

// AssertEncryptedUpload implements spec §4.2's upload guard: uploads must
// carry a symmetric key, or the call is rejected with ErrPrivacyViolation
// before the blob ever reaches the store.
func (g *PrivacyGuard) AssertEncryptedUpload(hasKey bool) error {
	if !hasKey {
		return swaperr.ErrPrivacyViolation
	}
	return nil
}

// MarkShareable records that h is now safe to serve to peers, either
// because it was uploaded encrypted or received over the wire from another
// peer (who, by induction, already passed this same check upstream).
func (g *PrivacyGuard) MarkShareable(h common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shareable.Add(h)
}

// ShouldServeHashToPeer reports whether h may be sent to a requesting peer.
func (g *PrivacyGuard) ShouldServeHashToPeer(h common.Hash) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.shareable.Contains(h)
}

// Forget drops h from the shareable set, e.g. after the blob itself is
// evicted from the store and the marker would otherwise dangle forever.
func (g *PrivacyGuard) Forget(h common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shareable.Remove(h)
}
