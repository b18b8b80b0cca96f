// Package client implements the public API of spec.md §6 (putBlob,
// getBlob, content-server/storage configuration, streaming variants, and
// event feeds), wiring together blob, forward, exchange, rtc, signaling,
// content, and bandwidth into the single owned loop described in spec.md
// §5 ("a single owner task holds them and other components communicate
// by message") — the teacher's own mainLoop/peerLoop split in
// op-node/p2p/sync.go.
package client

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// CID is spec.md §3's content identity: a hash plus an optional 32-byte
// symmetric key. Key == nil means unencrypted.
type CID struct {
	Hash common.Hash
	Key  *[32]byte
}

// Encrypted reports whether c carries a symmetric key.
func (c CID) Encrypted() bool {
	return c.Key != nil
}

// localWaiterPrefix tags a requesterId as a promise-attached local caller
// rather than a connected peer, per the Design Notes' "Promise-attached
// callers" section: requesterId = a synthetic "local:<uuid>".
const localWaiterPrefix = "local:"

// newLocalWaiterID mints a fresh local-waiter requester id.
func newLocalWaiterID() string {
	return localWaiterPrefix + uuid.NewString()
}

// isLocalWaiter reports whether id identifies a local waiter rather than a
// connected peer, letting the forwarding machine treat both uniformly
// while the transport dispatches by id prefix (Design Notes).
func isLocalWaiter(id string) bool {
	return strings.HasPrefix(id, localWaiterPrefix)
}

// Source identifies where a GetBlob result came from, per spec.md §6:
// `getBlob(hashHex) → {data, source ∈ {"idb","blossom","p2p"}}`.
type Source string

const (
	SourceLocal   Source = "idb"      // local encrypted blob cache
	SourceContent Source = "blossom"  // HTTP content-addressed server
	SourceP2P     Source = "p2p"      // peer exchange gossip
)
