// Package blob implements the content-addressed local cache (spec §4.2):
// an O(1) (hash -> bytes) map bounded by maxBytes, evicted in
// least-recently-touched order, plus the privacy guard invariants.
package blob

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/lauri000/hashtree/blob/persistence"
	"github.com/lauri000/hashtree/internal/swaperr"
)

// DefaultEvictionWriteInterval runs eviction on every Nth write.
const DefaultEvictionWriteInterval = 32

// Stats mirrors spec §3's storage stats: { items, bytes, maxBytes }.
type Stats struct {
	Items    int
	Bytes    int64
	MaxBytes int64
}

// Store is the blob store of spec §4.2. It keeps an in-memory LRU for
// recency ordering and a pluggable persistence.Driver for the actual bytes,
// so the same eviction policy works whether the driver is the in-memory
// default or a disk-backed one (blob/persistence).
type Store struct {
	mu sync.Mutex

	log      log.Logger
	driver   persistence.Driver
	lru      *lru.LRU[common.Hash, struct{}]
	maxBytes int64
	total    int64

	evictionInterval int
	writesSinceEvict  int
	evicting          bool
}

// New creates a Store backed by driver with the given byte budget.
func New(l log.Logger, driver persistence.Driver, maxBytes int64) *Store {
	s := &Store{
		log:              l,
		driver:           driver,
		maxBytes:         maxBytes,
		evictionInterval: DefaultEvictionWriteInterval,
	}
	// Capacity is unbounded here: eviction is driven by total byte size in
	// evictLocked, not by LRU item count, matching spec's byte-budget policy.
	s.lru, _ = lru.NewLRU[common.Hash, struct{}](1<<31-1, func(h common.Hash, _ struct{}) {
		s.onLRUEvict(h)
	})
	return s
}

// onLRUEvict is called synchronously by simplelru.RemoveOldest while s.mu is
// already held by evictLocked.
func (s *Store) onLRUEvict(h common.Hash) {
	n, err := s.driver.Delete(h)
	if err != nil {
		s.log.Warn("failed to delete evicted blob", "hash", h, "err", err)
		return
	}
	s.total -= n
}

// Put implements spec §4.2's "verified put": compute sha256(data), use it
// as H, and write.
func (s *Store) Put(data []byte) (common.Hash, error) {
	h := common.Hash(sha256.Sum256(data))
	if err := s.putByHash(h, data, true); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

// PutByHash implements spec §4.2's "verified put-by-hash": caller asserts H,
// recompute and compare, fail with HashMismatch on disagreement.
func (s *Store) PutByHash(h common.Hash, data []byte) error {
	return s.putByHash(h, data, true)
}

// TrustedPutByHash implements spec §4.2's "trusted put-by-hash": used only
// when the caller itself reassembled data from already-verified fragments,
// so no recompute is performed.
func (s *Store) TrustedPutByHash(h common.Hash, data []byte) error {
	return s.putByHash(h, data, false)
}

func (s *Store) putByHash(h common.Hash, data []byte, verify bool) error {
	if verify {
		actual := common.Hash(sha256.Sum256(data))
		if actual != h {
			return &swaperr.HashMismatchError{Expected: h.Hex(), Actual: actual.Hex()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.driver.Has(h)
	if err := s.driver.Put(h, data); err != nil {
		return fmt.Errorf("store blob: %w", err)
	}
	if !existed {
		s.total += int64(len(data))
	}
	// A put always re-admits the hash to the front of recency order, even
	// if it raced with an eviction of the same hash: "a put that completes
	// re-admits the hash" (spec §5).
	s.lru.Add(h, struct{}{})

	s.writesSinceEvict++
	if s.writesSinceEvict >= s.evictionInterval {
		s.writesSinceEvict = 0
		s.evictLocked()
	}
	return nil
}

// Get returns the bytes for h, updating its recency, or false if absent.
func (s *Store) Get(h common.Hash) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.driver.Get(h)
	if err != nil || data == nil {
		return nil, false
	}
	s.lru.Get(h) // touch for recency
	return data, true
}

// Has reports whether h is present without affecting recency.
func (s *Store) Has(h common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Has(h)
}

// Delete explicitly removes h.
func (s *Store) Delete(h common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(h)
}

// Close releases the underlying persistence driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

// GetStats returns the current storage stats.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Items:    s.driver.Count(),
		Bytes:    s.total,
		MaxBytes: s.maxBytes,
	}
}

// SetMaxBytes changes the byte budget and runs an eviction pass if the
// store is currently over the new budget.
func (s *Store) SetMaxBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBytes = n
	s.evictLocked()
}

// evictLocked selects entries in least-recently-touched order until
// total <= maxBytes. Best-effort: a delete failure is logged only. The hash
// has already left recency tracking by then, so no later eviction retries
// it; its bytes stay in the driver and in total. Must be called
// with s.mu held; not re-entrant (at most one eviction epoch runs at a
// time per spec, enforced here by evicting being a plain local loop, never
// started from a second goroutine).
func (s *Store) evictLocked() {
	if s.evicting {
		return
	}
	s.evicting = true
	defer func() { s.evicting = false }()

	for s.total > s.maxBytes && s.lru.Len() > 0 {
		if _, _, ok := s.lru.RemoveOldest(); !ok {
			break
		}
	}
}
