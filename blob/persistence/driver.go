// Package persistence implements the durable-store collaborator named in
// spec §6: put/get/has/delete/count/totalBytes/evict. blob.Store layers LRU
// recency tracking and the eviction policy on top of whichever Driver is
// configured; the driver itself only needs to hold bytes.
package persistence

import "github.com/ethereum/go-ethereum/common"

// Driver is the persistence collaborator interface from spec §6.
type Driver interface {
	Put(h common.Hash, data []byte) error
	Get(h common.Hash) ([]byte, error)
	Has(h common.Hash) bool
	// Delete removes h and returns the number of bytes freed (0 if h was
	// absent).
	Delete(h common.Hash) (int64, error)
	Count() int
	TotalBytes() int64
	// Evict removes entries until TotalBytes() <= maxBytes. Drivers that
	// have no independent recency notion (e.g. the in-memory default) may
	// implement this as a no-op, since blob.Store already performs
	// recency-ordered eviction one layer up; disk-backed drivers that want
	// their own best-effort backstop (e.g. on process restart before the
	// in-memory LRU is warm) can do real work here.
	Evict(maxBytes int64) error
	Close() error
}
