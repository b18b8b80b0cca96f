package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	leveldb "github.com/ipfs/go-ds-leveldb"
)

// Leveldb is a disk-backed Driver for the case where durability across
// process restarts matters — the closest Go-native analogue to the
// browser original's IndexedDB-backed persistence driver (spec §1/§6).
type Leveldb struct {
	ds *leveldb.Datastore

	mu    sync.Mutex
	count int
	total int64
}

// NewLeveldb opens (or creates) a LevelDB store rooted at path.
func NewLeveldb(path string) (*Leveldb, error) {
	store, err := leveldb.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb store at %s: %w", path, err)
	}
	l := &Leveldb{ds: store}
	if err := l.warm(); err != nil {
		store.Close()
		return nil, err
	}
	return l, nil
}

// warm scans existing keys once at startup to seed count/total, since
// leveldb itself has no O(1) aggregate accounting.
func (l *Leveldb) warm() error {
	results, err := l.ds.Query(context.Background(), query.Query{})
	if err != nil {
		return fmt.Errorf("scan existing blobs: %w", err)
	}
	defer results.Close()
	for entry := range results.Next() {
		if entry.Error != nil {
			return entry.Error
		}
		l.count++
		l.total += int64(len(entry.Value))
	}
	return nil
}

func blobKey(h common.Hash) ds.Key {
	return ds.NewKey("/blob/" + h.Hex())
}

func (l *Leveldb) Put(h common.Hash, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := blobKey(h)
	existed, err := l.ds.Has(context.Background(), key)
	if err != nil {
		return fmt.Errorf("check existing blob: %w", err)
	}
	if existed {
		old, err := l.ds.Get(context.Background(), key)
		if err == nil {
			l.total -= int64(len(old))
		}
	}
	if err := l.ds.Put(context.Background(), key, data); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if !existed {
		l.count++
	}
	l.total += int64(len(data))
	return nil
}

func (l *Leveldb) Get(h common.Hash) ([]byte, error) {
	data, err := l.ds.Get(context.Background(), blobKey(h))
	if err == ds.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (l *Leveldb) Has(h common.Hash) bool {
	ok, err := l.ds.Has(context.Background(), blobKey(h))
	return err == nil && ok
}

func (l *Leveldb) Delete(h common.Hash) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := blobKey(h)
	data, err := l.ds.Get(context.Background(), key)
	if err == ds.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read blob before delete: %w", err)
	}
	if err := l.ds.Delete(context.Background(), key); err != nil {
		return 0, fmt.Errorf("delete blob: %w", err)
	}
	l.count--
	n := int64(len(data))
	l.total -= n
	return n, nil
}

func (l *Leveldb) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *Leveldb) TotalBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Evict is a best-effort backstop: the normal path is blob.Store's
// recency-ordered eviction, but since leveldb has no notion of recency of
// its own, this simply logs nothing and defers entirely to the caller -
// kept as a no-op like Memory's, documented rather than silently dropped.
func (l *Leveldb) Evict(maxBytes int64) error { return nil }

func (l *Leveldb) Close() error {
	return l.ds.Close()
}
