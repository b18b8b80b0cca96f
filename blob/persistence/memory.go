package persistence

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory is the default in-process Driver: a plain map guarded by a mutex.
// It is the right choice when durability across restarts does not matter
// (tests, short-lived processes); Leveldb below is the durable option.
type Memory struct {
	mu    sync.RWMutex
	data  map[common.Hash][]byte
	total int64
}

// NewMemory creates an empty in-memory driver.
func NewMemory() *Memory {
	return &Memory{data: make(map[common.Hash][]byte)}
}

func (m *Memory) Put(h common.Hash, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[h]; ok {
		m.total -= int64(len(old))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[h] = cp
	m.total += int64(len(cp))
	return nil
}

func (m *Memory) Get(h common.Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[h]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *Memory) Has(h common.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[h]
	return ok
}

func (m *Memory) Delete(h common.Hash) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[h]
	if !ok {
		return 0, nil
	}
	delete(m.data, h)
	n := int64(len(data))
	m.total -= n
	return n, nil
}

func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) TotalBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// Evict is a no-op: blob.Store performs recency-ordered eviction itself.
func (m *Memory) Evict(maxBytes int64) error { return nil }

func (m *Memory) Close() error { return nil }
