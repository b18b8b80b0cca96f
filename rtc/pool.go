package rtc

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Pool is an ordered set of connected peers with round-robin selection,
// used for spec.md §4.4's "follows" and "other" peer pools: forwarding
// candidate selection walks follows first (round-robin), then falls into
// other. golang.org/x/exp/slices is used for the rotation helper since this
// module targets go1.19, predating the standard-library slices package -
// matching the teacher's own reason for depending on golang.org/x/exp.
type Pool struct {
	mu    sync.Mutex
	order []PeerID
	next  int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Add appends id to the pool if not already present.
func (p *Pool) Add(id PeerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.order, id) {
		return
	}
	p.order = append(p.order, id)
}

// Remove drops id from the pool.
func (p *Pool) Remove(id PeerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := slices.Index(p.order, id)
	if idx < 0 {
		return
	}
	p.order = slices.Delete(p.order, idx, idx+1)
	if p.next > idx {
		p.next--
	}
	if len(p.order) == 0 {
		p.next = 0
	} else {
		p.next %= len(p.order)
	}
}

// Members returns a snapshot of the pool in current rotation order.
func (p *Pool) Members() []PeerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.order)
}

// Len reports the number of peers currently in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// RoundRobin returns the pool's members starting from a rotating offset
// that advances by one on every call, so repeated lookups spread load
// evenly across peers instead of always favoring the front of the slice.
func (p *Pool) RoundRobin() []PeerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.order)
	if n == 0 {
		return nil
	}
	start := p.next
	p.next = (p.next + 1) % n

	out := make([]PeerID, 0, n)
	out = append(out, p.order[start:]...)
	out = append(out, p.order[:start]...)
	return out
}
