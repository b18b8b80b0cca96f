// Package forward implements the per-peer forwarding state machine:
// duplicate-query suppression, sliding-window rate limiting, and
// timeout-driven cleanup of in-flight gossip forwards (spec §4.1).
package forward

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/lauri000/hashtree/internal/clock"
)

// PeerID identifies either a connected peer or a local waiter
// ("local:<uuid>"), per the Design Notes' "Promise-attached callers".
type PeerID = string

// Decision is the outcome of a beginForward call.
type Decision int

const (
	// DecisionForward: no in-flight entry existed, the requester passed
	// the rate limiter, and at least one candidate target remains after
	// removing the requester itself.
	DecisionForward Decision = iota
	// DecisionSuppressed: an entry for hashKey already exists; requester
	// was attached to it.
	DecisionSuppressed
	// DecisionRateLimited: requester has exhausted its window quota.
	DecisionRateLimited
	// DecisionNoTargets: the candidate set was empty after removing the
	// requester.
	DecisionNoTargets
)

func (d Decision) String() string {
	switch d {
	case DecisionForward:
		return "forward"
	case DecisionSuppressed:
		return "suppressed"
	case DecisionRateLimited:
		return "rate_limited"
	case DecisionNoTargets:
		return "no_targets"
	default:
		return "unknown"
	}
}

// BeginResult is returned by BeginForward.
type BeginResult struct {
	Decision Decision
	Targets  []PeerID // only meaningful when Decision == DecisionForward
}

// TimeoutEvent is delivered to OnForwardTimeout.
type TimeoutEvent struct {
	HashKey     string
	RequesterIDs []PeerID
}

const (
	// DefaultMaxForwardsPerPeerWindow is the default sliding-window quota.
	DefaultMaxForwardsPerPeerWindow = 64
	// DefaultForwardRateLimitWindow is the default sliding window length.
	DefaultForwardRateLimitWindow = time.Second
	// DefaultRequestTimeout is how long an in-flight forward waits for a
	// resolve/cancel before it is torn down.
	DefaultRequestTimeout = 15 * time.Second

	// rateLimiterLRUSize bounds the number of distinct peers whose
	// sliding-window history is retained, mirroring the teacher's
	// peerRateLimits LRU in P2PReqRespServer.
	rateLimiterLRUSize = 4096
)

// Config configures a Machine. Zero values fall back to the defaults above.
type Config struct {
	MaxForwardsPerPeerWindow int
	ForwardRateLimitWindow   time.Duration
	RequestTimeout           time.Duration
	Clock                    clock.Clock
	OnForwardTimeout         func(TimeoutEvent)
}

type inFlightEntry struct {
	requesters mapset.Set[PeerID]
	timer      clock.Timer
}

// Machine is the QueryForwardingMachine of spec §4.1. It is not safe to
// share across goroutines without external synchronization beyond its own
// mutex being held for the duration of a single call — but per §5 it is
// meant to be owned and called from exactly one task, so the mutex here
// exists only to protect against accidental concurrent access, not to
// provide a concurrency model.
type Machine struct {
	mu sync.Mutex

	cfg   Config
	clock clock.Clock

	inFlight map[string]*inFlightEntry
	limiters *lru.LRU[PeerID, *window]
}

// window is a per-peer sliding window of forward timestamps.
type window struct {
	events []time.Time
}

// New creates a Machine. Pass a zero Config to use all defaults in
// production (clock.New()).
func New(cfg Config) *Machine {
	if cfg.MaxForwardsPerPeerWindow <= 0 {
		cfg.MaxForwardsPerPeerWindow = DefaultMaxForwardsPerPeerWindow
	}
	if cfg.ForwardRateLimitWindow <= 0 {
		cfg.ForwardRateLimitWindow = DefaultForwardRateLimitWindow
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	limiters, _ := lru.NewLRU[PeerID, *window](rateLimiterLRUSize, nil)
	return &Machine{
		cfg:      cfg,
		clock:    cfg.Clock,
		inFlight: make(map[string]*inFlightEntry),
		limiters: limiters,
	}
}

// BeginForward implements spec §4.1's beginForward operation.
func (m *Machine) BeginForward(hashKey string, requesterID PeerID, candidateTargets []PeerID) BeginResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.inFlight[hashKey]; ok {
		entry.requesters.Add(requesterID)
		return BeginResult{Decision: DecisionSuppressed}
	}

	targets := make([]PeerID, 0, len(candidateTargets))
	for _, t := range candidateTargets {
		if t == requesterID {
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return BeginResult{Decision: DecisionNoTargets}
	}

	if !m.allow(requesterID) {
		return BeginResult{Decision: DecisionRateLimited}
	}

	requesters := mapset.NewThreadUnsafeSet[PeerID](requesterID)
	entry := &inFlightEntry{requesters: requesters}
	entry.timer = m.clock.AfterFunc(m.cfg.RequestTimeout, func() {
		m.onTimeout(hashKey)
	})
	m.inFlight[hashKey] = entry

	return BeginResult{Decision: DecisionForward, Targets: targets}
}

// allow applies the sliding-window rate limiter for requesterID, purging
// expired entries and recording this event if allowed. Must be called with
// m.mu held.
func (m *Machine) allow(requesterID PeerID) bool {
	now := m.clock.Now()
	cutoff := now.Add(-m.cfg.ForwardRateLimitWindow)

	w, ok := m.limiters.Get(requesterID)
	if !ok {
		w = &window{}
		m.limiters.Add(requesterID, w)
	}

	fresh := w.events[:0]
	for _, t := range w.events {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	w.events = fresh

	if len(w.events) >= m.cfg.MaxForwardsPerPeerWindow {
		return false
	}
	w.events = append(w.events, now)
	return true
}

func (m *Machine) onTimeout(hashKey string) {
	m.mu.Lock()
	entry, ok := m.inFlight[hashKey]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.inFlight, hashKey)
	requesters := entry.requesters.ToSlice()
	cb := m.cfg.OnForwardTimeout
	m.mu.Unlock()

	if cb != nil {
		cb(TimeoutEvent{HashKey: hashKey, RequesterIDs: requesters})
	}
}

// ResolveForward implements spec §4.1's resolveForward: clears the entry
// and its timer, returning the complete requester set (possibly empty).
func (m *Machine) ResolveForward(hashKey string) []PeerID {
	return m.teardown(hashKey)
}

// CancelForward implements spec §4.1's cancelForward: same shape as
// resolve, but does not invoke the timeout callback (it was never
// scheduled to fire for this reason, it is simply cleared).
func (m *Machine) CancelForward(hashKey string) []PeerID {
	return m.teardown(hashKey)
}

func (m *Machine) teardown(hashKey string) []PeerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.inFlight[hashKey]
	if !ok {
		return []PeerID{}
	}
	delete(m.inFlight, hashKey)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	return entry.requesters.ToSlice()
}

// RemovePeer implements spec §4.1's removePeer: drops peerID from every
// in-flight requester set, clearing any entry that becomes empty, and
// resets peerID's rate-limiter history.
func (m *Machine) RemovePeer(peerID PeerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hashKey, entry := range m.inFlight {
		if !entry.requesters.Contains(peerID) {
			continue
		}
		entry.requesters.Remove(peerID)
		if entry.requesters.Cardinality() == 0 {
			if entry.timer != nil {
				entry.timer.Stop()
			}
			delete(m.inFlight, hashKey)
		}
	}
	m.limiters.Remove(peerID)
}

// Stop clears all timers, requesters, and rate-limiter state.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hashKey, entry := range m.inFlight {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(m.inFlight, hashKey)
	}
	m.limiters.Purge()
}

// IsInFlight reports whether hashKey currently has an in-flight forward.
func (m *Machine) IsInFlight(hashKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inFlight[hashKey]
	return ok
}

// GetInFlightCount returns the number of currently in-flight forwards.
func (m *Machine) GetInFlightCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}
