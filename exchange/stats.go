package exchange

import "sync"

// PeerStats accumulates the per-peer bandwidth/forwarding counters named in
// spec.md §4.3: bytes moved in each direction, and how forwarding decisions
// for requests arriving from or destined to this peer were resolved.
type PeerStats struct {
	BytesSent     int64
	BytesReceived int64

	ForwardedRequests    int64
	ForwardedSuppressed  int64
	ForwardedResolved    int64
	ForwardedRateLimited int64

	// ResponseMismatches counts response payloads whose sha256 did not
	// match the requested hash (spec.md §4.3 response handling step 1,
	// "bump a soft counter"). Disconnect policy on an excessive count is
	// left to the controller, not tracked here.
	ResponseMismatches int64
}

// StatsTracker is the aggregate, per-peer bandwidth/forwarding tracker. It
// is the exchange-layer counterpart to forward.Machine's decisions: the
// machine decides, this tracker counts.
type StatsTracker struct {
	mu    sync.Mutex
	stats map[PeerID]*PeerStats
}

// NewStatsTracker creates an empty tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{stats: make(map[PeerID]*PeerStats)}
}

func (t *StatsTracker) entry(peer PeerID) *PeerStats {
	s, ok := t.stats[peer]
	if !ok {
		s = &PeerStats{}
		t.stats[peer] = s
	}
	return s
}

func (t *StatsTracker) AddBytesSent(peer PeerID, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).BytesSent += n
}

func (t *StatsTracker) AddBytesReceived(peer PeerID, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).BytesReceived += n
}

func (t *StatsTracker) RecordForward(peer PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).ForwardedRequests++
}

func (t *StatsTracker) RecordSuppressed(peer PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).ForwardedSuppressed++
}

func (t *StatsTracker) RecordResolved(peer PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).ForwardedResolved++
}

func (t *StatsTracker) RecordRateLimited(peer PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).ForwardedRateLimited++
}

func (t *StatsTracker) RecordMismatch(peer PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(peer).ResponseMismatches++
}

// Get returns a copy of peer's current stats.
func (t *StatsTracker) Get(peer PeerID) PeerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stats[peer]; ok {
		return *s
	}
	return PeerStats{}
}

// RemovePeer drops peer's stats entirely, called when the peer disconnects.
func (t *StatsTracker) RemovePeer(peer PeerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stats, peer)
}
