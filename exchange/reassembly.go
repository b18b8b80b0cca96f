package exchange

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lauri000/hashtree/internal/clock"
)

// DefaultReassemblyGapWindow is the per-hash window within which fragments
// must keep arriving, per spec.md §8's Open Question decision (recorded in
// DESIGN.md): fixed at 20s rather than left to the caller.
const DefaultReassemblyGapWindow = 20 * time.Second

// PeerID mirrors forward.PeerID; kept as its own alias here so exchange
// does not import forward just for a string type.
type PeerID = string

type reassemblyKey struct {
	peer PeerID
	hash common.Hash
}

type reassemblyEntry struct {
	fragments map[uint32][]byte
	lastSeq   uint32 // valid only once sawLast is true
	sawLast   bool
	firstSeen time.Time
	timer     clock.Timer
}

// Reassembler accumulates response fragments per (peerId, hash), as spec.md
// §8 describes, and resolves or drops the hash once complete or timed out.
type Reassembler struct {
	mu    sync.Mutex
	clock clock.Clock
	gap   time.Duration

	entries map[reassemblyKey]*reassemblyEntry

	// OnComplete is invoked with the fully reassembled (and decompressed)
	// payload once the terminal fragment closes out a hash.
	OnComplete func(peer PeerID, hash common.Hash, payload []byte)
	// OnTimeout is invoked when a reassembly entry is dropped for staleness;
	// the caller uses this to call forward.Machine.CancelForward.
	OnTimeout func(peer PeerID, hash common.Hash)
}

// NewReassembler creates a Reassembler. gap <= 0 uses DefaultReassemblyGapWindow.
func NewReassembler(c clock.Clock, gap time.Duration) *Reassembler {
	if gap <= 0 {
		gap = DefaultReassemblyGapWindow
	}
	return &Reassembler{
		clock:   c,
		gap:     gap,
		entries: make(map[reassemblyKey]*reassemblyEntry),
	}
}

// AddFragment feeds one response frame's fragment into reassembly. It
// returns an error only for protocol violations (a sequence number repeated
// with different content is tolerated as a retransmit and ignored).
func (r *Reassembler) AddFragment(peer PeerID, f ResponseFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reassemblyKey{peer: peer, hash: f.Hash}
	e, ok := r.entries[key]
	if !ok {
		e = &reassemblyEntry{
			fragments: make(map[uint32][]byte),
			firstSeen: r.clock.Now(),
		}
		e.timer = r.clock.AfterFunc(r.gap, func() { r.onTimeout(key) })
		r.entries[key] = e
	} else {
		// Any new fragment resets the per-hash gap window.
		e.timer.Reset(r.gap)
	}

	if _, dup := e.fragments[f.Header.Seq]; !dup {
		e.fragments[f.Header.Seq] = f.Payload
	}
	if f.Header.Last {
		e.sawLast = true
		e.lastSeq = f.Header.Seq
	}

	if e.sawLast && len(e.fragments) == int(e.lastSeq)+1 {
		payload, err := e.assemble(f.Header.Compressed)
		e.timer.Stop()
		delete(r.entries, key)
		if err != nil {
			return err
		}
		if r.OnComplete != nil {
			r.OnComplete(peer, f.Hash, payload)
		}
	}
	return nil
}

func (e *reassemblyEntry) assemble(compressed bool) ([]byte, error) {
	var out []byte
	for seq := uint32(0); seq <= e.lastSeq; seq++ {
		chunk, ok := e.fragments[seq]
		if !ok {
			return nil, fmt.Errorf("reassembly: missing fragment seq=%d", seq)
		}
		out = append(out, chunk...)
	}
	return decompressIfNeeded(compressed, out)
}

func (r *Reassembler) onTimeout(key reassemblyKey) {
	r.mu.Lock()
	_, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if ok && r.OnTimeout != nil {
		r.OnTimeout(key.peer, key.hash)
	}
}

// Cancel drops any in-progress reassembly for (peer, hash) without invoking
// OnComplete or OnTimeout, used when the caller itself cancels the forward.
func (r *Reassembler) Cancel(peer PeerID, hash common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reassemblyKey{peer: peer, hash: hash}
	if e, ok := r.entries[key]; ok {
		e.timer.Stop()
		delete(r.entries, key)
	}
}

// CancelHash drops every in-progress reassembly entry for hash regardless
// of which peer it is keyed on, returning the affected peers. Used when a
// forward.Machine timeout fires for hash: every downstream peer this node
// was still waiting on a response from no longer needs tracking.
func (r *Reassembler) CancelHash(hash common.Hash) []PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var peers []PeerID
	for k, e := range r.entries {
		if k.hash != hash {
			continue
		}
		e.timer.Stop()
		delete(r.entries, k)
		peers = append(peers, k.peer)
	}
	return peers
}

// PendingHashes returns the hashes currently being reassembled for peer, in
// no particular guaranteed order beyond being deterministic within a call.
func (r *Reassembler) PendingHashes(peer PeerID) []common.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []common.Hash
	for k := range r.entries {
		if k.peer == peer {
			out = append(out, k.hash)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}
