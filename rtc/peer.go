// Package rtc implements the WebRTC data-channel controller and peer pools
// of spec.md §4.4, grounded on the pion/webrtc connector idiom in
// other_examples/05e1aa64_udisondev-sendy__p2p-webrtc.go.go (OnDataChannel/
// OnMessage/OnClose wiring, GatheringCompletePromise for ICE) and on the
// teacher's structured-logging style (go-ethereum/log instead of slog).
package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// PeerID identifies a remote peer; kept as its own string alias rather than
// importing forward/exchange just for the type, matching those packages'
// own local PeerID aliases.
type PeerID = string

// State is a peer connection's lifecycle stage.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Peer wraps one WebRTC PeerConnection plus its single data channel (spec's
// peer-channel is a single bidirectional data channel per peer).
type Peer struct {
	ID PeerID

	mu          sync.Mutex
	conn        *webrtc.PeerConnection
	dc          *webrtc.DataChannel
	state       State
	inFollows   bool // which pool this peer belongs to, for RemovePeer bookkeeping
	backpressed bool
}

func newPeer(id PeerID, conn *webrtc.PeerConnection, inFollows bool) *Peer {
	return &Peer{ID: id, conn: conn, state: StateConnecting, inFollows: inFollows}
}

// State returns the peer's current lifecycle stage.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Backpressured reports whether outbound fragments to this peer are
// currently paused (spec.md §4.3 bufferHigh/bufferLow).
func (p *Peer) Backpressured() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backpressed
}

func (p *Peer) setBackpressured(v bool) {
	p.mu.Lock()
	p.backpressed = v
	p.mu.Unlock()
}

// Send writes a binary frame to the peer's data channel. Callers are
// expected to check Backpressured() first for non-request frames; requests
// are small enough to send unconditionally (spec.md §4.3).
func (p *Peer) Send(frame []byte) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil {
		return errDataChannelNotReady
	}
	return dc.Send(frame)
}

// Close tears down the underlying PeerConnection.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateDisconnected
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
