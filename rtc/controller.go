package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pion/webrtc/v4"
)

var errDataChannelNotReady = errors.New("rtc: data channel not ready")

// EventType tags the events emitted on Controller.Events().
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventConnectionFailed
	EventMessage
	EventBufferHigh
	EventBufferLow
)

// Event is one controller-level notification, consumed by client.Client's
// main loop (spec.md §5's single-owner task).
type Event struct {
	Type  EventType
	Peer  PeerID
	Data  []byte
	Error error
}

// SignalSend is the function the controller uses to hand an SDP offer,
// answer, or ICE candidate to the signaling layer for delivery to a peer;
// signaling.Bus's directed-envelope send is the real implementation.
type SignalSend func(peer PeerID, kind string, payload []byte) error

// bufferHighThreshold/bufferLowThreshold realize spec.md §4.3's
// bufferHigh/bufferLow backpressure watermarks via
// DataChannel.SetBufferedAmountLowThreshold + OnBufferedAmountLow.
const (
	bufferHighThreshold uint64 = 4 * 1024 * 1024
	bufferLowThreshold  uint64 = 1 * 1024 * 1024
)

// Controller owns all WebRTC peer connections. It is not safe to mutate
// Follows/Other from outside the owning goroutine; external callers only
// read them through Members()/RoundRobin().
type Controller struct {
	log    log.Logger
	config webrtc.Configuration
	send   SignalSend

	Follows *Pool
	Other   *Pool

	mu    sync.Mutex
	peers map[PeerID]*Peer

	events chan Event
}

// NewController creates a Controller. send delivers SDP/ICE messages to the
// signaling layer; iceServers configures STUN/TURN the same way the
// reference connector's ConnectorConfig.STUNServers does.
func NewController(l log.Logger, iceServers []string, send SignalSend) *Controller {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	if send == nil {
		send = func(peer PeerID, kind string, _ []byte) error {
			return fmt.Errorf("rtc: no signal sender configured, cannot send %s to %s", kind, peer)
		}
	}
	return &Controller{
		log:     l,
		config:  cfg,
		send:    send,
		Follows: NewPool(),
		Other:   NewPool(),
		peers:   make(map[PeerID]*Peer),
		events:  make(chan Event, 256),
	}
}

// Events returns the controller's event channel.
func (c *Controller) Events() <-chan Event {
	return c.events
}

func (c *Controller) emit(e Event) {
	select {
	case c.events <- e:
	default:
		c.log.Warn("dropping rtc event, consumer too slow", "type", e.Type, "peer", e.Peer)
	}
}

// Connect initiates an outbound connection to peer, creating a data channel
// and sending an SDP offer through SignalSend, following the offer flow of
// the reference connector's connectAsync.
func (c *Controller) Connect(peer PeerID, inFollows bool) error {
	conn, err := webrtc.NewPeerConnection(c.config)
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	p := newPeer(peer, conn, inFollows)
	c.registerPeer(p)

	dc, err := conn.CreateDataChannel("hashtree", nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create data channel: %w", err)
	}
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()
	c.wireDataChannel(p, dc)
	c.wireConnectionState(p, conn)

	offer, err := conn.CreateOffer(nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		conn.Close()
		return fmt.Errorf("set local description: %w", err)
	}

	<-webrtc.GatheringCompletePromise(conn)

	payload := []byte(conn.LocalDescription().SDP)
	if err := c.send(peer, "offer", payload); err != nil {
		conn.Close()
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// HandleOffer accepts an inbound SDP offer, answers it, and wires the
// resulting data channel once the remote opens it - mirroring
// handleIncomingOffer's OnDataChannel registration in the reference
// connector.
func (c *Controller) HandleOffer(peer PeerID, sdp string, inFollows bool) error {
	conn, err := webrtc.NewPeerConnection(c.config)
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	p := newPeer(peer, conn, inFollows)
	c.registerPeer(p)
	c.wireConnectionState(p, conn)

	conn.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.mu.Lock()
		p.dc = dc
		p.mu.Unlock()
		c.wireDataChannel(p, dc)
	})

	if err := conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		conn.Close()
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := conn.CreateAnswer(nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create answer: %w", err)
	}
	if err := conn.SetLocalDescription(answer); err != nil {
		conn.Close()
		return fmt.Errorf("set local description: %w", err)
	}

	<-webrtc.GatheringCompletePromise(conn)

	return c.send(peer, "answer", []byte(conn.LocalDescription().SDP))
}

// HandleAnswer completes an outbound connection by applying the remote's
// SDP answer.
func (c *Controller) HandleAnswer(peer PeerID, sdp string) error {
	c.mu.Lock()
	p, ok := c.peers[peer]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("rtc: no pending connection for peer %s", peer)
	}
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	return conn.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// AddICECandidate applies a trickled remote ICE candidate to peer's
// connection, routing the signaling layer's candidate/candidates messages
// into session setup per spec.md §4.4.
func (c *Controller) AddICECandidate(peer PeerID, candidate string) error {
	p, ok := c.Peer(peer)
	if !ok {
		return fmt.Errorf("rtc: unknown peer %s", peer)
	}
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	return conn.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate})
}

func (c *Controller) registerPeer(p *Peer) {
	c.mu.Lock()
	c.peers[p.ID] = p
	c.mu.Unlock()
}

func (c *Controller) wireConnectionState(p *Peer, conn *webrtc.PeerConnection) {
	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			p.setState(StateConnected)
			if p.inFollows {
				c.Follows.Add(p.ID)
			} else {
				c.Other.Add(p.ID)
			}
			c.emit(Event{Type: EventConnected, Peer: p.ID})
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			c.RemovePeer(p.ID)
		}
	})
}

func (c *Controller) wireDataChannel(p *Peer, dc *webrtc.DataChannel) {
	dc.SetBufferedAmountLowThreshold(bufferLowThreshold)

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.emit(Event{Type: EventMessage, Peer: p.ID, Data: msg.Data})
	})
	dc.OnBufferedAmountLow(func() {
		p.setBackpressured(false)
		c.emit(Event{Type: EventBufferLow, Peer: p.ID})
	})
	dc.OnClose(func() {
		c.RemovePeer(p.ID)
	})
}

// checkBufferHigh is called by Send after every successful write to detect
// crossing into backpressure; pion/webrtc does not raise an OnBufferedHigh
// callback of its own, only the low-watermark one, so the high watermark is
// polled against BufferedAmount right after a send.
func (c *Controller) checkBufferHigh(p *Peer, dc *webrtc.DataChannel) {
	if dc.BufferedAmount() >= bufferHighThreshold && !p.Backpressured() {
		p.setBackpressured(true)
		c.emit(Event{Type: EventBufferHigh, Peer: p.ID})
	}
}

// Send writes frame to peer's data channel, skipping non-request frames
// while the peer is backpressured per spec.md §4.3 ("requests are not
// paused; they are small").
func (c *Controller) Send(peer PeerID, frame []byte, isRequest bool) error {
	c.mu.Lock()
	p, ok := c.peers[peer]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("rtc: unknown peer %s", peer)
	}
	if !isRequest && p.Backpressured() {
		return nil
	}

	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil {
		return errDataChannelNotReady
	}
	if err := dc.Send(frame); err != nil {
		return err
	}
	c.checkBufferHigh(p, dc)
	return nil
}

// Peer returns the Peer record for id, if known.
func (c *Controller) Peer(id PeerID) (*Peer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.peers[id]
	return p, ok
}

// RemovePeer tears down and forgets a peer, dropping it from both pools.
// Callers (client.Client's main loop) chain this into
// forward.Machine.RemovePeer so in-flight forwarding state for the peer is
// cleaned up in the same step (spec.md §5's single-owner policy).
func (c *Controller) RemovePeer(id PeerID) {
	c.mu.Lock()
	p, ok := c.peers[id]
	delete(c.peers, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	p.Close()
	c.Follows.Remove(id)
	c.Other.Remove(id)
	c.emit(Event{Type: EventDisconnected, Peer: id})
}

// ForwardCandidates returns candidate peers for forwarding, walking Follows
// first (round-robin) then falling into Other, per spec.md §4.4.
func (c *Controller) ForwardCandidates() []PeerID {
	out := c.Follows.RoundRobin()
	out = append(out, c.Other.RoundRobin()...)
	return out
}
