package client

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lauri000/hashtree/bandwidth"
	"github.com/lauri000/hashtree/exchange"
	"github.com/lauri000/hashtree/forward"
	"github.com/lauri000/hashtree/rtc"
	"github.com/lauri000/hashtree/internal/swaperr"
)

// run is the single owning loop of spec.md §5: every mutation of
// forwarding state, peer records, reassembly buffers, or waiter
// bookkeeping happens here and nowhere else, mirroring the teacher's
// mainLoop in op-node/p2p/sync.go. Suspension points (store I/O, content
// HTTP fetches, signaling publish) run on the calling goroutine instead,
// and hand their result back into the loop over a channel when they need
// to touch owned state.
func (c *Client) run(rtcEvents <-chan rtc.Event) {
	defer c.wg.Done()
	for {
		select {
		case req := <-c.getRequestsCh:
			c.onGetRequest(req)
		case id := <-c.cancelCh:
			c.onCancelWaiter(id)
		case ev, ok := <-rtcEvents:
			if !ok {
				continue
			}
			c.onRTCEvent(ev)
		case ev := <-c.forwardTimeoutCh:
			c.onForwardTimeout(ev)
		case ev := <-c.reassemblyTimeoutCh:
			c.onReassemblyTimeout(ev.peer, ev.hash)
		case msg := <-c.signalingCh:
			c.onSignalingMessage(msg)
		case <-c.ctx.Done():
			c.log.Info("stopped hashtree client loop")
			return
		}
	}
}

func (c *Client) onRTCEvent(ev rtc.Event) {
	switch ev.Type {
	case rtc.EventMessage:
		c.onFrame(ev.Peer, ev.Data)
	case rtc.EventConnected:
		c.pushConnectivity()
	case rtc.EventDisconnected, rtc.EventConnectionFailed:
		c.onPeerGone(ev.Peer)
	case rtc.EventBufferHigh, rtc.EventBufferLow:
		// Backpressure is entirely owned by rtc.Peer/Controller; the core
		// only needs to know about peer lifecycle and frames.
	}
}

// onPeerGone implements spec.md §4.4's removePeer wiring: release in-flight
// forwards keyed on this peer, drain its reassembly buffers (treating each
// as a cancellation per spec.md §5's "peer disconnect during in-flight ->
// treated as cancellation for that requester only"), and drop its stats.
func (c *Client) onPeerGone(peer PeerID) {
	c.fwd.RemovePeer(peer)
	for _, h := range c.reasm.PendingHashes(peer) {
		c.reasm.Cancel(peer, h)
	}
	c.stats.RemovePeer(peer)
	c.pushConnectivity()
}

func (c *Client) onFrame(peer PeerID, data []byte) {
	if len(data) == 0 {
		return
	}
	c.stats.AddBytesReceived(peer, int64(len(data)))
	c.bw.Record(bandwidth.LogEntry{Server: peer, Direction: bandwidth.Received, Bytes: int64(len(data))})

	switch data[0] {
	case exchange.FrameRequest:
		req, err := exchange.DecodeRequest(data)
		if err != nil {
			c.log.Debug("malformed request frame, dropping", "peer", peer, "err", err)
			return
		}
		c.handleRequest(peer, req)
	case exchange.FrameResponse:
		resp, err := exchange.DecodeResponse(data)
		if err != nil {
			c.log.Debug("malformed response frame, dropping", "peer", peer, "err", err)
			return
		}
		if err := c.reasm.AddFragment(peer, resp); err != nil {
			c.log.Debug("reassembly failed, dropping fragment", "peer", peer, "hash", resp.Hash, "err", err)
		}
	default:
		c.log.Debug("unknown frame type, dropping", "peer", peer, "type", data[0])
	}
}

// handleRequest implements spec.md §4.3's request-handling steps 1-3.
func (c *Client) handleRequest(peer PeerID, req exchange.RequestFrame) {
	h := req.Hash

	if data, ok := c.store.Get(h); ok {
		if !c.guard.ShouldServeHashToPeer(h) {
			return // held locally but not shareable: drop silently (spec.md §4.2)
		}
		c.sendResponse(peer, h, data)
		return
	}

	if req.HTL <= 1 {
		return // local-only miss: no forward (spec.md §4.3)
	}

	targets := c.rtc.ForwardCandidates()
	res := c.fwd.BeginForward(hashKeyOf(h), peer, targets)
	switch res.Decision {
	case forward.DecisionForward:
		c.stats.RecordForward(peer)
		frame := exchange.EncodeRequest(exchange.RequestFrame{Hash: h, HTL: req.HTL - 1})
		for _, t := range res.Targets {
			if err := c.rtc.Send(t, frame, true); err != nil {
				c.log.Debug("forward send failed", "peer", t, "hash", h, "err", err)
				continue
			}
			c.stats.AddBytesSent(t, int64(len(frame)))
		}
	case forward.DecisionSuppressed:
		c.stats.RecordSuppressed(peer)
	case forward.DecisionRateLimited:
		c.stats.RecordRateLimited(peer)
		// spec.md §7: dropped, not retried by the core.
	case forward.DecisionNoTargets:
		// drop
	}
}

// onFragmentComplete implements spec.md §4.3's response-handling steps
// 1-3, invoked synchronously by c.reasm once a hash's fragments are fully
// reassembled (and decompressed) for (peer, hash).
func (c *Client) onFragmentComplete(peer PeerID, h common.Hash, payload []byte) {
	if sha256.Sum256(payload) != h {
		c.stats.RecordMismatch(peer)
		c.log.Warn("response hash mismatch, discarding", "peer", peer, "hash", h)
		return
	}

	if err := c.store.TrustedPutByHash(h, payload); err != nil {
		c.log.Warn("failed to store reassembled blob", "hash", h, "err", err)
	}
	c.guard.MarkShareable(h)

	requesters := c.fwd.ResolveForward(hashKeyOf(h))
	for _, r := range requesters {
		if isLocalWaiter(r) {
			c.deliverWaiter(r, payload, SourceP2P, nil)
			c.stats.RecordResolved(peer)
			continue
		}
		if !c.guard.ShouldServeHashToPeer(h) {
			continue
		}
		c.sendResponse(r, h, payload)
		c.stats.RecordResolved(r)
	}
}

// onForwardTimeout implements spec.md §4.1's onForwardTimeout callback:
// local waiters receive ErrTimeout, and any reassembly buffers this node
// was keeping open for downstream responses to hash are dropped since no
// requester remains to deliver them to.
func (c *Client) onForwardTimeout(ev forward.TimeoutEvent) {
	h := common.HexToHash(ev.HashKey)
	for _, r := range ev.RequesterIDs {
		if isLocalWaiter(r) {
			c.deliverWaiter(r, nil, "", swaperr.ErrTimeout)
		}
	}
	c.reasm.CancelHash(h)
}

// onReassemblyTimeout implements spec.md §4.3's "Reassembly fails ... if
// the timer expires or a gap persists": the pending forward for hash is
// cancelled (not resolved) since no complete response ever arrived from
// peer.
func (c *Client) onReassemblyTimeout(peer PeerID, h common.Hash) {
	c.fwd.CancelForward(hashKeyOf(h))
}

func (c *Client) sendResponse(peer PeerID, h common.Hash, payload []byte) {
	for _, f := range exchange.FragmentResponse(h, payload) {
		b := exchange.EncodeResponse(f)
		if err := c.rtc.Send(peer, b, false); err != nil {
			c.log.Debug("send response fragment failed", "peer", peer, "hash", h, "err", err)
			return
		}
		c.stats.AddBytesSent(peer, int64(len(b)))
		c.bw.Record(bandwidth.LogEntry{Server: peer, Direction: bandwidth.Sent, Bytes: int64(len(b))})
	}
}

func (c *Client) deliverWaiter(waiterID string, data []byte, src Source, err error) {
	w, ok := c.waiters[waiterID]
	if !ok {
		return
	}
	delete(c.waiters, waiterID)
	select {
	case w.resultCh <- getResult{data: data, source: src, err: err}:
	default:
	}
}

// onCancelWaiter implements the local-caller-cancel path of spec.md §4.4:
// removing waiterID as a requester (it is, per the Design Notes, just
// another PeerID) either clears the in-flight entry if it was the sole
// requester, or leaves it in flight for any remaining requesters.
func (c *Client) onCancelWaiter(waiterID string) {
	delete(c.waiters, waiterID)
	c.fwd.RemovePeer(waiterID)
}
