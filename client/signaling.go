package client

import (
	"context"

	"github.com/lauri000/hashtree/signaling"
)

// subscribeSignaling implements the subscription half of spec.md §4.5: it
// subscribes to both the hello and directed filters, decodes every event
// through the codec, and hands decoded messages to the owning loop over
// signalingCh. This is a suspension point (bus I/O) and runs off-loop, the
// same way rtc.Controller's events feed the loop from its own goroutine.
func (c *Client) subscribeSignaling() {
	if c.codec == nil || c.cfg.Bus == nil {
		return
	}

	hello, err := c.cfg.Bus.Subscribe(c.ctx, signaling.HelloFilter(0))
	if err != nil {
		c.log.Warn("subscribe hello filter failed", "err", err)
		return
	}
	directed, err := c.cfg.Bus.Subscribe(c.ctx, signaling.DirectedFilter(c.cfg.MyPubkey, 0))
	if err != nil {
		c.log.Warn("subscribe directed filter failed", "err", err)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case ev, ok := <-hello:
				if !ok {
					return
				}
				c.decodeAndDispatch(ev)
			case ev, ok := <-directed:
				if !ok {
					return
				}
				c.decodeAndDispatch(ev)
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

func (c *Client) decodeAndDispatch(ev signaling.Event) {
	msg, err := c.codec.Decode(ev)
	if err != nil {
		c.log.Debug("dropping malformed signaling event", "err", err)
		return
	}
	if msg == nil {
		return
	}
	select {
	case c.signalingCh <- *msg:
	case <-c.ctx.Done():
	}
}

// onSignalingMessage runs on the owning loop (spec.md §5) and routes a
// decoded message into session setup per spec.md §4.4's "route signaling
// into session setup". Connect/HandleOffer/HandleAnswer each have a
// suspension point of their own (ICE gathering, SignalSend), so they are
// kicked off in their own goroutine rather than run inline - rtc.Controller
// guards its own state independently of the owning loop, so this does not
// violate the single-owner invariant.
func (c *Client) onSignalingMessage(msg signaling.Message) {
	switch msg.Type {
	case signaling.MsgHello:
		c.onHello(msg)
	case signaling.MsgOffer:
		go func() {
			if err := c.rtc.HandleOffer(msg.PeerID, msg.SDP, false); err != nil {
				c.log.Debug("handle offer failed", "peer", msg.PeerID, "err", err)
			}
		}()
	case signaling.MsgAnswer:
		go func() {
			if err := c.rtc.HandleAnswer(msg.PeerID, msg.SDP); err != nil {
				c.log.Debug("handle answer failed", "peer", msg.PeerID, "err", err)
			}
		}()
	case signaling.MsgCandidate:
		if err := c.rtc.AddICECandidate(msg.PeerID, msg.Candidate); err != nil {
			c.log.Debug("add ice candidate failed", "peer", msg.PeerID, "err", err)
		}
	case signaling.MsgCandidates:
		for _, cand := range msg.Candidates {
			if err := c.rtc.AddICECandidate(msg.PeerID, cand); err != nil {
				c.log.Debug("add ice candidate failed", "peer", msg.PeerID, "err", err)
			}
		}
	}
}

// onHello dials a newly-announced peer that isn't already known, landing it
// in the untrusted "other" pool (spec.md §4.4) until some higher-level
// policy promotes it to "follows" - the signaling layer itself has no
// notion of a follow list.
func (c *Client) onHello(msg signaling.Message) {
	if _, ok := c.rtc.Peer(msg.PeerID); ok {
		return
	}
	go func() {
		if err := c.rtc.Connect(msg.PeerID, false); err != nil {
			c.log.Debug("connect after hello failed", "peer", msg.PeerID, "err", err)
		}
	}()
}

// HandleSignalingMessage lets an embedder that drives its own bus
// subscription (instead of handing Config.Bus to Client) feed decoded
// messages into the owning loop directly.
func (c *Client) HandleSignalingMessage(ctx context.Context, msg signaling.Message) error {
	select {
	case c.signalingCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return nil
	}
}
