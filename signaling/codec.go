package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lauri000/hashtree/internal/clock"
)

// Codec implements spec.md §4.5's send/decode operations against a Bus,
// Signer, and GiftWrapper. It holds no peer state of its own - rtc.Controller
// and client.Client own the peer-facing side effects of a decoded message.
type Codec struct {
	bus    Bus
	signer Signer
	wrap   GiftWrapper
	clock  clock.Clock
}

// NewCodec creates a Codec. c may be nil to use the real wall clock.
func NewCodec(bus Bus, signer Signer, wrap GiftWrapper, c clock.Clock) *Codec {
	if c == nil {
		c = clock.New()
	}
	return &Codec{bus: bus, signer: signer, wrap: wrap, clock: c}
}

func (c *Codec) nowSec() int64 {
	return c.clock.Now().Unix()
}

// Send publishes msg to the bus: a plain signed hello event if
// msg.RecipientPubkey is empty, or a gift-wrapped directed event otherwise,
// per spec.md §4.5.
func (c *Codec) Send(ctx context.Context, msg Message) error {
	if msg.RecipientPubkey == "" {
		return c.sendHello(ctx, msg)
	}
	return c.sendDirected(ctx, msg)
}

func (c *Codec) sendHello(ctx context.Context, msg Message) error {
	ev := Event{
		Kind:      SignalingKind,
		CreatedAt: c.nowSec(),
		Tags: [][]string{
			{"l", "hello"},
			{"peerId", msg.PeerID},
			{"expiration", fmt.Sprintf("%d", c.nowSec()+HelloExpirationSec)},
		},
		Content: "",
	}
	signed, err := c.signer.Sign(ev)
	if err != nil {
		return fmt.Errorf("sign hello event: %w", err)
	}
	return c.bus.Publish(ctx, signed)
}

func (c *Codec) sendDirected(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(canonicalPayload{
		Type:         string(msg.Type),
		PeerID:       msg.PeerID,
		TargetPeerID: msg.TargetPeerID,
		SDP:          msg.SDP,
		Candidate:    msg.Candidate,
		Candidates:   msg.Candidates,
	})
	if err != nil {
		return fmt.Errorf("marshal directed payload: %w", err)
	}

	inner := Event{Kind: SignalingKind, CreatedAt: c.nowSec(), Content: string(payload)}
	inner, err = c.signer.Sign(inner)
	if err != nil {
		return fmt.Errorf("sign inner event: %w", err)
	}

	wrapper, err := c.wrap.Wrap(msg.RecipientPubkey, inner)
	if err != nil {
		return fmt.Errorf("gift-wrap directed message: %w", err)
	}
	wrapper.Tags = append(wrapper.Tags, []string{"p", msg.RecipientPubkey})
	return c.bus.Publish(ctx, wrapper)
}

// Decode implements spec.md §4.5's decode operation: expiration/age
// filtering, hello-tag detection, and gift-unwrap + legacy normalization
// for directed messages. Returns (nil, nil) for events that should be
// silently dropped (expired, not addressed to us, empty content).
func (c *Codec) Decode(event Event) (*Message, error) {
	now := c.nowSec()
	if now-event.CreatedAt > MaxEventAgeSec {
		return nil, nil
	}
	if expStr, ok := event.Tag("expiration"); ok {
		var exp int64
		if _, err := fmt.Sscanf(expStr, "%d", &exp); err == nil && exp < now {
			return nil, nil
		}
	}

	if _, ok := event.Tag("l"); ok && event.HasTagValue("l", "hello") {
		peerID, ok := event.Tag("peerId")
		if !ok {
			return nil, fmt.Errorf("hello event missing peerId tag")
		}
		if err := ValidatePubkeyHex(event.PubKey); err != nil {
			return nil, fmt.Errorf("hello event: %w", err)
		}
		return &Message{Type: MsgHello, PeerID: peerID, SenderPubkey: event.PubKey}, nil
	}

	inner, err := c.wrap.Unwrap(event)
	if err != nil {
		return nil, nil
	}
	if inner.Content == "" {
		return nil, nil
	}
	if err := ValidatePubkeyHex(inner.PubKey); err != nil {
		return nil, fmt.Errorf("directed message: %w", err)
	}

	msg, err := normalizePayload(inner.Content)
	if err != nil {
		return nil, fmt.Errorf("decode directed payload: %w", err)
	}
	msg.SenderPubkey = inner.PubKey
	msg.PeerID = qualifyPeerID(inner.PubKey, msg.PeerID)
	return msg, nil
}
