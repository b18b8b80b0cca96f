package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lauri000/hashtree/internal/clock"
)

// fakeBus records published events; Subscribe is unused by these tests.
type fakeBus struct {
	published []Event
}

func (b *fakeBus) Publish(_ context.Context, event Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, Filter) (<-chan Event, error) {
	return nil, nil
}

// fakeSigner stamps PubKey/ID/Sig the way a real Nostr signer would.
type fakeSigner struct{ pubkey string }

func (s *fakeSigner) Sign(event Event) (Event, error) {
	event.PubKey = s.pubkey
	event.ID = "fake-id"
	event.Sig = "fake-sig"
	return event, nil
}

// fakeGiftWrap seals the inner event's JSON into the wrapper's content,
// standing in for the real cryptographic gift-wrap primitive (spec.md §1
// explicitly keeps that primitive out of core scope).
type fakeGiftWrap struct{ wrapperPubkey string }

func (g *fakeGiftWrap) Wrap(recipientPubkey string, inner Event) (Event, error) {
	raw, err := json.Marshal(inner)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Kind:      SignalingKind,
		PubKey:    g.wrapperPubkey,
		CreatedAt: inner.CreatedAt,
		Content:   string(raw),
	}, nil
}

func (g *fakeGiftWrap) Unwrap(wrapper Event) (Event, error) {
	if wrapper.Content == "" {
		return Event{}, fmt.Errorf("empty seal")
	}
	var inner Event
	if err := json.Unmarshal([]byte(wrapper.Content), &inner); err != nil {
		return Event{}, err
	}
	return inner, nil
}

// testPubkeyHex is secp256k1's generator point x-coordinate: a real,
// always-valid curve point, used wherever a test needs a sender pubkey that
// ValidatePubkeyHex will accept.
const testPubkeyHex = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func newTestCodec(t *testing.T) (*Codec, *fakeBus, *clock.Mock) {
	t.Helper()
	mc := clock.NewMock()
	mc.Set(time.Unix(1_700_000_000, 0))
	bus := &fakeBus{}
	codec := NewCodec(bus, &fakeSigner{pubkey: testPubkeyHex}, &fakeGiftWrap{wrapperPubkey: "wrapper-pubkey"}, mc)
	return codec, bus, mc
}

func TestSendDecode_HelloRoundTrip(t *testing.T) {
	codec, bus, _ := newTestCodec(t)

	require.NoError(t, codec.Send(context.Background(), Message{Type: MsgHello, PeerID: "uuid-xyz"}))
	require.Len(t, bus.published, 1)

	decoded, err := codec.Decode(bus.published[0])
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, MsgHello, decoded.Type)
	require.Equal(t, "uuid-xyz", decoded.PeerID)
	require.Equal(t, testPubkeyHex, decoded.SenderPubkey)
}

func TestSendDecode_DirectedRoundTrip(t *testing.T) {
	codec, bus, _ := newTestCodec(t)

	msg := Message{
		Type:            MsgOffer,
		PeerID:          testPubkeyHex + ":uuid-1",
		TargetPeerID:    "recipient-pubkey:uuid-2",
		RecipientPubkey: "recipient-pubkey",
		SDP:             "v=0...",
	}
	require.NoError(t, codec.Send(context.Background(), msg))
	require.Len(t, bus.published, 1)

	wrapper := bus.published[0]
	gotTag, ok := wrapper.Tag("p")
	require.True(t, ok)
	require.Equal(t, "recipient-pubkey", gotTag)

	decoded, err := codec.Decode(wrapper)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, MsgOffer, decoded.Type)
	require.Equal(t, testPubkeyHex+":uuid-1", decoded.PeerID)
	require.Equal(t, "v=0...", decoded.SDP)
	require.Equal(t, testPubkeyHex, decoded.SenderPubkey)
}

func TestDecode_ExpiredByAgeReturnsNil(t *testing.T) {
	codec, _, mc := newTestCodec(t)

	ev := Event{
		Kind:      SignalingKind,
		PubKey:    testPubkeyHex,
		CreatedAt: mc.Now().Unix() - 120,
		Tags:      [][]string{{"l", "hello"}, {"peerId", "uuid-xyz"}},
	}
	decoded, err := codec.Decode(ev)
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecode_ExpiredByExplicitTagReturnsNil(t *testing.T) {
	codec, _, mc := newTestCodec(t)

	ev := Event{
		Kind:      SignalingKind,
		PubKey:    testPubkeyHex,
		CreatedAt: mc.Now().Unix(),
		Tags: [][]string{
			{"l", "hello"},
			{"peerId", "uuid-xyz"},
			{"expiration", fmt.Sprintf("%d", mc.Now().Unix()-1)},
		},
	}
	decoded, err := codec.Decode(ev)
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecode_FreshHelloDecodesWithSenderPubkey(t *testing.T) {
	codec, _, mc := newTestCodec(t)

	ev := Event{
		Kind:      SignalingKind,
		PubKey:    testPubkeyHex,
		CreatedAt: mc.Now().Unix(),
		Tags:      [][]string{{"l", "hello"}, {"peerId", "uuid-xyz"}, {"expiration", fmt.Sprintf("%d", mc.Now().Unix()+300)}},
	}
	decoded, err := codec.Decode(ev)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, &Message{Type: MsgHello, PeerID: "uuid-xyz", SenderPubkey: testPubkeyHex}, decoded)
}

func TestDecode_LegacyShapeNormalizes(t *testing.T) {
	codec, _, mc := newTestCodec(t)

	legacyInner := Event{
		Kind:      SignalingKind,
		PubKey:    testPubkeyHex,
		CreatedAt: mc.Now().Unix(),
		Content:   `{"type":"offer","peerId":"uuid-1","recipient":"uuid-2","offer":{"sdp":"legacy-sdp"}}`,
	}
	wrapper, err := (&fakeGiftWrap{wrapperPubkey: "wrapper-pubkey"}).Wrap("recipient-pubkey", legacyInner)
	require.NoError(t, err)
	wrapper.CreatedAt = mc.Now().Unix()

	decoded, err := codec.Decode(wrapper)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, MsgOffer, decoded.Type)
	require.Equal(t, "uuid-2", decoded.TargetPeerID)
	require.Equal(t, "legacy-sdp", decoded.SDP)
	// peerId was unqualified in the legacy payload, so Decode qualifies it
	// with the unwrapped seal's sender pubkey.
	require.Equal(t, testPubkeyHex+":uuid-1", decoded.PeerID)
}

func TestDecode_AlreadyQualifiedPeerIDPassesThrough(t *testing.T) {
	codec, _, mc := newTestCodec(t)

	inner := Event{
		Kind:      SignalingKind,
		PubKey:    testPubkeyHex,
		CreatedAt: mc.Now().Unix(),
		Content:   `{"type":"candidate","peerId":"other-sender:uuid-9","candidate":"c1"}`,
	}
	wrapper, err := (&fakeGiftWrap{wrapperPubkey: "wrapper-pubkey"}).Wrap("recipient-pubkey", inner)
	require.NoError(t, err)
	wrapper.CreatedAt = mc.Now().Unix()

	decoded, err := codec.Decode(wrapper)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	require.Equal(t, "other-sender:uuid-9", decoded.PeerID)
}
