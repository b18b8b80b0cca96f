package client

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/lauri000/hashtree/internal/clock"
	"github.com/lauri000/hashtree/signaling"
)

// fakeBus feeds pre-decoded events to whichever filter's channel matches,
// letting a test drive Client's subscription goroutine without a real relay.
type fakeBus struct {
	helloCh    chan signaling.Event
	directedCh chan signaling.Event
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		helloCh:    make(chan signaling.Event, 8),
		directedCh: make(chan signaling.Event, 8),
	}
}

func (b *fakeBus) Publish(context.Context, signaling.Event) error { return nil }

func (b *fakeBus) Subscribe(ctx context.Context, filter signaling.Filter) (<-chan signaling.Event, error) {
	if filter.Tags["#l"] != nil {
		return b.helloCh, nil
	}
	return b.directedCh, nil
}

type fakeSigner struct{ pubkey string }

func (s *fakeSigner) Sign(ev signaling.Event) (signaling.Event, error) {
	ev.PubKey = s.pubkey
	return ev, nil
}

type passthroughGiftWrap struct{}

func (passthroughGiftWrap) Wrap(_ string, inner signaling.Event) (signaling.Event, error) {
	return inner, nil
}

func (passthroughGiftWrap) Unwrap(wrapper signaling.Event) (signaling.Event, error) {
	return wrapper, nil
}

// testSenderPubkeyHex mirrors signaling package's test constant: a real
// secp256k1 point (the generator), so ValidatePubkeyHex accepts it.
const testSenderPubkeyHex = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestSubscribeSignaling_HelloDrivesConnectAttempt(t *testing.T) {
	bus := newFakeBus()
	mc := clock.NewMock()

	c := New(Config{
		Log:      log.New(),
		Clock:    mc,
		Bus:      bus,
		Signer:   &fakeSigner{pubkey: testSenderPubkeyHex},
		GiftWrap: passthroughGiftWrap{},
		MyPubkey: testSenderPubkeyHex,
	}, nil)
	defer c.Close()

	_, known := c.RTC().Peer("new-peer")
	require.False(t, known)

	bus.helloCh <- signaling.Event{
		Kind:      signaling.SignalingKind,
		PubKey:    testSenderPubkeyHex,
		CreatedAt: mc.Now().Unix(),
		Tags: [][]string{
			{"l", "hello"},
			{"peerId", "new-peer"},
			{"expiration", "9999999999"},
		},
	}

	require.Eventually(t, func() bool {
		_, ok := c.RTC().Peer("new-peer")
		return ok
	}, time.Second, 5*time.Millisecond, "hello should register a connecting peer via rtc.Controller.Connect")
}

func TestHandleSignalingMessage_CandidateForUnknownPeerDoesNotBlock(t *testing.T) {
	c := New(Config{Log: log.New(), Clock: clock.NewMock()}, nil)
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		done <- c.HandleSignalingMessage(context.Background(), signaling.Message{
			Type:      signaling.MsgCandidate,
			PeerID:    "unknown-peer",
			Candidate: "candidate:1 1 UDP 1 0.0.0.0 0 typ host",
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("HandleSignalingMessage blocked on an unknown peer")
	}
}
