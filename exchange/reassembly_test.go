package exchange

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/lauri000/hashtree/internal/clock"
)

// incompressiblePayload returns n seeded pseudorandom bytes, which snappy
// cannot shrink, so FragmentResponse splits them into raw fragments.
func incompressiblePayload(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(1)).Read(b)
	return b
}

func TestReassembler_SingleFragmentCompletesImmediately(t *testing.T) {
	mc := clock.NewMock()
	r := NewReassembler(mc, time.Second)

	var got []byte
	var gotPeer PeerID
	r.OnComplete = func(peer PeerID, hash common.Hash, payload []byte) {
		gotPeer = peer
		got = payload
	}

	var h common.Hash
	frames := FragmentResponse(h, []byte("hello world"))
	require.Len(t, frames, 1)

	err := r.AddFragment("peer-a", frames[0])
	require.NoError(t, err)
	require.Equal(t, PeerID("peer-a"), gotPeer)
	require.Equal(t, []byte("hello world"), got)
}

func TestReassembler_MultiFragmentCompletesInOrder(t *testing.T) {
	mc := clock.NewMock()
	r := NewReassembler(mc, time.Second)

	var got []byte
	r.OnComplete = func(peer PeerID, hash common.Hash, payload []byte) {
		got = payload
	}

	var h common.Hash
	payload := incompressiblePayload(MaxFragmentPayload * 3)
	frames := FragmentResponse(h, payload)
	require.Greater(t, len(frames), 1)

	// Feed fragments out of arrival order to ensure reassembly still
	// reconstructs them by sequence number, not arrival order.
	for i := len(frames) - 1; i >= 0; i-- {
		err := r.AddFragment("peer-a", frames[i])
		require.NoError(t, err)
	}
	require.Equal(t, payload, got)
}

func TestReassembler_TimeoutDropsIncompleteEntry(t *testing.T) {
	mc := clock.NewMock()
	r := NewReassembler(mc, time.Second)

	var timedOut bool
	r.OnTimeout = func(peer PeerID, hash common.Hash) {
		timedOut = true
	}
	r.OnComplete = func(peer PeerID, hash common.Hash, payload []byte) {
		t.Fatal("OnComplete should not fire for an incomplete reassembly")
	}

	var h common.Hash
	frames := FragmentResponse(h, incompressiblePayload(MaxFragmentPayload*2))
	require.Greater(t, len(frames), 1)

	// Only feed the first fragment, never the terminal one.
	require.NoError(t, r.AddFragment("peer-a", frames[0]))

	mc.Add(time.Second)
	require.True(t, timedOut)
}

func TestReassembler_NewFragmentResetsGapWindow(t *testing.T) {
	mc := clock.NewMock()
	r := NewReassembler(mc, time.Second)

	var timedOut bool
	r.OnTimeout = func(peer PeerID, hash common.Hash) { timedOut = true }

	var h common.Hash
	frames := FragmentResponse(h, incompressiblePayload(MaxFragmentPayload*3))
	require.GreaterOrEqual(t, len(frames), 3)

	require.NoError(t, r.AddFragment("peer-a", frames[0]))
	mc.Add(900 * time.Millisecond)
	require.False(t, timedOut, "gap window should not have elapsed yet")

	require.NoError(t, r.AddFragment("peer-a", frames[1]))
	mc.Add(900 * time.Millisecond)
	require.False(t, timedOut, "new fragment should have reset the gap window")
}

func TestReassembler_CancelDropsEntryWithoutCallbacks(t *testing.T) {
	mc := clock.NewMock()
	r := NewReassembler(mc, time.Second)

	r.OnTimeout = func(peer PeerID, hash common.Hash) {
		t.Fatal("OnTimeout should not fire after Cancel")
	}

	var h common.Hash
	frames := FragmentResponse(h, incompressiblePayload(MaxFragmentPayload*2))
	require.NoError(t, r.AddFragment("peer-a", frames[0]))

	r.Cancel("peer-a", h)
	mc.Add(time.Second)
}
