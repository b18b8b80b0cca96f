package rtc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeer_InitialStateIsConnecting(t *testing.T) {
	p := newPeer("p-a", nil, true)
	require.Equal(t, StateConnecting, p.State())
	require.Equal(t, "connecting", p.State().String())
}

func TestPeer_SendWithoutDataChannelErrors(t *testing.T) {
	p := newPeer("p-a", nil, true)
	err := p.Send([]byte("x"))
	require.ErrorIs(t, err, errDataChannelNotReady)
}

func TestPeer_BackpressureToggle(t *testing.T) {
	p := newPeer("p-a", nil, true)
	require.False(t, p.Backpressured())
	p.setBackpressured(true)
	require.True(t, p.Backpressured())
	p.setBackpressured(false)
	require.False(t, p.Backpressured())
}

func TestPeer_CloseWithNilConnIsNoop(t *testing.T) {
	p := newPeer("p-a", nil, true)
	require.NoError(t, p.Close())
	require.Equal(t, StateDisconnected, p.State())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "unknown", State(99).String())
}
