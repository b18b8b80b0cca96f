package rtc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_AddIsIdempotent(t *testing.T) {
	p := NewPool()
	p.Add("p-a")
	p.Add("p-a")
	require.Equal(t, 1, p.Len())
}

func TestPool_RoundRobinRotatesStartingOffset(t *testing.T) {
	p := NewPool()
	p.Add("p-a")
	p.Add("p-b")
	p.Add("p-c")

	first := p.RoundRobin()
	second := p.RoundRobin()
	third := p.RoundRobin()
	fourth := p.RoundRobin()

	require.Equal(t, []PeerID{"p-a", "p-b", "p-c"}, first)
	require.Equal(t, []PeerID{"p-b", "p-c", "p-a"}, second)
	require.Equal(t, []PeerID{"p-c", "p-a", "p-b"}, third)
	require.Equal(t, []PeerID{"p-a", "p-b", "p-c"}, fourth)
}

func TestPool_RemoveAdjustsRotationOffset(t *testing.T) {
	p := NewPool()
	p.Add("p-a")
	p.Add("p-b")
	p.Add("p-c")

	p.RoundRobin() // next = 1
	p.Remove("p-a")

	require.Equal(t, []PeerID{"p-b", "p-c"}, p.Members())
	got := p.RoundRobin()
	require.Equal(t, []PeerID{"p-b", "p-c"}, got)
}

func TestPool_RoundRobinOnEmptyPoolReturnsNil(t *testing.T) {
	p := NewPool()
	require.Nil(t, p.RoundRobin())
}

func TestPool_RemoveUnknownIsNoop(t *testing.T) {
	p := NewPool()
	p.Add("p-a")
	p.Remove("does-not-exist")
	require.Equal(t, []PeerID{"p-a"}, p.Members())
}
