package blob

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/lauri000/hashtree/blob/persistence"
)

func newTestStore(maxBytes int64) *Store {
	s := New(log.New(), persistence.NewMemory(), maxBytes)
	s.evictionInterval = 1 // evict after every write, so tests don't need 32 writes to observe it
	return s
}

func TestPut_ComputesHashAndRoundTrips(t *testing.T) {
	s := newTestStore(1 << 20)
	h, err := s.Put([]byte("hello"))
	require.NoError(t, err)

	got, ok := s.Get(h)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestPutByHash_RejectsMismatch(t *testing.T) {
	s := newTestStore(1 << 20)
	wrongHash, err := s.Put([]byte("other content"))
	require.NoError(t, err)

	err = s.PutByHash(wrongHash, []byte("hello"))
	require.Error(t, err)
}

func TestTrustedPutByHash_SkipsVerification(t *testing.T) {
	s := newTestStore(1 << 20)
	var fakeHash common.Hash
	fakeHash[0] = 0xAB
	h := fakeHash

	err := s.TrustedPutByHash(h, []byte("fragment-reassembled bytes"))
	require.NoError(t, err)

	got, ok := s.Get(h)
	require.True(t, ok)
	require.Equal(t, []byte("fragment-reassembled bytes"), got)
}

func TestGet_MissingReturnsFalse(t *testing.T) {
	s := newTestStore(1 << 20)
	var h common.Hash
	_, ok := s.Get(h)
	require.False(t, ok)
}

func TestEviction_RemovesLeastRecentlyTouchedFirst(t *testing.T) {
	// Byte budget fits exactly one ~5-byte blob at a time.
	s := newTestStore(5)

	h1, err := s.Put([]byte("aaaaa"))
	require.NoError(t, err)
	h2, err := s.Put([]byte("bbbbb"))
	require.NoError(t, err)

	require.False(t, s.Has(h1), "h1 should have been evicted to make room for h2")
	require.True(t, s.Has(h2))
}

func TestEviction_GetTouchProtectsFromEviction(t *testing.T) {
	s := newTestStore(10)
	s.evictionInterval = 3

	h1, _ := s.Put([]byte("aaaaa"))
	h2, _ := s.Put([]byte("bbbbb"))
	// Touch h1 so it is more recent than h2's put.
	s.Get(h1)
	// This third write crosses the eviction interval with total=15 > max=10;
	// h2 was put most recently but h1 was *touched* most recently via Get.
	h3, _ := s.Put([]byte("ccccc"))

	require.True(t, s.Has(h1), "h1 was touched most recently and should survive")
	require.True(t, s.Has(h3))
	require.False(t, s.Has(h2))
}

func TestSetMaxBytes_TriggersImmediateEviction(t *testing.T) {
	s := newTestStore(1 << 20)
	s.Put([]byte("aaaaa"))
	h2, _ := s.Put([]byte("bbbbb"))

	s.SetMaxBytes(5)
	require.True(t, s.Has(h2))
	require.Equal(t, int64(5), s.GetStats().Bytes)
}

func TestPut_ReadmitsHashToFrontOfRecency(t *testing.T) {
	s := newTestStore(10)
	s.evictionInterval = 2

	h1, _ := s.Put([]byte("aaaaa"))
	_, _ = s.Put([]byte("bbbbb"))
	// Re-put h1's content: this should refresh h1's recency even though the
	// bytes are identical to what's already stored.
	h1Again, _ := s.Put([]byte("aaaaa"))
	require.Equal(t, h1, h1Again)

	h3, _ := s.Put([]byte("ccccc"))
	require.True(t, s.Has(h1), "re-put should have refreshed recency")
	require.True(t, s.Has(h3))
}
