package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/lauri000/hashtree/content"
	"github.com/lauri000/hashtree/internal/clock"
	"github.com/lauri000/hashtree/internal/swaperr"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c := New(Config{
		Log:   log.New(),
		Clock: clock.NewMock(),
	}, nil)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestPutBlob_ThenGetBlob_ReturnsFromLocalStore(t *testing.T) {
	c := testClient(t)

	hashHex, cid, err := c.PutBlob(context.Background(), []byte("hello world"), "text/plain", false)
	require.NoError(t, err)
	require.NotEmpty(t, hashHex)
	require.False(t, cid.Encrypted())

	data, src, err := c.GetBlob(context.Background(), cid.Hash)
	require.NoError(t, err)
	require.Equal(t, SourceLocal, src)
	require.Equal(t, []byte("hello world"), data)
}

func TestPutBlob_WithUpload_GeneratesKeyAndUploads(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := testClient(t)
	c.SetContentServers([]content.Server{{URL: srv.URL, Writable: true}})

	var progressed []UploadProgress
	c.SetHandlers(Handlers{
		OnUploadProgress: func(p UploadProgress) { progressed = append(progressed, p) },
	})

	hashHex, cid, err := c.PutBlob(context.Background(), []byte("secret bytes"), "application/octet-stream", true)
	require.NoError(t, err)
	require.NotEmpty(t, hashHex)
	require.True(t, cid.Encrypted())
	require.Contains(t, gotAuth, "Nostr ")
	require.Len(t, progressed, 1)
	require.True(t, progressed[0].Done)
	require.NoError(t, progressed[0].Err)
}

func TestGetBlob_FallsBackToContentServerAndCaches(t *testing.T) {
	c := testClient(t)

	hashHex, cid, err := c.PutBlob(context.Background(), []byte("origin data"), "", false)
	require.NoError(t, err)
	require.NotEmpty(t, hashHex)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("origin data"))
	}))
	defer srv.Close()

	c2 := testClient(t)
	c2.SetContentServers([]content.Server{{URL: srv.URL}})

	data, src, err := c2.GetBlob(context.Background(), cid.Hash)
	require.NoError(t, err)
	require.Equal(t, SourceContent, src)
	require.Equal(t, []byte("origin data"), data)
	require.Equal(t, 1, hits)

	// Second call is served from the now-warmed local cache without another
	// round trip to the content server.
	data, src, err = c2.GetBlob(context.Background(), cid.Hash)
	require.NoError(t, err)
	require.Equal(t, SourceLocal, src)
	require.Equal(t, []byte("origin data"), data)
	require.Equal(t, 1, hits)
}

func TestGetBlob_NoPeersNoServers_ReturnsTransportUnavailable(t *testing.T) {
	c := New(Config{
		Log:        log.New(),
		Clock:      clock.NewMock(),
		GetTimeout: 10 * time.Millisecond,
	}, nil)
	defer c.Close()

	unknown := testHashForClient(t)
	_, _, err := c.GetBlob(context.Background(), unknown)
	require.ErrorIs(t, err, swaperr.ErrTransportUnavailable)
}

func TestProbeConnectivity_ReflectsConfiguredServers(t *testing.T) {
	c := testClient(t)
	c.SetContentServers([]content.Server{
		{URL: "http://a.example"},
		{URL: "http://b.example", Writable: true},
	})

	state := c.ProbeConnectivity()
	require.Equal(t, 2, state.ContentServers)
	require.Equal(t, 1, state.WritableServers)
	require.Equal(t, 0, state.FollowsPeers)
	require.Equal(t, 0, state.OtherPeers)
}

func TestSetStorageMaxBytes_ReflectedInStorageStats(t *testing.T) {
	c := testClient(t)
	c.SetStorageMaxBytes(4096)
	stats := c.GetStorageStats()
	require.Equal(t, int64(4096), stats.MaxBytes)
}

func testHashForClient(t *testing.T) common.Hash {
	t.Helper()
	return common.HexToHash("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
}
