package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

func testHash(t *testing.T) common.Hash {
	t.Helper()
	return common.HexToHash("0xaabbccddaabbccddaabbccddaabbccddaabbccddaabbccddaabbccddaabbccdd")
}

func TestGet_ReturnsFirstHit(t *testing.T) {
	h := testHash(t)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("blob-bytes"))
	}))
	defer srv.Close()

	c := New(log.New(), nil)
	c.SetServers([]Server{{URL: srv.URL}})

	data, ok, err := c.Get(context.Background(), h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("blob-bytes"), data)
	require.Equal(t, "/"+hexOf(h), gotPath)
}

func TestGet_FallsBackToBinSuffix(t *testing.T) {
	h := testHash(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+hexOf(h)+".bin" {
			w.Write([]byte("fallback-bytes"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(log.New(), nil)
	c.SetServers([]Server{{URL: srv.URL}})

	data, ok, err := c.Get(context.Background(), h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("fallback-bytes"), data)
}

func TestGet_MissAtEveryServerIsNotAnError(t *testing.T) {
	h := testHash(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(log.New(), nil)
	c.SetServers([]Server{{URL: srv.URL}})

	data, ok, err := c.Get(context.Background(), h)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, data)
}

func TestHead_ReturnsTrueOn200(t *testing.T) {
	h := testHash(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(log.New(), nil)
	c.SetServers([]Server{{URL: srv.URL}})

	ok, err := c.Head(context.Background(), h)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUpload_OnlyTargetsWritableServers(t *testing.T) {
	h := testHash(t)
	var writableHits, readonlyHits int
	writable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writableHits++
		require.Equal(t, "/upload", r.URL.Path)
		require.Contains(t, r.Header.Get("Authorization"), "Nostr ")
		w.WriteHeader(http.StatusCreated)
	}))
	defer writable.Close()
	readonly := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readonlyHits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer readonly.Close()

	c := New(log.New(), nil)
	c.SetServers([]Server{{URL: writable.URL, Writable: true}, {URL: readonly.URL, Writable: false}})

	err := c.Upload(context.Background(), h, []byte("data"), AuthEvent{Kind: 24242})
	require.NoError(t, err)
	require.Equal(t, 1, writableHits)
	require.Equal(t, 0, readonlyHits)
}

func TestUpload_FailsWhenNoWritableServers(t *testing.T) {
	h := testHash(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(log.New(), nil)
	c.SetServers([]Server{{URL: srv.URL, Writable: false}})

	err := c.Upload(context.Background(), h, []byte("data"), AuthEvent{})
	require.Error(t, err)
}
