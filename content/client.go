// Package content implements the HTTP content-addressed server collaborator
// named in spec.md §6: GET/HEAD reads against {server}/{hex-hash}[.bin] and
// a rate-limited, auth-signed PUT /upload for write-eligible servers. The
// transport itself is explicitly out of scope (spec.md §1); this package
// only wires net/http against the documented surface.
package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/lauri000/hashtree/bandwidth"
	"github.com/lauri000/hashtree/internal/swaperr"
	"github.com/lauri000/hashtree/signaling"
)

// Server is one configured content-addressed HTTP endpoint. Writable
// servers are the "write-eligible content servers" spec.md §6's putBlob
// uploads to; read-only servers are only ever GET/HEAD'd.
type Server struct {
	URL      string
	Writable bool
}

const (
	// defaultUploadRate/defaultUploadBurst mirror the teacher's
	// globalServerBlocksRateLimit/globalServerBlocksBurst token-bucket
	// constants in op-node/p2p/sync.go, applied here per-server to
	// outbound uploads instead of inbound sync requests.
	defaultUploadRate  = rate.Limit(4)
	defaultUploadBurst = 4
)

type serverState struct {
	cfg     Server
	limiter *rate.Limiter
}

// Client fetches and uploads blobs against a configurable list of
// content-addressed HTTP servers.
type Client struct {
	log  log.Logger
	http *http.Client
	bw   *bandwidth.Tracker

	mu      sync.RWMutex
	servers []*serverState
}

// New creates a Client with no servers configured; call SetServers before
// Get/Upload will do anything.
func New(l log.Logger, bw *bandwidth.Tracker) *Client {
	return &Client{
		log:  l,
		http: &http.Client{},
		bw:   bw,
	}
}

// SetServers implements spec.md §6's setContentServers(list): replaces the
// configured server set and resets per-server upload rate-limiter state.
func (c *Client) SetServers(servers []Server) {
	states := make([]*serverState, 0, len(servers))
	for _, s := range servers {
		states = append(states, &serverState{
			cfg:     s,
			limiter: rate.NewLimiter(defaultUploadRate, defaultUploadBurst),
		})
	}
	c.mu.Lock()
	c.servers = states
	c.mu.Unlock()
}

// Counts returns the total number of configured servers and how many of
// them are writable, for spec.md §6's probeConnectivity() state.
func (c *Client) Counts() (total, writable int) {
	for _, s := range c.snapshot() {
		total++
		if s.cfg.Writable {
			writable++
		}
	}
	return total, writable
}

func (c *Client) snapshot() []*serverState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*serverState(nil), c.servers...)
}

func hexOf(h common.Hash) string {
	return strings.ToLower(h.Hex()[2:])
}

// Get tries every configured server in registration order, GET /{hex} then
// GET /{hex}.bin, returning the first hit. A miss at every server returns
// (nil, false, nil); a non-nil error is only returned when every server
// failed at the transport level (none merely 404'd).
func (c *Client) Get(ctx context.Context, h common.Hash) ([]byte, bool, error) {
	hex := hexOf(h)
	var errs *multierror.Error
	anyReached := false
	for _, s := range c.snapshot() {
		for _, suffix := range [...]string{"", ".bin"} {
			data, ok, reached, err := c.getOne(ctx, s.cfg.URL, hex+suffix)
			if reached {
				anyReached = true
			}
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.cfg.URL, err))
				continue
			}
			if ok {
				return data, true, nil
			}
		}
	}
	if !anyReached && errs.ErrorOrNil() != nil {
		return nil, false, fmt.Errorf("%w: %v", swaperr.ErrTransportUnavailable, errs.ErrorOrNil())
	}
	return nil, false, nil
}

func (c *Client) getOne(ctx context.Context, server, path string) (data []byte, ok bool, reached bool, err error) {
	url := strings.TrimRight(server, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, true, err
		}
		if c.bw != nil {
			c.bw.Record(bandwidth.LogEntry{Server: server, Direction: bandwidth.Received, Bytes: int64(len(body)) + wireOverheadEstimate(resp)})
		}
		return body, true, true, nil
	case http.StatusNotFound:
		return nil, false, true, nil
	default:
		return nil, false, true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// Head probes every configured server with HEAD /{hex-hash}, returning true
// as soon as one responds 200, per spec.md §6's "Read probe is
// HEAD /{hex-hash}".
func (c *Client) Head(ctx context.Context, h common.Hash) (bool, error) {
	hex := hexOf(h)
	var errs *multierror.Error
	anyReached := false
	for _, s := range c.snapshot() {
		url := strings.TrimRight(s.cfg.URL, "/") + "/" + hex
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		resp, err := c.http.Do(req)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.cfg.URL, err))
			continue
		}
		resp.Body.Close()
		anyReached = true
		if resp.StatusCode == http.StatusOK {
			return true, nil
		}
	}
	if !anyReached && errs.ErrorOrNil() != nil {
		return false, fmt.Errorf("%w: %v", swaperr.ErrTransportUnavailable, errs.ErrorOrNil())
	}
	return false, nil
}

// AuthEvent is the signed Nostr-style event carried as a Blossom-style
// "Authorization: Nostr <base64(event)>" header on PUT /upload, per
// spec.md §6: "PUT /upload with a signed auth event for writes".
type AuthEvent = signaling.Event

// Upload PUTs data to every writable configured server, rate-limited per
// server. auth is a pre-signed event (the caller signs it with the same
// signaling.Signer used for hello events, before calling Upload, matching
// the privacy guard's requirement that callers assert the upload CID is
// encrypted before any outbound transport happens - see blob.PrivacyGuard).
// Succeeds if at least one writable server accepts the upload.
func (c *Client) Upload(ctx context.Context, h common.Hash, data []byte, auth AuthEvent) error {
	return c.uploadAll(ctx, h, data, auth, nil)
}

// UploadWithProgress behaves exactly like Upload, additionally invoking
// progress once per writable server attempted (spec.md §6's
// onUploadProgress feed), after that server's PUT has succeeded or
// failed.
func (c *Client) UploadWithProgress(ctx context.Context, h common.Hash, data []byte, auth AuthEvent, progress func(server string, err error)) error {
	return c.uploadAll(ctx, h, data, auth, progress)
}

func (c *Client) uploadAll(ctx context.Context, h common.Hash, data []byte, auth AuthEvent, progress func(server string, err error)) error {
	authHeader, err := encodeAuthHeader(auth)
	if err != nil {
		return fmt.Errorf("encode auth header: %w", err)
	}

	servers := c.snapshot()
	var errs *multierror.Error
	uploaded := false
	for _, s := range servers {
		if !s.cfg.Writable {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			err = fmt.Errorf("%s: rate limit wait: %w", s.cfg.URL, err)
			errs = multierror.Append(errs, err)
			if progress != nil {
				progress(s.cfg.URL, err)
			}
			continue
		}
		if err := c.uploadOne(ctx, s.cfg.URL, data, authHeader); err != nil {
			err = fmt.Errorf("%s: %w", s.cfg.URL, err)
			errs = multierror.Append(errs, err)
			if progress != nil {
				progress(s.cfg.URL, err)
			}
			continue
		}
		if c.bw != nil {
			c.bw.Record(bandwidth.LogEntry{Server: s.cfg.URL, Direction: bandwidth.Sent, Bytes: int64(len(data))})
		}
		uploaded = true
		if progress != nil {
			progress(s.cfg.URL, nil)
		}
	}
	if !uploaded {
		if errs.ErrorOrNil() != nil {
			return fmt.Errorf("%w: %v", swaperr.ErrTransportUnavailable, errs.ErrorOrNil())
		}
		return fmt.Errorf("%w: no writable content servers configured", swaperr.ErrTransportUnavailable)
	}
	return nil
}

func (c *Client) uploadOne(ctx context.Context, server string, data []byte, authHeader string) error {
	url := strings.TrimRight(server, "/") + "/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func encodeAuthHeader(ev AuthEvent) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return "Nostr " + base64.StdEncoding.EncodeToString(raw), nil
}

// wireOverheadEstimate approximates HTTP response framing overhead so
// bandwidth accounting stays in the spirit of exchange's "the counter must
// include framing overhead" even though the real number isn't observable
// through net/http's abstraction.
func wireOverheadEstimate(resp *http.Response) int64 {
	n := int64(len(resp.Proto) + len(resp.Status) + 4)
	for k, vs := range resp.Header {
		for _, v := range vs {
			n += int64(len(k) + len(v) + 4)
		}
	}
	return n
}
