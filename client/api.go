package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lauri000/hashtree/exchange"
	"github.com/lauri000/hashtree/forward"
	"github.com/lauri000/hashtree/internal/swaperr"
	"github.com/lauri000/hashtree/signaling"
)

// getRequest is submitted to the owning loop by GetBlob once local and
// content-server lookups have both missed, per spec.md §2's "if miss,
// broadcast a request frame to currently-connected peers".
type getRequest struct {
	hash     common.Hash
	waiterID string
	resultCh chan getResult
}

type getResult struct {
	data   []byte
	source Source
	err    error
}

// onGetRequest runs on the owning loop: it is the only place that calls
// forward.BeginForward and rtc.Controller.Send for a local lookup.
func (c *Client) onGetRequest(req *getRequest) {
	targets := c.rtc.ForwardCandidates()
	startHTL := htlForPool(c.rtc.Follows.Len() > 0)

	res := c.fwd.BeginForward(hashKeyOf(req.hash), req.waiterID, targets)
	switch res.Decision {
	case forward.DecisionForward:
		c.waiters[req.waiterID] = &waiterEntry{resultCh: req.resultCh, hash: req.hash}
		frame := exchange.EncodeRequest(exchange.RequestFrame{Hash: req.hash, HTL: startHTL})
		for _, t := range res.Targets {
			if err := c.rtc.Send(t, frame, true); err != nil {
				c.log.Debug("p2p lookup send failed", "peer", t, "hash", req.hash, "err", err)
				continue
			}
			c.stats.AddBytesSent(t, int64(len(frame)))
		}
	case forward.DecisionSuppressed:
		c.waiters[req.waiterID] = &waiterEntry{resultCh: req.resultCh, hash: req.hash}
	case forward.DecisionRateLimited:
		c.replyImmediate(req.resultCh, swaperr.ErrRateLimited)
	case forward.DecisionNoTargets:
		c.replyImmediate(req.resultCh, swaperr.ErrTransportUnavailable)
	}
}

func (c *Client) replyImmediate(ch chan getResult, err error) {
	select {
	case ch <- getResult{err: err}:
	default:
	}
}

// GetBlob implements spec.md §6's getBlob(hashHex) → {data, source}:
// local cache, then HTTP content servers, then bounded hop-limited p2p
// gossip, in that order (spec.md §2's read data-flow).
func (c *Client) GetBlob(ctx context.Context, h common.Hash) ([]byte, Source, error) {
	if data, ok := c.store.Get(h); ok {
		return data, SourceLocal, nil
	}

	if data, ok, err := c.content.Get(ctx, h); err != nil {
		c.log.Debug("content server lookup failed, falling through to p2p", "hash", h, "err", err)
	} else if ok {
		if err := c.store.PutByHash(h, data); err != nil {
			if errors.Is(err, swaperr.ErrHashMismatch) {
				return nil, "", err
			}
			c.log.Warn("failed to cache content-server blob", "hash", h, "err", err)
		}
		c.guard.MarkShareable(h)
		return data, SourceContent, nil
	}

	return c.getFromPeers(ctx, h)
}

func (c *Client) getFromPeers(ctx context.Context, h common.Hash) ([]byte, Source, error) {
	waiterID := newLocalWaiterID()
	resultCh := make(chan getResult, 1)

	select {
	case c.getRequestsCh <- &getRequest{hash: h, waiterID: waiterID, resultCh: resultCh}:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-c.ctx.Done():
		return nil, "", swaperr.ErrTransportUnavailable
	}

	timer := time.NewTimer(c.cfg.GetTimeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, "", res.err
		}
		return res.data, SourceP2P, nil
	case <-timer.C:
		c.cancelWaiter(waiterID)
		return nil, "", swaperr.ErrTimeout
	case <-ctx.Done():
		c.cancelWaiter(waiterID)
		return nil, "", ctx.Err()
	case <-c.ctx.Done():
		return nil, "", swaperr.ErrTransportUnavailable
	}
}

func (c *Client) cancelWaiter(waiterID string) {
	select {
	case c.cancelCh <- waiterID:
	case <-c.ctx.Done():
	}
}

// PutBlob implements spec.md §6's putBlob(data, mimeType?, upload=true) →
// {hashHex, nhash}: stores locally, and if upload, asserts the privacy
// guard's encrypted-upload invariant before uploading to every writable
// content server.
func (c *Client) PutBlob(ctx context.Context, data []byte, mimeType string, upload bool) (hashHex string, nhash CID, err error) {
	h, err := c.store.Put(data)
	if err != nil {
		return "", CID{}, fmt.Errorf("store blob: %w", err)
	}
	cid := CID{Hash: h}

	if upload {
		var key [32]byte
		if _, err := rand.Read(key[:]); err != nil {
			return "", CID{}, fmt.Errorf("generate upload key: %w", err)
		}
		cid.Key = &key
		if err := c.guard.AssertEncryptedUpload(cid.Encrypted()); err != nil {
			return "", CID{}, err
		}
		c.guard.MarkShareable(h)

		if err := c.uploadToServers(ctx, h, data, mimeType); err != nil {
			return "", CID{}, err
		}
	}

	return hashKeyOf(h), cid, nil
}

func (c *Client) uploadToServers(ctx context.Context, h common.Hash, data []byte, mimeType string) error {
	auth := signaling.Event{Kind: 24242, Content: mimeType}
	if c.cfg.Signer != nil {
		signed, err := c.cfg.Signer.Sign(auth)
		if err != nil {
			return fmt.Errorf("sign upload auth event: %w", err)
		}
		auth = signed
	}

	err := c.content.UploadWithProgress(ctx, h, data, auth, func(server string, uploadErr error) {
		c.handlers.uploadProgress(UploadProgress{HashHex: hashKeyOf(h), Server: server, Done: uploadErr == nil, Err: uploadErr})
	})
	if err != nil {
		return err
	}
	sent, received := c.bw.Aggregate()
	c.handlers.bandwidth(BandwidthEvent{Server: "aggregate", Direction: "sent", Bytes: sent})
	c.handlers.bandwidth(BandwidthEvent{Server: "aggregate", Direction: "received", Bytes: received})
	return nil
}
