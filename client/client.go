package client

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lauri000/hashtree/bandwidth"
	"github.com/lauri000/hashtree/blob"
	"github.com/lauri000/hashtree/content"
	"github.com/lauri000/hashtree/exchange"
	"github.com/lauri000/hashtree/forward"
	"github.com/lauri000/hashtree/rtc"
	"github.com/lauri000/hashtree/signaling"
)

// Client is the public API of spec.md §6, the single owner task of §5: it
// holds every other component and is the only thing that mutates
// forwarding state, peer records, and bandwidth counters, exactly the way
// the teacher's P2PSyncClient owns its mainLoop/peerLoop state.
type Client struct {
	cfg Config
	log log.Logger

	store   *blob.Store
	guard   *blob.PrivacyGuard
	fwd     *forward.Machine
	reasm   *exchange.Reassembler
	stats   *exchange.StatsTracker
	bw      *bandwidth.Tracker
	content *content.Client
	rtc     *rtc.Controller
	codec   *signaling.Codec

	handlers Handlers

	getRequestsCh       chan *getRequest
	cancelCh            chan string
	forwardTimeoutCh    chan forward.TimeoutEvent
	reassemblyTimeoutCh chan reassemblyTimeoutEvent
	signalingCh         chan signaling.Message

	// waiters is owned exclusively by the run() goroutine.
	waiters map[string]*waiterEntry

	streams *streams

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type waiterEntry struct {
	resultCh chan getResult
	hash     common.Hash
}

type reassemblyTimeoutEvent struct {
	peer PeerID
	hash common.Hash
}

// PeerID mirrors the rest of the module's local string alias.
type PeerID = string

// New wires every component and starts the owning loop goroutine. send is
// the SignalSend collaborator the rtc.Controller uses to hand SDP/ICE
// payloads to the signaling layer (nil is valid if the embedder drives
// signaling itself and only calls HandleSignalingMessage).
func New(cfg Config, send rtc.SignalSend) *Client {
	cfg.setDefaults()

	bw := bandwidth.NewTracker()
	c := &Client{
		cfg:     cfg,
		log:     cfg.Log,
		store:   blob.New(cfg.Log.New("component", "blob"), cfg.Driver, cfg.MaxStorageBytes),
		guard:   blob.NewPrivacyGuard(),
		stats:   exchange.NewStatsTracker(),
		bw:      bw,
		content: content.New(cfg.Log.New("component", "content"), bw),
		rtc:     rtc.NewController(cfg.Log.New("component", "rtc"), cfg.ICEServers, send),

		getRequestsCh:       make(chan *getRequest),
		cancelCh:            make(chan string, 16),
		forwardTimeoutCh:    make(chan forward.TimeoutEvent, 16),
		reassemblyTimeoutCh: make(chan reassemblyTimeoutEvent, 16),
		signalingCh:         make(chan signaling.Message, 64),
		waiters:             make(map[string]*waiterEntry),
		streams:             newStreams(),
	}

	fwdCfg := cfg.ForwardConfig
	fwdCfg.Clock = cfg.Clock
	fwdCfg.OnForwardTimeout = func(ev forward.TimeoutEvent) {
		select {
		case c.forwardTimeoutCh <- ev:
		case <-c.ctx.Done():
		}
	}
	c.fwd = forward.New(fwdCfg)

	c.reasm = exchange.NewReassembler(cfg.Clock, cfg.ReassemblyGapWindow)
	c.reasm.OnComplete = c.onFragmentComplete
	c.reasm.OnTimeout = func(peer PeerID, h common.Hash) {
		select {
		case c.reassemblyTimeoutCh <- reassemblyTimeoutEvent{peer: peer, hash: h}:
		case <-c.ctx.Done():
		}
	}

	if cfg.Bus != nil && cfg.Signer != nil && cfg.GiftWrap != nil {
		c.codec = signaling.NewCodec(cfg.Bus, cfg.Signer, cfg.GiftWrap, cfg.Clock)
	}

	if len(cfg.ContentServers) > 0 {
		c.content.SetServers(cfg.ContentServers)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.run(c.rtc.Events())
	c.subscribeSignaling()

	return c
}

// SetHandlers installs the event-feed callbacks (spec.md §6). Not safe to
// call concurrently with itself; safe to call once at startup before any
// traffic flows.
func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// Close stops the owning loop, stops the forwarding machine and closes the
// blob store. Peer connections held by the rtc.Controller are not closed.
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()
	c.fwd.Stop()
	return c.store.Close()
}

// SetContentServers implements spec.md §6's setContentServers(list).
func (c *Client) SetContentServers(servers []content.Server) {
	c.content.SetServers(servers)
}

// SetStorageMaxBytes implements spec.md §6's setStorageMaxBytes(n).
func (c *Client) SetStorageMaxBytes(n int64) {
	c.store.SetMaxBytes(n)
}

// GetStorageStats implements spec.md §6's getStorageStats().
func (c *Client) GetStorageStats() blob.Stats {
	return c.store.GetStats()
}

// PeerStats returns peer's current exchange stats (spec.md §3 "peer
// stats"), the zero value if peer is unknown.
func (c *Client) PeerStats(peer PeerID) exchange.PeerStats {
	return c.stats.Get(peer)
}

// BandwidthCollectors exposes the bandwidth tracker's Prometheus
// collectors for registration by the embedding process (SPEC_FULL.md §10
// "Metrics").
func (c *Client) BandwidthCollectors() []prometheus.Collector {
	return c.bw.Collectors()
}

// RTC exposes the underlying WebRTC controller so an embedder can drive
// peer lifecycle (Connect/HandleOffer/HandleAnswer) directly; Client only
// owns the request/response/forwarding semantics layered on top.
func (c *Client) RTC() *rtc.Controller {
	return c.rtc
}

// Codec exposes the signaling codec, or nil if Config didn't wire a Bus.
func (c *Client) Codec() *signaling.Codec {
	return c.codec
}

// ProbeConnectivity implements spec.md §6's probeConnectivity() → state.
func (c *Client) ProbeConnectivity() ConnectivityState {
	servers, writable := c.content.Counts()
	return ConnectivityState{
		FollowsPeers:    c.rtc.Follows.Len(),
		OtherPeers:      c.rtc.Other.Len(),
		ContentServers:  servers,
		WritableServers: writable,
	}
}

func (c *Client) pushConnectivity() {
	c.handlers.connectivity(c.ProbeConnectivity())
}

// hashKeyOf renders h as the lowercased hex hashKey spec.md §3 describes
// for in-flight forward entries.
func hashKeyOf(h common.Hash) string {
	return strings.ToLower(h.Hex())
}
