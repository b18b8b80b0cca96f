package client

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lauri000/hashtree/blob/persistence"
	"github.com/lauri000/hashtree/content"
	"github.com/lauri000/hashtree/forward"
	"github.com/lauri000/hashtree/internal/clock"
	"github.com/lauri000/hashtree/signaling"
)

// Default timeouts. defaultPutStreamTimeout and defaultGetTimeout are
// deliberately distinct constants, not aliases of one another - see
// DESIGN.md's Open Question decision on spec.md §9's putBlob/getBlob
// stream-timeout gap: the source never equalized them, and this rewrite
// preserves that rather than silently "fixing" it.
const (
	defaultRequestTimeout   = 20 * time.Second
	defaultPutStreamTimeout = 60 * time.Second
	defaultGetTimeout       = 30 * time.Second

	// htlFollows/htlOther realize spec.md §4.3's "starting HTL is chosen
	// by the caller (default 3-8 depending on pool)": biased toward the
	// trusted follows pool, matching candidate-selection ordering in
	// rtc.Controller.ForwardCandidates.
	htlFollows uint8 = 8
	htlOther   uint8 = 3
)

// Config configures a Client. Every field is optional: zero-valued fields
// fall back to sensible defaults, and a nil Log falls back to log.Root().
type Config struct {
	Log log.Logger

	// Driver is the durable persistence backend for the blob store;
	// defaults to persistence.NewMemory() when nil.
	Driver persistence.Driver
	// MaxStorageBytes is the initial storage budget; 0 means unbounded
	// until SetStorageMaxBytes is called.
	MaxStorageBytes int64

	ContentServers []content.Server
	ICEServers     []string

	RequestTimeout   time.Duration
	PutStreamTimeout time.Duration
	GetTimeout       time.Duration

	ForwardConfig       forward.Config
	ReassemblyGapWindow time.Duration

	// Signaling collaborators (spec.md §6); may be left nil if the
	// embedding process does not use the signaling subsystem (e.g. a
	// content-server-only node).
	Bus       signaling.Bus
	Signer    signaling.Signer
	GiftWrap  signaling.GiftWrapper
	MyPubkey  string

	Clock clock.Clock
}

func (c *Config) setDefaults() {
	if c.Driver == nil {
		c.Driver = persistence.NewMemory()
	}
	if c.MaxStorageBytes <= 0 {
		c.MaxStorageBytes = math.MaxInt64
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.PutStreamTimeout <= 0 {
		c.PutStreamTimeout = defaultPutStreamTimeout
	}
	if c.GetTimeout <= 0 {
		c.GetTimeout = defaultGetTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Log == nil {
		c.Log = log.Root()
	}
}

// htlForPool returns the starting HTL for a lookup issued against peers in
// the given pool (spec.md §4.4/§9).
func htlForPool(inFollows bool) uint8 {
	if inFollows {
		return htlFollows
	}
	return htlOther
}
