// Package bandwidth implements the bandwidth tracker named in spec.md's
// component table: per-server and aggregate byte counters driven by
// transport log entries, exported as Prometheus collectors in the idiom of
// the teacher's sibling repos (prometheus.NewGaugeFunc registered against a
// small owned []prometheus.Collector slice).
package bandwidth

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Direction distinguishes inbound from outbound traffic for a log entry.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// LogEntry is one transport-layer accounting event: server (a content
// server URL or a peer ID — the tracker does not distinguish) moved n bytes
// in direction dir, including on-wire framing overhead (spec.md §4.3:
// "the counter must include framing overhead").
type LogEntry struct {
	Server    string
	Direction Direction
	Bytes     int64
}

// Snapshot is a point-in-time read of one server's counters.
type Snapshot struct {
	Server        string
	BytesSent     int64
	BytesReceived int64
}

type serverCounters struct {
	sent     int64
	received int64
}

const promSubsystem = "bandwidth"

// Tracker accumulates LogEntry events into per-server and aggregate byte
// counters. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	servers map[string]*serverCounters

	totalSent     int64
	totalReceived int64

	sentCounter     *prometheus.CounterVec
	receivedCounter *prometheus.CounterVec
}

// NewTracker creates an empty Tracker with its own Prometheus CounterVecs,
// ready to be registered via Collectors().
func NewTracker() *Tracker {
	return &Tracker{
		servers: make(map[string]*serverCounters),
		sentCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: promSubsystem,
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent, labeled by server/peer.",
		}, []string{"server"}),
		receivedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: promSubsystem,
			Name:      "bytes_received_total",
			Help:      "Total bytes received, labeled by server/peer.",
		}, []string{"server"}),
	}
}

// Record applies one transport log entry to the tracker's counters.
func (t *Tracker) Record(e LogEntry) {
	t.mu.Lock()
	c, ok := t.servers[e.Server]
	if !ok {
		c = &serverCounters{}
		t.servers[e.Server] = c
	}
	switch e.Direction {
	case Sent:
		c.sent += e.Bytes
		atomic.AddInt64(&t.totalSent, e.Bytes)
	case Received:
		c.received += e.Bytes
		atomic.AddInt64(&t.totalReceived, e.Bytes)
	}
	t.mu.Unlock()

	switch e.Direction {
	case Sent:
		t.sentCounter.WithLabelValues(e.Server).Add(float64(e.Bytes))
	case Received:
		t.receivedCounter.WithLabelValues(e.Server).Add(float64(e.Bytes))
	}
}

// Get returns server's current counters.
func (t *Tracker) Get(server string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.servers[server]
	if !ok {
		return Snapshot{Server: server}
	}
	return Snapshot{Server: server, BytesSent: c.sent, BytesReceived: c.received}
}

// Aggregate returns the sum of bytes sent/received across all servers.
func (t *Tracker) Aggregate() (sent, received int64) {
	return atomic.LoadInt64(&t.totalSent), atomic.LoadInt64(&t.totalReceived)
}

// Collectors returns the Prometheus collectors this tracker maintains, for
// registration with a prometheus.Registerer (matching the teacher's own
// pattern of building a small []prometheus.Collector slice to hand to its
// metrics server).
func (t *Tracker) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		t.sentCounter,
		t.receivedCounter,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem: promSubsystem,
			Name:      "total_bytes_sent",
			Help:      "Aggregate bytes sent across all servers/peers.",
		}, func() float64 {
			sent, _ := t.Aggregate()
			return float64(sent)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem: promSubsystem,
			Name:      "total_bytes_received",
			Help:      "Aggregate bytes received across all servers/peers.",
		}, func() float64 {
			_, received := t.Aggregate()
			return float64(received)
		}),
	}
}
