package client

// ConnectivityState is the shape returned by ProbeConnectivity and pushed to
// OnConnectivityUpdate (spec.md §6).
type ConnectivityState struct {
	FollowsPeers    int
	OtherPeers      int
	ContentServers  int
	WritableServers int
}

// UploadProgress reports incremental progress of a putBlob upload (spec.md
// §6's onUploadProgress), one event per content server attempted.
type UploadProgress struct {
	HashHex string
	Server  string
	Done    bool
	Err     error
}

// BandwidthEvent carries the bandwidth tracker's aggregate sent or received
// byte total (Server "aggregate"), pushed to OnBandwidth (spec.md §6) after
// each completed upload.
type BandwidthEvent struct {
	Server    string
	Direction string
	Bytes     int64
}

// Handlers holds the event-feed callbacks named in spec.md §6. Following
// the filter-callback idiom of
// other_examples/87133d56_PeernetOfficial-core__Filter.go.go: fields left
// nil are simply never called, so callers only set the feeds they care
// about. Handlers must not block - a slow consumer should hand off to its
// own goroutine, since these are invoked directly: OnConnectivityUpdate
// from Client's owning loop, OnUploadProgress and OnBandwidth from the
// goroutine running the upload.
type Handlers struct {
	OnConnectivityUpdate func(ConnectivityState)
	OnUploadProgress     func(UploadProgress)
	OnBandwidth          func(BandwidthEvent)
}

func (h *Handlers) connectivity(s ConnectivityState) {
	if h != nil && h.OnConnectivityUpdate != nil {
		h.OnConnectivityUpdate(s)
	}
}

func (h *Handlers) uploadProgress(p UploadProgress) {
	if h != nil && h.OnUploadProgress != nil {
		h.OnUploadProgress(p)
	}
}

func (h *Handlers) bandwidth(e BandwidthEvent) {
	if h != nil && h.OnBandwidth != nil {
		h.OnBandwidth(e)
	}
}
