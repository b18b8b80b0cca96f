package signaling

import "context"

// Filter is a Nostr-style subscription filter: spec.md §4.5's
// helloFilter/directedFilter shapes.
type Filter struct {
	Kinds []int
	// Tags maps a tag-filter key ("#l", "#p", ...) to the set of
	// acceptable values.
	Tags  map[string][]string
	Since int64
}

// HelloFilter builds spec.md §4.5's `{kinds:[25050], "#l":["hello"], since}`.
func HelloFilter(since int64) Filter {
	return Filter{
		Kinds: []int{SignalingKind},
		Tags:  map[string][]string{"#l": {"hello"}},
		Since: since,
	}
}

// DirectedFilter builds spec.md §4.5's `{kinds:[25050], "#p":[myPubkey], since}`.
func DirectedFilter(myPubkey string, since int64) Filter {
	return Filter{
		Kinds: []int{SignalingKind},
		Tags:  map[string][]string{"#p": {myPubkey}},
		Since: since,
	}
}

// Bus is the external relay-bus transport collaborator named in spec.md §6.
// The transport itself (connecting to relays, publish/subscribe wire
// format) is explicitly out of scope; Codec only needs to publish events
// and receive a stream of events matching a filter.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, error)
}

// Signer is the external signing collaborator: given an unsigned Event, it
// fills in PubKey/ID/Sig. The actual signature scheme is out of scope here
// (spec.md §1 excludes cryptographic primitives from the core).
type Signer interface {
	Sign(event Event) (Event, error)
}

// GiftWrapper is the external gift-wrap cryptographic collaborator named in
// spec.md §1/§6. Wrap seals inner for recipientPubkey into an outer
// deliverable Event; Unwrap reverses it, returning the sealed inner Event
// (whose PubKey is the real sender) or an error if wrapper was not
// addressed to us / could not be opened.
type GiftWrapper interface {
	Wrap(recipientPubkey string, inner Event) (Event, error)
	Unwrap(wrapper Event) (Event, error)
}
