package signaling

// MessageType is the tagged-variant discriminator for a decoded signaling
// message, replacing the source's dynamically-shaped JSON (spec.md's
// REDESIGN FLAGS: "a rewrite should model the normalized form as a tagged
// variant and perform the normalization at the decode boundary").
type MessageType string

const (
	MsgHello      MessageType = "hello"
	MsgOffer      MessageType = "offer"
	MsgAnswer     MessageType = "answer"
	MsgCandidate  MessageType = "candidate"
	MsgCandidates MessageType = "candidates"
)

// Message is the canonical, normalized signaling message shape of spec.md
// §4.5: {type, peerId, targetPeerId, sdp|candidate|candidates}. SenderPubkey
// is filled in only on Decode, never on Send.
type Message struct {
	Type MessageType

	// PeerID is the sender's announced application-level peer id (the
	// hello tag value, or the normalized inner "peerId" field).
	PeerID string

	// TargetPeerID is the recipient's application-level peer id (empty for
	// hello broadcasts). RecipientPubkey below is the wire-level routing
	// key (the bus "p" tag); TargetPeerID is the application identifier
	// carried inside the gift-wrapped payload - the two are related but
	// distinct, matching spec.md's note that directed envelopes carry both
	// a "p" tag for the recipient and a payload-level targetPeerId.
	TargetPeerID string
	// RecipientPubkey addresses the gift wrap on Send; ignored on Decode.
	RecipientPubkey string

	SDP        string
	Candidate  string
	Candidates []string

	// SenderPubkey is populated by Decode from the event's outer pubkey
	// (hello) or the unwrapped seal's pubkey (directed).
	SenderPubkey string
}
