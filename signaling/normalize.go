package signaling

import (
	"encoding/json"
	"fmt"
	"strings"
)

// qualifyPeerID implements spec.md §3's invariant: "peer ids seen in inner
// payloads are normalized to <senderPubkey>:<uuid> when not already
// qualified." A peerId already containing ":" is assumed to have been
// qualified by an earlier hop and is passed through unchanged.
func qualifyPeerID(senderPubkey, peerID string) string {
	if peerID == "" || strings.Contains(peerID, ":") {
		return peerID
	}
	return senderPubkey + ":" + peerID
}

// canonicalPayload is the JSON wire shape Send always produces for directed
// messages - already in the normalized form, so Decode's normalization path
// only has to handle payloads from legacy senders.
type canonicalPayload struct {
	Type         string   `json:"type"`
	PeerID       string   `json:"peerId"`
	TargetPeerID string   `json:"targetPeerId,omitempty"`
	SDP          string   `json:"sdp,omitempty"`
	Candidate    string   `json:"candidate,omitempty"`
	Candidates   []string `json:"candidates,omitempty"`
}

// normalizePayload parses a directed-message JSON payload, accepting both
// the canonical shape and the legacy shapes spec.md §4.5/§9 describes:
// `recipient` instead of `targetPeerId`, and the sdp/candidate value nested
// one level down under a key matching the message type (e.g.
// `{"type":"offer","offer":{"sdp":"..."}}`) instead of top-level.
func normalizePayload(raw string) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := &Message{}
	if err := unmarshalField(fields, "type", &msg.Type); err != nil {
		return nil, err
	}
	if err := unmarshalField(fields, "peerId", &msg.PeerID); err != nil {
		return nil, err
	}

	if err := unmarshalField(fields, "targetPeerId", &msg.TargetPeerID); err != nil {
		return nil, err
	}
	if msg.TargetPeerID == "" {
		_ = unmarshalField(fields, "recipient", &msg.TargetPeerID)
	}

	_ = unmarshalField(fields, "sdp", &msg.SDP)
	_ = unmarshalField(fields, "candidate", &msg.Candidate)
	_ = unmarshalField(fields, "candidates", &msg.Candidates)

	// Legacy nested shape: the sdp/candidate value lives under a key named
	// after the message type, e.g. {"offer":{"sdp":"..."}}.
	if nested, ok := fields[string(msg.Type)]; ok {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(nested, &obj); err == nil {
			if msg.SDP == "" {
				_ = unmarshalField(obj, "sdp", &msg.SDP)
			}
			if msg.Candidate == "" {
				_ = unmarshalField(obj, "candidate", &msg.Candidate)
			}
		}
	}

	return msg, nil
}

func unmarshalField(fields map[string]json.RawMessage, key string, out interface{}) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, out)
}
