// Package exchange implements the peer exchange protocol of spec.md §4.3:
// binary request/response framing, HTL-bounded forwarding, fragment
// reassembly, and per-peer bandwidth/forwarding stats. Framing follows the
// teacher's encoding/binary idiom in op-node/p2p/sync.go, big-endian here,
// adapted from a single length-prefixed SSZ blob to the spec's
// request/response/fragment frame shapes.
package exchange

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/snappy"
)

// Frame type tags, spec.md §8 "Peer-channel wire format".
const (
	FrameRequest  byte = 0x01
	FrameResponse byte = 0x02
)

// fragment header flag bits.
const (
	flagLast       byte = 1 << 0
	flagCompressed byte = 1 << 1
)

// MaxFragmentPayload bounds a single fragment's payload so large blobs are
// always split rather than risking an oversized data-channel message.
const MaxFragmentPayload = 16 * 1024

// RequestFrame is spec.md §8's request shape: type(1) ‖ hash(32) ‖ htl(1).
type RequestFrame struct {
	Hash common.Hash
	HTL  uint8
}

// EncodeRequest serializes a RequestFrame to the wire.
func EncodeRequest(f RequestFrame) []byte {
	buf := make([]byte, 0, 1+32+1)
	buf = append(buf, FrameRequest)
	buf = append(buf, f.Hash.Bytes()...)
	buf = append(buf, f.HTL)
	return buf
}

// DecodeRequest parses a RequestFrame, or returns an error if b is malformed.
func DecodeRequest(b []byte) (RequestFrame, error) {
	if len(b) != 1+32+1 {
		return RequestFrame{}, fmt.Errorf("request frame: want %d bytes, got %d", 1+32+1, len(b))
	}
	if b[0] != FrameRequest {
		return RequestFrame{}, fmt.Errorf("request frame: want type 0x%02x, got 0x%02x", FrameRequest, b[0])
	}
	var f RequestFrame
	copy(f.Hash[:], b[1:33])
	f.HTL = b[33]
	return f, nil
}

// FragmentHeader is the sequencing metadata carried by every response
// fragment: a monotonically increasing sequence number, a terminal marker,
// and whether Payload below was snappy-compressed before fragmentation.
type FragmentHeader struct {
	Seq        uint32
	Last       bool
	Compressed bool
}

// ResponseFrame is spec.md §8's response shape: type(1) ‖ hash(32) ‖
// fragment header (u32 seq ‖ 1-byte flags) ‖ payload.
type ResponseFrame struct {
	Hash    common.Hash
	Header  FragmentHeader
	Payload []byte
}

// EncodeResponse serializes a ResponseFrame to the wire.
func EncodeResponse(f ResponseFrame) []byte {
	var buf bytes.Buffer
	buf.WriteByte(FrameResponse)
	buf.Write(f.Hash.Bytes())
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], f.Header.Seq)
	buf.Write(seq[:])
	var flags byte
	if f.Header.Last {
		flags |= flagLast
	}
	if f.Header.Compressed {
		flags |= flagCompressed
	}
	buf.WriteByte(flags)
	buf.Write(f.Payload)
	return buf.Bytes()
}

// DecodeResponse parses a ResponseFrame, or returns an error if b is malformed.
func DecodeResponse(b []byte) (ResponseFrame, error) {
	const headerLen = 1 + 32 + 4 + 1
	if len(b) < headerLen {
		return ResponseFrame{}, fmt.Errorf("response frame: want at least %d bytes, got %d", headerLen, len(b))
	}
	if b[0] != FrameResponse {
		return ResponseFrame{}, fmt.Errorf("response frame: want type 0x%02x, got 0x%02x", FrameResponse, b[0])
	}
	var f ResponseFrame
	copy(f.Hash[:], b[1:33])
	f.Header.Seq = binary.BigEndian.Uint32(b[33:37])
	flags := b[37]
	f.Header.Last = flags&flagLast != 0
	f.Header.Compressed = flags&flagCompressed != 0
	f.Payload = append([]byte(nil), b[headerLen:]...)
	return f, nil
}

// FragmentResponse splits payload into one or more ResponseFrames for hash,
// snappy-compressing first when that shrinks the payload (the teacher's
// sync.go carries a literal "TODO: snappy compression" at this exact point
// in doRequest/HandleSyncRequest; this is that TODO done).
func FragmentResponse(hash common.Hash, payload []byte) []ResponseFrame {
	compressed := snappy.Encode(nil, payload)
	body := payload
	isCompressed := false
	if len(compressed) < len(payload) {
		body = compressed
		isCompressed = true
	}

	if len(body) == 0 {
		return []ResponseFrame{{
			Hash:    hash,
			Header:  FragmentHeader{Seq: 0, Last: true, Compressed: isCompressed},
			Payload: body,
		}}
	}

	var frames []ResponseFrame
	for seq := uint32(0); len(body) > 0; seq++ {
		n := MaxFragmentPayload
		if n > len(body) {
			n = len(body)
		}
		chunk := body[:n]
		body = body[n:]
		frames = append(frames, ResponseFrame{
			Hash: hash,
			Header: FragmentHeader{
				Seq:        seq,
				Last:       len(body) == 0,
				Compressed: isCompressed,
			},
			Payload: chunk,
		})
	}
	return frames
}

// decompressIfNeeded reverses FragmentResponse's optional snappy step once
// fragments have been fully reassembled in sequence order.
func decompressIfNeeded(compressed bool, data []byte) ([]byte, error) {
	if !compressed {
		return data, nil
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decompress reassembled payload: %w", err)
	}
	return out, nil
}
