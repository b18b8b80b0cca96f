package exchange

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestRequestFrame_RoundTrips(t *testing.T) {
	var h common.Hash
	h[0] = 0xAA
	want := RequestFrame{Hash: h, HTL: 6}

	got, err := DecodeRequest(EncodeRequest(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeRequest_RejectsWrongType(t *testing.T) {
	var h common.Hash
	frame := EncodeRequest(RequestFrame{Hash: h, HTL: 1})
	frame[0] = FrameResponse
	_, err := DecodeRequest(frame)
	require.Error(t, err)
}

func TestDecodeRequest_RejectsWrongLength(t *testing.T) {
	_, err := DecodeRequest([]byte{FrameRequest, 0x01})
	require.Error(t, err)
}

func TestResponseFrame_RoundTrips(t *testing.T) {
	var h common.Hash
	h[1] = 0xBB
	want := ResponseFrame{
		Hash:    h,
		Header:  FragmentHeader{Seq: 3, Last: true, Compressed: false},
		Payload: []byte("fragment payload"),
	}

	got, err := DecodeResponse(EncodeResponse(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFragmentResponse_SmallPayloadIsSingleFragment(t *testing.T) {
	var h common.Hash
	frames := FragmentResponse(h, []byte("small"))
	require.Len(t, frames, 1)
	require.True(t, frames[0].Header.Last)
	require.Equal(t, uint32(0), frames[0].Header.Seq)
}

func TestFragmentResponse_LargePayloadSplitsAndReassembles(t *testing.T) {
	var h common.Hash
	payload := incompressiblePayload(MaxFragmentPayload*2 + 17)
	frames := FragmentResponse(h, payload)
	require.Greater(t, len(frames), 1)

	for i, f := range frames {
		require.Equal(t, uint32(i), f.Header.Seq)
		require.Equal(t, i == len(frames)-1, f.Header.Last)
	}

	var reassembled []byte
	for _, f := range frames {
		reassembled = append(reassembled, f.Payload...)
	}
	out, err := decompressIfNeeded(frames[0].Header.Compressed, reassembled)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestFragmentResponse_CompressesCompressiblePayload(t *testing.T) {
	var h common.Hash
	payload := bytes.Repeat([]byte("aaaaaaaaaa"), 1000)
	frames := FragmentResponse(h, payload)
	require.True(t, frames[0].Header.Compressed)
}
