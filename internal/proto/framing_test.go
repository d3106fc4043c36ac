package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestBuildFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"ver":1,"type":"heartbeat"}`)
	frame, err := BuildFrame(payload)
	if err != nil {
		t.Fatalf("BuildFrame returned error: %v", err)
	}
	if got := binary.BigEndian.Uint32(frame); int(got) != len(payload) {
		t.Fatalf("frame header declares %d bytes, want %d", got, len(payload))
	}

	var decoder FrameDecoder
	decoder.Feed(frame)
	decoded, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("decoded payload = %q, want %q", decoded, payload)
	}
	if decoder.Buffered() != 0 {
		t.Fatalf("decoder retained %d bytes after full frame", decoder.Buffered())
	}
}

func TestBuildFrameRejectsEmptyPayload(t *testing.T) {
	if _, err := BuildFrame(nil); !errors.Is(err, ErrFrameEmpty) {
		t.Fatalf("BuildFrame(nil) error = %v, want ErrFrameEmpty", err)
	}
}

func TestFrameDecoderArbitraryChunking(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"ver":1,"type":"input","data":{"move":1}}`),
		[]byte(`{"ver":1,"type":"heartbeat","data":{"clientTime":42}}`),
		[]byte(`{"ver":1,"type":"queueJoin"}`),
	}
	var stream []byte
	for _, payload := range payloads {
		frame, err := BuildFrame(payload)
		if err != nil {
			t.Fatalf("BuildFrame returned error: %v", err)
		}
		stream = append(stream, frame...)
	}

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 16, len(stream)} {
		var decoder FrameDecoder
		var decoded [][]byte
		for start := 0; start < len(stream); start += chunkSize {
			end := start + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			decoder.Feed(stream[start:end])
			for {
				payload, err := decoder.Next()
				if err != nil {
					t.Fatalf("chunk size %d: Next returned error: %v", chunkSize, err)
				}
				if payload == nil {
					break
				}
				decoded = append(decoded, payload)
			}
		}
		if len(decoded) != len(payloads) {
			t.Fatalf("chunk size %d: decoded %d payloads, want %d", chunkSize, len(decoded), len(payloads))
		}
		for i, payload := range payloads {
			if !bytes.Equal(decoded[i], payload) {
				t.Fatalf("chunk size %d: payload %d = %q, want %q", chunkSize, i, decoded[i], payload)
			}
		}
	}
}

func TestFrameDecoderTruncatedFrameYieldsNothing(t *testing.T) {
	frame, err := BuildFrame([]byte(`{"ver":1,"type":"queueJoin"}`))
	if err != nil {
		t.Fatalf("BuildFrame returned error: %v", err)
	}

	var decoder FrameDecoder
	decoder.Feed(frame[:len(frame)-1])
	payload, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next returned error on truncated frame: %v", err)
	}
	if payload != nil {
		t.Fatalf("truncated frame yielded payload %q", payload)
	}

	decoder.Feed(frame[len(frame)-1:])
	payload, err = decoder.Next()
	if err != nil {
		t.Fatalf("Next returned error after completion: %v", err)
	}
	if payload == nil {
		t.Fatal("completed frame yielded no payload")
	}
}

func TestFrameDecoderRejectsZeroLength(t *testing.T) {
	var decoder FrameDecoder
	decoder.Feed([]byte{0, 0, 0, 0, 'x'})
	if _, err := decoder.Next(); !errors.Is(err, ErrFrameEmpty) {
		t.Fatalf("Next error = %v, want ErrFrameEmpty", err)
	}
	if decoder.Buffered() != 0 {
		t.Fatalf("decoder retained %d bytes after invalid length", decoder.Buffered())
	}
}

func TestFrameDecoderRejectsOversizedLength(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, MaxFrameLength+1)

	var decoder FrameDecoder
	decoder.Feed(header)
	if _, err := decoder.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Next error = %v, want ErrFrameTooLarge", err)
	}
	if decoder.Buffered() != 0 {
		t.Fatal("decoder kept buffered bytes after rejecting oversized frame")
	}

	// The decoder is reusable after a reset.
	frame, err := BuildFrame([]byte(`{"ver":1,"type":"queueJoin"}`))
	if err != nil {
		t.Fatalf("BuildFrame returned error: %v", err)
	}
	decoder.Feed(frame)
	payload, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next returned error after reset: %v", err)
	}
	if payload == nil {
		t.Fatal("decoder produced no payload after reset")
	}
}
