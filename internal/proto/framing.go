package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxFrameLength caps the declared payload size of a single frame. Anything
// larger is treated as a protocol violation and the connection is torn down.
const MaxFrameLength = 10_000_000

const frameHeaderSize = 4

var (
	// ErrFrameEmpty reports a frame with a declared length of zero.
	ErrFrameEmpty = errors.New("proto: frame declares empty payload")
	// ErrFrameTooLarge reports a frame whose declared length exceeds MaxFrameLength.
	ErrFrameTooLarge = errors.New("proto: frame exceeds maximum length")
	// ErrPayloadTooLarge reports an outbound payload that cannot be framed.
	ErrPayloadTooLarge = errors.New("proto: payload exceeds maximum length")
)

// BuildFrame prefixes the payload with a 4-byte big-endian length.
func BuildFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrFrameEmpty
	}
	if len(payload) > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// FrameDecoder incrementally extracts length-prefixed frames from a byte
// stream. Bytes may arrive split at arbitrary boundaries; the decoder holds
// partial frames until enough data is buffered.
type FrameDecoder struct {
	buf        []byte
	length     int
	haveLength bool
}

// Feed appends freshly read bytes to the decoder's buffer.
func (d *FrameDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered reports how many bytes are waiting to be parsed.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Next extracts the next complete payload, if one is buffered. It returns
// (nil, nil) when more bytes are needed. An invalid declared length discards
// the buffer, resets the decoder, and returns an error; the caller is
// expected to close the connection.
func (d *FrameDecoder) Next() ([]byte, error) {
	if !d.haveLength {
		if len(d.buf) < frameHeaderSize {
			return nil, nil
		}
		declared := binary.BigEndian.Uint32(d.buf)
		if declared == 0 {
			d.reset()
			return nil, ErrFrameEmpty
		}
		if declared > MaxFrameLength {
			err := fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, declared)
			d.reset()
			return nil, err
		}
		d.length = int(declared)
		d.haveLength = true
	}

	total := frameHeaderSize + d.length
	if len(d.buf) < total {
		return nil, nil
	}

	payload := make([]byte, d.length)
	copy(payload, d.buf[frameHeaderSize:total])

	remaining := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:remaining]
	d.haveLength = false
	d.length = 0
	return payload, nil
}

func (d *FrameDecoder) reset() {
	d.buf = d.buf[:0]
	d.haveLength = false
	d.length = 0
}
