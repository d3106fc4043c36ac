package proto

import (
	"errors"
	"fmt"
)

// packedMagic marks a run-length compressed payload. JSON payloads always
// start with a printable byte, so raw and packed forms are self-describing.
const packedMagic = 0x00

// ErrCorruptPacked reports a packed payload whose run pairs are truncated.
var ErrCorruptPacked = errors.New("proto: corrupt packed payload")

// Pack run-length encodes the payload and keeps the result only if it is
// strictly smaller than the original. Compression never alters the decoded
// content; Unpack restores the exact input bytes.
func Pack(payload []byte) []byte {
	if len(payload) == 0 {
		return payload
	}
	packed := make([]byte, 1, len(payload))
	packed[0] = packedMagic
	for i := 0; i < len(payload); {
		run := 1
		for i+run < len(payload) && payload[i+run] == payload[i] && run < 255 {
			run++
		}
		packed = append(packed, byte(run), payload[i])
		if len(packed) >= len(payload) {
			return payload
		}
		i += run
	}
	return packed
}

// Unpack restores a payload produced by Pack, passing raw payloads through.
func Unpack(payload []byte) ([]byte, error) {
	if len(payload) == 0 || payload[0] != packedMagic {
		return payload, nil
	}
	body := payload[1:]
	if len(body)%2 != 0 {
		return nil, ErrCorruptPacked
	}
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i += 2 {
		run := int(body[i])
		if run == 0 {
			return nil, fmt.Errorf("%w: zero-length run", ErrCorruptPacked)
		}
		for j := 0; j < run; j++ {
			out = append(out, body[i+1])
		}
	}
	return out, nil
}
