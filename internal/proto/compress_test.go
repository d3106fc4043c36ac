package proto

import (
	"bytes"
	"errors"
	"testing"
)

func TestPackRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"highly repetitive", bytes.Repeat([]byte{'a'}, 512)},
		{"json with runs", []byte(`{"t":100,"tanks":[],"projectiles":[]}` + string(bytes.Repeat([]byte{' '}, 64)))},
		{"incompressible", []byte(`{"t":1,"tanks":[{"id":1,"x":12.5}]}`)},
		{"single byte", []byte{'{'}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			packed := Pack(tc.payload)
			restored, err := Unpack(packed)
			if err != nil {
				t.Fatalf("Unpack returned error: %v", err)
			}
			if !bytes.Equal(restored, tc.payload) {
				t.Fatalf("round trip altered payload: got %d bytes, want %d", len(restored), len(tc.payload))
			}
		})
	}
}

func TestPackKeepsResultOnlyWhenSmaller(t *testing.T) {
	repetitive := bytes.Repeat([]byte{'x'}, 300)
	packed := Pack(repetitive)
	if len(packed) >= len(repetitive) {
		t.Fatalf("packed repetitive payload is %d bytes, want < %d", len(packed), len(repetitive))
	}
	if packed[0] != 0x00 {
		t.Fatalf("packed payload starts with %#x, want 0x00 magic", packed[0])
	}

	incompressible := []byte(`{"ver":1,"type":"input"}`)
	if got := Pack(incompressible); !bytes.Equal(got, incompressible) {
		t.Fatal("incompressible payload was not passed through unchanged")
	}
}

func TestUnpackPassesRawPayloadThrough(t *testing.T) {
	raw := []byte(`{"ver":1,"type":"state"}`)
	restored, err := Unpack(raw)
	if err != nil {
		t.Fatalf("Unpack returned error: %v", err)
	}
	if !bytes.Equal(restored, raw) {
		t.Fatal("raw payload was altered on unpack")
	}
}

func TestUnpackRejectsCorruptPacked(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"truncated pair", []byte{0x00, 3}},
		{"zero run", []byte{0x00, 0, 'a'}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Unpack(tc.payload); !errors.Is(err, ErrCorruptPacked) {
				t.Fatalf("Unpack error = %v, want ErrCorruptPacked", err)
			}
		})
	}
}
