package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"tankdown/server/logging"
)

func TestMemorySinkRetainsAndResets(t *testing.T) {
	sink := NewMemorySink()

	event := logging.Event{
		Type:  "combat.damage",
		Tick:  7,
		Extra: map[string]any{"matchId": uint64(1)},
	}
	if err := sink.Write(event); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 || events[0].Type != "combat.damage" {
		t.Fatalf("Events = %+v", events)
	}

	// The sink keeps its own copy of mutable fields.
	event.Extra["matchId"] = uint64(99)
	if sink.Events()[0].Extra["matchId"] != uint64(1) {
		t.Fatal("memory sink shared extra map with the caller")
	}

	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatal("Reset left events behind")
	}
}

func TestConsoleSinkFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})

	err := sink.Write(logging.Event{
		Type:     "combat.destroyed",
		Tick:     42,
		Actor:    logging.EntityRef{ID: "3", Kind: logging.EntityKindTank},
		Severity: logging.SeverityInfo,
		Payload:  map[string]uint64{"attacker": 1},
	})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	line := buf.String()
	for _, want := range []string{"combat.destroyed", "tick=42", "tank:3", "severity=info", `"attacker":1`} {
		if !strings.Contains(line, want) {
			t.Fatalf("console line %q missing %q", line, want)
		}
	}
}

func TestJSONSinkEmitsDecodableLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)

	if err := sink.Write(logging.Event{Type: "lifecycle.match_ended", Tick: 450}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(buf.Bytes(), &wire); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if wire["type"] != "lifecycle.match_ended" {
		t.Fatalf("wire type = %v", wire["type"])
	}
	if wire["tick"] != float64(450) {
		t.Fatalf("wire tick = %v", wire["tick"])
	}
}
