package logging

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Write(event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func waitForEvents(t *testing.T, sink *captureSink, want int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		events := sink.snapshot()
		if len(events) >= want {
			return events
		}
		if time.Now().After(deadline) {
			t.Fatalf("sink received %d events, want %d", len(events), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRouterDeliversToSinks(t *testing.T) {
	sink := &captureSink{}
	router, err := NewRouter(nil, DefaultConfig(), []NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}

	router.Publish(context.Background(), Event{
		Type:     "combat.damage",
		Tick:     42,
		Severity: SeverityInfo,
	})

	events := waitForEvents(t, sink, 1)
	if events[0].Type != "combat.damage" || events[0].Tick != 42 {
		t.Fatalf("delivered event = %+v", events[0])
	}
	if events[0].Time.IsZero() {
		t.Fatal("router did not stamp the event time")
	}

	stats := router.Stats()
	if stats.EventsTotal != 1 || stats.DroppedTotal != 0 {
		t.Fatalf("stats = %+v, want 1 event and 0 drops", stats)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(closeCtx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.MinimumSeverity = SeverityWarn
	router, err := NewRouter(nil, cfg, []NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("NewRouter returned error: %v", err)
	}

	router.Publish(context.Background(), Event{Type: "combat.damage", Severity: SeverityInfo})
	router.Publish(context.Background(), Event{Type: "network.frame_rejected", Severity: SeverityWarn})

	events := waitForEvents(t, sink, 1)
	if len(events) != 1 || events[0].Type != "network.frame_rejected" {
		t.Fatalf("delivered events = %+v, want only the warning", events)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	router.Close(closeCtx)
}

func TestWithFieldsStampsExtra(t *testing.T) {
	var got Event
	base := PublisherFunc(func(_ context.Context, event Event) { got = event })

	stamped := WithFields(base, map[string]any{"matchId": uint64(7)})
	stamped.Publish(context.Background(), Event{Type: "lifecycle.match_started"})

	if got.Extra["matchId"] != uint64(7) {
		t.Fatalf("extra = %+v, want matchId 7", got.Extra)
	}

	// Existing fields are not overwritten.
	stamped.Publish(context.Background(), Event{Type: "x"}.WithExtra("matchId", uint64(9)))
	if got.Extra["matchId"] != uint64(9) {
		t.Fatalf("extra = %+v, want the event's own matchId preserved", got.Extra)
	}
}
