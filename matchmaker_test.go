package main

import (
	"context"
	"testing"
	"time"
)

func testMatchConfig() MatchConfig {
	cfg := defaultMatchConfig()
	cfg.MaxPlayers = 2
	cfg.DisableBotFire = true
	return cfg
}

func enqueuePlayer(t *testing.T, registry *Registry) *Session {
	t.Helper()
	sess := registry.AddConnection(nil)
	registry.Authenticate(sess, "user")
	if _, err := registry.Enqueue(sess); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	return sess
}

func TestMatchmakerSpawnsAtCapacity(t *testing.T) {
	registry := newTestRegistry()
	mm := newMatchmaker(testMatchConfig(), registry, nil, nil)

	enqueuePlayer(t, registry)
	enqueuePlayer(t, registry)

	match := mm.poll(context.Background(), time.Now())
	if match == nil {
		t.Fatal("full queue did not spawn a match")
	}
	if len(match.roster) != 2 {
		t.Fatalf("roster size = %d, want 2", len(match.roster))
	}
	if match.botCount != 0 {
		t.Fatalf("botCount = %d, want 0", match.botCount)
	}
	if registry.QueueDepth() != 0 {
		t.Fatalf("queue depth = %d after spawn, want 0", registry.QueueDepth())
	}
}

func TestMatchmakerFillsWithBotsAfterTimeout(t *testing.T) {
	registry := newTestRegistry()
	cfg := testMatchConfig()
	cfg.MaxPlayers = 4
	cfg.FillTimeout = 10 * time.Second
	mm := newMatchmaker(cfg, registry, nil, nil)

	enqueuePlayer(t, registry)

	now := time.Now()
	if match := mm.poll(context.Background(), now); match != nil {
		t.Fatal("single player spawned a match before the fill timeout")
	}
	if match := mm.poll(context.Background(), now.Add(5*time.Second)); match != nil {
		t.Fatal("match spawned before the fill timeout elapsed")
	}

	match := mm.poll(context.Background(), now.Add(cfg.FillTimeout))
	if match == nil {
		t.Fatal("fill timeout did not spawn a match")
	}
	if len(match.roster) != 4 {
		t.Fatalf("roster size = %d, want 4", len(match.roster))
	}
	if match.botCount != 3 {
		t.Fatalf("botCount = %d, want 3", match.botCount)
	}
}

func TestMatchmakerIdleQueueResetsWaitClock(t *testing.T) {
	registry := newTestRegistry()
	cfg := testMatchConfig()
	cfg.MaxPlayers = 4
	mm := newMatchmaker(cfg, registry, nil, nil)

	now := time.Now()
	if match := mm.poll(context.Background(), now); match != nil {
		t.Fatal("empty queue spawned a match")
	}

	sess := enqueuePlayer(t, registry)
	mm.poll(context.Background(), now.Add(time.Second))

	// The lone player leaves; the wait clock must not keep running.
	registry.Disconnect(sess, "test")
	if match := mm.poll(context.Background(), now.Add(time.Hour)); match != nil {
		t.Fatal("drained queue spawned a match")
	}
	if !mm.waitingSince.IsZero() {
		t.Fatal("wait clock survived a drained queue")
	}
}

func TestMatchmakerSkipsTerminatedWaiters(t *testing.T) {
	registry := newTestRegistry()
	mm := newMatchmaker(testMatchConfig(), registry, nil, nil)

	stale := enqueuePlayer(t, registry)
	enqueuePlayer(t, registry)
	// Terminate without the registry noticing, as when a transport dies
	// between the depth check and the pop.
	stale.markTerminated()

	now := time.Now()
	match := mm.poll(context.Background(), now)
	if match == nil {
		t.Fatal("queue at capacity did not spawn a match")
	}
	if match.botCount != 1 {
		t.Fatalf("botCount = %d, want 1 bot replacing the terminated waiter", match.botCount)
	}
	for _, sess := range match.roster {
		if sess == stale {
			t.Fatal("terminated session entered the roster")
		}
	}
}
