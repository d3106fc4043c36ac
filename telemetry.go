package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	snapshotBytes        atomic.Uint64
	snapshotsSent        atomic.Uint64
	lastSnapshotBytes    atomic.Uint64
	lastSnapshotEntities atomic.Uint64
	tickDurationMicros   atomic.Int64
	framesRejected       atomic.Uint64
	queueDepth           atomic.Int64
	activeMatches        atomic.Int64
	activeBots           atomic.Int64
	activeProjectiles    atomic.Int64
	debug                bool
}

type telemetrySnapshot struct {
	SnapshotBytes      uint64 `json:"snapshotBytes"`
	SnapshotsSent      uint64 `json:"snapshotsSent"`
	LastSnapshotBytes  uint64 `json:"lastSnapshotBytes"`
	TickDurationMicros int64  `json:"tickDurationMicros"`
	FramesRejected     uint64 `json:"framesRejected"`
	QueueDepth         int64  `json:"queueDepth"`
	ActiveMatches      int64  `json:"activeMatches"`
	ActiveBots         int64  `json:"activeBots"`
	ActiveProjectiles  int64  `json:"activeProjectiles"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("TANKDOWN_DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordSnapshot(bytes, entities int) {
	if bytes < 0 {
		bytes = 0
	}
	if entities < 0 {
		entities = 0
	}
	t.snapshotBytes.Add(uint64(bytes))
	t.snapshotsSent.Add(1)
	t.lastSnapshotBytes.Store(uint64(bytes))
	t.lastSnapshotEntities.Store(uint64(entities))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	t.tickDurationMicros.Store(micros)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dus lastBytes=%d totalBytes=%d projectiles=%d\n",
			micros,
			t.lastSnapshotBytes.Load(),
			t.snapshotBytes.Load(),
			t.activeProjectiles.Load(),
		)
	}
}

func (t *telemetryCounters) RecordQueueDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	t.queueDepth.Store(int64(depth))
}

func (t *telemetryCounters) IncrementFrameRejected() {
	t.framesRejected.Add(1)
}

func (t *telemetryCounters) IncrementMatches() {
	t.activeMatches.Add(1)
}

func (t *telemetryCounters) DecrementMatches() {
	t.activeMatches.Add(-1)
}

func (t *telemetryCounters) AddBots(n int) {
	t.activeBots.Add(int64(n))
}

func (t *telemetryCounters) RemoveBots(n int) {
	t.activeBots.Add(-int64(n))
}

func (t *telemetryCounters) AddProjectiles(delta int) {
	t.activeProjectiles.Add(int64(delta))
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		SnapshotBytes:      t.snapshotBytes.Load(),
		SnapshotsSent:      t.snapshotsSent.Load(),
		LastSnapshotBytes:  t.lastSnapshotBytes.Load(),
		TickDurationMicros: t.tickDurationMicros.Load(),
		FramesRejected:     t.framesRejected.Load(),
		QueueDepth:         t.queueDepth.Load(),
		ActiveMatches:      t.activeMatches.Load(),
		ActiveBots:         t.activeBots.Load(),
		ActiveProjectiles:  t.activeProjectiles.Load(),
	}
}
