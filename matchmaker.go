package main

import (
	"context"
	"sync/atomic"
	"time"

	"tankdown/server/internal/proto"
	"tankdown/server/logging"
	"tankdown/server/logging/lifecycle"
	"tankdown/server/logging/matchmaking"
)

type matchmakerPhase int

const (
	mmWaiting matchmakerPhase = iota
	mmReady
)

// Matchmaker polls the registry queue and spawns matches when a cohort is
// ready: either a full roster or at least one real player who has waited out
// the fill timeout, in which case bots pad the roster.
type Matchmaker struct {
	cfg       MatchConfig
	registry  *Registry
	publisher logging.Publisher
	telemetry *telemetryCounters

	nextMatchID  atomic.Uint64
	phase        matchmakerPhase
	waitingSince time.Time

	// launch runs a freshly built match; tests swap it to observe spawns
	// without real engine goroutines.
	launch func(ctx context.Context, m *Match)
}

func newMatchmaker(cfg MatchConfig, registry *Registry, publisher logging.Publisher, telemetry *telemetryCounters) *Matchmaker {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Matchmaker{
		cfg:       cfg.normalized(),
		registry:  registry,
		publisher: publisher,
		telemetry: telemetry,
		launch: func(ctx context.Context, m *Match) {
			go m.Run(ctx)
		},
	}
}

// Run polls the queue on the configured interval until the context ends.
func (mm *Matchmaker) Run(ctx context.Context) {
	ticker := time.NewTicker(mm.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if match := mm.poll(ctx, now); match != nil {
				mm.launch(ctx, match)
			}
		}
	}
}

// poll evaluates the queue once and builds a match when the spawn condition
// holds. The wait clock starts when the queue first becomes non-empty and
// resets when it drains.
func (mm *Matchmaker) poll(ctx context.Context, now time.Time) *Match {
	depth := mm.registry.QueueDepth()
	if depth == 0 {
		mm.phase = mmWaiting
		mm.waitingSince = time.Time{}
		return nil
	}
	if mm.waitingSince.IsZero() {
		mm.waitingSince = now
	}
	mm.phase = mmReady

	waited := now.Sub(mm.waitingSince)
	if depth < mm.cfg.MaxPlayers && waited < mm.cfg.FillTimeout {
		mm.pushQueueStatus()
		return nil
	}

	roster := mm.registry.PopFromQueue(mm.cfg.MaxPlayers)
	if len(roster) == 0 {
		mm.phase = mmWaiting
		mm.waitingSince = time.Time{}
		return nil
	}
	players := len(roster)
	for len(roster) < mm.cfg.MaxPlayers {
		roster = append(roster, mm.registry.AddBot())
	}

	mm.phase = mmWaiting
	mm.waitingSince = time.Time{}

	return mm.spawn(ctx, roster, players, waited)
}

// pushQueueStatus keeps waiting clients informed of their position while the
// roster fills.
func (mm *Matchmaker) pushQueueStatus() {
	queued := mm.registry.QueuedSessions()
	for i, sess := range queued {
		data, err := proto.Encode(proto.TypeQueueStatus, proto.QueueStatus{
			Accepted: true,
			Position: i + 1,
			Queued:   len(queued),
		})
		if err != nil {
			return
		}
		sess.PushMessage(data)
	}
}

func (mm *Matchmaker) spawn(ctx context.Context, roster []*Session, players int, waited time.Duration) *Match {
	matchID := mm.nextMatchID.Add(1)
	matchmaking.RosterSpawned(ctx, mm.publisher, lifecycle.MatchRef(matchID), matchmaking.RosterSpawnedPayload{
		MatchID: matchID,
		Players: players,
		Bots:    mm.cfg.MaxPlayers - players,
		Waited:  waited.Milliseconds(),
	})
	return newMatch(matchID, mm.cfg, mm.registry, roster, mm.publisher, mm.telemetry)
}
