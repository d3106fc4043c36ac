package matchmaking

import (
	"context"

	"tankdown/server/logging"
)

const (
	// EventQueueJoined is emitted when a session enters the queue.
	EventQueueJoined logging.EventType = "matchmaking.queue_joined"
	// EventRosterSpawned is emitted when a cohort is handed to a match.
	EventRosterSpawned logging.EventType = "matchmaking.roster_spawned"
)

// QueueJoinedPayload captures queue occupancy at join time.
type QueueJoinedPayload struct {
	Position int `json:"position"`
	Queued   int `json:"queued"`
}

// RosterSpawnedPayload captures the cohort handed to a new match.
type RosterSpawnedPayload struct {
	MatchID uint64 `json:"matchId"`
	Players int    `json:"players"`
	Bots    int    `json:"bots"`
	Waited  int64  `json:"waitedMillis"`
}

// QueueJoined publishes a queue entry event.
func QueueJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload QueueJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventQueueJoined,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatchmaking,
		Payload:  payload,
	})
}

// RosterSpawned publishes a cohort spawn event.
func RosterSpawned(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload RosterSpawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRosterSpawned,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatchmaking,
		Payload:  payload,
	})
}
