package lifecycle

import (
	"context"
	"strconv"

	"tankdown/server/logging"
)

const (
	// EventSessionConnected is emitted when a transport connection registers.
	EventSessionConnected logging.EventType = "lifecycle.session_connected"
	// EventSessionDisconnected is emitted when a session terminates.
	EventSessionDisconnected logging.EventType = "lifecycle.session_disconnected"
	// EventMatchStarted is emitted when a match engine spawns.
	EventMatchStarted logging.EventType = "lifecycle.match_started"
	// EventMatchEnded is emitted when a match reaches its terminal state.
	EventMatchEnded logging.EventType = "lifecycle.match_ended"
)

// SessionDisconnectedPayload captures why a session left.
type SessionDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// MatchStartedPayload captures the roster composition at spawn.
type MatchStartedPayload struct {
	Players int `json:"players"`
	Bots    int `json:"bots"`
}

// MatchEndedPayload captures the final outcome of a match.
type MatchEndedPayload struct {
	Winner uint64 `json:"winner"`
	Ticks  uint64 `json:"ticks"`
}

// SessionRef builds an entity reference for a session id.
func SessionRef(sessionID uint64, bot bool) logging.EntityRef {
	kind := logging.EntityKindSession
	if bot {
		kind = logging.EntityKindBot
	}
	return logging.EntityRef{ID: strconv.FormatUint(sessionID, 10), Kind: kind}
}

// MatchRef builds an entity reference for a match id.
func MatchRef(matchID uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(matchID, 10), Kind: logging.EntityKindMatch}
}

// SessionConnected publishes a connection registration event.
func SessionConnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionConnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
	})
}

// SessionDisconnected publishes a session termination event.
func SessionDisconnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionDisconnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  SessionDisconnectedPayload{Reason: reason},
	})
}

// MatchStarted publishes a match spawn event.
func MatchStarted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MatchStartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMatchStarted,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// MatchEnded publishes a match terminal-state event.
func MatchEnded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MatchEndedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMatchEnded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}
