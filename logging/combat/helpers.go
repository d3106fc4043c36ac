package combat

import (
	"context"
	"strconv"

	"tankdown/server/logging"
)

const (
	// EventDamage is emitted when a projectile deals damage to a tank.
	EventDamage logging.EventType = "combat.damage"
	// EventDestroyed is emitted when a tank is destroyed.
	EventDestroyed logging.EventType = "combat.destroyed"
	// EventKillFeed is emitted once per tick with the kills resolved in it.
	EventKillFeed logging.EventType = "combat.kill_feed"
)

// DamagePayload captures the amount dealt to a single tank.
type DamagePayload struct {
	Amount    int `json:"amount"`
	Remaining int `json:"remaining"`
}

// DestroyedPayload describes how a tank left play. Attacker 0 means the
// environment (disconnect reconciliation).
type DestroyedPayload struct {
	Attacker uint64 `json:"attacker"`
}

// KillFeedPayload lists victim/attacker pairs batched for one tick.
type KillFeedPayload struct {
	Victims   []uint64 `json:"victims"`
	Attackers []uint64 `json:"attackers"`
}

// TankRef builds an entity reference for a tank entity id.
func TankRef(entityID uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(entityID, 10), Kind: logging.EntityKindTank}
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, attacker, victim logging.EntityRef, payload DamagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDamage,
		Tick:     tick,
		Actor:    attacker,
		Targets:  []logging.EntityRef{victim},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// Destroyed publishes a destruction event for the eliminated tank.
func Destroyed(ctx context.Context, pub logging.Publisher, tick uint64, victim logging.EntityRef, payload DestroyedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDestroyed,
		Tick:     tick,
		Actor:    victim,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// KillFeed publishes the batched kill feed for a tick.
func KillFeed(ctx context.Context, pub logging.Publisher, tick uint64, match logging.EntityRef, payload KillFeedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventKillFeed,
		Tick:     tick,
		Actor:    match,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
