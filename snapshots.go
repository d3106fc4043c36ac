package main

import (
	"math"

	"tankdown/server/internal/proto"
)

// Inclusion thresholds for delta diffing. A tank enters a delta only when
// its position, an angle, hp, or ammo moved past these.
const (
	snapshotPosEpsilon   = 1e-4
	snapshotAngleEpsilon = 1e-2
)

// snapshotTracker owns the diff baseline for one match: the last-sent state
// of every tank and the removal ids accumulated since the last full snapshot.
type snapshotTracker struct {
	lastSent     map[uint64]proto.TankState
	hasFull      bool
	lastFullTick uint64

	removedTanks       []uint64
	removedProjectiles []uint64
}

func newSnapshotTracker() *snapshotTracker {
	return &snapshotTracker{
		lastSent: make(map[uint64]proto.TankState),
	}
}

// NoteTankRemoved records a tank id for the removal list of upcoming deltas.
func (t *snapshotTracker) NoteTankRemoved(id uint64) {
	t.removedTanks = append(t.removedTanks, id)
	delete(t.lastSent, id)
}

// NoteProjectileRemoved records a projectile id for upcoming deltas.
func (t *snapshotTracker) NoteProjectileRemoved(id uint64) {
	t.removedProjectiles = append(t.removedProjectiles, id)
}

// NeedsFull reports whether the next emission must be a full snapshot.
func (t *snapshotTracker) NeedsFull(tick uint64, fullInterval int) bool {
	if !t.hasFull {
		return true
	}
	return tick-t.lastFullTick >= uint64(fullInterval)
}

// BuildFull serializes every alive tank and active projectile, replaces the
// last-sent cache wholesale, and clears both removal lists. The removal
// lists describe "since the last full snapshot", so this is the only place
// they reset.
func (t *snapshotTracker) BuildFull(tick uint64, tanks []proto.TankState, projectiles []proto.ProjectileState) proto.StateSnapshot {
	t.lastSent = make(map[uint64]proto.TankState, len(tanks))
	for _, tank := range tanks {
		t.lastSent[tank.ID] = tank
	}
	t.removedTanks = nil
	t.removedProjectiles = nil
	t.hasFull = true
	t.lastFullTick = tick

	return proto.StateSnapshot{
		Tick:        tick,
		Tanks:       append([]proto.TankState(nil), tanks...),
		Projectiles: append([]proto.ProjectileState(nil), projectiles...),
	}
}

// BuildDelta serializes the tanks that changed past the thresholds since
// their cached last-sent values, the accumulated removal lists, and the
// complete active projectile list (clients upsert projectiles by id).
func (t *snapshotTracker) BuildDelta(tick uint64, tanks []proto.TankState, projectiles []proto.ProjectileState) proto.DeltaSnapshot {
	var changed []proto.TankState
	for _, tank := range tanks {
		prev, seen := t.lastSent[tank.ID]
		if seen && !tankChanged(prev, tank) {
			continue
		}
		changed = append(changed, tank)
		t.lastSent[tank.ID] = tank
	}

	return proto.DeltaSnapshot{
		Tick:               tick,
		Tanks:              changed,
		RemovedTanks:       append([]uint64(nil), t.removedTanks...),
		RemovedProjectiles: append([]uint64(nil), t.removedProjectiles...),
		Projectiles:        append([]proto.ProjectileState(nil), projectiles...),
	}
}

func tankChanged(prev, next proto.TankState) bool {
	if math.Abs(next.X-prev.X) > snapshotPosEpsilon || math.Abs(next.Y-prev.Y) > snapshotPosEpsilon {
		return true
	}
	if math.Abs(next.Angle-prev.Angle) > snapshotAngleEpsilon || math.Abs(next.Turret-prev.Turret) > snapshotAngleEpsilon {
		return true
	}
	return next.HP != prev.HP || next.Ammo != prev.Ammo
}

// ClientView mirrors the client's snapshot application rules so tests can
// assert that applying a delta to a base reconstructs the authoritative
// state.
type ClientView struct {
	Tick        uint64
	Tanks       map[uint64]proto.TankState
	Projectiles map[uint64]proto.ProjectileState
}

func NewClientView() *ClientView {
	return &ClientView{
		Tanks:       make(map[uint64]proto.TankState),
		Projectiles: make(map[uint64]proto.ProjectileState),
	}
}

// ApplyFull replaces the view with the snapshot's contents.
func (v *ClientView) ApplyFull(s proto.StateSnapshot) {
	v.Tick = s.Tick
	v.Tanks = make(map[uint64]proto.TankState, len(s.Tanks))
	for _, tank := range s.Tanks {
		v.Tanks[tank.ID] = tank
	}
	v.Projectiles = make(map[uint64]proto.ProjectileState, len(s.Projectiles))
	for _, p := range s.Projectiles {
		v.Projectiles[p.ID] = p
	}
}

// ApplyDelta upserts changed tanks and the projectile list by id after
// dropping removed entities. Applying the same delta twice yields the same
// view as applying it once.
func (v *ClientView) ApplyDelta(d proto.DeltaSnapshot) {
	v.Tick = d.Tick
	for _, id := range d.RemovedTanks {
		delete(v.Tanks, id)
	}
	for _, id := range d.RemovedProjectiles {
		delete(v.Projectiles, id)
	}
	for _, tank := range d.Tanks {
		v.Tanks[tank.ID] = tank
	}
	for _, p := range d.Projectiles {
		v.Projectiles[p.ID] = p
	}
}
