package main

import (
	"testing"

	"tankdown/server/internal/proto"
)

func TestFullSnapshotResetsRemovalLists(t *testing.T) {
	tracker := newSnapshotTracker()
	if !tracker.NeedsFull(1, 45) {
		t.Fatal("fresh tracker should require a full snapshot")
	}

	tanks := []proto.TankState{{ID: 1, X: 100, Y: 100, HP: 100, Ammo: 10}}
	tracker.BuildFull(3, tanks, nil)
	if tracker.NeedsFull(6, 45) {
		t.Fatal("tracker demanded a full snapshot immediately after one")
	}

	tracker.NoteTankRemoved(2)
	tracker.NoteProjectileRemoved(11)
	delta := tracker.BuildDelta(6, tanks, nil)
	if len(delta.RemovedTanks) != 1 || delta.RemovedTanks[0] != 2 {
		t.Fatalf("delta removedTanks = %v, want [2]", delta.RemovedTanks)
	}
	if len(delta.RemovedProjectiles) != 1 || delta.RemovedProjectiles[0] != 11 {
		t.Fatalf("delta removedProjectiles = %v, want [11]", delta.RemovedProjectiles)
	}

	// Removal lists persist across deltas and reset only on the next full.
	delta = tracker.BuildDelta(9, tanks, nil)
	if len(delta.RemovedTanks) != 1 || len(delta.RemovedProjectiles) != 1 {
		t.Fatal("removal lists were cleared by a delta snapshot")
	}
	tracker.BuildFull(48, tanks, nil)
	delta = tracker.BuildDelta(51, tanks, nil)
	if len(delta.RemovedTanks) != 0 || len(delta.RemovedProjectiles) != 0 {
		t.Fatal("removal lists survived a full snapshot")
	}
}

func TestDeltaIncludesOnlyChangedTanks(t *testing.T) {
	tracker := newSnapshotTracker()
	tanks := []proto.TankState{
		{ID: 1, X: 100, Y: 100, Angle: 90, Turret: 90, HP: 100, Ammo: 10},
		{ID: 2, X: 300, Y: 300, Angle: 270, Turret: 270, HP: 100, Ammo: 10},
	}
	tracker.BuildFull(3, tanks, nil)

	// Sub-threshold drift stays out of the delta.
	drifted := append([]proto.TankState(nil), tanks...)
	drifted[0].X += snapshotPosEpsilon / 2
	drifted[1].Angle += snapshotAngleEpsilon / 2
	delta := tracker.BuildDelta(6, drifted, nil)
	if len(delta.Tanks) != 0 {
		t.Fatalf("sub-threshold drift produced %d tank entries, want 0", len(delta.Tanks))
	}

	// An hp change always qualifies.
	drifted[1].HP = 75
	delta = tracker.BuildDelta(9, drifted, nil)
	if len(delta.Tanks) != 1 || delta.Tanks[0].ID != 2 {
		t.Fatalf("hp change produced tank entries %v, want just tank 2", delta.Tanks)
	}

	// The cache updated, so an identical follow-up emits nothing.
	delta = tracker.BuildDelta(12, drifted, nil)
	if len(delta.Tanks) != 0 {
		t.Fatal("unchanged state re-entered a delta after cache update")
	}
}

func TestDeltaReconstructsAuthoritativeState(t *testing.T) {
	tracker := newSnapshotTracker()
	view := NewClientView()

	base := []proto.TankState{
		{ID: 1, X: 100, Y: 100, Angle: 90, HP: 100, Ammo: 10},
		{ID: 2, X: 300, Y: 300, Angle: 270, HP: 100, Ammo: 10},
	}
	baseProj := []proto.ProjectileState{{ID: 11, X: 150, Y: 150, VX: 420, Owner: 1}}
	view.ApplyFull(tracker.BuildFull(3, base, baseProj))

	// Tank 1 moves and hits tank 2; projectile 11 expires, 12 spawns.
	next := []proto.TankState{
		{ID: 1, X: 130, Y: 100, Angle: 90, HP: 100, Ammo: 9},
		{ID: 2, X: 300, Y: 300, Angle: 270, HP: 75, Ammo: 10},
	}
	nextProj := []proto.ProjectileState{{ID: 12, X: 120, Y: 100, VX: 420, Owner: 1}}
	tracker.NoteProjectileRemoved(11)
	delta := tracker.BuildDelta(6, next, nextProj)

	view.ApplyDelta(delta)
	assertViewMatches(t, view, 6, next, nextProj)

	// Applying the same delta again is a no-op.
	view.ApplyDelta(delta)
	assertViewMatches(t, view, 6, next, nextProj)
}

func TestDeltaRemovesDeadTanks(t *testing.T) {
	tracker := newSnapshotTracker()
	view := NewClientView()

	base := []proto.TankState{
		{ID: 1, X: 100, Y: 100, HP: 100, Ammo: 10},
		{ID: 2, X: 300, Y: 300, HP: 25, Ammo: 10},
	}
	view.ApplyFull(tracker.BuildFull(3, base, nil))

	tracker.NoteTankRemoved(2)
	survivors := base[:1]
	view.ApplyDelta(tracker.BuildDelta(6, survivors, nil))

	if _, present := view.Tanks[2]; present {
		t.Fatal("destroyed tank survived delta application")
	}
	if len(view.Tanks) != 1 {
		t.Fatalf("view holds %d tanks, want 1", len(view.Tanks))
	}
}

func assertViewMatches(t *testing.T, view *ClientView, tick uint64, tanks []proto.TankState, projectiles []proto.ProjectileState) {
	t.Helper()
	if view.Tick != tick {
		t.Fatalf("view tick = %d, want %d", view.Tick, tick)
	}
	if len(view.Tanks) != len(tanks) {
		t.Fatalf("view holds %d tanks, want %d", len(view.Tanks), len(tanks))
	}
	for _, tank := range tanks {
		if got := view.Tanks[tank.ID]; got != tank {
			t.Fatalf("view tank %d = %+v, want %+v", tank.ID, got, tank)
		}
	}
	if len(view.Projectiles) != len(projectiles) {
		t.Fatalf("view holds %d projectiles, want %d", len(view.Projectiles), len(projectiles))
	}
	for _, p := range projectiles {
		if got := view.Projectiles[p.ID]; got != p {
			t.Fatalf("view projectile %d = %+v, want %+v", p.ID, got, p)
		}
	}
}
