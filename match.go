package main

import (
	"context"
	"math"
	"time"

	"tankdown/server/internal/physics"
	"tankdown/server/internal/proto"
	"tankdown/server/logging"
	"tankdown/server/logging/combat"
	"tankdown/server/logging/lifecycle"
)

type matchPhase int

const (
	phaseRunning matchPhase = iota
	phaseGrace
	phaseTerminated
)

// tankState is the authoritative per-tank entity. Dead tanks stay in the
// roster slice (index alignment with sessions is an invariant) but are
// excluded from all future snapshots.
type tankState struct {
	id        uint64
	x, y      float64
	angle     float64
	turret    float64
	hp        int
	ammo      int
	alive     bool
	reload    float64
	sinceFire float64
	body      *physics.Body
}

type projectileState struct {
	id     uint64
	owner  uint64
	x, y   float64
	vx, vy float64
	age    float64
	body   *physics.Body
}

// Match owns one running game: the roster, entities, physics world, and
// snapshot baseline. It is touched only by its own engine goroutine for the
// lifetime of the match.
type Match struct {
	id        uint64
	cfg       MatchConfig
	registry  *Registry
	publisher logging.Publisher
	telemetry *telemetryCounters

	world  *physics.World
	roster []*Session // index-aligned with tanks, never reordered
	tanks  []*tankState

	projectiles      []*projectileState
	projectileIndex  map[uint64]*projectileState
	tankByBody       map[uint64]int
	projectileByBody map[uint64]uint64
	nextEntityID     uint64

	tracker  *snapshotTracker
	killFeed []proto.KillFeedEntry
	inputs   []proto.Input

	tick          uint64
	phase         matchPhase
	matchOver     bool
	winner        uint64
	ticksSinceEnd int
	botCount      int
}

// newMatch constructs a match around the given roster, spawns tank entities
// in a ring facing the map center, and announces placement to every player.
func newMatch(id uint64, cfg MatchConfig, registry *Registry, roster []*Session, publisher logging.Publisher, telemetry *telemetryCounters) *Match {
	cfg = cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	m := &Match{
		id:               id,
		cfg:              cfg,
		registry:         registry,
		publisher:        logging.WithFields(publisher, map[string]any{"matchId": id}),
		telemetry:        telemetry,
		world:            physics.NewWorld(),
		roster:           roster,
		tracker:          newSnapshotTracker(),
		projectileIndex:  make(map[uint64]*projectileState),
		tankByBody:       make(map[uint64]int),
		projectileByBody: make(map[uint64]uint64),
		inputs:           make([]proto.Input, len(roster)),
	}

	cx := cfg.MapWidth / 2
	cy := cfg.MapHeight / 2
	ring := math.Min(cfg.MapWidth, cfg.MapHeight) / 3
	for i, sess := range roster {
		slot := 2 * math.Pi * float64(i) / float64(len(roster))
		x := cx + ring*math.Cos(slot)
		y := cy + ring*math.Sin(slot)
		m.nextEntityID++
		tank := &tankState{
			id:    m.nextEntityID,
			x:     x,
			y:     y,
			angle: wrapDegrees(radToDeg(math.Atan2(cy-y, cx-x))),
			hp:    cfg.TankHP,
			ammo:  cfg.MaxAmmo,
			alive: true,
		}
		tank.turret = tank.angle
		tank.body = m.world.CreateTank(x, y, cfg.TankRadius)
		m.tankByBody[tank.body.ID()] = i
		m.tanks = append(m.tanks, tank)

		if sess.IsBot() {
			m.botCount++
		}
		start := proto.MatchStart{
			MatchID:   id,
			EntityID:  tank.id,
			TickRate:  cfg.TickRate,
			MapWidth:  cfg.MapWidth,
			MapHeight: cfg.MapHeight,
		}
		if data, err := proto.Encode(proto.TypeMatchStart, start); err == nil {
			sess.PushMessage(data)
		}
	}

	if telemetry != nil {
		telemetry.IncrementMatches()
		telemetry.AddBots(m.botCount)
	}
	lifecycle.MatchStarted(context.Background(), m.publisher, lifecycle.MatchRef(id), lifecycle.MatchStartedPayload{
		Players: len(roster) - m.botCount,
		Bots:    m.botCount,
	})
	return m
}

// Run drives the fixed-timestep loop. The loop self-paces against the wall
// clock and never skips a tick: when behind schedule it iterates without
// sleeping until it catches up.
func (m *Match) Run(ctx context.Context) {
	tickDur := time.Second / time.Duration(m.cfg.TickRate)
	next := time.Now().Add(tickDur)

	for {
		select {
		case <-ctx.Done():
			m.teardown(ctx)
			return
		default:
		}

		start := time.Now()
		m.step(ctx)
		if m.telemetry != nil {
			m.telemetry.RecordTickDuration(time.Since(start))
		}
		if m.phase == phaseTerminated {
			m.teardown(ctx)
			return
		}

		if wait := time.Until(next); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				m.teardown(ctx)
				return
			case <-timer.C:
			}
		}
		next = next.Add(tickDur)
	}
}

// step executes one simulation tick.
func (m *Match) step(ctx context.Context) {
	m.tick++
	dt := m.cfg.dt()

	m.reconcileDisconnects(ctx)
	m.applyInputs(dt)
	m.resolveFiring(ctx, dt)
	m.advanceReload(dt)
	m.world.Step(dt)
	m.syncBodies(dt)
	m.cullProjectiles()
	m.resolveContacts(ctx)
	m.emitSnapshot()
	m.flushKillFeed(ctx)
	m.checkWin(ctx)

	if m.matchOver {
		m.ticksSinceEnd++
		if m.ticksSinceEnd >= m.cfg.PostEndGraceTicks {
			m.phase = phaseTerminated
		}
	}
}

// reconcileDisconnects destroys the tanks of real players whose sessions are
// no longer tracked by the registry. Attacker 0 marks the environment.
func (m *Match) reconcileDisconnects(ctx context.Context) {
	active := make(map[uint64]struct{})
	for _, sess := range m.registry.SnapshotSessions() {
		if !sess.Terminated() {
			active[sess.ID()] = struct{}{}
		}
	}
	for i, sess := range m.roster {
		if sess.IsBot() {
			continue
		}
		if _, ok := active[sess.ID()]; ok {
			continue
		}
		tank := m.tanks[i]
		if !tank.alive {
			continue
		}
		m.destroyTank(ctx, i, 0)
	}
}

// applyInputs reads each alive tank's latest input (synthesizing bot input
// first) and applies steering. Velocity goes through the physics body when
// one exists; otherwise position integrates manually for this tick only.
func (m *Match) applyInputs(dt float64) {
	for i, tank := range m.tanks {
		if !tank.alive {
			m.inputs[i] = proto.Input{}
			continue
		}
		sess := m.roster[i]
		if sess.IsBot() {
			sess.SetBotInput(botInput(m.cfg, m.tick))
		}
		in := sess.InputCopy()
		m.inputs[i] = in

		tank.angle = wrapDegrees(tank.angle + clampUnit(in.Turn)*m.cfg.TurnSpeedDeg*dt)
		tank.turret = wrapDegrees(tank.turret + clampUnit(in.TurretTurn)*m.cfg.TurretTurnSpeedDeg*dt)

		heading := degToRad(tank.angle)
		speed := clampUnit(in.Move) * m.cfg.MovementSpeed
		vx := math.Cos(heading) * speed
		vy := math.Sin(heading) * speed
		if tank.body != nil {
			tank.body.SetVelocity(vx, vy)
		} else {
			tank.x += vx * dt
			tank.y += vy * dt
		}
	}
}

// resolveFiring spawns projectiles for tanks whose fire input is set and
// whose ammo allows it.
func (m *Match) resolveFiring(ctx context.Context, dt float64) {
	for i, tank := range m.tanks {
		if !tank.alive {
			continue
		}
		tank.sinceFire += dt
		in := m.inputs[i]
		if !in.Fire || tank.ammo <= 0 {
			continue
		}
		if m.cfg.FireCooldownSec > 0 && tank.sinceFire < m.cfg.FireCooldownSec {
			continue
		}
		m.spawnProjectile(tank)
		tank.ammo--
		tank.sinceFire = 0
		if m.roster[i].IsBot() {
			m.roster[i].ClearBotFire()
		}
	}
}

func (m *Match) spawnProjectile(tank *tankState) {
	heading := degToRad(tank.angle)
	dirX := math.Cos(heading)
	dirY := math.Sin(heading)
	x := tank.x + dirX*m.cfg.MuzzleOffset
	y := tank.y + dirY*m.cfg.MuzzleOffset
	vx := dirX * m.cfg.ProjectileSpeed
	vy := dirY * m.cfg.ProjectileSpeed

	m.nextEntityID++
	p := &projectileState{
		id:    m.nextEntityID,
		owner: tank.id,
		x:     x,
		y:     y,
		vx:    vx,
		vy:    vy,
	}
	p.body = m.world.CreateProjectile(x, y, vx, vy, m.cfg.ProjectileRadius)
	m.projectileByBody[p.body.ID()] = p.id
	m.projectileIndex[p.id] = p
	m.projectiles = append(m.projectiles, p)
	if m.telemetry != nil {
		m.telemetry.AddProjectiles(1)
	}
}

// advanceReload accumulates reload time for tanks below max ammo. The timer
// rests at zero while ammo is full.
func (m *Match) advanceReload(dt float64) {
	for _, tank := range m.tanks {
		if !tank.alive {
			continue
		}
		if tank.ammo >= m.cfg.MaxAmmo {
			tank.reload = 0
			continue
		}
		tank.reload += dt
		if tank.reload >= m.cfg.ReloadIntervalSec {
			tank.ammo++
			tank.reload = 0
		}
	}
}

// syncBodies copies physics positions back into entity state after the step.
func (m *Match) syncBodies(dt float64) {
	for _, tank := range m.tanks {
		if !tank.alive || tank.body == nil {
			continue
		}
		tank.x, tank.y = tank.body.Position()
	}
	for _, p := range m.projectiles {
		if p.body != nil {
			p.x, p.y = p.body.Position()
			p.vx, p.vy = p.body.Velocity()
		} else {
			p.x += p.vx * dt
			p.y += p.vy * dt
		}
		p.age += dt
	}
}

// cullProjectiles destroys projectiles that left the map.
func (m *Match) cullProjectiles() {
	for _, p := range append([]*projectileState(nil), m.projectiles...) {
		if p.x < 0 || p.x > m.cfg.MapWidth || p.y < 0 || p.y > m.cfg.MapHeight {
			m.removeProjectile(p)
		}
	}
}

func (m *Match) removeProjectile(p *projectileState) {
	if _, tracked := m.projectileIndex[p.id]; !tracked {
		return
	}
	if p.body != nil {
		delete(m.projectileByBody, p.body.ID())
		m.world.DestroyBody(p.body)
		p.body = nil
	}
	delete(m.projectileIndex, p.id)
	for i, candidate := range m.projectiles {
		if candidate.id == p.id {
			m.projectiles = append(m.projectiles[:i], m.projectiles[i+1:]...)
			break
		}
	}
	m.tracker.NoteProjectileRemoved(p.id)
	if m.telemetry != nil {
		m.telemetry.AddProjectiles(-1)
	}
}

// resolveContacts applies damage for every begin-touch contact the physics
// step reported. Bodies resolve to entities through the id-indexed maps, so
// each contact costs O(1) regardless of projectile count.
func (m *Match) resolveContacts(ctx context.Context) {
	for _, contact := range m.world.ContactEvents() {
		tankBody, projBody := contact.A, contact.B
		if tankBody.Kind() != physics.KindTank {
			tankBody, projBody = projBody, tankBody
		}
		idx, ok := m.tankByBody[tankBody.ID()]
		if !ok {
			continue
		}
		projID, ok := m.projectileByBody[projBody.ID()]
		if !ok {
			continue
		}
		p, ok := m.projectileIndex[projID]
		if !ok {
			continue
		}
		tank := m.tanks[idx]
		if !tank.alive || p.owner == tank.id {
			continue
		}

		damage := m.cfg.ProjectileDamage
		if damage > tank.hp {
			damage = tank.hp
		}
		tank.hp -= damage
		m.broadcast(proto.TypeDamageEvent, proto.DamageEvent{
			Victim:   tank.id,
			Attacker: p.owner,
			Amount:   damage,
			HP:       tank.hp,
		})
		combat.Damage(ctx, m.publisher, m.tick, combat.TankRef(p.owner), combat.TankRef(tank.id), combat.DamagePayload{
			Amount:    damage,
			Remaining: tank.hp,
		})

		if tank.hp == 0 {
			m.killFeed = append(m.killFeed, proto.KillFeedEntry{Victim: tank.id, Attacker: p.owner})
			m.destroyTank(ctx, idx, p.owner)
		}
		m.removeProjectile(p)
	}
}

// destroyTank marks a tank permanently dead, releases its body, records the
// removal for delta snapshots, and announces the destruction.
func (m *Match) destroyTank(ctx context.Context, idx int, attacker uint64) {
	tank := m.tanks[idx]
	tank.alive = false
	tank.hp = 0
	if tank.body != nil {
		delete(m.tankByBody, tank.body.ID())
		m.world.DestroyBody(tank.body)
		tank.body = nil
	}
	m.tracker.NoteTankRemoved(tank.id)
	m.broadcast(proto.TypeTankDestroyed, proto.TankDestroyed{Victim: tank.id, Attacker: attacker})
	combat.Destroyed(ctx, m.publisher, m.tick, combat.TankRef(tank.id), combat.DestroyedPayload{Attacker: attacker})
}

// emitSnapshot serializes either a full or a delta snapshot on the snapshot
// cadence and pushes it to every roster session.
func (m *Match) emitSnapshot() {
	if m.tick%uint64(m.cfg.SnapshotIntervalTicks) != 0 {
		return
	}

	tanks := make([]proto.TankState, 0, len(m.tanks))
	for _, tank := range m.tanks {
		if !tank.alive {
			continue
		}
		tanks = append(tanks, proto.TankState{
			ID:     tank.id,
			X:      tank.x,
			Y:      tank.y,
			Angle:  tank.angle,
			Turret: tank.turret,
			HP:     tank.hp,
			Ammo:   tank.ammo,
		})
	}
	projectiles := make([]proto.ProjectileState, 0, len(m.projectiles))
	for _, p := range m.projectiles {
		projectiles = append(projectiles, proto.ProjectileState{
			ID:    p.id,
			X:     p.x,
			Y:     p.y,
			VX:    p.vx,
			VY:    p.vy,
			Owner: p.owner,
			Age:   p.age,
		})
	}

	var (
		data []byte
		err  error
	)
	if m.tracker.NeedsFull(m.tick, m.cfg.FullSnapshotIntervalTicks) {
		data, err = proto.Encode(proto.TypeStateSnapshot, m.tracker.BuildFull(m.tick, tanks, projectiles))
	} else {
		data, err = proto.Encode(proto.TypeDeltaSnapshot, m.tracker.BuildDelta(m.tick, tanks, projectiles))
	}
	if err != nil {
		return
	}
	for _, sess := range m.roster {
		sess.PushMessage(data)
	}
	if m.telemetry != nil {
		m.telemetry.RecordSnapshot(len(data), len(tanks)+len(projectiles))
	}
}

// flushKillFeed emits one aggregated kill-feed message for the tick.
func (m *Match) flushKillFeed(ctx context.Context) {
	if len(m.killFeed) == 0 {
		return
	}
	update := proto.KillFeedUpdate{
		Tick:    m.tick,
		Entries: append([]proto.KillFeedEntry(nil), m.killFeed...),
	}
	m.broadcast(proto.TypeKillFeedUpdate, update)

	payload := combat.KillFeedPayload{}
	for _, entry := range m.killFeed {
		payload.Victims = append(payload.Victims, entry.Victim)
		payload.Attackers = append(payload.Attackers, entry.Attacker)
	}
	combat.KillFeed(ctx, m.publisher, m.tick, lifecycle.MatchRef(m.id), payload)
	m.killFeed = m.killFeed[:0]
}

// checkWin evaluates the end condition. Evaluation is suppressed during the
// startup grace window; the hard timeout forces the end regardless of
// survivor count. The match-over transition happens exactly once.
func (m *Match) checkWin(ctx context.Context) {
	if m.matchOver {
		return
	}

	aliveCount := 0
	var survivor uint64
	for _, tank := range m.tanks {
		if tank.alive {
			aliveCount++
			survivor = tank.id
		}
	}

	ended := false
	if m.tick > m.cfg.startGraceTicks() && aliveCount <= 1 {
		ended = true
	}
	if m.tick >= m.cfg.timeoutTicks() {
		ended = true
	}
	if !ended {
		return
	}

	m.matchOver = true
	m.phase = phaseGrace
	if aliveCount == 1 {
		m.winner = survivor
	}
	m.broadcast(proto.TypeMatchEnd, proto.MatchEnd{Winner: m.winner, Tick: m.tick})
	lifecycle.MatchEnded(ctx, m.publisher, m.tick, lifecycle.MatchRef(m.id), lifecycle.MatchEndedPayload{
		Winner: m.winner,
		Ticks:  m.tick,
	})
}

// broadcast encodes a message once and queues it for every roster session.
func (m *Match) broadcast(msgType string, payload any) {
	data, err := proto.Encode(msgType, payload)
	if err != nil {
		return
	}
	for _, sess := range m.roster {
		sess.PushMessage(data)
	}
}

// teardown releases remaining physics bodies and bot sessions, then settles
// the process-wide gauges.
func (m *Match) teardown(ctx context.Context) {
	m.phase = phaseTerminated
	for _, p := range append([]*projectileState(nil), m.projectiles...) {
		m.removeProjectile(p)
	}
	for _, tank := range m.tanks {
		if tank.body != nil {
			delete(m.tankByBody, tank.body.ID())
			m.world.DestroyBody(tank.body)
			tank.body = nil
		}
	}
	for _, sess := range m.roster {
		if sess.IsBot() {
			m.registry.Disconnect(sess, "match complete")
		}
	}
	if m.telemetry != nil {
		m.telemetry.DecrementMatches()
		m.telemetry.RemoveBots(m.botCount)
	}
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
