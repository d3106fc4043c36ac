// Package physics provides the stepped-world capability consumed by the
// match engine: body creation, velocity control, fixed-step integration, and
// begin-touch contact reporting between tanks and projectiles.
package physics

import "math"

// Kind distinguishes the two collision categories the game simulates.
type Kind uint8

const (
	KindTank Kind = iota
	KindProjectile
)

// Body is an opaque handle to a simulated circle.
type Body struct {
	id     uint64
	kind   Kind
	x, y   float64
	vx, vy float64
	radius float64
}

// ID returns the world-unique body identifier.
func (b *Body) ID() uint64 { return b.id }

// Kind returns the body's collision category.
func (b *Body) Kind() Kind { return b.kind }

// Position returns the body's current center.
func (b *Body) Position() (float64, float64) { return b.x, b.y }

// SetVelocity replaces the body's velocity vector.
func (b *Body) SetVelocity(vx, vy float64) {
	b.vx = vx
	b.vy = vy
}

// Velocity returns the body's current velocity vector.
func (b *Body) Velocity() (float64, float64) { return b.vx, b.vy }

// Contact reports a touch between two bodies detected during a step.
type Contact struct {
	A *Body
	B *Body
}

type pairKey struct {
	lo, hi uint64
}

func keyFor(a, b uint64) pairKey {
	if a < b {
		return pairKey{lo: a, hi: b}
	}
	return pairKey{lo: b, hi: a}
}

// World owns all bodies and advances them in creation order so steps are
// deterministic for a given input sequence.
type World struct {
	bodies   map[uint64]*Body
	order    []uint64
	nextID   uint64
	touching map[pairKey]struct{}
	contacts []Contact
}

// NewWorld constructs an empty world.
func NewWorld() *World {
	return &World{
		bodies:   make(map[uint64]*Body),
		touching: make(map[pairKey]struct{}),
	}
}

// CreateTank adds a stationary tank body at the given center.
func (w *World) CreateTank(x, y, radius float64) *Body {
	return w.create(KindTank, x, y, 0, 0, radius)
}

// CreateProjectile adds a projectile body with an initial velocity.
func (w *World) CreateProjectile(x, y, vx, vy, radius float64) *Body {
	return w.create(KindProjectile, x, y, vx, vy, radius)
}

func (w *World) create(kind Kind, x, y, vx, vy, radius float64) *Body {
	w.nextID++
	body := &Body{id: w.nextID, kind: kind, x: x, y: y, vx: vx, vy: vy, radius: radius}
	w.bodies[body.id] = body
	w.order = append(w.order, body.id)
	return body
}

// DestroyBody removes a body and forgets any touch state involving it.
func (w *World) DestroyBody(b *Body) {
	if b == nil {
		return
	}
	if _, ok := w.bodies[b.id]; !ok {
		return
	}
	delete(w.bodies, b.id)
	for i, id := range w.order {
		if id == b.id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for key := range w.touching {
		if key.lo == b.id || key.hi == b.id {
			delete(w.touching, key)
		}
	}
}

// BodyCount reports the number of live bodies.
func (w *World) BodyCount() int { return len(w.bodies) }

// Step integrates every body by dt and records begin-touch contacts between
// tanks and projectiles. A pair is reported once per touch: it must separate
// before it can produce another contact event.
func (w *World) Step(dt float64) {
	for _, id := range w.order {
		body := w.bodies[id]
		body.x += body.vx * dt
		body.y += body.vy * dt
	}

	w.contacts = w.contacts[:0]
	seen := make(map[pairKey]struct{}, len(w.touching))
	for i, idA := range w.order {
		a := w.bodies[idA]
		if a.kind != KindTank {
			continue
		}
		for j, idB := range w.order {
			if i == j {
				continue
			}
			b := w.bodies[idB]
			if b.kind != KindProjectile {
				continue
			}
			if !overlap(a, b) {
				continue
			}
			key := keyFor(a.id, b.id)
			seen[key] = struct{}{}
			if _, already := w.touching[key]; already {
				continue
			}
			w.touching[key] = struct{}{}
			w.contacts = append(w.contacts, Contact{A: a, B: b})
		}
	}
	for key := range w.touching {
		if _, still := seen[key]; !still {
			delete(w.touching, key)
		}
	}
}

// ContactEvents returns the begin-touch contacts from the most recent Step.
func (w *World) ContactEvents() []Contact {
	return w.contacts
}

func overlap(a, b *Body) bool {
	dx := a.x - b.x
	dy := a.y - b.y
	limit := a.radius + b.radius
	return math.Hypot(dx, dy) <= limit
}
