package physics

import "testing"

func TestStepIntegratesVelocity(t *testing.T) {
	w := NewWorld()
	body := w.CreateProjectile(100, 100, 30, -15, 3)

	w.Step(1.0 / 15.0)

	x, y := body.Position()
	if x <= 100 || y >= 100 {
		t.Fatalf("projectile did not move along its velocity: at (%.2f, %.2f)", x, y)
	}
}

func TestContactReportedOncePerTouch(t *testing.T) {
	w := NewWorld()
	tank := w.CreateTank(100, 100, 14)
	proj := w.CreateProjectile(100, 100, 0, 0, 3)

	w.Step(0.1)
	if got := len(w.ContactEvents()); got != 1 {
		t.Fatalf("first step reported %d contacts, want 1", got)
	}
	contact := w.ContactEvents()[0]
	if contact.A != tank && contact.B != tank {
		t.Fatal("contact does not reference the tank body")
	}

	// Still overlapping: no new begin-touch event.
	w.Step(0.1)
	if got := len(w.ContactEvents()); got != 0 {
		t.Fatalf("overlapping pair re-fired %d contacts, want 0", got)
	}

	// Separate, then re-enter: the pair fires again.
	proj.SetVelocity(1000, 0)
	w.Step(0.1)
	if got := len(w.ContactEvents()); got != 0 {
		t.Fatalf("separating step reported %d contacts, want 0", got)
	}
	proj.SetVelocity(-1000, 0)
	w.Step(0.1)
	if got := len(w.ContactEvents()); got != 1 {
		t.Fatalf("re-entry reported %d contacts, want 1", got)
	}
}

func TestTanksDoNotContactEachOther(t *testing.T) {
	w := NewWorld()
	w.CreateTank(100, 100, 14)
	w.CreateTank(105, 100, 14)

	w.Step(0.1)
	if got := len(w.ContactEvents()); got != 0 {
		t.Fatalf("overlapping tanks reported %d contacts, want 0", got)
	}
}

func TestDestroyBodyClearsTouchState(t *testing.T) {
	w := NewWorld()
	tank := w.CreateTank(100, 100, 14)
	proj := w.CreateProjectile(100, 100, 0, 0, 3)

	w.Step(0.1)
	if len(w.ContactEvents()) != 1 {
		t.Fatal("expected initial contact")
	}

	w.DestroyBody(proj)
	if w.BodyCount() != 1 {
		t.Fatalf("BodyCount = %d after destroy, want 1", w.BodyCount())
	}

	// A fresh projectile at the same spot must fire a new contact even
	// though the old pair never separated.
	w.CreateProjectile(100, 100, 0, 0, 3)
	w.Step(0.1)
	if got := len(w.ContactEvents()); got != 1 {
		t.Fatalf("replacement projectile reported %d contacts, want 1", got)
	}

	w.DestroyBody(tank)
	w.DestroyBody(tank) // idempotent
	if w.BodyCount() != 1 {
		t.Fatalf("BodyCount = %d, want 1", w.BodyCount())
	}
}
