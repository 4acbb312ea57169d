package timer

import "testing"

const (
	kindA Kind = iota
	kindB
)

func TestOneShotFiresOnceThenFree(t *testing.T) {
	s := New()
	s.StartOneShot(kindA, 3)

	for range 2 {
		s.Tick()
		if s.Drain(kindA) {
			t.Fatal("fired too early")
		}
	}
	s.Tick()
	if !s.Drain(kindA) {
		t.Fatal("expected kindA to fire on the third tick")
	}
	if s.Active(kindA) {
		t.Fatal("one-shot slot should be freed after firing")
	}
}

func TestPeriodicReloads(t *testing.T) {
	s := New()
	s.StartPeriodic(kindA, 2)

	s.Tick()
	s.Tick()
	if !s.Drain(kindA) {
		t.Fatal("expected first period to fire")
	}
	s.Tick()
	s.Tick()
	if !s.Drain(kindA) {
		t.Fatal("expected second period to fire")
	}
	if !s.Active(kindA) {
		t.Fatal("periodic slot should remain armed")
	}
}

func TestStopByIdentity(t *testing.T) {
	s := New()
	s.StartOneShot(kindA, 1)
	s.StartOneShot(kindB, 1)
	s.Stop(kindA)
	s.Tick()

	if s.Drain(kindA) {
		t.Fatal("kindA was stopped and must not fire")
	}
	if !s.Drain(kindB) {
		t.Fatal("kindB was not stopped and should fire")
	}
}

func TestStopAllClearsEverything(t *testing.T) {
	s := New()
	s.StartPeriodic(kindA, 1)
	s.StartPeriodic(kindB, 1)
	s.StopAll()
	s.Tick()

	if s.DrainAll() != nil {
		t.Fatal("expected no pending timers after StopAll")
	}
	if s.Active(kindA) || s.Active(kindB) {
		t.Fatal("expected no active slots after StopAll")
	}
}

func TestDrainAllClearsPending(t *testing.T) {
	s := New()
	s.StartOneShot(kindA, 1)
	s.StartOneShot(kindB, 1)
	s.Tick()

	fired := s.DrainAll()
	if len(fired) != 2 {
		t.Fatalf("got %d fired kinds, want 2", len(fired))
	}
	if s.DrainAll() != nil {
		t.Fatal("expected DrainAll to clear pending flags")
	}
}
