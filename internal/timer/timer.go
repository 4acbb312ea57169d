// Package timer implements the Timer Service: one-shot and periodic
// callbacks driven by a 1 Hz tick, grounded on original_source/timer.h
// (initTimer/startOneshotTimer/startPeriodicTimer/stopTimer/
// stopAllTimers/tickIsr).
//
// Per spec.md's redesign note, cancellation is keyed by a small enum
// of event kinds rather than function-pointer identity, and a firing
// timer only sets a flag for the Main Loop to drain on its next pass —
// it never invokes caller code directly, so Tick can run from an
// interrupt context without touching anything the Main Loop is
// midway through mutating.
package timer

// Kind identifies a registered timer slot. Callers (internal/dhcpfsm)
// define their own Kind constants; the Service itself is agnostic to
// what a Kind means.
type Kind uint8

type slot struct {
	active   bool
	periodic bool
	remaining int
	reload    int
}

// Service holds a fixed set of timer slots and the flags they have
// raised since the last Drain.
type Service struct {
	slots   map[Kind]*slot
	pending map[Kind]bool
}

// New returns an empty Timer Service.
func New() *Service {
	return &Service{
		slots:   make(map[Kind]*slot),
		pending: make(map[Kind]bool),
	}
}

// StartOneShot arms k to fire once after seconds, overwriting any
// existing registration for k.
func (s *Service) StartOneShot(k Kind, seconds int) {
	s.slots[k] = &slot{active: true, periodic: false, remaining: seconds, reload: seconds}
	delete(s.pending, k)
}

// StartPeriodic arms k to fire every seconds, overwriting any existing
// registration for k.
func (s *Service) StartPeriodic(k Kind, seconds int) {
	s.slots[k] = &slot{active: true, periodic: true, remaining: seconds, reload: seconds}
	delete(s.pending, k)
}

// Stop clears k by identity, matching stop_timer(cb)'s semantics.
func (s *Service) Stop(k Kind) {
	delete(s.slots, k)
	delete(s.pending, k)
}

// StopAll clears every registered slot, the only cancellation
// primitive DHCP state exits use (spec.md §5).
func (s *Service) StopAll() {
	s.slots = make(map[Kind]*slot)
	s.pending = make(map[Kind]bool)
}

// Tick decrements every active slot by one second. A slot reaching
// zero sets its pending flag; periodic slots reload, one-shot slots
// are freed. Tick performs no I/O and invokes no caller code, so it is
// safe to call from an interrupt/ISR context.
func (s *Service) Tick() {
	for k, sl := range s.slots {
		if !sl.active {
			continue
		}
		sl.remaining--
		if sl.remaining > 0 {
			continue
		}
		s.pending[k] = true
		if sl.periodic {
			sl.remaining = sl.reload
		} else {
			delete(s.slots, k)
		}
	}
}

// Pending reports whether k has fired since the last Drain/DrainAll
// without clearing it.
func (s *Service) Pending(k Kind) bool {
	return s.pending[k]
}

// Drain reports whether k fired since the last drain and clears it.
func (s *Service) Drain(k Kind) bool {
	fired := s.pending[k]
	delete(s.pending, k)
	return fired
}

// DrainAll returns every Kind that fired since the last drain, clearing
// all of them. The Main Loop calls this once per iteration to act on
// timer-raised flags (spec.md §5).
func (s *Service) DrainAll() []Kind {
	if len(s.pending) == 0 {
		return nil
	}
	fired := make([]Kind, 0, len(s.pending))
	for k := range s.pending {
		fired = append(fired, k)
	}
	s.pending = make(map[Kind]bool)
	return fired
}

// Active reports whether k currently has an armed slot (for the
// "no T1 and rebind-periodic simultaneously armed" safety property,
// spec.md §8).
func (s *Service) Active(k Kind) bool {
	sl, ok := s.slots[k]
	return ok && sl.active
}
