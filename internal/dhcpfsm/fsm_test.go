package dhcpfsm

import "testing"

func TestStaticToSelectingBringUp(t *testing.T) {
	r := ApplyEvent(StateStatic, EventEnable)
	if r.NewState != StateInit || !r.Changed {
		t.Fatalf("got %v, want INIT", r.NewState)
	}

	r = ApplyEvent(StateInit, EventDiscoverTimer)
	if r.NewState != StateSelecting {
		t.Fatalf("got %v, want SELECTING", r.NewState)
	}
}

func TestSelectingToRequestingToBound(t *testing.T) {
	r := ApplyEvent(StateSelecting, EventOffer)
	if r.NewState != StateRequesting {
		t.Fatalf("got %v, want REQUESTING", r.NewState)
	}
	foundSend := false
	for _, a := range r.Actions {
		if a == ActionSendRequestInitial {
			foundSend = true
		}
	}
	if !foundSend {
		t.Fatal("expected ActionSendRequestInitial on OFFER")
	}

	// An ACK applies the lease and starts the safe-to-use probe, but
	// must not promote to BOUND yet — that's the safe timer's job.
	r = ApplyEvent(StateRequesting, EventAck)
	if r.NewState != StateRequesting {
		t.Fatalf("got %v, want to remain REQUESTING pending the safe timer", r.NewState)
	}
	hasGratuitous := false
	hasSafeTimer := false
	for _, a := range r.Actions {
		if a == ActionSendGratuitousARP {
			hasGratuitous = true
		}
		if a == ActionStartSafeTimer {
			hasSafeTimer = true
		}
	}
	if !hasGratuitous {
		t.Fatal("expected a gratuitous ARP probe on first bind, not on renew/rebind")
	}
	if !hasSafeTimer {
		t.Fatal("expected the safe-to-use timer to be armed on ACK")
	}

	r = ApplyEvent(StateRequesting, EventSafeTimerExpired)
	if r.NewState != StateBound {
		t.Fatalf("got %v, want BOUND once the safe timer fires with no collision", r.NewState)
	}
}

func TestRenewDoesNotEmitGratuitousARP(t *testing.T) {
	r := ApplyEvent(StateRenewing, EventAck)
	if r.NewState != StateBound {
		t.Fatalf("got %v, want BOUND", r.NewState)
	}
	for _, a := range r.Actions {
		if a == ActionSendGratuitousARP {
			t.Fatal("renew must not re-probe with gratuitous ARP")
		}
	}
}

func TestT1ThenT2Sequence(t *testing.T) {
	r := ApplyEvent(StateBound, EventT1Expired)
	if r.NewState != StateRenewing {
		t.Fatalf("got %v, want RENEWING", r.NewState)
	}

	r = ApplyEvent(StateRenewing, EventT2Expired)
	if r.NewState != StateRebinding {
		t.Fatalf("got %v, want REBINDING", r.NewState)
	}
	stopsRenew := false
	for _, a := range r.Actions {
		if a == ActionStopRenewTimer {
			stopsRenew = true
		}
	}
	if !stopsRenew {
		t.Fatal("T2 transition must stop the renew-retry timer before arming the rebind-retry timer")
	}
}

func TestGratuitousARPCollisionHoldsRequestingUntilDeclineTimer(t *testing.T) {
	r := ApplyEvent(StateRequesting, EventGratuitousARPReply)
	if r.NewState != StateRequesting {
		t.Fatalf("got %v, want to remain REQUESTING during the decline wait", r.NewState)
	}

	r = ApplyEvent(StateRequesting, EventDeclineTimerExpired)
	if r.NewState != StateInit {
		t.Fatalf("got %v, want INIT after the decline wait elapses", r.NewState)
	}
}

func TestReleaseFromAnyBoundStateReturnsToStatic(t *testing.T) {
	for _, s := range []State{StateBound, StateRenewing, StateRebinding} {
		r := ApplyEvent(s, EventReleaseCmd)
		if r.NewState != StateStatic {
			t.Fatalf("release from %v: got %v, want STATIC", s, r.NewState)
		}
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	r := ApplyEvent(StateBound, EventOffer)
	if r.Changed || r.NewState != StateBound {
		t.Fatal("an event outside the current state's table must be a no-op")
	}
}
