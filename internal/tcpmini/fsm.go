// Package tcpmini implements the single-slot TCP Mini-Handler: passive
// open, Telnet-style data echo, and FIN+ACK shutdown (spec.md §4.5).
// It has no window management, no retransmission, and no congestion
// control — the handler answers exactly what a peer sends, in order,
// and nothing else.
package tcpmini

// The FSM is a pure function over a transition table, in the same
// shape as internal/dhcpfsm, grounded directly on
// dantte-lp-gobfd/internal/bfd/fsm.go.
//
// State diagram (spec.md §2, §4.5; original_source/main.c's tcp_state
// dispatch):
//
//   LISTEN --SYN--> SYN_RECEIVED --ACK--> ESTABLISHED --FIN|ACK--> FINWAIT_1 --ACK--> CLOSED
//                                              |
//                                              +--TelnetData (PSH|ACK)--> ESTABLISHED (echo)
//
// original_source/main.c guards the closing ACK with
// `tcp_state == SYN_RECEIVED`, a second, unreachable copy of the
// connection-establishment guard pasted after the FIN|ACK branch (the
// first SYN_RECEIVED/ACK check already consumes that event, so the
// second can never fire). SPEC_FULL.md §4.5 calls this dead code and
// does not carry it over; the FINWAIT_1 -> CLOSED transition here
// uses the guard the duplicate branch was evidently meant to have.

// State is a TCP Mini-Handler connection state.
type State uint8

const (
	StateListen State = iota
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListen:
		return "LISTEN"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FINWAIT_1"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Event is an incoming-segment classification.
type Event uint8

const (
	// EventSyn is a received SYN (no ACK): a connection request.
	EventSyn Event = iota
	// EventAck is a received pure ACK.
	EventAck
	// EventTelnetData is a received PSH|ACK carrying data.
	EventTelnetData
	// EventFinAck is a received FIN|ACK.
	EventFinAck
)

func (e Event) String() string {
	switch e {
	case EventSyn:
		return "SYN"
	case EventAck:
		return "ACK"
	case EventTelnetData:
		return "TELNET_DATA"
	case EventFinAck:
		return "FIN_ACK"
	default:
		return "UNKNOWN"
	}
}

// Action is a side effect to execute alongside a transition.
type Action uint8

const (
	// ActionSendSynAck replies SYN|ACK to the peer's SYN.
	ActionSendSynAck Action = iota
	// ActionSendTelnetData replies with the fixed Telnet payload.
	ActionSendTelnetData
	// ActionSendFinSequence emits the ACK-then-FIN|ACK shutdown pair.
	ActionSendFinSequence
)

func (a Action) String() string {
	switch a {
	case ActionSendSynAck:
		return "SendSynAck"
	case ActionSendTelnetData:
		return "SendTelnetData"
	case ActionSendFinSequence:
		return "SendFinSequence"
	default:
		return "Unknown"
	}
}

type stateEvent struct {
	state State
	event Event
}

type transition struct {
	next    State
	actions []Action
}

// FSMResult is the outcome of applying one event.
type FSMResult struct {
	NewState State
	Actions  []Action
	Changed  bool
}

//nolint:gochecknoglobals // immutable transition table, read-only after init
var fsmTable = map[stateEvent]transition{
	{StateListen, EventSyn}: {StateSynReceived, []Action{ActionSendSynAck}},

	{StateSynReceived, EventAck}: {StateEstablished, nil},

	{StateEstablished, EventTelnetData}: {StateEstablished, []Action{ActionSendTelnetData}},
	{StateEstablished, EventFinAck}:     {StateFinWait1, []Action{ActionSendFinSequence}},

	{StateFinWait1, EventAck}: {StateClosed, nil},
}

// ApplyEvent looks up the transition for (state, event) and returns
// its result. An event outside the current state's table is a no-op:
// NewState == state, Changed == false.
func ApplyEvent(state State, event Event) FSMResult {
	t, ok := fsmTable[stateEvent{state, event}]
	if !ok {
		return FSMResult{NewState: state}
	}
	return FSMResult{NewState: t.next, Actions: t.actions, Changed: t.next != state}
}
