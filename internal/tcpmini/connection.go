package tcpmini

import "github.com/tm4cnet/netcore/internal/wire"

// Connection is the single TCP slot: the FSM state plus the one
// monotonically increasing local sequence counter currentIsn
// (spec.md §2). Only one peer may occupy a non-LISTEN state at a
// time; a second peer's SYN while occupied is simply not classified
// as a fresh connection attempt by the dispatch chain (the slot is
// addressed by state alone, not by peer identity, matching
// original_source/main.c's single global tcp_state).
type Connection struct {
	state      State
	currentIsn uint32
}

// NewConnection returns a Connection in LISTEN with currentIsn at 0.
func NewConnection() *Connection {
	return &Connection{state: StateListen}
}

// State returns the current connection state.
func (c *Connection) State() State { return c.state }

func (c *Connection) apply(event Event) (FSMResult, []Action) {
	result := ApplyEvent(c.state, event)
	c.state = result.NewState
	return result, result.Actions
}

// HandleSegment classifies pkt (a received TCP segment, n bytes) and,
// if it drives a reachable transition, mutates pkt in place one or
// more times, calling transmit(len) after each mutation so the caller
// can hand the buffer to the driver immediately. sent is true if at
// least one reply was transmitted.
//
// transmit is called once for SYN/telnet replies and twice for a
// FIN|ACK shutdown (spec.md §4.5, §8 scenario 6: "two packets are
// emitted ... exactly the second carries FIN") — wire.SendAckFinAck
// and wire.SendFinAck each mutate the same buffer in place, so the
// first must be handed to the driver before the second overwrites it.
//
// Mirroring wire's in-place reply builders (SendPingResponse,
// SendUDPResponse, ...), this mutates the single shared packet buffer
// rather than writing into a second one: the driver hands the Main
// Loop one buffer per received frame, and the same buffer is handed
// back for transmission (spec.md §5).
func (c *Connection) HandleSegment(pkt []byte, n int, transmit func(frameLen int)) (sent bool) {
	event, ok := classify(pkt, n)
	if !ok {
		return false
	}
	if event == EventAck && c.state == StateSynReceived && wire.TCPAck(pkt) != c.currentIsn {
		return false
	}
	_, actions := c.apply(event)
	for _, a := range actions {
		switch a {
		case ActionSendSynAck:
			isn := c.currentIsn
			c.currentIsn++
			transmit(wire.SendTCPSynAck(pkt, isn))
			return true
		case ActionSendTelnetData:
			ack := wire.TCPSeq(pkt) + 1
			out := wire.SendTelnetData(pkt, c.currentIsn, ack)
			c.currentIsn += wire.TelnetReplyLen
			transmit(out)
			return true
		case ActionSendFinSequence:
			isn := c.currentIsn
			ack := wire.TCPSeq(pkt) + 1
			transmit(wire.SendAckFinAck(pkt, isn, ack))
			transmit(wire.SendFinAck(pkt, isn, ack))
			return true
		}
	}
	return false
}

// classify maps a received TCP segment to the FSM event it drives, in
// the same priority order as original_source/main.c's if/else-if
// dispatch chain: SYN first, then FIN|ACK, then Telnet data, then a
// pure ACK.
func classify(pkt []byte, n int) (Event, bool) {
	switch {
	case wire.IsTCPSyn(pkt):
		return EventSyn, true
	case wire.IsTCPFinAck(pkt):
		return EventFinAck, true
	case wire.IsTelnetData(pkt, n):
		return EventTelnetData, true
	case wire.IsTCPAck(pkt):
		return EventAck, true
	default:
		return 0, false
	}
}
