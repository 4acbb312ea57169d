package dhcpfsm

import (
	"github.com/tm4cnet/netcore/internal/identity"
	"github.com/tm4cnet/netcore/internal/timer"
	"github.com/tm4cnet/netcore/internal/wire"
)

// Timer kinds owned by a Client. The five named in spec.md §3 (T1, T2,
// lease-expiry, safe-to-use, decline-wait) plus the three periodic
// retry timers (discover, renew, rebind) that original_source/main.c
// registers alongside them.
const (
	TimerDiscoverPeriodic timer.Kind = iota
	TimerT1
	TimerRenewPeriodic
	TimerT2
	TimerRebindPeriodic
	TimerLeaseExpiry
	TimerSafeToUse
	TimerDecline
)

const (
	discoverPeriodSeconds = 15
	renewPeriodSeconds    = 15
	rebindPeriodSeconds   = 15
	safeToUseSeconds      = 2
	declineWaitSeconds    = 10
)

// Client is the DHCP Session: the FSM state plus the transient
// offered-IP/server holding registers and the five (plus periodic
// retry) timer handles, spec.md §3.
type Client struct {
	state State

	id     *identity.Identity
	timers *timer.Service
	myMAC  identity.MAC

	xid uint32

	offeredIP     identity.IPv4
	offeredLease  uint32
	serverIP      identity.IPv4
	serverMAC     identity.MAC
	haveServerMAC bool
}

// NewClient builds a Client backed by id's persistent Network Identity
// and ts's Timer Service. The initial state is STATIC if id.DHCP is
// false, INIT otherwise (mirroring original_source/main.c's boot-time
// dhcpMode check).
func NewClient(mac identity.MAC, id *identity.Identity, ts *timer.Service) *Client {
	c := &Client{id: id, timers: ts, myMAC: mac, state: StateStatic}
	if id.DHCP {
		c.state = StateInit
		c.timers.StartPeriodic(TimerDiscoverPeriodic, discoverPeriodSeconds)
	}
	return c
}

// State returns the current DHCP client state.
func (c *Client) State() State { return c.state }

// apply runs the FSM, updates c.state, and executes every action in
// the result except a Send* action, which it returns to the caller
// uncommitted (the caller supplies the shared packet buffer to build
// into). The transition table never yields more than one Send* action
// per entry.
func (c *Client) apply(event Event) (FSMResult, Action, bool) {
	result := ApplyEvent(c.state, event)
	c.state = result.NewState

	var sendAction Action
	haveSend := false
	for _, a := range result.Actions {
		if isSendAction(a) {
			sendAction, haveSend = a, true
			continue
		}
		c.execNonSend(a)
	}
	return result, sendAction, haveSend
}

func isSendAction(a Action) bool {
	switch a {
	case ActionSendDiscover, ActionSendRequestInitial, ActionSendRequestRenew,
		ActionSendRequestRebind, ActionSendDecline, ActionSendRelease, ActionSendGratuitousARP:
		return true
	default:
		return false
	}
}

func (c *Client) execNonSend(a Action) {
	switch a {
	case ActionApplyLease:
		c.id.SetIP(c.offeredIP) //nolint:errcheck // persistence failure surfaces via ifconfig, not here
		lease := c.offeredLease
		if lease == 0 {
			lease = 1
		}
		c.timers.Stop(TimerRenewPeriodic)
		c.timers.Stop(TimerRebindPeriodic)
		c.timers.StartOneShot(TimerT1, int(lease/2))
		c.timers.StartOneShot(TimerT2, int(lease*7/8))
		c.timers.StartOneShot(TimerLeaseExpiry, int(lease))
	case ActionStartSafeTimer:
		c.timers.StartOneShot(TimerSafeToUse, safeToUseSeconds)
	case ActionStartDiscoverTimer:
		c.timers.StartPeriodic(TimerDiscoverPeriodic, discoverPeriodSeconds)
	case ActionStartRenewTimer:
		c.timers.StartPeriodic(TimerRenewPeriodic, renewPeriodSeconds)
	case ActionStartRebindTimer:
		c.timers.StartPeriodic(TimerRebindPeriodic, rebindPeriodSeconds)
	case ActionStopRenewTimer:
		c.timers.Stop(TimerRenewPeriodic)
	case ActionStopAllTimers:
		c.timers.StopAll()
	case ActionStartDeclineTimer:
		c.timers.StartOneShot(TimerDecline, declineWaitSeconds)
	case ActionZeroAddress:
		c.id.Zero()
	case ActionDisableDHCPFlag:
		c.id.SetDHCP(false)  //nolint:errcheck // see ActionApplyLease
		c.id.Load()          //nolint:errcheck // restore the static address from persistent storage
	}
}

// buildSend constructs the outgoing frame for a Send* action into buf
// and returns its length.
func (c *Client) buildSend(buf []byte, a Action) int {
	switch a {
	case ActionSendDiscover:
		c.xid++
		return wire.SendDHCPPacket(buf, c.myMAC, wire.BroadcastMAC, identity.IPv4{}, wire.BroadcastIP, wire.DHCPRequestParams{
			MsgType:   wire.DHCPMsgDiscover,
			XID:       c.xid,
			Broadcast: true,
		})
	case ActionSendRequestInitial:
		return wire.SendDHCPPacket(buf, c.myMAC, wire.BroadcastMAC, identity.IPv4{}, wire.BroadcastIP, wire.DHCPRequestParams{
			MsgType:     wire.DHCPMsgRequest,
			XID:         c.xid,
			Broadcast:   true,
			RequestedIP: c.offeredIP,
			LeaseTime:   c.offeredLease,
			ServerID:    c.serverIP,
			HaveServer:  true,
		})
	case ActionSendRequestRenew:
		dstMAC := c.serverMAC
		if !c.haveServerMAC {
			dstMAC = wire.BroadcastMAC
		}
		return wire.SendDHCPPacket(buf, c.myMAC, dstMAC, c.id.IP, c.serverIP, wire.DHCPRequestParams{
			MsgType: wire.DHCPMsgRequest,
			XID:     c.xid,
			Ciaddr:  c.id.IP,
		})
	case ActionSendRequestRebind:
		return wire.SendDHCPPacket(buf, c.myMAC, wire.BroadcastMAC, c.id.IP, wire.BroadcastIP, wire.DHCPRequestParams{
			MsgType:   wire.DHCPMsgRequest,
			XID:       c.xid,
			Broadcast: true,
			Ciaddr:    c.id.IP,
		})
	case ActionSendDecline:
		return wire.SendDHCPPacket(buf, c.myMAC, wire.BroadcastMAC, identity.IPv4{}, wire.BroadcastIP, wire.DHCPRequestParams{
			MsgType:     wire.DHCPMsgDecline,
			XID:         c.xid,
			Broadcast:   true,
			RequestedIP: c.offeredIP,
			ServerID:    c.serverIP,
			HaveServer:  true,
		})
	case ActionSendRelease:
		return wire.SendDHCPPacket(buf, c.myMAC, c.serverMAC, c.id.IP, c.serverIP, wire.DHCPRequestParams{
			MsgType: wire.DHCPMsgRelease,
			XID:     c.xid,
			Ciaddr:  c.id.IP,
		})
	case ActionSendGratuitousARP:
		return wire.SendGratuitousARP(buf, c.myMAC, c.id.IP)
	default:
		return 0
	}
}

func (c *Client) handle(event Event, buf []byte) (n int, sent bool) {
	_, action, have := c.apply(event)
	if !have {
		return 0, false
	}
	return c.buildSend(buf, action), true
}

// Enable handles "dhcp on" and, from STATIC, persists DHCP-enabled.
func (c *Client) Enable(buf []byte) (n int, sent bool) {
	if c.state == StateStatic {
		c.id.SetDHCP(true) //nolint:errcheck // see ActionApplyLease
	}
	return c.handle(EventEnable, buf)
}

// Disable handles "dhcp off".
func (c *Client) Disable() { c.apply(EventDisable) }

// Refresh handles "dhcp refresh". ok is false while STATIC.
func (c *Client) Refresh(buf []byte) (n int, sent bool, ok bool) {
	if c.state == StateStatic {
		return 0, false, false
	}
	n, sent = c.handle(EventRefreshCmd, buf)
	return n, sent, true
}

// Release handles "dhcp release". ok is false while STATIC.
func (c *Client) Release(buf []byte) (n int, sent bool, ok bool) {
	if c.state == StateStatic {
		return 0, false, false
	}
	n, sent = c.handle(EventReleaseCmd, buf)
	return n, sent, true
}

// DiscoverTimerFired handles the periodic re-discovery timer.
func (c *Client) DiscoverTimerFired(buf []byte) (n int, sent bool) {
	return c.handle(EventDiscoverTimer, buf)
}

// RenewTimerFired handles the periodic renew-retry timer.
func (c *Client) RenewTimerFired(buf []byte) (n int, sent bool) {
	return c.handle(EventRenewTimer, buf)
}

// RebindTimerFired handles the periodic rebind-retry timer.
func (c *Client) RebindTimerFired(buf []byte) (n int, sent bool) {
	return c.handle(EventRebindTimer, buf)
}

// T1Fired handles the T1 (0.5x lease) timer.
func (c *Client) T1Fired(buf []byte) (n int, sent bool) { return c.handle(EventT1Expired, buf) }

// T2Fired handles the T2 (0.875x lease) timer.
func (c *Client) T2Fired(buf []byte) (n int, sent bool) { return c.handle(EventT2Expired, buf) }

// LeaseExpired handles the lease-expiry timer.
func (c *Client) LeaseExpired() { c.apply(EventLeaseExpired) }

// DeclineTimerFired handles the 10s post-decline wait.
func (c *Client) DeclineTimerFired() { c.apply(EventDeclineTimerExpired) }

// SafeTimerFired handles the 2s post-ACK safe-to-use timer: absent a
// colliding gratuitous ARP reply, promotes REQUESTING to BOUND.
func (c *Client) SafeTimerFired() { c.apply(EventSafeTimerExpired) }

// HandleOffer classifies pkt as a DHCP OFFER for our in-flight
// transaction and, if it matches and the client is SELECTING, records
// the offered IP/lease/server and emits a REQUEST into buf.
func (c *Client) HandleOffer(pkt []byte, n int, buf []byte) (outN int, sent bool) {
	if c.state != StateSelecting || !wire.IsDHCPOffer(pkt, n, c.xid, c.myMAC) {
		return 0, false
	}
	c.offeredIP = wire.DHCPYiaddr(pkt)
	c.offeredLease = wire.DHCPLeaseSeconds(pkt)
	if sid, ok := wire.DHCPOptionIPv4(pkt, wire.OptServerID); ok {
		c.serverIP = sid
	}
	c.serverMAC = wire.EtherSrc(pkt)
	c.haveServerMAC = true
	c.timers.Stop(TimerDiscoverPeriodic)
	return c.handle(EventOffer, buf)
}

// HandleAck classifies pkt as a DHCP ACK for our in-flight transaction
// and, if it matches and the client is waiting for one, applies the
// lease and arms the T1/T2/lease-expiry timers. Returns the frame
// length and true if a gratuitous ARP probe must be sent (REQUESTING
// only).
func (c *Client) HandleAck(pkt []byte, n int, buf []byte) (outN int, sent bool) {
	if c.state != StateRequesting && c.state != StateRenewing && c.state != StateRebinding {
		return 0, false
	}
	if !wire.IsDHCPAck(pkt, n, c.xid, c.myMAC) {
		return 0, false
	}
	c.offeredIP = wire.DHCPYiaddr(pkt)
	c.offeredLease = wire.DHCPLeaseSeconds(pkt)
	if sid, ok := wire.DHCPOptionIPv4(pkt, wire.OptServerID); ok {
		c.serverIP = sid
	}
	return c.handle(EventAck, buf)
}

// HandleNak classifies pkt as a DHCP NAK for our in-flight transaction
// and, if it matches, returns the client to INIT.
func (c *Client) HandleNak(pkt []byte, n int) (handled bool) {
	if c.state != StateRequesting && c.state != StateRenewing && c.state != StateRebinding {
		return false
	}
	if !wire.IsDHCPNak(pkt, n, c.xid, c.myMAC) {
		return false
	}
	c.apply(EventNak)
	return true
}

// HandleGratuitousARPReply classifies pkt as a reply to our post-bind
// gratuitous ARP probe and, if so, declines the lease.
func (c *Client) HandleGratuitousARPReply(pkt []byte, n int, buf []byte) (outN int, sent bool) {
	if c.state != StateRequesting || !wire.IsGratuitousARPReplyFor(pkt, n, c.offeredIP) {
		return 0, false
	}
	return c.handle(EventGratuitousARPReply, buf)
}
