// Package netcore owns the Main Loop: the single structure that wires
// the MAC/PHY Driver, Wire Codec, DHCP Client, TCP Mini-Handler, Timer
// Service, and Console Dispatcher together and drives them in the
// non-blocking, single-threaded iteration order original_source/main.c
// runs (spec.md §4.8, §5).
package netcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/tm4cnet/netcore/internal/console"
	"github.com/tm4cnet/netcore/internal/dhcpfsm"
	"github.com/tm4cnet/netcore/internal/identity"
	"github.com/tm4cnet/netcore/internal/machw"
	"github.com/tm4cnet/netcore/internal/tcpmini"
	"github.com/tm4cnet/netcore/internal/timer"
	"github.com/tm4cnet/netcore/internal/wire"
)

// udpEchoPort is the fixed UDP port the "on"/"off" indicator demo
// listens on (original_source/main.c, spec.md §8 scenario 4).
const udpEchoPort uint16 = 1024

// Metrics receives Core's protocol-level events. Never nil: a Core
// with no metrics configured uses noopMetrics, the same pattern the
// teacher's BFD session uses for its MetricsReporter.
type Metrics interface {
	IncClassified(protocol string)
	IncDHCPTransition(from, to string)
	IncTCPTransition(from, to string)
	IncRXOverflow()
	IncTXAbort()
}

type noopMetrics struct{}

func (noopMetrics) IncClassified(string)              {}
func (noopMetrics) IncDHCPTransition(string, string) {}
func (noopMetrics) IncTCPTransition(string, string)  {}
func (noopMetrics) IncRXOverflow()                    {}
func (noopMetrics) IncTXAbort()                       {}

// Indicators receives the on-board LED signals original_source/main.c
// drives directly (GREEN for the UDP on/off demo, RED for overflow and
// collision, BLUE for the FIN handshake). A blink is reported as a
// single call rather than an on/wait/off sequence: the Main Loop must
// never block, so timing the visible pulse is left to the
// implementation (a real board toggles a GPIO and lets persistence of
// vision do the rest; a simulation can log it).
type Indicators interface {
	SetGreen(on bool)
	BlinkRed()
	BlinkBlue()
}

type noopIndicators struct{}

func (noopIndicators) SetGreen(bool) {}
func (noopIndicators) BlinkRed()     {}
func (noopIndicators) BlinkBlue()    {}

// Core owns every piece of mutable state the Main Loop touches. It
// must be driven exclusively from one goroutine (spec.md §5); nothing
// else may reach into its fields.
type Core struct {
	buf []byte

	id     *identity.Identity
	dhcp   *dhcpfsm.Client
	tcp    *tcpmini.Connection
	timers *timer.Service
	driver *machw.Driver

	assembler  *console.LineAssembler
	dispatcher *console.Dispatcher

	consolePoll  func() (byte, bool)
	consoleWrite func(string)

	indicators Indicators
	logger     *slog.Logger
	metrics    Metrics
}

// Option configures optional Core fields.
type Option func(*Core)

// WithIndicators attaches an Indicators sink; nil is ignored.
func WithIndicators(ind Indicators) Option {
	return func(c *Core) {
		if ind != nil {
			c.indicators = ind
		}
	}
}

// WithMetrics attaches a Metrics sink; nil is ignored.
func WithMetrics(m Metrics) Option {
	return func(c *Core) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger attaches a structured logger; nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConsole wires a non-blocking byte source and a text sink for the
// operator console. poll returns ok=false when no input byte is
// currently available; write is handed echo text and command output.
// Without this option the console is simply never fed.
func WithConsole(poll func() (byte, bool), write func(string)) Option {
	return func(c *Core) {
		c.consolePoll = poll
		c.consoleWrite = write
	}
}

// New builds a Core over id (already Loaded) and driver (already
// Init'd), wiring a fresh DHCP Client, TCP Connection, Timer Service,
// and Console Dispatcher sharing one packet buffer. reboot is handed
// to the console's `reboot` command; it may be nil.
func New(id *identity.Identity, driver *machw.Driver, reboot func(), opts ...Option) *Core {
	c := &Core{
		buf:        make([]byte, wire.MaxPacketSize),
		id:         id,
		tcp:        tcpmini.NewConnection(),
		timers:     timer.New(),
		driver:     driver,
		assembler:  console.NewLineAssembler(),
		indicators: noopIndicators{},
		logger:     slog.Default(),
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dhcp = dhcpfsm.NewClient(id.MAC, id, c.timers)
	c.dispatcher = console.NewDispatcher(id, c.dhcp, c.buf, c.transmit, c.driver.LinkUp, reboot)
	return c
}

// transmit hands the first frameLen bytes of the shared buffer to the
// driver, retrying once internally (Driver.PutPacket) and recording a
// metric if both attempts abort.
func (c *Core) transmit(frameLen int) {
	if !c.driver.PutPacket(c.buf, frameLen) {
		c.metrics.IncTXAbort()
		c.logger.Warn("transmit aborted twice, frame dropped", slog.Int("len", frameLen))
	}
}

// Run calls RunOnce until ctx is done, per spec.md §5: the Main Loop
// polls ctx between iterations rather than being preempted mid-pass.
// A one-second ticker drives the Timer Service's Tick between passes.
func (c *Core) Run(ctx context.Context) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.timers.Tick()
		default:
			c.RunOnce()
		}
	}
}

// RunOnce executes one pass of the Main Loop: drain at most one
// console line, act on fired timers (including the DHCP Client's
// momentary INIT state), then dispatch one available frame through the
// classify chain (spec.md §4.8).
func (c *Core) RunOnce() {
	c.drainConsole()
	c.actOnTimers()
	c.dispatchFrame()
}

// drainConsole feeds every byte currently available into the line
// assembler, echoing as it goes, and executes at most one completed
// command line — "drain one console line if any" (spec.md §4.8).
func (c *Core) drainConsole() {
	if c.consolePoll == nil {
		return
	}
	for {
		b, ok := c.consolePoll()
		if !ok {
			return
		}
		echo, line, done := c.assembler.Feed(b)
		if echo != "" && c.consoleWrite != nil {
			c.consoleWrite(echo)
		}
		if !done {
			continue
		}
		out := c.dispatcher.Execute(line)
		if out != "" && c.consoleWrite != nil {
			c.consoleWrite(out)
		}
		return
	}
}

// actOnTimers drains every timer flag raised since the last pass and
// dispatches it to the owning DHCP Client event, transmitting any
// packet it builds. It finishes by synthesizing the first
// discover-timer event whenever the client has just landed in INIT —
// original_source/main.c's unconditional `if (state == INIT)` check,
// which runs every loop pass rather than waiting on the 15s periodic
// retry timer (DESIGN.md, "Entering INIT is momentary").
func (c *Core) actOnTimers() {
	for _, k := range c.timers.DrainAll() {
		before := c.dhcp.State()
		switch k {
		case dhcpfsm.TimerDiscoverPeriodic:
			c.sendIfAny(c.dhcp.DiscoverTimerFired(c.buf))
		case dhcpfsm.TimerT1:
			c.sendIfAny(c.dhcp.T1Fired(c.buf))
		case dhcpfsm.TimerRenewPeriodic:
			c.sendIfAny(c.dhcp.RenewTimerFired(c.buf))
		case dhcpfsm.TimerT2:
			c.sendIfAny(c.dhcp.T2Fired(c.buf))
		case dhcpfsm.TimerRebindPeriodic:
			c.sendIfAny(c.dhcp.RebindTimerFired(c.buf))
		case dhcpfsm.TimerLeaseExpiry:
			c.dhcp.LeaseExpired()
		case dhcpfsm.TimerSafeToUse:
			c.dhcp.SafeTimerFired()
		case dhcpfsm.TimerDecline:
			c.dhcp.DeclineTimerFired()
		}
		c.noteDHCPTransition(before)
	}

	if c.dhcp.State() == dhcpfsm.StateInit {
		before := c.dhcp.State()
		c.sendIfAny(c.dhcp.DiscoverTimerFired(c.buf))
		c.noteDHCPTransition(before)
	}
}

func (c *Core) sendIfAny(n int, sent bool) {
	if sent {
		c.transmit(n)
	}
}

func (c *Core) noteDHCPTransition(before dhcpfsm.State) {
	after := c.dhcp.State()
	if after != before {
		c.metrics.IncDHCPTransition(before.String(), after.String())
	}
}

// dispatchFrame pulls one available frame from the driver, blinking
// the overflow indicator first if the ring dropped one, and runs it
// through the classify chain (spec.md §4.8).
func (c *Core) dispatchFrame() {
	if !c.driver.DataAvailable() {
		return
	}
	if c.driver.Overflow() {
		c.metrics.IncRXOverflow()
		c.indicators.BlinkRed()
	}

	n := c.driver.GetPacket(c.buf)
	c.classify(c.buf, n)
}

// classify walks the frame through ARP, then IP unicast, then IP
// broadcast, in original_source/main.c's priority order.
//
// The gratuitous-ARP-reply check is classified here as an ARP-level
// frame (EtherType 0x0806, op=2) rather than nested under the IP
// branch the way original_source/main.c and spec.md §4.8's prose place
// it: that nesting can never fire in the original, since a true ARP
// reply never satisfies etherIsIp's EtherType test. Placing it here is
// what makes the REQUESTING->DECLINE transition actually reachable
// (SPEC_FULL.md §4.4, DESIGN.md).
func (c *Core) classify(pkt []byte, n int) {
	if wire.IsARPRequest(pkt, n, c.id.IP) {
		c.metrics.IncClassified("arp_request")
		c.transmit(wire.SendARPResponse(pkt, c.id.MAC, c.id.IP))
		return
	}
	if wire.EtherType(pkt) == wire.EtherTypeARP {
		before := c.dhcp.State()
		if n, sent := c.dhcp.HandleGratuitousARPReply(pkt, n, c.buf); sent {
			c.metrics.IncClassified("arp_reply")
			c.transmit(n)
		}
		c.noteDHCPTransition(before)
		return
	}
	if !wire.IsIP(pkt, n) {
		return
	}

	switch {
	case wire.IsIPUnicast(pkt, c.id.IP):
		c.classifyUnicastIP(pkt, n)
	case wire.IsIPBroadcast(pkt):
		c.classifyBroadcastIP(pkt, n)
	}
}

func (c *Core) classifyUnicastIP(pkt []byte, n int) {
	switch {
	case wire.IsPingRequest(pkt, n):
		c.metrics.IncClassified("icmp_echo")
		c.transmit(wire.SendPingResponse(pkt))
	case wire.IsUDP(pkt, n) && wire.UDPDstPort(pkt) == udpEchoPort:
		c.metrics.IncClassified("udp_echo")
		c.handleUDPEcho(pkt)
	case wire.IsTCP(pkt, n):
		c.metrics.IncClassified("tcp")
		before := c.tcp.State()
		c.tcp.HandleSegment(pkt, n, c.transmit)
		if after := c.tcp.State(); after != before {
			c.metrics.IncTCPTransition(before.String(), after.String())
			if after == tcpmini.StateFinWait1 {
				c.indicators.BlinkBlue()
			}
		}
	}
}

func (c *Core) handleUDPEcho(pkt []byte) {
	switch string(wire.UDPData(pkt)) {
	case "on":
		c.indicators.SetGreen(true)
	case "off":
		c.indicators.SetGreen(false)
	}
	c.transmit(wire.SendUDPResponse(pkt, udpReceivedAck))
}

// udpReceivedAck is the fixed 9-byte "Received" (with trailing NUL)
// acknowledgement original_source/main.c sends back for every UDP echo
// datagram, regardless of payload (spec.md §8 scenario 4).
var udpReceivedAck = []byte("Received\x00")

func (c *Core) classifyBroadcastIP(pkt []byte, n int) {
	if !wire.IsUDP(pkt, n) {
		return
	}

	before := c.dhcp.State()
	if outN, sent := c.dhcp.HandleOffer(pkt, n, c.buf); sent {
		c.metrics.IncClassified("dhcp_offer")
		c.transmit(outN)
		c.noteDHCPTransition(before)
		return
	}
	if outN, sent := c.dhcp.HandleAck(pkt, n, c.buf); sent {
		c.metrics.IncClassified("dhcp_ack")
		c.transmit(outN)
		c.noteDHCPTransition(before)
		return
	}
	if handled := c.dhcp.HandleNak(pkt, n); handled {
		c.metrics.IncClassified("dhcp_nak")
		c.noteDHCPTransition(before)
	}
}
