// Package metrics implements a Prometheus Collector over the events
// this core's Main Loop actually produces: frames classified per
// protocol, DHCP and TCP state transitions, RX overflows, and TX
// aborts (SPEC_FULL.md §10).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "netcore"
	subsystem = "core"
)

// Label names for core metrics.
const (
	labelProtocol = "protocol"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Core Metrics
// -------------------------------------------------------------------------

// Collector holds all core Prometheus metrics and implements
// netcore.Metrics, so a *Collector can be handed straight to
// netcore.WithMetrics.
type Collector struct {
	// Classified counts frames dispatched per protocol ("arp_request",
	// "arp_reply", "icmp_echo", "udp_echo", "tcp", "dhcp_offer",
	// "dhcp_ack", "dhcp_nak" — see internal/netcore's classify chain).
	Classified *prometheus.CounterVec

	// DHCPTransitions counts DHCP client FSM state transitions.
	DHCPTransitions *prometheus.CounterVec

	// TCPTransitions counts TCP mini-handler FSM state transitions.
	TCPTransitions *prometheus.CounterVec

	// RXOverflow counts receive-buffer-overflow events latched by the
	// Driver (ESTAT.TXABORT's RX counterpart, EIR.RXERIF).
	RXOverflow prometheus.Counter

	// TXAbort counts frames dropped after the Driver's single
	// clear-and-retry transmit attempt both aborted.
	TXAbort prometheus.Counter
}

// NewCollector creates a Collector with all core metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "netcore_core_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Classified,
		c.DHCPTransitions,
		c.TCPTransitions,
		c.RXOverflow,
		c.TXAbort,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		Classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_classified_total",
			Help:      "Total frames dispatched by the classify chain, per protocol.",
		}, []string{labelProtocol}),

		DHCPTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dhcp_transitions_total",
			Help:      "Total DHCP client FSM state transitions.",
		}, []string{labelFromState, labelToState}),

		TCPTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tcp_transitions_total",
			Help:      "Total TCP mini-handler FSM state transitions.",
		}, []string{labelFromState, labelToState}),

		RXOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rx_overflow_total",
			Help:      "Total receive-buffer-overflow events latched by the Driver.",
		}),

		TXAbort: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tx_abort_total",
			Help:      "Total frames dropped after both transmit attempts aborted.",
		}),
	}
}

// -------------------------------------------------------------------------
// netcore.Metrics implementation
// -------------------------------------------------------------------------

// IncClassified increments the classified-frames counter for protocol.
func (c *Collector) IncClassified(protocol string) {
	c.Classified.WithLabelValues(protocol).Inc()
}

// IncDHCPTransition increments the DHCP FSM transition counter with
// the old and new state labels.
func (c *Collector) IncDHCPTransition(from, to string) {
	c.DHCPTransitions.WithLabelValues(from, to).Inc()
}

// IncTCPTransition increments the TCP FSM transition counter with
// the old and new state labels.
func (c *Collector) IncTCPTransition(from, to string) {
	c.TCPTransitions.WithLabelValues(from, to).Inc()
}

// IncRXOverflow increments the receive-overflow counter.
func (c *Collector) IncRXOverflow() {
	c.RXOverflow.Inc()
}

// IncTXAbort increments the transmit-abort counter.
func (c *Collector) IncTXAbort() {
	c.TXAbort.Inc()
}
