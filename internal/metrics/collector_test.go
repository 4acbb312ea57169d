package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tm4cnet/netcore/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.Classified == nil {
		t.Error("Classified is nil")
	}
	if c.DHCPTransitions == nil {
		t.Error("DHCPTransitions is nil")
	}
	if c.TCPTransitions == nil {
		t.Error("TCPTransitions is nil")
	}
	if c.RXOverflow == nil {
		t.Error("RXOverflow is nil")
	}
	if c.TXAbort == nil {
		t.Error("TXAbort is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestIncClassified(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncClassified("arp_request")
	c.IncClassified("arp_request")
	c.IncClassified("icmp_echo")

	if val := counterValue(t, c.Classified, "arp_request"); val != 2 {
		t.Errorf("Classified(arp_request) = %v, want 2", val)
	}
	if val := counterValue(t, c.Classified, "icmp_echo"); val != 1 {
		t.Errorf("Classified(icmp_echo) = %v, want 1", val)
	}
}

func TestIncDHCPTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncDHCPTransition("INIT", "SELECTING")
	c.IncDHCPTransition("INIT", "SELECTING")
	c.IncDHCPTransition("SELECTING", "REQUESTING")

	if val := counterValue(t, c.DHCPTransitions, "INIT", "SELECTING"); val != 2 {
		t.Errorf("DHCPTransitions(INIT->SELECTING) = %v, want 2", val)
	}
	if val := counterValue(t, c.DHCPTransitions, "SELECTING", "REQUESTING"); val != 1 {
		t.Errorf("DHCPTransitions(SELECTING->REQUESTING) = %v, want 1", val)
	}
}

func TestIncTCPTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncTCPTransition("LISTEN", "SYN_RECEIVED")
	c.IncTCPTransition("ESTABLISHED", "FIN_WAIT_1")

	if val := counterValue(t, c.TCPTransitions, "LISTEN", "SYN_RECEIVED"); val != 1 {
		t.Errorf("TCPTransitions(LISTEN->SYN_RECEIVED) = %v, want 1", val)
	}
	if val := counterValue(t, c.TCPTransitions, "ESTABLISHED", "FIN_WAIT_1"); val != 1 {
		t.Errorf("TCPTransitions(ESTABLISHED->FIN_WAIT_1) = %v, want 1", val)
	}
}

func TestIncRXOverflowAndTXAbort(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncRXOverflow()
	c.IncRXOverflow()
	c.IncTXAbort()

	if val := plainCounterValue(t, c.RXOverflow); val != 2 {
		t.Errorf("RXOverflow = %v, want 2", val)
	}
	if val := plainCounterValue(t, c.TXAbort); val != 1 {
		t.Errorf("TXAbort = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}

// plainCounterValue reads the current value of a bare prometheus.Counter.
func plainCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
