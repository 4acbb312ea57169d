package console

import (
	"fmt"
	"strings"

	"github.com/tm4cnet/netcore/internal/dhcpfsm"
	"github.com/tm4cnet/netcore/internal/identity"
)

// Dispatcher routes a completed console line to the `set`/`dhcp`/
// `ifconfig`/`reboot` handlers, mirroring original_source/main.c's
// command block. It shares the Main Loop's single packet buffer and a
// transmit callback with internal/tcpmini's handler, for the same
// reason: `dhcp on`/`refresh`/`release` build and send a DHCP packet
// synchronously, in place, from that one buffer.
type Dispatcher struct {
	id   *identity.Identity
	dhcp *dhcpfsm.Client

	buf      []byte
	transmit func(frameLen int)
	linkUp   func() bool
	reboot   func()
}

// NewDispatcher builds a Dispatcher over the given Network Identity
// and DHCP Client, sharing buf (the Main Loop's packet buffer) and
// transmit (handed the frame length whenever a command causes an
// immediate send). linkUp reports physical link state for `ifconfig`;
// reboot performs `reboot`'s hardware reset request.
func NewDispatcher(id *identity.Identity, dhcp *dhcpfsm.Client, buf []byte, transmit func(int), linkUp func() bool, reboot func()) *Dispatcher {
	return &Dispatcher{id: id, dhcp: dhcp, buf: buf, transmit: transmit, linkUp: linkUp, reboot: reboot}
}

// Execute parses and runs one completed console line, returning the
// text to print (not including the leading "\r\n" LineAssembler
// already echoed for line completion).
func (d *Dispatcher) Execute(line string) string {
	f := ParseLine(line)
	if f.Count() == 0 {
		return ""
	}

	var out strings.Builder
	valid := false

	switch {
	case f.IsCommand("set", 5):
		valid = d.runSet(f, &out)
	case f.IsCommand("dhcp", 1):
		valid = d.runDHCP(f, &out)
	case f.IsCommand("ifconfig", 0):
		d.printConnectionInfo(&out)
		valid = true
	case f.IsCommand("reboot", 0):
		if d.reboot != nil {
			d.reboot()
		}
		valid = true
	}

	if !valid {
		out.WriteString("Invalid command\r\n")
	}
	return out.String()
}

func (d *Dispatcher) runSet(f Fields, out *strings.Builder) bool {
	what, _ := f.String(2)
	if d.dhcp.State() != dhcpfsm.StateStatic {
		out.WriteString("DHCP mode is on. ")
		return false
	}

	octets, ok := ipFromFields(f, 3)
	if !ok {
		return false
	}

	switch what {
	case "ip":
		d.id.SetIP(octets) //nolint:errcheck // persistence failure surfaces via ifconfig, not here
	case "gw":
		d.id.SetGateway(octets) //nolint:errcheck
	case "dns":
		d.id.SetDNS(octets) //nolint:errcheck
	case "sn":
		d.id.SetSubnet(octets) //nolint:errcheck
	default:
		return false
	}
	return true
}

func ipFromFields(f Fields, firstField int) (identity.IPv4, bool) {
	var a identity.IPv4
	for i := range a {
		v, ok := f.Int(firstField + i)
		if !ok || v > 255 {
			return identity.IPv4{}, false
		}
		a[i] = byte(v)
	}
	return a, true
}

func (d *Dispatcher) runDHCP(f Fields, out *strings.Builder) bool {
	mode, _ := f.String(2)
	switch mode {
	case "on":
		n, sent := d.dhcp.Enable(d.buf)
		if sent {
			d.transmit(n)
		}
		return true
	case "off":
		d.dhcp.Disable()
		return true
	case "release":
		n, sent, ok := d.dhcp.Release(d.buf)
		if !ok {
			out.WriteString("DHCP mode is off ")
			return false
		}
		if sent {
			d.transmit(n)
		}
		return true
	case "refresh":
		n, sent, ok := d.dhcp.Refresh(d.buf)
		if !ok {
			out.WriteString("DHCP mode is off ")
			return false
		}
		if sent {
			d.transmit(n)
		}
		return true
	default:
		return false
	}
}

func (d *Dispatcher) printConnectionInfo(out *strings.Builder) {
	fmt.Fprintf(out, "HW: %s\r\n", d.id.MAC)
	mode := "static"
	if d.id.DHCP {
		mode = "dhcp"
	}
	fmt.Fprintf(out, "IP: %s (%s)\r\n", d.id.IP, mode)
	fmt.Fprintf(out, "SN: %s\r\n", d.id.Subnet)
	fmt.Fprintf(out, "GW: %s\r\n", d.id.Gateway)
	fmt.Fprintf(out, "DNS: %s\r\n", d.id.DNS)
	if d.linkUp != nil && d.linkUp() {
		out.WriteString("Link is up\r\n")
	} else {
		out.WriteString("Link is down\r\n")
	}
}
