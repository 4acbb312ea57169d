// Package identity holds the Network Identity: MAC, IPv4 address,
// subnet mask, gateway, DNS, and the DHCP-enabled flag, backed by a
// store.Store for persistence across boots.
package identity

import (
	"encoding/binary"
	"fmt"

	"github.com/tm4cnet/netcore/internal/store"
)

// IPv4 is a 4-octet address, octet 0 first (network order).
type IPv4 [4]byte

func (a IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// Uint32 returns the address as a big-endian 32-bit word, matching the
// persistent slot encoding.
func (a IPv4) Uint32() uint32 {
	return binary.BigEndian.Uint32(a[:])
}

// IPv4FromUint32 decodes a slot word into an IPv4 address.
func IPv4FromUint32(v uint32) IPv4 {
	var a IPv4
	binary.BigEndian.PutUint32(a[:], v)
	return a
}

// MAC is a 6-octet hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Identity is the process-wide Network Identity. It is mutated only by
// the DHCP client and the Console Dispatcher, and read by the Wire
// Codec during classify/build. The zero value is not meaningful; use
// Load to populate it from a store.Store.
type Identity struct {
	MAC     MAC
	IP      IPv4
	Gateway IPv4
	DNS     IPv4
	Subnet  IPv4
	DHCP    bool

	backing store.Store
}

// New creates an Identity with a fixed MAC (set once at boot, per the
// data model) backed by s. Call Load to populate the remaining fields
// from persistent storage.
func New(mac MAC, s store.Store) *Identity {
	return &Identity{MAC: mac, backing: s}
}

// Load reads all five persistent slots into the Identity.
func (id *Identity) Load() error {
	flag, err := id.backing.Read(store.SlotDHCPFlag)
	if err != nil {
		return fmt.Errorf("load dhcp flag: %w", err)
	}
	ip, err := id.backing.Read(store.SlotIP)
	if err != nil {
		return fmt.Errorf("load ip: %w", err)
	}
	gw, err := id.backing.Read(store.SlotGateway)
	if err != nil {
		return fmt.Errorf("load gateway: %w", err)
	}
	dns, err := id.backing.Read(store.SlotDNS)
	if err != nil {
		return fmt.Errorf("load dns: %w", err)
	}
	sn, err := id.backing.Read(store.SlotSubnet)
	if err != nil {
		return fmt.Errorf("load subnet: %w", err)
	}

	id.DHCP = flag != 0
	id.IP = IPv4FromUint32(ip)
	id.Gateway = IPv4FromUint32(gw)
	id.DNS = IPv4FromUint32(dns)
	id.Subnet = IPv4FromUint32(sn)
	return nil
}

// SetIP sets the live IPv4 address and persists it to slot 1.
func (id *Identity) SetIP(a IPv4) error {
	id.IP = a
	return id.backing.Write(store.SlotIP, a.Uint32())
}

// SetGateway sets the gateway address and persists it to slot 2.
func (id *Identity) SetGateway(a IPv4) error {
	id.Gateway = a
	return id.backing.Write(store.SlotGateway, a.Uint32())
}

// SetDNS sets the DNS address and persists it to slot 3.
//
// The original distillation's equivalent setter wrote into gateway
// storage instead of DNS storage; this is the corrected behavior
// (spec.md §9, SPEC_FULL.md §4.3 item 3).
func (id *Identity) SetDNS(a IPv4) error {
	id.DNS = a
	return id.backing.Write(store.SlotDNS, a.Uint32())
}

// SetSubnet sets the subnet mask and persists it to slot 4.
func (id *Identity) SetSubnet(a IPv4) error {
	id.Subnet = a
	return id.backing.Write(store.SlotSubnet, a.Uint32())
}

// SetDHCP sets the DHCP-enabled flag and persists it to slot 0.
func (id *Identity) SetDHCP(enabled bool) error {
	id.DHCP = enabled
	var v uint32
	if enabled {
		v = 1
	}
	return id.backing.Write(store.SlotDHCPFlag, v)
}

// Zero clears the live IPv4 address without touching the persistent
// slot, used when REBINDING falls back to INIT (SPEC_FULL.md §4.4).
func (id *Identity) Zero() {
	id.IP = IPv4{}
}
