// Package wire implements the Wire Codec: typed accessors over the
// on-wire layouts (Ethernet/ARP/IPv4/ICMP/UDP/TCP/DHCP) and the
// classify/build functions that drive protocol dispatch.
//
// Every accessor reads or writes big-endian fields at a computed
// offset into a caller-owned byte slice — there is no struct overlay
// onto the packet buffer, since alignment and aliasing over a raw
// buffer are not guaranteed (spec.md §9).
package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/identity"
)

// MaxPacketSize is the fixed on-chip packet buffer size (spec.md §3).
const MaxPacketSize = 1522

// Ethernet II header offsets and EtherType values.
const (
	EtherDstOff  = 0
	EtherSrcOff  = 6
	EtherTypeOff = 12
	EtherHdrLen  = 14

	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
)

// BroadcastMAC is the all-ones Ethernet broadcast address.
var BroadcastMAC = identity.MAC{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// EtherType returns the frame's EtherType field.
func EtherType(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[EtherTypeOff:])
}

// EtherDst returns the destination MAC.
func EtherDst(pkt []byte) identity.MAC {
	var m identity.MAC
	copy(m[:], pkt[EtherDstOff:EtherDstOff+6])
	return m
}

// EtherSrc returns the source MAC.
func EtherSrc(pkt []byte) identity.MAC {
	var m identity.MAC
	copy(m[:], pkt[EtherSrcOff:EtherSrcOff+6])
	return m
}

// SetEtherDst writes the destination MAC.
func SetEtherDst(pkt []byte, m identity.MAC) {
	copy(pkt[EtherDstOff:EtherDstOff+6], m[:])
}

// SetEtherSrc writes the source MAC.
func SetEtherSrc(pkt []byte, m identity.MAC) {
	copy(pkt[EtherSrcOff:EtherSrcOff+6], m[:])
}

// SetEtherType writes the EtherType field.
func SetEtherType(pkt []byte, t uint16) {
	binary.BigEndian.PutUint16(pkt[EtherTypeOff:], t)
}

// SwapEtherAddrs exchanges source and destination MAC, the first step
// of every unicast reply builder (spec.md §4.3).
func SwapEtherAddrs(pkt []byte) {
	src := EtherSrc(pkt)
	dst := EtherDst(pkt)
	SetEtherDst(pkt, src)
	SetEtherSrc(pkt, dst)
}

// macEqual reports whether a and b match in every byte. Grounded on
// the corrected (AND-across-all-bytes) semantics of SPEC_FULL.md §4.3
// item 1: the original distillation reassigned a match flag on each
// loop iteration instead of ANDing it, so only the last byte actually
// gated the match.
func macEqual(a, b identity.MAC) bool {
	return a == b
}

func ipEqual(a, b identity.IPv4) bool {
	return a == b
}
