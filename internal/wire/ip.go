package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/checksum"
	"github.com/tm4cnet/netcore/internal/identity"
)

// IPv4 header offsets, relative to the start of the frame. RFC 791.
const (
	ipVerIHLOff    = EtherHdrLen + 0
	ipTotalLenOff  = EtherHdrLen + 2
	ipIDOff        = EtherHdrLen + 4
	ipTTLOff       = EtherHdrLen + 8
	ipProtocolOff  = EtherHdrLen + 9
	ipChecksumOff  = EtherHdrLen + 10
	ipSrcOff       = EtherHdrLen + 12
	ipDstOff       = EtherHdrLen + 16
	ipMinHeaderLen = 20

	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
)

// BroadcastIP is 255.255.255.255, spec.md §4.3.
var BroadcastIP = identity.IPv4{255, 255, 255, 255}

// IPHeaderLen returns the IPv4 header length in octets: never assumed
// to be 20, always derived from the low nibble of the version/IHL
// byte (spec.md §4.3).
func IPHeaderLen(pkt []byte) int {
	return int(pkt[ipVerIHLOff]&0x0F) * 4
}

// IPTotalLen returns the IPv4 total length field.
func IPTotalLen(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[ipTotalLenOff:])
}

// IPID returns the IPv4 identification field.
func IPID(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[ipIDOff:])
}

// IPProtocol returns the IPv4 protocol field.
func IPProtocol(pkt []byte) byte {
	return pkt[ipProtocolOff]
}

// IPSrc returns the IPv4 source address.
func IPSrc(pkt []byte) identity.IPv4 {
	var a identity.IPv4
	copy(a[:], pkt[ipSrcOff:ipSrcOff+4])
	return a
}

// IPDst returns the IPv4 destination address.
func IPDst(pkt []byte) identity.IPv4 {
	var a identity.IPv4
	copy(a[:], pkt[ipDstOff:ipDstOff+4])
	return a
}

// SetIPSrc writes the IPv4 source address.
func SetIPSrc(pkt []byte, a identity.IPv4) { copy(pkt[ipSrcOff:], a[:]) }

// SetIPDst writes the IPv4 destination address.
func SetIPDst(pkt []byte, a identity.IPv4) { copy(pkt[ipDstOff:], a[:]) }

// SwapIPAddrs exchanges IPv4 source and destination, the second step
// of every unicast reply builder.
func SwapIPAddrs(pkt []byte) {
	src := IPSrc(pkt)
	dst := IPDst(pkt)
	SetIPDst(pkt, src)
	SetIPSrc(pkt, dst)
}

// RecomputeIPChecksum zeroes and recomputes the IPv4 header checksum
// in place; it is always the first checksum recomputed when building
// a reply (spec.md §4.3).
func RecomputeIPChecksum(pkt []byte) {
	hlen := IPHeaderLen(pkt)
	binary.BigEndian.PutUint16(pkt[ipChecksumOff:], 0)
	var e checksum.Engine
	e.SumWords(pkt[EtherHdrLen:EtherHdrLen+hlen], hlen)
	sum := e.Fold()
	binary.BigEndian.PutUint16(pkt[ipChecksumOff:], sum)
}

// IsIP reports whether pkt carries an IPv4 payload with a valid header
// checksum: EtherType 0x0800 and folding SumWords over the header
// yields zero (spec.md §4.3).
func IsIP(pkt []byte, n int) bool {
	if n < EtherHdrLen+ipMinHeaderLen {
		return false
	}
	if EtherType(pkt) != EtherTypeIPv4 {
		return false
	}
	hlen := IPHeaderLen(pkt)
	if hlen < ipMinHeaderLen || EtherHdrLen+hlen > n {
		return false
	}
	var e checksum.Engine
	e.SumWords(pkt[EtherHdrLen:EtherHdrLen+hlen], hlen)
	return e.Fold() == 0
}

// IsIPUnicast reports whether the destination IP matches myIP
// octet-by-octet. Corrected per SPEC_FULL.md §4.3 item 1 to require
// every octet to match, not just the last one compared.
func IsIPUnicast(pkt []byte, myIP identity.IPv4) bool {
	return ipEqual(IPDst(pkt), myIP)
}

// IsIPBroadcast reports whether the destination IP is 255.255.255.255.
// Subnet-directed broadcast is not handled separately (spec.md §4.3).
func IsIPBroadcast(pkt []byte) bool {
	return ipEqual(IPDst(pkt), BroadcastIP)
}
