package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/checksum"
)

// ICMP header offsets, relative to the start of the IP payload. RFC 792.
const (
	icmpTypeOff     = 0
	icmpCodeOff     = 1
	icmpChecksumOff = 2
	icmpIDOff       = 4
	icmpSeqOff      = 6
	icmpHeaderLen   = 8

	ICMPTypeEchoReply   = 0
	ICMPTypeEchoRequest = 8
)

func icmpOffset(pkt []byte) int { return EtherHdrLen + IPHeaderLen(pkt) }

// IsPingRequest reports protocol 1 and ICMP type 8 (spec.md §4.3).
func IsPingRequest(pkt []byte, n int) bool {
	if IPProtocol(pkt) != ProtoICMP {
		return false
	}
	off := icmpOffset(pkt)
	if off+icmpHeaderLen > n {
		return false
	}
	return pkt[off+icmpTypeOff] == ICMPTypeEchoRequest
}

// SendPingResponse mutates pkt in place into an Echo Reply: swaps
// Ethernet and IP addresses, sets ICMP type 0, recomputes the IP
// checksum then the ICMP checksum over the whole ICMP message
// (spec.md §4.3). Returns the frame length to hand to the driver.
func SendPingResponse(pkt []byte) int {
	SwapEtherAddrs(pkt)
	SwapIPAddrs(pkt)
	RecomputeIPChecksum(pkt)

	off := icmpOffset(pkt)
	pkt[off+icmpTypeOff] = ICMPTypeEchoReply
	binary.BigEndian.PutUint16(pkt[off+icmpChecksumOff:], 0)

	icmpLen := int(IPTotalLen(pkt)) - IPHeaderLen(pkt)
	var e checksum.Engine
	e.SumWords(pkt[off:off+icmpLen], icmpLen)
	sum := e.Fold()
	binary.BigEndian.PutUint16(pkt[off+icmpChecksumOff:], sum)

	return EtherHdrLen + int(IPTotalLen(pkt))
}
