package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/checksum"
)

// UDP header offsets, relative to the start of the UDP datagram. RFC 768.
const (
	udpSrcPortOff  = 0
	udpDstPortOff  = 2
	udpLengthOff   = 4
	udpChecksumOff = 6
	udpHeaderLen   = 8
)

func udpOffset(pkt []byte) int { return EtherHdrLen + IPHeaderLen(pkt) }

// IsUDP reports protocol 17 (spec.md §4.3).
func IsUDP(pkt []byte, n int) bool {
	if IPProtocol(pkt) != ProtoUDP {
		return false
	}
	return udpOffset(pkt)+udpHeaderLen <= n
}

// UDPDstPort returns the destination port.
func UDPDstPort(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[udpOffset(pkt)+udpDstPortOff:])
}

// UDPData returns the UDP payload as a slice into pkt.
func UDPData(pkt []byte) []byte {
	off := udpOffset(pkt)
	length := binary.BigEndian.Uint16(pkt[off+udpLengthOff:])
	if int(length) < udpHeaderLen {
		return nil
	}
	return pkt[off+udpHeaderLen : off+int(length)]
}

// pseudoHeaderSum feeds the IP pseudo-header {src, dst, zero, protocol,
// protocol-length} into e, as required before summing a UDP or TCP
// segment (spec.md §4.3).
func pseudoHeaderSum(e *checksum.Engine, pkt []byte, protocol byte, protoLen uint16) {
	var ph [12]byte
	copy(ph[0:4], pkt[ipSrcOff:ipSrcOff+4])
	copy(ph[4:8], pkt[ipDstOff:ipDstOff+4])
	ph[8] = 0
	ph[9] = protocol
	binary.BigEndian.PutUint16(ph[10:12], protoLen)
	e.SumWords(ph[:], len(ph))
}

// SendUDPResponse mutates pkt in place into a UDP response carrying
// udpData as payload: swaps Ethernet/IP addresses and the source and
// destination ports (a UDP "echo" convention, per spec.md §8 scenario
// 4), rebuilds the UDP header, recomputes the IP checksum then the UDP
// checksum over the pseudo-header followed by the full datagram.
// Returns the frame length.
func SendUDPResponse(pkt []byte, udpData []byte) int {
	SwapEtherAddrs(pkt)
	SwapIPAddrs(pkt)

	off := udpOffset(pkt)
	srcPort := binary.BigEndian.Uint16(pkt[off+udpSrcPortOff:])
	dstPort := binary.BigEndian.Uint16(pkt[off+udpDstPortOff:])
	binary.BigEndian.PutUint16(pkt[off+udpSrcPortOff:], dstPort)
	binary.BigEndian.PutUint16(pkt[off+udpDstPortOff:], srcPort)

	udpLen := uint16(udpHeaderLen + len(udpData))
	binary.BigEndian.PutUint16(pkt[off+udpLengthOff:], udpLen)
	copy(pkt[off+udpHeaderLen:], udpData)

	ipTotalLen := uint16(IPHeaderLen(pkt)) + udpLen
	binary.BigEndian.PutUint16(pkt[ipTotalLenOff:], ipTotalLen)
	RecomputeIPChecksum(pkt)

	binary.BigEndian.PutUint16(pkt[off+udpChecksumOff:], 0)
	var e checksum.Engine
	pseudoHeaderSum(&e, pkt, ProtoUDP, udpLen)
	e.SumWords(pkt[off:off+int(udpLen)], int(udpLen))
	sum := e.Fold()
	binary.BigEndian.PutUint16(pkt[off+udpChecksumOff:], sum)

	return EtherHdrLen + IPHeaderLen(pkt) + int(udpLen)
}
