package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/checksum"
)

// TCP header offsets, relative to the start of the TCP segment. RFC 793.
const (
	tcpSrcPortOff    = 0
	tcpDstPortOff    = 2
	tcpSeqOff        = 4
	tcpAckOff        = 8
	tcpHdrLenFlagOff = 12
	tcpChecksumOff   = 16
	tcpMinHeaderLen  = 20

	// TCP flag bits, within the low byte of the 16-bit header-length/
	// flags field (network order), per RFC 793 and SPEC_FULL.md §4.3
	// item 2.
	TCPFlagFIN byte = 1 << 0
	TCPFlagSYN byte = 1 << 1
	TCPFlagRST byte = 1 << 2
	TCPFlagPSH byte = 1 << 3
	TCPFlagACK byte = 1 << 4
	TCPFlagURG byte = 1 << 5
)

func tcpOffset(pkt []byte) int { return EtherHdrLen + IPHeaderLen(pkt) }

// TCPFlags returns the flag byte: the low byte of the 16-bit
// header-length/flags field, read directly in network order.
//
// The original distillation's equivalent test combined
// (htons(hl)>>4)&1 with htons(hl)&1 — bits pulled from different
// halves of the field after an inconsistent byte swap. This reads the
// flag byte directly with no swap, per SPEC_FULL.md §4.3 item 2.
func TCPFlags(pkt []byte) byte {
	off := tcpOffset(pkt)
	return pkt[off+tcpHdrLenFlagOff+1]
}

// TCPHeaderLen returns the TCP header length in octets: the high
// nibble of the 16-bit header-length/flags field, times 4.
func TCPHeaderLen(pkt []byte) int {
	off := tcpOffset(pkt)
	return int(pkt[off+tcpHdrLenFlagOff]>>4) * 4
}

func setTCPHeaderLenFlags(pkt []byte, hlenWords byte, flags byte) {
	off := tcpOffset(pkt)
	pkt[off+tcpHdrLenFlagOff] = hlenWords << 4
	pkt[off+tcpHdrLenFlagOff+1] = flags
}

// TCPSeq returns the sequence number.
func TCPSeq(pkt []byte) uint32 {
	off := tcpOffset(pkt)
	return binary.BigEndian.Uint32(pkt[off+tcpSeqOff:])
}

// TCPAck returns the acknowledgment number.
func TCPAck(pkt []byte) uint32 {
	off := tcpOffset(pkt)
	return binary.BigEndian.Uint32(pkt[off+tcpAckOff:])
}

// TCPData returns the TCP payload as a slice into pkt.
func TCPData(pkt []byte) []byte {
	off := tcpOffset(pkt)
	hlen := TCPHeaderLen(pkt)
	ipLen := int(IPTotalLen(pkt)) - IPHeaderLen(pkt)
	if hlen > ipLen {
		return nil
	}
	return pkt[off+hlen : off+ipLen]
}

// IsTCP reports protocol 6 (spec.md §4.3).
func IsTCP(pkt []byte, n int) bool {
	if IPProtocol(pkt) != ProtoTCP {
		return false
	}
	return tcpOffset(pkt)+tcpMinHeaderLen <= n
}

// IsTCPSyn reports the SYN flag alone (no ACK): a connection request.
func IsTCPSyn(pkt []byte) bool {
	f := TCPFlags(pkt)
	return f&TCPFlagSYN != 0 && f&TCPFlagACK == 0
}

// IsTCPAck reports a pure ACK segment (no SYN, no FIN, no PSH).
func IsTCPAck(pkt []byte) bool {
	f := TCPFlags(pkt)
	return f&TCPFlagACK != 0 && f&(TCPFlagSYN|TCPFlagFIN|TCPFlagPSH) == 0
}

// IsTelnetData reports a PSH+ACK segment carrying data.
func IsTelnetData(pkt []byte, n int) bool {
	f := TCPFlags(pkt)
	return f&TCPFlagPSH != 0 && f&TCPFlagACK != 0 && len(TCPData(pkt)) > 0 && n >= tcpOffset(pkt)+TCPHeaderLen(pkt)
}

// IsTCPFinAck reports a FIN+ACK segment.
func IsTCPFinAck(pkt []byte) bool {
	f := TCPFlags(pkt)
	return f&TCPFlagFIN != 0 && f&TCPFlagACK != 0
}

func recomputeTCPChecksum(pkt []byte, segLen int) {
	off := tcpOffset(pkt)
	binary.BigEndian.PutUint16(pkt[off+tcpChecksumOff:], 0)
	var e checksum.Engine
	pseudoHeaderSum(&e, pkt, ProtoTCP, uint16(segLen))
	e.SumWords(pkt[off:off+segLen], segLen)
	sum := e.Fold()
	binary.BigEndian.PutUint16(pkt[off+tcpChecksumOff:], sum)
}

func finishIPv4(pkt []byte, segLen int) int {
	ipTotalLen := uint16(IPHeaderLen(pkt) + segLen)
	binary.BigEndian.PutUint16(pkt[ipTotalLenOff:], ipTotalLen)
	RecomputeIPChecksum(pkt)
	return EtherHdrLen + int(ipTotalLen)
}

// SendTCPSynAck mutates pkt (a received SYN) in place into a SYN|ACK:
// ack = seq+1, seq = isn, transitioning the caller to SYN_RECEIVED.
// Returns the frame length.
func SendTCPSynAck(pkt []byte, isn uint32) int {
	SwapEtherAddrs(pkt)
	SwapIPAddrs(pkt)

	off := tcpOffset(pkt)
	srcPort := binary.BigEndian.Uint16(pkt[off+tcpSrcPortOff:])
	dstPort := binary.BigEndian.Uint16(pkt[off+tcpDstPortOff:])
	binary.BigEndian.PutUint16(pkt[off+tcpSrcPortOff:], dstPort)
	binary.BigEndian.PutUint16(pkt[off+tcpDstPortOff:], srcPort)

	ack := TCPSeq(pkt) + 1
	binary.BigEndian.PutUint32(pkt[off+tcpSeqOff:], isn)
	binary.BigEndian.PutUint32(pkt[off+tcpAckOff:], ack)
	setTCPHeaderLenFlags(pkt, tcpMinHeaderLen/4, TCPFlagSYN|TCPFlagACK)

	segLen := tcpMinHeaderLen
	return finishIPv4(pkt, finishTCPSegLen(pkt, segLen))
}

// finishTCPSegLen recomputes the TCP checksum over segLen octets and
// returns segLen unchanged, so it can be chained into finishIPv4.
func finishTCPSegLen(pkt []byte, segLen int) int {
	recomputeTCPChecksum(pkt, segLen)
	return segLen
}

// telnetPayload is the fixed reply the TCP Mini-Handler echoes for any
// received Telnet data (spec.md §4.5, §8 scenario 5).
var telnetPayload = []byte("Hello")

// TelnetReplyLen is len(telnetPayload): the amount currentIsn advances
// by after each SendTelnetData call.
const TelnetReplyLen = 5

// SendTelnetData mutates pkt (a received PSH+ACK) in place into a
// PSH|ACK carrying telnetPayload, with seq = isn. Returns the frame
// length.
func SendTelnetData(pkt []byte, isn uint32, ack uint32) int {
	SwapEtherAddrs(pkt)
	SwapIPAddrs(pkt)

	off := tcpOffset(pkt)
	srcPort := binary.BigEndian.Uint16(pkt[off+tcpSrcPortOff:])
	dstPort := binary.BigEndian.Uint16(pkt[off+tcpDstPortOff:])
	binary.BigEndian.PutUint16(pkt[off+tcpSrcPortOff:], dstPort)
	binary.BigEndian.PutUint16(pkt[off+tcpDstPortOff:], srcPort)

	binary.BigEndian.PutUint32(pkt[off+tcpSeqOff:], isn)
	binary.BigEndian.PutUint32(pkt[off+tcpAckOff:], ack)
	setTCPHeaderLenFlags(pkt, tcpMinHeaderLen/4, TCPFlagPSH|TCPFlagACK)
	copy(pkt[off+tcpMinHeaderLen:], telnetPayload)

	segLen := tcpMinHeaderLen + len(telnetPayload)
	return finishIPv4(pkt, finishTCPSegLen(pkt, segLen))
}

// SendAckFinAck mutates pkt (a received FIN+ACK) into the first of the
// two replies the handler emits: a plain ACK with the FIN bit cleared,
// same seq/ack as the eventual FIN|ACK. Returns the frame length. The
// caller must call SendFinAck afterward with the same isn/ack to emit
// the second packet, per spec.md §4.5/§8 scenario 6 (the second
// packet, and only the second, carries FIN).
func SendAckFinAck(pkt []byte, isn uint32, ack uint32) int {
	SwapEtherAddrs(pkt)
	SwapIPAddrs(pkt)

	off := tcpOffset(pkt)
	srcPort := binary.BigEndian.Uint16(pkt[off+tcpSrcPortOff:])
	dstPort := binary.BigEndian.Uint16(pkt[off+tcpDstPortOff:])
	binary.BigEndian.PutUint16(pkt[off+tcpSrcPortOff:], dstPort)
	binary.BigEndian.PutUint16(pkt[off+tcpDstPortOff:], srcPort)

	binary.BigEndian.PutUint32(pkt[off+tcpSeqOff:], isn)
	binary.BigEndian.PutUint32(pkt[off+tcpAckOff:], ack)
	setTCPHeaderLenFlags(pkt, tcpMinHeaderLen/4, TCPFlagACK)

	segLen := tcpMinHeaderLen
	return finishIPv4(pkt, finishTCPSegLen(pkt, segLen))
}

// SendFinAck mutates pkt into the second of the two FIN+ACK-shutdown
// replies: FIN|ACK with the same seq/ack as SendAckFinAck.
func SendFinAck(pkt []byte, isn uint32, ack uint32) int {
	off := tcpOffset(pkt)
	binary.BigEndian.PutUint32(pkt[off+tcpSeqOff:], isn)
	binary.BigEndian.PutUint32(pkt[off+tcpAckOff:], ack)
	setTCPHeaderLenFlags(pkt, tcpMinHeaderLen/4, TCPFlagFIN|TCPFlagACK)

	segLen := tcpMinHeaderLen
	return finishIPv4(pkt, finishTCPSegLen(pkt, segLen))
}
