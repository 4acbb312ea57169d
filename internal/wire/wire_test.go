package wire

import (
	"encoding/binary"
	"testing"

	"github.com/tm4cnet/netcore/internal/identity"
)

var (
	testMyMAC  = identity.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	testMyIP   = identity.IPv4{192, 168, 1, 10}
	testPeerMAC = identity.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	testPeerIP  = identity.IPv4{192, 168, 1, 20}
)

func buildIPv4Frame(buf []byte, protocol byte, src, dst identity.IPv4, payloadLen int) int {
	SetEtherDst(buf, testMyMAC)
	SetEtherSrc(buf, testPeerMAC)
	SetEtherType(buf, EtherTypeIPv4)

	buf[ipVerIHLOff] = 0x45
	buf[ipVerIHLOff+1] = 0
	binary.BigEndian.PutUint16(buf[ipTotalLenOff:], uint16(ipMinHeaderLen+payloadLen))
	binary.BigEndian.PutUint16(buf[ipIDOff:], 0x1234)
	buf[ipTTLOff] = 64
	buf[ipProtocolOff] = protocol
	SetIPSrc(buf, src)
	SetIPDst(buf, dst)
	RecomputeIPChecksum(buf)

	return EtherHdrLen + ipMinHeaderLen + payloadLen
}

// scenario 1: a well-formed ARP request targeting our IP yields a
// 42-octet reply with sender/target swapped.
func TestARPRequestResponse(t *testing.T) {
	pkt := make([]byte, MaxPacketSize)
	SetEtherDst(pkt, BroadcastMAC)
	SetEtherSrc(pkt, testPeerMAC)
	buildARPHeader(pkt, ARPOpRequest)
	copy(pkt[arpSenderMACOff:], testPeerMAC[:])
	copy(pkt[arpSenderIPOff:], testPeerIP[:])
	copy(pkt[arpTargetIPOff:], testMyIP[:])
	n := ARPFrameLen

	if !IsARPRequest(pkt, n, testMyIP) {
		t.Fatal("expected IsARPRequest to match")
	}

	replyLen := SendARPResponse(pkt, testMyMAC, testMyIP)
	if replyLen != ARPFrameLen {
		t.Fatalf("reply length = %d, want %d", replyLen, ARPFrameLen)
	}
	if EtherDst(pkt) != testPeerMAC {
		t.Fatalf("reply ether dst = %v, want %v", EtherDst(pkt), testPeerMAC)
	}
	if arpOpcode(pkt) != ARPOpReply {
		t.Fatalf("reply opcode = %d, want %d", arpOpcode(pkt), ARPOpReply)
	}
	if arpSenderIP(pkt) != testMyIP || arpTargetIP(pkt) != testPeerIP {
		t.Fatal("reply sender/target IP not swapped correctly")
	}
}

func TestGratuitousARPReplyDetection(t *testing.T) {
	pkt := make([]byte, MaxPacketSize)
	buildARPHeader(pkt, ARPOpReply)
	copy(pkt[arpSenderIPOff:], testMyIP[:])
	copy(pkt[arpTargetIPOff:], testMyIP[:])

	if !IsGratuitousARPReplyFor(pkt, ARPFrameLen, testMyIP) {
		t.Fatal("expected gratuitous ARP reply to be detected")
	}
	if IsGratuitousARPReplyFor(pkt, ARPFrameLen, testPeerIP) {
		t.Fatal("must not match a different target")
	}
}

// scenario 2: an ICMP echo request addressed to us yields an echo
// reply preserving identifier, sequence, and payload, with IP total
// length unchanged and the IP header checksum folding to zero.
func TestICMPEchoRoundTrip(t *testing.T) {
	payload := []byte("abcdefgh")
	icmpLen := icmpHeaderLen + len(payload)
	pkt := make([]byte, MaxPacketSize)
	n := buildIPv4Frame(pkt, ProtoICMP, testPeerIP, testMyIP, icmpLen)

	off := icmpOffset(pkt)
	pkt[off+icmpTypeOff] = ICMPTypeEchoRequest
	pkt[off+icmpCodeOff] = 0
	binary.BigEndian.PutUint16(pkt[off+icmpIDOff:], 0x55aa)
	binary.BigEndian.PutUint16(pkt[off+icmpSeqOff:], 7)
	copy(pkt[off+icmpHeaderLen:], payload)
	binary.BigEndian.PutUint16(pkt[off+icmpChecksumOff:], 0)

	if !IsPingRequest(pkt, n) {
		t.Fatal("expected IsPingRequest to match")
	}

	replyLen := SendPingResponse(pkt)
	if replyLen != n {
		t.Fatalf("reply length = %d, want %d (IP total length must be preserved)", replyLen, n)
	}
	if pkt[off+icmpTypeOff] != ICMPTypeEchoReply {
		t.Fatalf("reply type = %d, want %d", pkt[off+icmpTypeOff], ICMPTypeEchoReply)
	}
	if !IsIP(pkt, replyLen) {
		t.Fatal("reply IP checksum did not fold to zero")
	}
	if binary.BigEndian.Uint16(pkt[off+icmpIDOff:]) != 0x55aa {
		t.Fatal("echo identifier not preserved")
	}
	if binary.BigEndian.Uint16(pkt[off+icmpSeqOff:]) != 7 {
		t.Fatal("echo sequence not preserved")
	}
	if string(pkt[off+icmpHeaderLen:off+icmpLen]) != string(payload) {
		t.Fatal("echo payload not preserved")
	}
}

// scenario 4: a UDP datagram to our IP yields a reply to the same port
// pair carrying the given payload, recomputed checksum folding to zero.
func TestUDPEchoResponse(t *testing.T) {
	payload := []byte("ping")
	udpLen := udpHeaderLen + len(payload)
	pkt := make([]byte, MaxPacketSize)
	n := buildIPv4Frame(pkt, ProtoUDP, testPeerIP, testMyIP, udpLen)

	off := udpOffset(pkt)
	binary.BigEndian.PutUint16(pkt[off+udpSrcPortOff:], 9999)
	binary.BigEndian.PutUint16(pkt[off+udpDstPortOff:], 7)
	binary.BigEndian.PutUint16(pkt[off+udpLengthOff:], uint16(udpLen))
	copy(pkt[off+udpHeaderLen:], payload)

	if !IsUDP(pkt, n) {
		t.Fatal("expected IsUDP to match")
	}

	reply := []byte("pong!!")
	replyLen := SendUDPResponse(pkt, reply)
	if !IsIP(pkt, replyLen) {
		t.Fatal("reply IP checksum did not fold to zero")
	}
	off = udpOffset(pkt)
	if binary.BigEndian.Uint16(pkt[off+udpSrcPortOff:]) != 7 {
		t.Fatal("reply source port should be the original destination port")
	}
	if binary.BigEndian.Uint16(pkt[off+udpDstPortOff:]) != 9999 {
		t.Fatal("reply destination port should be the original source port")
	}
	if string(UDPData(pkt)) != string(reply) {
		t.Fatal("reply payload mismatch")
	}
}

// scenario 5 and the §8 shutdown property: SYN -> SYN|ACK, PSH|ACK -> PSH|ACK echo, FIN|ACK -> two
// replies where only the second carries FIN.
func TestTCPHandshakeDataAndShutdown(t *testing.T) {
	const isn = 0x1000

	syn := make([]byte, MaxPacketSize)
	n := buildIPv4Frame(syn, ProtoTCP, testPeerIP, testMyIP, tcpMinHeaderLen)
	off := tcpOffset(syn)
	binary.BigEndian.PutUint16(syn[off+tcpSrcPortOff:], 5000)
	binary.BigEndian.PutUint16(syn[off+tcpDstPortOff:], 23)
	binary.BigEndian.PutUint32(syn[off+tcpSeqOff:], 500)
	setTCPHeaderLenFlags(syn, tcpMinHeaderLen/4, TCPFlagSYN)

	if !IsTCP(syn, n) || !IsTCPSyn(syn) {
		t.Fatal("expected a SYN segment")
	}
	synAckLen := SendTCPSynAck(syn, isn)
	if TCPFlags(syn) != TCPFlagSYN|TCPFlagACK {
		t.Fatalf("flags = %02x, want SYN|ACK", TCPFlags(syn))
	}
	if TCPSeq(syn) != isn || TCPAck(syn) != 501 {
		t.Fatalf("seq/ack = %d/%d, want %d/501", TCPSeq(syn), TCPAck(syn), isn)
	}
	if !IsIP(syn, synAckLen) {
		t.Fatal("SYN|ACK IP checksum did not fold to zero")
	}

	data := make([]byte, MaxPacketSize)
	payload := []byte("hi")
	n = buildIPv4Frame(data, ProtoTCP, testPeerIP, testMyIP, tcpMinHeaderLen+len(payload))
	off = tcpOffset(data)
	binary.BigEndian.PutUint32(data[off+tcpSeqOff:], 501)
	binary.BigEndian.PutUint32(data[off+tcpAckOff:], isn+1)
	setTCPHeaderLenFlags(data, tcpMinHeaderLen/4, TCPFlagPSH|TCPFlagACK)
	copy(data[off+tcpMinHeaderLen:], payload)

	if !IsTelnetData(data, n) {
		t.Fatal("expected telnet data segment")
	}
	dataReplyLen := SendTelnetData(data, isn+1, 503)
	if string(TCPData(data)) != string(telnetPayload) {
		t.Fatal("telnet reply payload mismatch")
	}
	if !IsIP(data, dataReplyLen) {
		t.Fatal("telnet reply IP checksum did not fold to zero")
	}

	fin := make([]byte, MaxPacketSize)
	n = buildIPv4Frame(fin, ProtoTCP, testPeerIP, testMyIP, tcpMinHeaderLen)
	off = tcpOffset(fin)
	binary.BigEndian.PutUint32(fin[off+tcpSeqOff:], 600)
	binary.BigEndian.PutUint32(fin[off+tcpAckOff:], isn+10)
	setTCPHeaderLenFlags(fin, tcpMinHeaderLen/4, TCPFlagFIN|TCPFlagACK)

	if !IsTCPFinAck(fin) {
		t.Fatal("expected a FIN|ACK segment")
	}
	ackLen := SendAckFinAck(fin, isn+10, 601)
	if TCPFlags(fin)&TCPFlagFIN != 0 {
		t.Fatal("first reply must not carry FIN")
	}
	if !IsIP(fin, ackLen) {
		t.Fatal("first FIN-shutdown reply IP checksum did not fold to zero")
	}

	finAckLen := SendFinAck(fin, isn+10, 601)
	if TCPFlags(fin) != TCPFlagFIN|TCPFlagACK {
		t.Fatalf("second reply flags = %02x, want FIN|ACK", TCPFlags(fin))
	}
	if !IsIP(fin, finAckLen) {
		t.Fatal("second FIN-shutdown reply IP checksum did not fold to zero")
	}
}

// put_option/get_option round trip (spec.md §8).
func TestDHCPOptionRoundTrip(t *testing.T) {
	options := make([]byte, 64)
	cur := 0
	cur = PutOption(options, cur, OptMessageType, DHCPMsgDiscover)
	cur = PutOption(options, cur, OptParamList, OptSubnetMask, OptRouter, OptDNS, OptLeaseTime)
	cur = PutOption(options, cur, OptClientID, append([]byte{1}, testMyMAC[:]...)...)
	options[cur] = OptEnd

	mt := GetOption(options, OptMessageType)
	if len(mt) != 1 || mt[0] != DHCPMsgDiscover {
		t.Fatalf("message type option = %v, want [%d]", mt, DHCPMsgDiscover)
	}
	params := GetOption(options, OptParamList)
	if len(params) != 4 || params[0] != OptSubnetMask {
		t.Fatalf("param list option = %v", params)
	}
	if GetOption(options, OptServerID) != nil {
		t.Fatal("absent option must return nil")
	}
}

func TestDHCPBuildAndClassify(t *testing.T) {
	pkt := make([]byte, MaxPacketSize)
	const xid = 0xCAFEBABE
	n := SendDHCPPacket(pkt, testMyMAC, BroadcastMAC, identity.IPv4{}, BroadcastIP, DHCPRequestParams{
		MsgType:   DHCPMsgDiscover,
		XID:       xid,
		Broadcast: true,
	})
	if !IsUDP(pkt, n) {
		t.Fatal("built DHCP packet must be UDP")
	}
	if UDPDstPort(pkt) != DHCPServerPort {
		t.Fatalf("dst port = %d, want %d", UDPDstPort(pkt), DHCPServerPort)
	}
	mt, ok := dhcpMessageType(pkt)
	if !ok || mt != DHCPMsgDiscover {
		t.Fatalf("message type = %d, ok=%v, want %d", mt, ok, DHCPMsgDiscover)
	}

	// Build a fabricated OFFER reply addressed back to us and confirm
	// classification matches on op, xid, and chaddr.
	offer := make([]byte, MaxPacketSize)
	on := buildIPv4Frame(offer, ProtoUDP, testPeerIP, BroadcastIP, udpHeaderLen+dhcpFixedLen+8)
	off := udpOffset(offer)
	binary.BigEndian.PutUint16(offer[off+udpSrcPortOff:], DHCPServerPort)
	binary.BigEndian.PutUint16(offer[off+udpDstPortOff:], DHCPClientPort)
	binary.BigEndian.PutUint16(offer[off+udpLengthOff:], uint16(udpHeaderLen+dhcpFixedLen+8))
	dOff := off + udpHeaderLen
	offer[dOff+dhcpOpOff] = DHCPOpReply
	binary.BigEndian.PutUint32(offer[dOff+dhcpXIDOff:], xid)
	copy(offer[dOff+dhcpChaddrOff:], testMyMAC[:])
	copy(offer[dOff+dhcpYiaddrOff:], testMyIP[:])
	copy(offer[dOff+dhcpMagicOff:], dhcpMagicCookie[:])
	opts := offer[dOff+dhcpOptionsOff:]
	c := PutOption(opts, 0, OptMessageType, DHCPMsgOffer)
	opts[c] = OptEnd

	if !IsDHCPOffer(offer, on, xid, testMyMAC) {
		t.Fatal("expected OFFER to classify")
	}
	if IsDHCPAck(offer, on, xid, testMyMAC) {
		t.Fatal("OFFER must not classify as ACK")
	}
	if DHCPYiaddr(offer) != testMyIP {
		t.Fatalf("yiaddr = %v, want %v", DHCPYiaddr(offer), testMyIP)
	}
}
