package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/checksum"
	"github.com/tm4cnet/netcore/internal/identity"
)

// DHCPv4 (BOOTP) header offsets, relative to the start of the UDP
// payload. RFC 2131.
const (
	dhcpOpOff      = 0
	dhcpHTypeOff   = 1
	dhcpHLenOff    = 2
	dhcpHopsOff    = 3
	dhcpXIDOff     = 4
	dhcpSecsOff    = 8
	dhcpFlagsOff   = 10
	dhcpCiaddrOff  = 12
	dhcpYiaddrOff  = 16
	dhcpSiaddrOff  = 20
	dhcpGiaddrOff  = 24
	dhcpChaddrOff  = 28
	dhcpMagicOff   = 236
	dhcpOptionsOff = 240
	dhcpFixedLen   = 240

	DHCPOpRequest byte = 1
	DHCPOpReply   byte = 2

	DHCPServerPort uint16 = 67
	DHCPClientPort uint16 = 68

	DHCPFlagBroadcast uint16 = 0x8000

	// DHCP message type codes (option 53), RFC 2131 §3. DISCOVER and
	// every REQUEST-shaped transmission (initial REQUEST, RENEW,
	// REBIND) share wire value 3 for the latter group; see
	// SPEC_FULL.md §4.4.
	DHCPMsgDiscover byte = 1
	DHCPMsgOffer    byte = 2
	DHCPMsgRequest  byte = 3
	DHCPMsgDecline  byte = 4
	DHCPMsgACK      byte = 5
	DHCPMsgNAK      byte = 6
	DHCPMsgRelease  byte = 7

	// DHCP option numbers used by this client (spec.md §6).
	OptSubnetMask   byte = 1
	OptRouter       byte = 3
	OptDNS          byte = 6
	OptRequestedIP  byte = 50
	OptLeaseTime    byte = 51
	OptMessageType  byte = 53
	OptServerID     byte = 54
	OptParamList    byte = 55
	OptClientID     byte = 61
	OptEnd          byte = 0xFF
)

var dhcpMagicCookie = [4]byte{99, 130, 83, 99}

func dhcpPayload(pkt []byte) []byte {
	return UDPData(pkt)
}

// GetOption scans a DHCP options area for [number][len][payload...]
// triples and returns the payload of the first match, or nil if none
// is found (spec.md §4.4, §8: put_option/get_option round trip).
func GetOption(options []byte, number byte) []byte {
	i := 0
	for i < len(options) {
		tag := options[i]
		if tag == OptEnd {
			return nil
		}
		if tag == 0 { // pad
			i++
			continue
		}
		if i+1 >= len(options) {
			return nil
		}
		length := int(options[i+1])
		if i+2+length > len(options) {
			return nil
		}
		payload := options[i+2 : i+2+length]
		if tag == number {
			return payload
		}
		i += 2 + length
	}
	return nil
}

// PutOption appends [number][len(values)][values...] at options[cursor:]
// and returns the advanced cursor (spec.md §4.4).
func PutOption(options []byte, cursor int, number byte, values ...byte) int {
	options[cursor] = number
	options[cursor+1] = byte(len(values))
	copy(options[cursor+2:], values)
	return cursor + 2 + len(values)
}

// dhcpOptionMatches reports whether the options area contains an
// option of the given number whose payload equals want, matching
// every byte (SPEC_FULL.md §4.3 item 1 / §4.4: corrected all-bytes
// semantics, not a reassigned-per-iteration flag).
func dhcpOptionMatches(options []byte, number byte, want []byte) bool {
	got := GetOption(options, number)
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func dhcpOptionsArea(pkt []byte) []byte {
	payload := dhcpPayload(pkt)
	if len(payload) <= dhcpOptionsOff {
		return nil
	}
	return payload[dhcpOptionsOff:]
}

func dhcpMessageType(pkt []byte) (byte, bool) {
	opts := dhcpOptionsArea(pkt)
	if opts == nil {
		return 0, false
	}
	v := GetOption(opts, OptMessageType)
	if len(v) != 1 {
		return 0, false
	}
	return v[0], true
}

// IsDHCPOffer reports whether pkt is a DHCP OFFER (option 53=2)
// addressed (via chaddr) to our MAC, with the reply op code and the
// matching transaction id.
func IsDHCPOffer(pkt []byte, n int, xid uint32, myMAC identity.MAC) bool {
	return isDHCPReplyOfType(pkt, n, xid, myMAC, DHCPMsgOffer)
}

// IsDHCPAck reports whether pkt is a DHCP ACK (option 53=5) addressed
// to our MAC with the matching transaction id.
func IsDHCPAck(pkt []byte, n int, xid uint32, myMAC identity.MAC) bool {
	return isDHCPReplyOfType(pkt, n, xid, myMAC, DHCPMsgACK)
}

// IsDHCPNak reports whether pkt is a DHCP NAK (option 53=6) addressed
// to our MAC with the matching transaction id.
func IsDHCPNak(pkt []byte, n int, xid uint32, myMAC identity.MAC) bool {
	return isDHCPReplyOfType(pkt, n, xid, myMAC, DHCPMsgNAK)
}

func isDHCPReplyOfType(pkt []byte, n int, xid uint32, myMAC identity.MAC, want byte) bool {
	if !IsUDP(pkt, n) {
		return false
	}
	payload := dhcpPayload(pkt)
	if len(payload) < dhcpFixedLen {
		return false
	}
	if payload[dhcpOpOff] != DHCPOpReply {
		return false
	}
	if binary.BigEndian.Uint32(payload[dhcpXIDOff:]) != xid {
		return false
	}
	var chaddr identity.MAC
	copy(chaddr[:], payload[dhcpChaddrOff:dhcpChaddrOff+6])
	if !macEqual(chaddr, myMAC) {
		return false
	}
	mt, ok := dhcpMessageType(pkt)
	return ok && mt == want
}

// DHCPYiaddr returns the "your IP address" field offered by a reply.
func DHCPYiaddr(pkt []byte) identity.IPv4 {
	payload := dhcpPayload(pkt)
	var a identity.IPv4
	copy(a[:], payload[dhcpYiaddrOff:dhcpYiaddrOff+4])
	return a
}

// DHCPOption looks up option number in the reply's options area.
func DHCPOption(pkt []byte, number byte) []byte {
	return GetOption(dhcpOptionsArea(pkt), number)
}

// DHCPLeaseSeconds returns option 51 (IP address lease time) as a
// 32-bit big-endian value, or 0 if absent.
func DHCPLeaseSeconds(pkt []byte) uint32 {
	v := DHCPOption(pkt, OptLeaseTime)
	if len(v) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(v)
}

// DHCPOptionIPv4 decodes a 4-byte option payload as an IPv4 address.
func DHCPOptionIPv4(pkt []byte, number byte) (identity.IPv4, bool) {
	v := DHCPOption(pkt, number)
	if len(v) != 4 {
		return identity.IPv4{}, false
	}
	var a identity.IPv4
	copy(a[:], v)
	return a, true
}

// DHCPRequestParams carries the fields SendDHCPPacket needs to build
// any outgoing DISCOVER/REQUEST/DECLINE/RELEASE message.
type DHCPRequestParams struct {
	MsgType     byte
	XID         uint32
	Broadcast   bool
	Ciaddr      identity.IPv4
	RequestedIP identity.IPv4 // option 50, REQUEST-shaped only
	LeaseTime   uint32        // option 51 echoed, REQUEST-shaped only
	ServerID    identity.IPv4 // option 54 echoed, REQUEST-shaped only
	HaveServer  bool
}

// SendDHCPPacket builds, in place, an Ethernet+IP+UDP+DHCP frame of
// the given message type, addressed per dst/dstMAC, with option 53,
// 55 {1,2,3,6,51}, 61 (client-id = 01 + MAC) always present, and for
// REQUEST-shaped messages (option 53 = DHCPMsgRequest) additionally
// option 50/51/54 when the corresponding params fields are populated.
// Terminates the option list with 0xFF. Returns the frame length.
func SendDHCPPacket(pkt []byte, myMAC identity.MAC, dstMAC identity.MAC, srcIP identity.IPv4, dstIP identity.IPv4, p DHCPRequestParams) int {
	SetEtherDst(pkt, dstMAC)
	SetEtherSrc(pkt, myMAC)
	SetEtherType(pkt, EtherTypeIPv4)

	pkt[ipVerIHLOff] = 0x45
	pkt[ipVerIHLOff+1] = 0
	binary.BigEndian.PutUint16(pkt[ipIDOff:], 0)
	binary.BigEndian.PutUint16(pkt[ipIDOff+2:], 0)
	pkt[ipTTLOff] = 64
	pkt[ipProtocolOff] = ProtoUDP
	SetIPSrc(pkt, srcIP)
	SetIPDst(pkt, dstIP)

	udpOff := EtherHdrLen + ipMinHeaderLen
	binary.BigEndian.PutUint16(pkt[udpOff+udpSrcPortOff:], DHCPClientPort)
	binary.BigEndian.PutUint16(pkt[udpOff+udpDstPortOff:], DHCPServerPort)

	dhcpOff := udpOff + udpHeaderLen
	for i := 0; i < dhcpFixedLen; i++ {
		pkt[dhcpOff+i] = 0
	}
	pkt[dhcpOff+dhcpOpOff] = DHCPOpRequest
	pkt[dhcpOff+dhcpHTypeOff] = 1
	pkt[dhcpOff+dhcpHLenOff] = 6
	binary.BigEndian.PutUint32(pkt[dhcpOff+dhcpXIDOff:], p.XID)
	if p.Broadcast {
		binary.BigEndian.PutUint16(pkt[dhcpOff+dhcpFlagsOff:], DHCPFlagBroadcast)
	}
	copy(pkt[dhcpOff+dhcpCiaddrOff:], p.Ciaddr[:])
	copy(pkt[dhcpOff+dhcpChaddrOff:], myMAC[:])
	copy(pkt[dhcpOff+dhcpMagicOff:], dhcpMagicCookie[:])

	options := pkt[dhcpOff+dhcpOptionsOff:]
	cur := 0
	cur = PutOption(options, cur, OptMessageType, p.MsgType)
	cur = PutOption(options, cur, OptParamList, OptSubnetMask, 2, OptRouter, OptDNS, OptLeaseTime)
	clientID := append([]byte{1}, myMAC[:]...)
	cur = PutOption(options, cur, OptClientID, clientID...)
	if p.MsgType == DHCPMsgRequest {
		if p.RequestedIP != (identity.IPv4{}) {
			cur = PutOption(options, cur, OptRequestedIP, p.RequestedIP[:]...)
		}
		if p.LeaseTime != 0 {
			var lt [4]byte
			binary.BigEndian.PutUint32(lt[:], p.LeaseTime)
			cur = PutOption(options, cur, OptLeaseTime, lt[:]...)
		}
		if p.HaveServer {
			cur = PutOption(options, cur, OptServerID, p.ServerID[:]...)
		}
	}
	options[cur] = OptEnd
	cur++

	dhcpLen := dhcpFixedLen + cur
	udpLen := uint16(udpHeaderLen + dhcpLen)
	binary.BigEndian.PutUint16(pkt[udpOff+udpLengthOff:], udpLen)
	binary.BigEndian.PutUint16(pkt[udpOff+udpChecksumOff:], 0)

	ipTotalLen := uint16(ipMinHeaderLen) + udpLen
	binary.BigEndian.PutUint16(pkt[ipTotalLenOff:], ipTotalLen)
	RecomputeIPChecksum(pkt)

	var e checksum.Engine
	pseudoHeaderSum(&e, pkt, ProtoUDP, udpLen)
	e.SumWords(pkt[udpOff:udpOff+int(udpLen)], int(udpLen))
	binary.BigEndian.PutUint16(pkt[udpOff+udpChecksumOff:], e.Fold())

	return EtherHdrLen + int(ipTotalLen)
}
