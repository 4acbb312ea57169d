package wire

import (
	"encoding/binary"

	"github.com/tm4cnet/netcore/internal/identity"
)

// ARP header offsets, relative to the start of the frame. RFC 826.
const (
	arpHWTypeOff    = EtherHdrLen + 0
	arpProtoTypeOff = EtherHdrLen + 2
	arpHWSizeOff    = EtherHdrLen + 4
	arpProtoSizeOff = EtherHdrLen + 5
	arpOpcodeOff    = EtherHdrLen + 6
	arpSenderMACOff = EtherHdrLen + 8
	arpSenderIPOff  = EtherHdrLen + 14
	arpTargetMACOff = EtherHdrLen + 18
	arpTargetIPOff  = EtherHdrLen + 24

	// ARPFrameLen is the fixed 42-octet length of an Ethernet+ARP frame
	// (14 Ethernet + 28 ARP), per spec.md §8 scenario 1.
	ARPFrameLen = EtherHdrLen + 28

	arpHWTypeEthernet uint16 = 1
	arpHWSizeEthernet        = 6
	arpProtoSizeIPv4         = 4

	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
)

func arpOpcode(pkt []byte) uint16     { return binary.BigEndian.Uint16(pkt[arpOpcodeOff:]) }
func arpSenderMAC(pkt []byte) identity.MAC {
	var m identity.MAC
	copy(m[:], pkt[arpSenderMACOff:arpSenderMACOff+6])
	return m
}
func arpSenderIP(pkt []byte) identity.IPv4 {
	var a identity.IPv4
	copy(a[:], pkt[arpSenderIPOff:arpSenderIPOff+4])
	return a
}
func arpTargetMAC(pkt []byte) identity.MAC {
	var m identity.MAC
	copy(m[:], pkt[arpTargetMACOff:arpTargetMACOff+6])
	return m
}
func arpTargetIP(pkt []byte) identity.IPv4 {
	var a identity.IPv4
	copy(a[:], pkt[arpTargetIPOff:arpTargetIPOff+4])
	return a
}

// IsARPRequest reports whether pkt is a well-formed ARP request
// (op=1) targeting the given IP: hardware type 1, protocol type
// 0x0800, hardware size 6, protocol size 4, as required by RFC 826 and
// spec.md §4.3.
func IsARPRequest(pkt []byte, n int, myIP identity.IPv4) bool {
	if n < ARPFrameLen {
		return false
	}
	if EtherType(pkt) != EtherTypeARP {
		return false
	}
	if binary.BigEndian.Uint16(pkt[arpHWTypeOff:]) != arpHWTypeEthernet {
		return false
	}
	if binary.BigEndian.Uint16(pkt[arpProtoTypeOff:]) != EtherTypeIPv4 {
		return false
	}
	if pkt[arpHWSizeOff] != arpHWSizeEthernet || pkt[arpProtoSizeOff] != arpProtoSizeIPv4 {
		return false
	}
	if arpOpcode(pkt) != ARPOpRequest {
		return false
	}
	return ipEqual(arpTargetIP(pkt), myIP)
}

// IsGratuitousARPReplyFor reports whether pkt is an ARP reply (op=2)
// whose sender IP equals target, the collision-detection response to
// a gratuitous ARP probe for target (SPEC_FULL.md §4.4, resolving the
// original's permanently-stubbed isArpResponse).
func IsGratuitousARPReplyFor(pkt []byte, n int, target identity.IPv4) bool {
	if n < ARPFrameLen || EtherType(pkt) != EtherTypeARP {
		return false
	}
	if arpOpcode(pkt) != ARPOpReply {
		return false
	}
	return ipEqual(arpSenderIP(pkt), target)
}

func buildARPHeader(pkt []byte, op uint16) {
	SetEtherType(pkt, EtherTypeARP)
	binary.BigEndian.PutUint16(pkt[arpHWTypeOff:], arpHWTypeEthernet)
	binary.BigEndian.PutUint16(pkt[arpProtoTypeOff:], EtherTypeIPv4)
	pkt[arpHWSizeOff] = arpHWSizeEthernet
	pkt[arpProtoSizeOff] = arpProtoSizeIPv4
	binary.BigEndian.PutUint16(pkt[arpOpcodeOff:], op)
}

// SendARPResponse builds, in place, a 42-octet ARP reply (op=2) to the
// request in pkt: sender = our MAC/IP, target = the original sender's
// MAC/IP. Returns the frame length.
func SendARPResponse(pkt []byte, myMAC identity.MAC, myIP identity.IPv4) int {
	reqSenderMAC := arpSenderMAC(pkt)
	reqSenderIP := arpSenderIP(pkt)

	SetEtherDst(pkt, reqSenderMAC)
	SetEtherSrc(pkt, myMAC)
	buildARPHeader(pkt, ARPOpReply)

	copy(pkt[arpSenderMACOff:], myMAC[:])
	copy(pkt[arpSenderIPOff:], myIP[:])
	copy(pkt[arpTargetMACOff:], reqSenderMAC[:])
	copy(pkt[arpTargetIPOff:], reqSenderIP[:])

	return ARPFrameLen
}

// SendARPRequest builds, in place, an ARP request ("who-has target")
// broadcast from myMAC/myIP.
func SendARPRequest(pkt []byte, myMAC identity.MAC, myIP identity.IPv4, target identity.IPv4) int {
	SetEtherDst(pkt, BroadcastMAC)
	SetEtherSrc(pkt, myMAC)
	buildARPHeader(pkt, ARPOpRequest)

	copy(pkt[arpSenderMACOff:], myMAC[:])
	copy(pkt[arpSenderIPOff:], myIP[:])
	var zeroMAC identity.MAC
	copy(pkt[arpTargetMACOff:], zeroMAC[:])
	copy(pkt[arpTargetIPOff:], target[:])

	return ARPFrameLen
}

// SendGratuitousARP builds, in place, a gratuitous ARP: an op-1
// request broadcast to FF:FF:FF:FF:FF:FF whose sender IP equals its
// target IP (the glossary's definition), used to probe for address
// collisions after a DHCP ACK.
func SendGratuitousARP(pkt []byte, myMAC identity.MAC, myIP identity.IPv4) int {
	return SendARPRequest(pkt, myMAC, myIP, myIP)
}
