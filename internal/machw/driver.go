// Package machw implements the MAC/PHY Driver: it sequences
// internal/machw/transport.Transport calls to bring an ENC28J60-class
// controller up, report link/overflow state, and move whole Ethernet
// frames in and out of its RX ring and TX staging area. It never talks
// to a bus directly; all bit-banging lives behind Transport.
package machw

import "github.com/tm4cnet/netcore/internal/machw/transport"

// Mode flags for Init, matching the controller's receive-filter mask
// bits plus a duplex selector (original_source/eth0.h).
const (
	FilterUnicast      uint16 = 0x80
	FilterBroadcast    uint16 = 0x01
	FilterMulticast    uint16 = 0x02
	FilterHashtable    uint16 = 0x04
	FilterMagicPacket  uint16 = 0x08
	FilterPatternMatch uint16 = 0x10
	filterCheckCRC     uint16 = 0x20

	DuplexHalf uint16 = 0x000
	DuplexFull uint16 = 0x100
)

// Register addresses (original_source/eth0.c).
const (
	regERDPTL   = 0x00
	regERDPTH   = 0x01
	regEWRPTL   = 0x02
	regEWRPTH   = 0x03
	regETXSTL   = 0x04
	regETXSTH   = 0x05
	regETXNDL   = 0x06
	regETXNDH   = 0x07
	regERXSTL   = 0x08
	regERXSTH   = 0x09
	regERXNDL   = 0x0A
	regERXNDH   = 0x0B
	regERXRDPTL = 0x0C
	regERXRDPTH = 0x0D
	regERXWRPTL = 0x0E
	regERXWRPTH = 0x0F
	regEIR      = 0x1C
	bitRXERIF   = 0x01
	bitTXERIF   = 0x02
	bitTXIF     = 0x08
	bitPKTIF    = 0x40
	regESTAT    = 0x1D
	bitCLKRDY   = 0x01
	bitTXABORT  = 0x02
	regECON2    = 0x1E
	bitPKTDEC   = 0x40
	regECON1    = 0x1F
	bitRXEN     = 0x04
	bitTXRTS    = 0x08
	regERXFCON  = 0x38
	regMACON1   = 0x40
	bitTXPAUS   = 0x08
	bitRXPAUS   = 0x04
	bitMARXEN   = 0x01
	regMACON2   = 0x41
	regMACON3   = 0x42
	bitFULDPX   = 0x01
	bitFRMLNEN  = 0x02
	bitTXCRCEN  = 0x10
	bitPAD60    = 0x20
	regMABBIPG  = 0x44
	regMAIPGL   = 0x46
	regMAIPGH   = 0x47
	regMAMXFLL  = 0x4A
	regMAMXFLH  = 0x4B
	regMAADR0   = 0x61
	regMAADR1   = 0x60
	regMAADR2   = 0x63
	regMAADR3   = 0x62
	regMAADR4   = 0x65
	regMAADR5   = 0x64

	phyPHCON1  = 0x00
	bitPDPXMD  = 0x0100
	phyPHSTAT1 = 0x01
	bitLSTAT   = 0x0400
	phyPHCON2  = 0x10
	bitHDLDIS  = 0x0100
	phyPHLCON  = 0x14
)

// On-chip buffer layout (spec.md §6): RX ring [0x0000, 0x1A09], TX
// staging [0x1A0A, 0x1FFF].
const (
	rxStart  = 0x0000
	rxEnd    = 0x1A09
	txStart  = 0x1A0A
	maxFrame = 1518
)

// Driver is the MAC/PHY boundary: it owns no packet state of its own
// beyond the RX ring bookkeeping bytes carried between GetPacket calls,
// and sequences a Transport to do everything else.
type Driver struct {
	t   transport.Transport
	mac [6]byte

	nextPacketLo, nextPacketHi byte
}

// New returns a Driver bound to t, addressed as mac once Init runs.
func New(t transport.Transport, mac [6]byte) *Driver {
	return &Driver{t: t, mac: mac}
}

// Init brings the controller up: clocks, RX/TX pointers, receive
// filter, MAC/PHY configuration, and enables reception. mode combines
// one or more Filter* bits with a Duplex* bit (original_source/eth0.c's
// etherInit). It spins on the oscillator-ready bit and on the
// transmit-request bit elsewhere, but never past a bounded number of
// polls — a dead bus reports itself as link-down, not a hang.
func (d *Driver) Init(mode uint16) {
	t := d.t

	t.ClearReg(regECON1, bitRXEN)
	t.ClearReg(regECON1, bitTXRTS)

	for i := 0; i < spinLimit && t.ReadReg(regESTAT)&bitCLKRDY == 0; i++ {
	}

	t.SetBank(regERXSTL)
	t.WriteReg(regERXSTL, lobyte(rxStart))
	t.WriteReg(regERXSTH, hibyte(rxStart))
	t.WriteReg(regERXNDL, lobyte(rxEnd))
	t.WriteReg(regERXNDH, hibyte(rxEnd))

	t.WriteReg(regERXWRPTL, lobyte(rxStart))
	t.WriteReg(regERXWRPTH, hibyte(rxStart))
	t.WriteReg(regERXRDPTL, lobyte(rxEnd))
	t.WriteReg(regERXRDPTH, hibyte(rxEnd))
	t.WriteReg(regERDPTL, lobyte(rxStart))
	t.WriteReg(regERDPTH, hibyte(rxStart))

	t.SetBank(regERXFCON)
	t.WriteReg(regERXFCON, byte((mode|filterCheckCRC)&0xFF))

	t.SetBank(regMACON2)
	t.WriteReg(regMACON2, 0)

	t.WriteReg(regMACON1, bitTXPAUS|bitRXPAUS|bitMARXEN)

	if mode&DuplexFull != 0 {
		t.WriteReg(regMACON3, bitFULDPX|bitFRMLNEN|bitTXCRCEN|bitPAD60)
	} else {
		t.WriteReg(regMACON3, bitFRMLNEN|bitTXCRCEN|bitPAD60)
	}

	t.WriteReg(regMAMXFLL, lobyte(maxFrame))
	t.WriteReg(regMAMXFLH, hibyte(maxFrame))

	if mode&DuplexFull != 0 {
		t.WriteReg(regMABBIPG, 0x15)
	} else {
		t.WriteReg(regMABBIPG, 0x12)
	}
	t.WriteReg(regMAIPGL, 0x12)
	t.WriteReg(regMAIPGH, 0x0C)

	t.SetBank(regMAADR0)
	t.WriteReg(regMAADR5, d.mac[0])
	t.WriteReg(regMAADR4, d.mac[1])
	t.WriteReg(regMAADR3, d.mac[2])
	t.WriteReg(regMAADR2, d.mac[3])
	t.WriteReg(regMAADR1, d.mac[4])
	t.WriteReg(regMAADR0, d.mac[5])

	if mode&DuplexFull != 0 {
		t.WritePhy(phyPHCON1, bitPDPXMD)
	} else {
		t.WritePhy(phyPHCON1, 0)
	}
	t.WritePhy(phyPHCON2, bitHDLDIS)
	t.WritePhy(phyPHLCON, 0x0472)

	t.SetReg(regECON1, bitRXEN)
}

// spinLimit bounds every busy-wait against a simulated or real bus that
// never reports ready — the original firmware has nothing else to do
// while it waits; this driver must not block its caller forever.
const spinLimit = 10000

// LinkUp reports the PHY's link-status latch.
func (d *Driver) LinkUp() bool {
	return d.t.ReadPhy(phyPHSTAT1)&bitLSTAT != 0
}

// DataAvailable reports whether a received frame is waiting in the ring.
func (d *Driver) DataAvailable() bool {
	return d.t.ReadReg(regEIR)&bitPKTIF != 0
}

// Overflow reports (and clears) the receive-buffer-overflow latch.
func (d *Driver) Overflow() bool {
	err := d.t.ReadReg(regEIR)&bitRXERIF != 0
	if err {
		d.t.ClearReg(regEIR, bitRXERIF)
	}
	return err
}

// GetPacket dequeues the head-of-ring frame into buf, truncating to
// len(buf) if the frame is larger, and returns the number of octets
// copied into buf (at most len(buf)). It always advances the
// ring and packet counter, even on truncation.
func (d *Driver) GetPacket(buf []byte) int {
	t := d.t
	t.ReadMemStart()

	d.nextPacketLo = t.ReadMem()
	d.nextPacketHi = t.ReadMem()

	sizeLo := uint16(t.ReadMem())
	sizeHi := uint16(t.ReadMem())
	size := sizeLo | sizeHi<<8

	t.ReadMem() // status word low (unused)
	t.ReadMem() // status word high (unused)

	n := int(size)
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = t.ReadMem()
	}
	for i := n; i < int(size); i++ {
		t.ReadMem() // drain the rest of an oversized frame
	}
	t.ReadMemStop()

	t.SetBank(regERXRDPTL)
	t.WriteReg(regERXRDPTL, d.nextPacketLo)
	t.WriteReg(regERXRDPTH, d.nextPacketHi)
	t.WriteReg(regERDPTL, d.nextPacketLo)
	t.WriteReg(regERDPTH, d.nextPacketHi)

	t.SetReg(regECON2, bitPKTDEC)

	return n
}

// PutPacket transmits pkt[:size]. A prior latched TX error is cleared
// and the request retried once, per spec.md §7's single clear-and-retry
// policy; it returns false only if the second attempt also aborts.
func (d *Driver) PutPacket(pkt []byte, size int) bool {
	if ok := d.transmitOnce(pkt, size); ok {
		return true
	}
	return d.transmitOnce(pkt, size)
}

func (d *Driver) transmitOnce(pkt []byte, size int) bool {
	t := d.t

	if t.ReadReg(regEIR)&bitTXERIF != 0 {
		t.ClearReg(regEIR, bitTXERIF)
		t.SetReg(regECON1, bitTXRTS)
		t.ClearReg(regECON1, bitTXRTS)
	}

	t.SetBank(regEWRPTL)
	t.WriteReg(regEWRPTL, lobyte(txStart))
	t.WriteReg(regEWRPTH, hibyte(txStart))

	t.WriteMemStart()
	t.WriteMem(0) // per-frame control byte
	for i := 0; i < size; i++ {
		t.WriteMem(pkt[i])
	}
	t.WriteMemStop()

	end := txStart + size
	t.WriteReg(regETXSTL, lobyte(txStart))
	t.WriteReg(regETXSTH, hibyte(txStart))
	t.WriteReg(regETXNDL, lobyte(end))
	t.WriteReg(regETXNDH, hibyte(end))
	t.ClearReg(regEIR, bitTXIF)
	t.SetReg(regECON1, bitTXRTS)

	for i := 0; i < spinLimit && t.ReadReg(regECON1)&bitTXRTS != 0; i++ {
	}

	return t.ReadReg(regESTAT)&bitTXABORT == 0
}

func lobyte(v int) byte { return byte(v & 0xFF) }
func hibyte(v int) byte { return byte((v >> 8) & 0xFF) }
