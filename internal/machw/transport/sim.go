package transport

import "sync"

// Register/bit values mirrored from the ENC28J60 datasheet (the same
// ones internal/machw's Driver resolves against); Sim only needs the
// handful that affect its own RX/TX ring bookkeeping.
const (
	regEIE   = 0x1B
	regEIR   = 0x1C
	bitRXERIF = 0x01
	bitTXERIF = 0x02
	bitTXIF   = 0x08
	bitPKTIF  = 0x40

	regESTAT   = 0x1D
	bitCLKRDY  = 0x01
	bitTXABORT = 0x02

	regECON2  = 0x1E
	bitPKTDEC = 0x40

	regECON1  = 0x1F
	bitRXEN  = 0x04
	bitTXRTS = 0x08

	regMISTAT = 0x6A
	bitMIBUSY = 0x01

	phyPHSTAT1 = 0x01
	bitLSTAT   = 0x0400
)

// Sim is an in-process simulated ENC28J60: a flat register file (the
// datasheet's register addresses never collide across the banks this
// system actually touches, so the bank-select sequencing is accepted
// but not used to disambiguate storage) plus an RX frame queue and a
// captured-TX frame log. It never touches a real bus, so every
// protocol-level package in this module can drive a Driver
// deterministically in tests.
type Sim struct {
	mu sync.Mutex

	regs [0x80]byte
	phy  map[byte]uint16

	rxQueue  [][]byte
	rxStream []byte // the byte stream etherGetPacket's bus reads drain from
	rxIdx    int

	txStream []byte // accumulates etherPutPacket's bus writes
	txFrames [][]byte

	linkUp    bool
	nextAbort bool // force the next PutPacket to report TXABORT
}

// NewSim returns a Sim with the link reporting up and an empty RX queue.
func NewSim() *Sim {
	s := &Sim{phy: make(map[byte]uint16), linkUp: true}
	s.regs[regESTAT] = bitCLKRDY
	return s
}

// SetLinkUp controls what LinkUp (via ReadPhy(PHSTAT1)) reports.
func (s *Sim) SetLinkUp(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkUp = up
}

// QueueRX appends a raw Ethernet frame (no CRC, no 4-byte ring header)
// to the simulated receive ring. Driver.GetPacket dequeues in FIFO
// order, one frame per call.
func (s *Sim) QueueRX(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.rxQueue = append(s.rxQueue, cp)
	s.regs[regEIR] |= bitPKTIF
}

// ForceNextTXAbort makes the next WriteMemStop/transmit report
// ESTAT.TXABORT set, exercising the Driver's single clear-and-retry path.
func (s *Sim) ForceNextTXAbort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAbort = true
}

// TXFrames returns every frame captured by a successful PutPacket
// sequence, in transmission order.
func (s *Sim) TXFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.txFrames))
	copy(out, s.txFrames)
	return out
}

func (s *Sim) ReadReg(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg&0x7F]
}

func (s *Sim) WriteReg(reg, data byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg&0x7F] = data
}

func (s *Sim) SetReg(reg, mask byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg&0x7F] |= mask
	if reg&0x1F == regECON1&0x1F && mask&bitTXRTS != 0 {
		s.beginTransmit()
	}
}

func (s *Sim) ClearReg(reg, mask byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg&0x7F] &^= mask
	if reg&0x1F == regECON2&0x1F && mask&bitPKTDEC != 0 {
		s.advanceRXQueue()
	}
}

func (s *Sim) SetBank(byte) {} // flat register file; no bank state to track

func (s *Sim) ReadPhy(reg byte) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg == phyPHSTAT1 {
		if s.linkUp {
			return bitLSTAT
		}
		return 0
	}
	return s.phy[reg]
}

func (s *Sim) WritePhy(reg byte, data uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phy[reg] = data
}

// ReadMemStart begins a FIFO read. If the read-pointer stream hasn't
// been primed for the head-of-queue frame yet, it is built now: two
// next-packet-pointer bytes (unused by the Driver beyond round-tripping
// them back into ERXRDPT/ERDPT), a little-endian size, a little-endian
// status word, then the frame payload.
func (s *Sim) ReadMemStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rxQueue) == 0 {
		s.rxStream, s.rxIdx = nil, 0
		return
	}
	frame := s.rxQueue[0]
	size := len(frame)
	stream := make([]byte, 0, 6+size)
	stream = append(stream, 0x00, 0x00) // next packet pointer (unused here)
	stream = append(stream, byte(size), byte(size>>8))
	stream = append(stream, 0x00, 0x00) // status word (unused here)
	stream = append(stream, frame...)
	s.rxStream, s.rxIdx = stream, 0
}

func (s *Sim) ReadMem() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rxIdx >= len(s.rxStream) {
		return 0
	}
	b := s.rxStream[s.rxIdx]
	s.rxIdx++
	return b
}

func (s *Sim) ReadMemStop() {}

func (s *Sim) advanceRXQueue() {
	if len(s.rxQueue) > 0 {
		s.rxQueue = s.rxQueue[1:]
	}
	if len(s.rxQueue) == 0 {
		s.regs[regEIR] &^= bitPKTIF
	}
}

func (s *Sim) WriteMemStart() { s.txStream = s.txStream[:0] }

func (s *Sim) WriteMem(data byte) { s.txStream = append(s.txStream, data) }

func (s *Sim) WriteMemStop() {}

// beginTransmit is invoked when the Driver sets ECON1.TXRTS. It mimics
// the chip clearing TXRTS synchronously on completion (no interrupt
// wait is needed in simulation) and latches TXABORT if a test armed
// ForceNextTXAbort. A txStream holding only the control byte (or
// nothing) completes without TXABORT and records no frame.
func (s *Sim) beginTransmit() {
	s.regs[regECON1&0x7F] &^= bitTXRTS
	if s.nextAbort {
		s.regs[regESTAT] |= bitTXABORT
		s.nextAbort = false
		return
	}
	s.regs[regESTAT] &^= bitTXABORT
	// txStream carries the control byte (0) ahead of the payload.
	if len(s.txStream) > 1 {
		frame := make([]byte, len(s.txStream)-1)
		copy(frame, s.txStream[1:])
		s.txFrames = append(s.txFrames, frame)
	}
}

func (s *Sim) Close() error { return nil }
