//go:build linux

package transport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// RawSocket bridges the simulated register file and RX/TX ring (the
// same bookkeeping Sim uses) to a real Linux network interface via an
// AF_PACKET raw socket, adapted from internal/netio/rawsock_linux.go's
// and sender.go/receiver.go's socket-option and Sendto/Recvfrom idioms.
// This drives the whole core against a real NIC or a veth/TAP pair
// without real ENC28J60 hardware.
type RawSocket struct {
	mu   sync.Mutex
	fd   int
	ifi  int
	regs [0x80]byte
	phy  map[byte]uint16

	rxQueue  [][]byte
	rxStream []byte
	rxIdx    int
	txStream []byte

	stop chan struct{}
	done chan struct{}
}

// OpenRawSocket binds an AF_PACKET/SOCK_RAW socket to the named
// interface (e.g. "veth-enc0") and starts a background reader that
// enqueues every received frame the same way Sim.QueueRX does.
func OpenRawSocket(ifName string) (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return nil, fmt.Errorf("open AF_PACKET socket: %w", err)
	}

	ifi, err := unix.IfNameIndex()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	idx := 0
	for _, e := range ifi {
		if e.Name == ifName {
			idx = int(e.Index)
			break
		}
	}
	if idx == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("interface %s not found", ifName)
	}

	sa := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: idx}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind to %s: %w", ifName, err)
	}

	r := &RawSocket{
		fd:   fd,
		ifi:  idx,
		phy:  make(map[byte]uint16),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.regs[regESTAT] = bitCLKRDY
	r.phy[phyPHSTAT1] = bitLSTAT // assume link up; a real deployment could poll ethtool instead
	go r.readLoop()
	return r, nil
}

func htons(v uint16) uint16 { return v<<8 | v>>8 }

func (r *RawSocket) readLoop() {
	defer close(r.done)
	buf := make([]byte, 65536)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		n, _, err := unix.Recvfrom(r.fd, buf, 0)
		if err != nil {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		r.mu.Lock()
		r.rxQueue = append(r.rxQueue, frame)
		r.regs[regEIR] |= bitPKTIF
		r.mu.Unlock()
	}
}

func (r *RawSocket) ReadReg(reg byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[reg&0x7F]
}

func (r *RawSocket) WriteReg(reg, data byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg&0x7F] = data
}

func (r *RawSocket) SetReg(reg, mask byte) {
	r.mu.Lock()
	r.regs[reg&0x7F] |= mask
	transmit := reg&0x1F == regECON1&0x1F && mask&bitTXRTS != 0
	r.mu.Unlock()
	if transmit {
		r.transmit()
	}
}

func (r *RawSocket) ClearReg(reg, mask byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg&0x7F] &^= mask
	if reg&0x1F == regECON2&0x1F && mask&bitPKTDEC != 0 {
		if len(r.rxQueue) > 0 {
			r.rxQueue = r.rxQueue[1:]
		}
		if len(r.rxQueue) == 0 {
			r.regs[regEIR] &^= bitPKTIF
		}
	}
}

func (r *RawSocket) SetBank(byte) {}

func (r *RawSocket) ReadPhy(reg byte) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phy[reg]
}

func (r *RawSocket) WritePhy(reg byte, data uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phy[reg] = data
}

func (r *RawSocket) ReadMemStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rxQueue) == 0 {
		r.rxStream, r.rxIdx = nil, 0
		return
	}
	frame := r.rxQueue[0]
	size := len(frame)
	stream := make([]byte, 0, 6+size)
	stream = append(stream, 0x00, 0x00, byte(size), byte(size>>8), 0x00, 0x00)
	stream = append(stream, frame...)
	r.rxStream, r.rxIdx = stream, 0
}

func (r *RawSocket) ReadMem() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rxIdx >= len(r.rxStream) {
		return 0
	}
	b := r.rxStream[r.rxIdx]
	r.rxIdx++
	return b
}

func (r *RawSocket) ReadMemStop() {}

func (r *RawSocket) WriteMemStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txStream = r.txStream[:0]
}

func (r *RawSocket) WriteMem(data byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txStream = append(r.txStream, data)
}

func (r *RawSocket) WriteMemStop() {}

// transmit sends the accumulated txStream (minus its leading per-frame
// control byte) out the bound interface when the Driver sets TXRTS,
// then self-clears TXRTS the way the simulated chip does.
func (r *RawSocket) transmit() {
	r.mu.Lock()
	frame := append([]byte(nil), r.txStream...)
	r.regs[regECON1&0x7F] &^= bitTXRTS
	r.mu.Unlock()

	if len(frame) <= 1 {
		return
	}
	sa := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: r.ifi}
	if err := unix.Sendto(r.fd, frame[1:], 0, sa); err != nil {
		r.mu.Lock()
		r.regs[regESTAT] |= bitTXABORT
		r.mu.Unlock()
		return
	}
	r.mu.Lock()
	r.regs[regESTAT] &^= bitTXABORT
	r.mu.Unlock()
}

func (r *RawSocket) Close() error {
	close(r.stop)
	err := unix.Close(r.fd)
	<-r.done
	if err != nil {
		return fmt.Errorf("close raw socket: %w", err)
	}
	return nil
}
