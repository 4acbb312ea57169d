package machw

import (
	"testing"

	"github.com/tm4cnet/netcore/internal/machw/transport"
)

var testMAC = [6]byte{2, 3, 4, 5, 6, 0x88}

func TestInitEnablesReception(t *testing.T) {
	sim := transport.NewSim()
	d := New(sim, testMAC)
	d.Init(FilterUnicast | FilterBroadcast | DuplexFull)

	if !d.LinkUp() {
		t.Fatal("expected link up on a fresh Sim")
	}
}

func TestGetPacketDequeuesQueuedFrame(t *testing.T) {
	sim := transport.NewSim()
	d := New(sim, testMAC)
	d.Init(FilterBroadcast | DuplexFull)

	frame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	sim.QueueRX(frame)

	if !d.DataAvailable() {
		t.Fatal("expected DataAvailable after QueueRX")
	}

	buf := make([]byte, 64)
	n := d.GetPacket(buf)
	if n != len(frame) {
		t.Fatalf("n = %d, want %d", n, len(frame))
	}
	if string(buf[:n]) != string(frame) {
		t.Fatalf("payload = %v, want %v", buf[:n], frame)
	}
	if d.DataAvailable() {
		t.Fatal("expected DataAvailable false once the single queued frame is consumed")
	}
}

func TestGetPacketTruncatesOversizedFrame(t *testing.T) {
	sim := transport.NewSim()
	d := New(sim, testMAC)
	d.Init(FilterBroadcast | DuplexFull)

	frame := make([]byte, 10)
	for i := range frame {
		frame[i] = byte(i)
	}
	sim.QueueRX(frame)

	buf := make([]byte, 4)
	n := d.GetPacket(buf)
	if n != 4 {
		t.Fatalf("n = %d, want 4 (truncated to buffer size)", n)
	}
	if string(buf) != string(frame[:4]) {
		t.Fatalf("payload = %v, want %v", buf, frame[:4])
	}
}

func TestPutPacketTransmitsAndRetriesOnAbort(t *testing.T) {
	sim := transport.NewSim()
	d := New(sim, testMAC)
	d.Init(FilterBroadcast | DuplexFull)

	pkt := []byte{1, 2, 3, 4, 5}
	if !d.PutPacket(pkt, len(pkt)) {
		t.Fatal("expected the first transmit to succeed")
	}
	frames := sim.TXFrames()
	if len(frames) != 1 || string(frames[0]) != string(pkt) {
		t.Fatalf("frames = %v, want one copy of %v", frames, pkt)
	}

	sim.ForceNextTXAbort()
	if !d.PutPacket(pkt, len(pkt)) {
		t.Fatal("expected the retry to succeed once the forced abort is consumed")
	}
}

func TestOverflowClearsOnRead(t *testing.T) {
	sim := transport.NewSim()
	d := New(sim, testMAC)
	d.Init(FilterBroadcast | DuplexFull)

	sim.WriteReg(0x1C, 0x01) // EIR.RXERIF
	if !d.Overflow() {
		t.Fatal("expected Overflow true once RXERIF is set")
	}
	if d.Overflow() {
		t.Fatal("expected Overflow to have cleared the latch")
	}
}
