package transport

import "testing"

func TestSimQueueRXAndDrain(t *testing.T) {
	s := NewSim()
	s.QueueRX([]byte{1, 2, 3, 4, 5})

	if s.ReadReg(regEIR)&bitPKTIF == 0 {
		t.Fatal("expected PKTIF set after QueueRX")
	}

	s.ReadMemStart()
	s.ReadMem() // next-packet lo
	s.ReadMem() // next-packet hi
	lo := s.ReadMem()
	hi := s.ReadMem()
	if int(lo)|int(hi)<<8 != 5 {
		t.Fatalf("size = %d, want 5", int(lo)|int(hi)<<8)
	}
	s.ReadMem() // status lo
	s.ReadMem() // status hi
	got := make([]byte, 5)
	for i := range got {
		got[i] = s.ReadMem()
	}
	for i, b := range got {
		if b != byte(i+1) {
			t.Fatalf("payload[%d] = %d, want %d", i, b, i+1)
		}
	}
	s.ReadMemStop()

	s.ClearReg(regECON2, bitPKTDEC)
	if s.ReadReg(regEIR)&bitPKTIF != 0 {
		t.Fatal("expected PKTIF cleared once the queue drains")
	}
}

func TestSimTransmitCapturesFrame(t *testing.T) {
	s := NewSim()
	s.WriteMemStart()
	s.WriteMem(0) // control byte
	for _, b := range []byte{0xAA, 0xBB, 0xCC} {
		s.WriteMem(b)
	}
	s.WriteMemStop()
	s.SetReg(regECON1, bitTXRTS)

	if s.ReadReg(regECON1)&bitTXRTS != 0 {
		t.Fatal("expected TXRTS to self-clear")
	}
	if s.ReadReg(regESTAT)&bitTXABORT != 0 {
		t.Fatal("expected no TX abort")
	}
	frames := s.TXFrames()
	if len(frames) != 1 || string(frames[0]) != "\xaa\xbb\xcc" {
		t.Fatalf("frames = %v", frames)
	}
}

func TestSimForcedTXAbort(t *testing.T) {
	s := NewSim()
	s.ForceNextTXAbort()
	s.WriteMemStart()
	s.WriteMem(0)
	s.WriteMem(0x01)
	s.WriteMemStop()
	s.SetReg(regECON1, bitTXRTS)

	if s.ReadReg(regESTAT)&bitTXABORT == 0 {
		t.Fatal("expected forced TX abort")
	}
	if len(s.TXFrames()) != 0 {
		t.Fatal("an aborted transmit must not be captured as a sent frame")
	}
}

func TestSimLinkUpReflectsPHSTAT1(t *testing.T) {
	s := NewSim()
	if s.ReadPhy(phyPHSTAT1)&bitLSTAT == 0 {
		t.Fatal("expected link up by default")
	}
	s.SetLinkUp(false)
	if s.ReadPhy(phyPHSTAT1)&bitLSTAT != 0 {
		t.Fatal("expected link down after SetLinkUp(false)")
	}
}
