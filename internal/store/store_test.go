package store

import (
	"path/filepath"
	"testing"
)

func TestMemoryReadWrite(t *testing.T) {
	m := NewMemory()
	if err := m.Write(SlotIP, 0xC0A801C7); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := m.Read(SlotIP)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0xC0A801C7 {
		t.Fatalf("got %#x, want %#x", got, 0xC0A801C7)
	}
}

func TestMemorySlotRange(t *testing.T) {
	m := NewMemory()
	if _, err := m.Read(5); err == nil {
		t.Fatal("expected error for out-of-range slot")
	}
	if err := m.Write(-1, 0); err == nil {
		t.Fatal("expected error for negative slot")
	}
}

func TestFilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.bin")

	f1, err := NewFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f1.Write(SlotGateway, 0x0A000001); err != nil {
		t.Fatalf("write: %v", err)
	}

	f2, err := NewFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := f2.Read(SlotGateway)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0x0A000001 {
		t.Fatalf("got %#x, want %#x", got, 0x0A000001)
	}
}

func TestFileZeroedOnCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.bin")
	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := f.Read(SlotDNS)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected zero slot on create, got %#x", got)
	}
}
