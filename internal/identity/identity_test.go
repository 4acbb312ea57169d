package identity

import (
	"testing"

	"github.com/tm4cnet/netcore/internal/store"
)

func TestLoadFromStore(t *testing.T) {
	s := store.NewMemory()
	if err := s.Write(store.SlotDHCPFlag, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(store.SlotIP, IPv4{192, 168, 1, 199}.Uint32()); err != nil {
		t.Fatal(err)
	}

	id := New(MAC{0x02, 0x03, 0x04, 0x05, 0x06, 0x88}, s)
	if err := id.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !id.DHCP {
		t.Fatal("expected DHCP flag true")
	}
	if id.IP != (IPv4{192, 168, 1, 199}) {
		t.Fatalf("got IP %v", id.IP)
	}
}

func TestSetDNSWritesDNSNotGateway(t *testing.T) {
	s := store.NewMemory()
	id := New(MAC{}, s)

	if err := id.SetGateway(IPv4{10, 0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := id.SetDNS(IPv4{8, 8, 8, 8}); err != nil {
		t.Fatal(err)
	}

	gw, err := s.Read(store.SlotGateway)
	if err != nil {
		t.Fatal(err)
	}
	if gw != (IPv4{10, 0, 0, 1}).Uint32() {
		t.Fatalf("gateway slot corrupted by SetDNS: %#x", gw)
	}

	dns, err := s.Read(store.SlotDNS)
	if err != nil {
		t.Fatal(err)
	}
	if dns != (IPv4{8, 8, 8, 8}).Uint32() {
		t.Fatalf("dns slot not written: %#x", dns)
	}
}

func TestMACString(t *testing.T) {
	mac := MAC{0x02, 0x03, 0x04, 0x05, 0x06, 0x88}
	if mac.String() != "02:03:04:05:06:88" {
		t.Fatalf("got %q", mac.String())
	}
}
