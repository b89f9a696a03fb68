package crypto

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[19] = 0x2a
	addr := NewAddress(AccountPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: got %x want %x", decoded.Bytes(), addr.Bytes())
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	first := ModuleAddress("amm/usdc")
	second := ModuleAddress("amm/usdc")
	other := ModuleAddress("amm/dai")
	if !first.Equal(second) {
		t.Fatalf("module address not deterministic")
	}
	if first.Equal(other) {
		t.Fatalf("distinct modules share an address")
	}
	if first.Prefix() != ModulePrefix {
		t.Fatalf("unexpected prefix %q", first.Prefix())
	}
}

func TestDecodeAddressRejectsUnknownPrefix(t *testing.T) {
	raw := make([]byte, AddressLength)
	foreign := Address{prefix: "xyz", bytes: raw}
	if _, err := DecodeAddress(foreign.String()); err == nil {
		t.Fatalf("expected unknown prefix to be rejected")
	}
}
