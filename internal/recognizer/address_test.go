package recognizer

import (
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

// ed25519 base point encoding: y = 4/5, little-endian, even x.
func onCurveAddress() string {
	raw := make([]byte, 32)
	raw[0] = 0x58
	for i := 1; i < 32; i++ {
		raw[i] = 0x66
	}
	return base58.Encode(raw)
}

// y = 2^255-1 is non-canonical (>= 2^255-19), so decoding must fail.
func offCurveAddress() string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xff
	}
	return base58.Encode(raw)
}

func TestFindAddress_SolanaOnCurve(t *testing.T) {
	addr := onCurveAddress()
	if len(addr) < 32 || len(addr) > 44 {
		t.Fatalf("fixture address has unexpected length %d", len(addr))
	}

	cand := FindAddress("look at " + addr + " please")
	if cand == nil {
		t.Fatal("expected a candidate for an on-curve address")
	}
	if cand.Family != FamilySolana {
		t.Errorf("expected solana family, got %s", cand.Family)
	}
	if cand.Address != addr {
		t.Errorf("expected exact substring %q, got %q", addr, cand.Address)
	}
}

func TestFindAddress_SolanaOffCurveIsSilentlyDropped(t *testing.T) {
	cand := FindAddress("look at " + offCurveAddress() + " please")
	if cand != nil {
		t.Fatalf("expected no candidate for an off-curve address, got %+v", cand)
	}
}

func TestFindAddress_EVMAcceptedOnShapeAlone(t *testing.T) {
	// no checksum validation for this family: mixed case is fine
	addr := "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	cand := FindAddress("check " + addr)
	if cand == nil {
		t.Fatal("expected a candidate for a hex address")
	}
	if cand.Family != FamilyEVM {
		t.Errorf("expected evm family, got %s", cand.Family)
	}
	if cand.Address != addr {
		t.Errorf("expected %q, got %q", addr, cand.Address)
	}
}

func TestFindAddress_SolanaShortCircuitsEVM(t *testing.T) {
	text := onCurveAddress() + " and 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	cand := FindAddress(text)
	if cand == nil || cand.Family != FamilySolana {
		t.Fatalf("expected the solana candidate to win, got %+v", cand)
	}
}

func TestFindAddress_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"plain chat", "gm everyone"},
		{"hex too short", "0xdeadbeef"},
		{"base58 too short", strings.Repeat("A", 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if cand := FindAddress(tt.text); cand != nil {
				t.Errorf("expected no candidate, got %+v", cand)
			}
		})
	}
}

func TestIsValidSolanaAddress_RejectsBadDecode(t *testing.T) {
	if IsValidSolanaAddress("not-base58-!!") {
		t.Error("expected decode failure to be invalid")
	}
	// decodes fine but not 32 bytes
	if IsValidSolanaAddress(base58.Encode([]byte("short"))) {
		t.Error("expected wrong-length key to be invalid")
	}
}
