package recognizer

import (
	"regexp"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Family identifies which address pattern produced a candidate.
type Family int

const (
	FamilySolana Family = iota + 1
	FamilyEVM
)

func (f Family) String() string {
	switch f {
	case FamilySolana:
		return "solana"
	case FamilyEVM:
		return "evm"
	}
	return "unknown"
}

// Candidate is an address-shaped substring lifted out of a chat message.
// It lives for one message-handling pass only.
type Candidate struct {
	Address string
	Family  Family
}

var (
	// base58 alphabet: digits and letters minus 0, O, I, l
	solanaPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)
	evmPattern    = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
)

// FindAddress scans free text for the first address candidate. Solana-shaped
// matches are tried first and must decode to an on-curve ed25519 point to be
// promoted; a hit short-circuits the EVM scan. EVM matches are accepted on
// shape alone — no checksum or curve validation exists for that family, which
// mirrors the asymmetric policy of the product (see design notes), not an
// accident of implementation.
func FindAddress(text string) *Candidate {
	if m := solanaPattern.FindString(text); m != "" {
		if IsValidSolanaAddress(m) {
			return &Candidate{Address: m, Family: FamilySolana}
		}
		// off-curve or undecodable: silently fall through
	}

	if m := evmPattern.FindString(text); m != "" {
		return &Candidate{Address: m, Family: FamilyEVM}
	}

	return nil
}

// IsValidSolanaAddress reports whether s decodes to 32 bytes that form a
// valid point on the ed25519 curve.
func IsValidSolanaAddress(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return isOnCurve(decoded)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
