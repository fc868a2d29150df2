package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// SeedFromString derives a stable PRNG seed from an arbitrary string.
func SeedFromString(s string) uint64 {
	sum := sha256.Sum256([]byte(s))
	return binary.LittleEndian.Uint64(sum[:8])
}

// TargetRounds picks the number of rounds in [lo, hi] from seed.
func TargetRounds(seed uint64, lo, hi int) int {
	if lo < 1 {
		lo = 1
	}
	if hi <= lo {
		return lo
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return lo + r.IntN(hi-lo+1)
}
