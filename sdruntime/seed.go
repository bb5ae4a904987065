package sdruntime

import (
	"crypto/rand"
	"encoding/binary"
)

// RandomSeed generates a random seed in the 32-bit range accepted by the
// synthesis backend. It uses crypto/rand so concurrent callers never collide
// on a shared PRNG state.
func RandomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively impossible; a fixed seed is
		// better than panicking mid-batch.
		return 42
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) & 0xFFFFFFFF)
}
