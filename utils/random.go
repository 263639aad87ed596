package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"runtime"
)

// MinSeedSize is the shortest seed accepted for deterministic key generation.
const MinSeedSize = 32

// RandReader is the entropy source for every CSPRNG read in the module.
// Tests replace it to inject failures.
var RandReader io.Reader = rand.Reader

var (
	// ErrShortSeed is returned for seeds shorter than MinSeedSize.
	ErrShortSeed = fmt.Errorf("seed must be at least %d bytes", MinSeedSize)

	// ErrWeakSeed is wrapped by every low-entropy rejection.
	ErrWeakSeed = errors.New("seed has low entropy")
)

// SecureRandomBytes reads n bytes from RandReader.
func SecureRandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(RandReader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ValidateSeedEntropy rejects seeds that are obviously not random: a repeated
// byte, a byte counter running up or down (mod 256), or fewer than eight
// distinct byte values. It is a sanity filter, not a statistical test.
func ValidateSeedEntropy(seed []byte) error {
	if len(seed) < MinSeedSize {
		return ErrShortSeed
	}

	ascending, descending, repeated := true, true, true
	var seen [256]bool
	distinct := 0
	for i, b := range seed {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
		if i == 0 {
			continue
		}
		prev := seed[i-1]
		ascending = ascending && b == prev+1
		descending = descending && b == prev-1
		repeated = repeated && b == prev
	}

	switch {
	case repeated:
		return fmt.Errorf("%w: all bytes are identical", ErrWeakSeed)
	case ascending || descending:
		return fmt.Errorf("%w: sequential pattern detected", ErrWeakSeed)
	case distinct < 8:
		return fmt.Errorf("%w: only %d distinct byte values", ErrWeakSeed, distinct)
	}
	return nil
}

// ConstantTimeSelect returns a fresh copy of a when condition is 1 and of b
// when it is 0. The slices must have equal length.
func ConstantTimeSelect(condition int, a, b []byte) []byte {
	if len(a) != len(b) {
		panic("ConstantTimeSelect: length mismatch")
	}
	out := append([]byte(nil), b...)
	subtle.ConstantTimeCopy(condition, out, a)
	return out
}

// XORBytes XORs msg with key repeated to the message length. Applying it
// twice with the same key returns msg. Panics if key is empty.
func XORBytes(msg, key []byte) []byte {
	if len(key) == 0 {
		panic("XORBytes: empty key")
	}
	out := make([]byte, len(msg))
	for i, m := range msg {
		out[i] = m ^ key[i%len(key)]
	}
	return out
}

// Zeroize clears b. runtime.KeepAlive keeps the stores from being elided.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroizeInt32 clears s.
func ZeroizeInt32(s []int32) {
	for i := range s {
		s[i] = 0
	}
	runtime.KeepAlive(s)
}

// ZeroizeInt8 clears s.
func ZeroizeInt8(s []int8) {
	for i := range s {
		s[i] = 0
	}
	runtime.KeepAlive(s)
}
