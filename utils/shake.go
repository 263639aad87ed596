// Package utils holds the domain-separated hash oracle, the keyed sampler,
// and the constant-time and bounds-checking helpers shared by lwe-kem.
package utils

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/sha3"
)

const (
	// HashSize is the default output length of H in bytes.
	HashSize = 32

	// MaxHashPartSize bounds a single part absorbed by H so its length
	// always fits the 4-byte prefix.
	MaxHashPartSize = 100 * 1024 * 1024
)

var shake256Pool = sync.Pool{
	New: func() interface{} {
		return sha3.NewShake256()
	},
}

// Shake256 squeezes outputLen bytes of SHAKE256 over input, with no
// domain tag. Use H for anything protocol-visible.
func Shake256(input []byte, outputLen int) []byte {
	h := shake256Pool.Get().(sha3.ShakeHash)
	defer func() {
		h.Reset()
		shake256Pool.Put(h)
	}()

	h.Write(input)
	output := make([]byte, outputLen)
	_, _ = h.Read(output)
	return output
}

// SHA3256 returns the 32-byte SHA3-256 digest of input.
func SHA3256(input []byte) []byte {
	h := sha3.New256()
	h.Write(input)
	return h.Sum(nil)
}

// H is the domain-separated hash oracle. The tag and then every part are
// absorbed into SHAKE256 as a 4-byte big-endian length followed by the
// bytes, so adjacent parts can never be confused. outLen bytes are squeezed.
// Panics if a part exceeds MaxHashPartSize.
func H(outLen int, tag string, parts ...[]byte) []byte {
	h := shake256Pool.Get().(sha3.ShakeHash)
	defer func() {
		h.Reset()
		shake256Pool.Put(h)
	}()

	var lenBuf [4]byte
	absorb := func(p []byte) {
		if len(p) > MaxHashPartSize {
			panic("H: part size exceeds maximum")
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}

	absorb([]byte(tag))
	for _, p := range parts {
		absorb(p)
	}

	output := make([]byte, outLen)
	_, _ = h.Read(output)
	return output
}
