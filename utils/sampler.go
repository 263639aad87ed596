package utils

import (
	"encoding/binary"
	"errors"
	"math"

	lattigo "github.com/tuneinsight/lattigo/v4/utils"
)

// SamplerSeedSize is the key size used for sampler PRNGs.
const SamplerSeedSize = 32

// Sampler draws the uniform, Bernoulli and Gaussian values used by the LWE
// primitive from a single PRNG. A Sampler is owned by one call and is not
// safe for concurrent use.
//
// PRNG failures are sticky: after the first failed read every draw returns
// zero and Err reports the failure.
type Sampler struct {
	prng lattigo.PRNG
	buf  [8]byte
	err  error
}

// NewSampler wraps an existing PRNG.
func NewSampler(prng lattigo.PRNG) *Sampler {
	return &Sampler{prng: prng}
}

// NewKeyedSampler returns a sampler whose output is fully determined by seed.
func NewKeyedSampler(seed []byte) (*Sampler, error) {
	if len(seed) == 0 || len(seed) > 64 {
		return nil, errors.New("sampler seed must be 1 to 64 bytes")
	}
	prng, err := lattigo.NewKeyedPRNG(append([]byte(nil), seed...))
	if err != nil {
		return nil, err
	}
	return NewSampler(prng), nil
}

// NewRandomSampler returns a sampler keyed with fresh bytes from RandReader.
func NewRandomSampler() (*Sampler, error) {
	key, err := SecureRandomBytes(SamplerSeedSize)
	if err != nil {
		return nil, err
	}
	defer Zeroize(key)
	return NewKeyedSampler(key)
}

// Err returns the first PRNG error encountered, if any.
func (s *Sampler) Err() error {
	return s.err
}

func (s *Sampler) fill(p []byte) {
	if s.err != nil {
		Zeroize(p)
		return
	}
	if _, err := s.prng.Read(p); err != nil {
		s.err = err
		Zeroize(p)
	}
}

// Uint32 returns a uniform 32-bit value.
func (s *Sampler) Uint32() uint32 {
	s.fill(s.buf[:4])
	return binary.LittleEndian.Uint32(s.buf[:4])
}

// Uint32n returns a uniform value in [0, bound). It uses rejection sampling
// to ensure a uniform distribution. Panics if bound is zero.
func (s *Sampler) Uint32n(bound uint32) uint32 {
	if bound == 0 {
		panic("Uint32n: zero bound")
	}
	threshold := math.MaxUint32 - (math.MaxUint32 % bound)
	for {
		v := s.Uint32()
		if v < threshold || s.err != nil {
			return v % bound
		}
	}
}

// Bit returns a uniform bit.
func (s *Sampler) Bit() int8 {
	s.fill(s.buf[:1])
	return int8(s.buf[0] & 1)
}

// Float64 returns a uniform value in [0, 1) with 53 bits of precision.
func (s *Sampler) Float64() float64 {
	s.fill(s.buf[:8])
	return float64(binary.LittleEndian.Uint64(s.buf[:8])>>11) / (1 << 53)
}

// Gaussian returns round(z*sigma) where z is a standard normal sample from
// the Box-Muller transform. There is no tail rejection.
func (s *Sampler) Gaussian(sigma float64) int64 {
	u1 := 1 - s.Float64() // (0, 1]
	u2 := s.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return int64(math.Round(z * sigma))
}

// Distinct returns k distinct values from [0, m) in draw order, using a
// partial Fisher-Yates shuffle over scratch. scratch is reused when it has
// capacity for m values. Panics if k > m.
func (s *Sampler) Distinct(k, m int, scratch []int) []int {
	if k < 0 || k > m {
		panic("Distinct: k out of range")
	}
	if cap(scratch) < m {
		scratch = make([]int, m)
	}
	perm := scratch[:m]
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + int(s.Uint32n(uint32(m-i)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}
