// Package lwe implements the bit-oriented LWE public-key encryption
// primitive for lwe-kem.
package lwe

import (
	"errors"
	"fmt"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

var (
	// ErrUninitializedKey is returned when encryption or decryption is
	// attempted without the corresponding key.
	ErrUninitializedKey = errors.New("lwe: key not initialized")

	// ErrMalformedCiphertext is returned for ciphertext components of the
	// wrong shape.
	ErrMalformedCiphertext = errors.New("lwe: malformed ciphertext")

	// ErrMalformedPublicKey is returned for public keys whose shape does not
	// match their parameters.
	ErrMalformedPublicKey = errors.New("lwe: malformed public key")
)

// mod returns x mod q, ensuring the result is always non-negative in [0, q).
func mod(x int64, q int) int32 {
	r := x % int64(q)
	if r < 0 {
		r += int64(q)
	}
	return int32(r)
}

// matVecMul computes the matrix-vector product A * s mod q.
// A is an m x n matrix stored in row-major order, s has entries in {0, 1}.
func matVecMul(A []int32, s []int8, m, n, q int) []int32 {
	result := make([]int32, m)
	for i := 0; i < m; i++ {
		var sum int64
		rowOffset := i * n
		for j := 0; j < n; j++ {
			sum += int64(A[rowOffset+j]) * int64(s[j])
		}
		result[i] = mod(sum, q)
	}
	return result
}

// innerProduct computes the dot product of two vectors modulo q.
func innerProduct(a []int32, b []int8, q int) int32 {
	var sum int64
	for i := range a {
		sum += int64(a[i]) * int64(b[i])
	}
	return mod(sum, q)
}

// decodeBit maps diff in [0, q) to 0 when it is closer to 0 than to q/2,
// i.e. diff < q/4 or diff > 3q/4, and to 1 otherwise. Branch-free.
func decodeBit(diff int32, q int) int8 {
	lo := int32(q / 4)
	hi := int32(3 * q / 4)
	below := (diff - lo) >> 31 & 1 // diff < lo
	above := (hi - diff) >> 31 & 1 // diff > hi
	return int8(1 ^ (below | above))
}

// checkPublicKey verifies the shape of pk against its parameters.
func checkPublicKey(pk *lwekem.PublicKey) error {
	if pk == nil || len(pk.A) == 0 || len(pk.B) == 0 {
		return ErrUninitializedKey
	}
	p := pk.Params
	size, err := utils.SafeMultiply(p.M, p.N)
	if err != nil || p.N <= 0 || p.M < p.N || p.Q <= 0 {
		return fmt.Errorf("%w: invalid parameters n=%d m=%d q=%d", ErrMalformedPublicKey, p.N, p.M, p.Q)
	}
	if len(pk.A) != size || len(pk.B) != p.M {
		return fmt.Errorf("%w: got |A|=%d |b|=%d for m=%d n=%d", ErrMalformedPublicKey, len(pk.A), len(pk.B), p.M, p.N)
	}
	return nil
}

// KeyGen generates an LWE key pair, drawing all randomness from sampler.
// The secret is a uniform binary n-vector, A is uniform in Z_q^{m x n} and
// b = A*s + e mod q with e discrete Gaussian of scale sigma.
func KeyGen(params lwekem.LWEParams, sampler *utils.Sampler) (*lwekem.SecretKey, *lwekem.PublicKey, error) {
	n, m, q, sigma := params.N, params.M, params.Q, params.Sigma
	if n <= 0 || m <= 0 || q <= 1 {
		return nil, nil, fmt.Errorf("lwe: invalid parameters n=%d m=%d q=%d", n, m, q)
	}
	size, err := utils.SafeMultiply(m, n)
	if err != nil || size > utils.MaxMatrixElements {
		return nil, nil, errors.New("lwe: matrix exceeds allowed size")
	}

	s := make([]int8, n)
	for i := range s {
		s[i] = sampler.Bit()
	}

	A := make([]int32, size)
	for i := range A {
		A[i] = int32(sampler.Uint32n(uint32(q)))
	}

	e := make([]int32, m)
	for i := range e {
		e[i] = mod(sampler.Gaussian(sigma), q)
	}

	if err := sampler.Err(); err != nil {
		utils.ZeroizeInt8(s)
		utils.ZeroizeInt32(e)
		return nil, nil, fmt.Errorf("lwe: sampling failed: %w", err)
	}

	// b = A*s + e mod q
	b := matVecMul(A, s, m, n, q)
	for i := range b {
		b[i] = mod(int64(b[i])+int64(e[i]), q)
	}
	utils.ZeroizeInt32(e)

	return &lwekem.SecretKey{S: s},
		&lwekem.PublicKey{A: A, B: b, Params: params},
		nil
}

// Encrypt encrypts bits (each 0 or 1) one component per bit. For every bit a
// subset of between n/2 and n distinct rows of (A, b) is summed and the bit
// is added to v scaled by floor(q/2). All subset randomness comes from
// sampler.
func Encrypt(pk *lwekem.PublicKey, bits []int8, sampler *utils.Sampler) (*lwekem.Ciphertext, error) {
	if err := checkPublicKey(pk); err != nil {
		return nil, err
	}
	if len(bits) > utils.MaxComponents {
		return nil, errors.New("lwe: message exceeds maximum allowed size")
	}

	n, m, q := pk.Params.N, pk.Params.M, pk.Params.Q
	half := int64(q / 2)
	minSubset := n / 2
	scratch := make([]int, m)

	components := make([]lwekem.Component, len(bits))
	for k, bit := range bits {
		if bit != 0 && bit != 1 {
			return nil, fmt.Errorf("lwe: bit %d is %d, want 0 or 1", k, bit)
		}
		subsetSize := minSubset + int(sampler.Uint32n(uint32(n-minSubset+1)))
		rows := sampler.Distinct(subsetSize, m, scratch)

		acc := make([]int64, n)
		var v int64
		for _, i := range rows {
			row := pk.A[i*n : (i+1)*n]
			for j, a := range row {
				acc[j] += int64(a)
			}
			v += int64(pk.B[i])
		}

		u := make([]int32, n)
		for j := range acc {
			u[j] = mod(acc[j], q)
		}
		components[k] = lwekem.Component{U: u, V: mod(v+int64(bit)*half, q)}
	}

	if err := sampler.Err(); err != nil {
		return nil, fmt.Errorf("lwe: sampling failed: %w", err)
	}
	return &lwekem.Ciphertext{Components: components}, nil
}

// Decrypt recovers one bit per ciphertext component.
func Decrypt(sk *lwekem.SecretKey, ct *lwekem.Ciphertext, params lwekem.LWEParams) ([]int8, error) {
	if sk == nil || len(sk.S) == 0 {
		return nil, ErrUninitializedKey
	}
	if len(sk.S) != params.N {
		return nil, fmt.Errorf("lwe: secret key has %d entries, want %d", len(sk.S), params.N)
	}
	if ct == nil {
		return nil, ErrMalformedCiphertext
	}
	q := params.Q
	if q < 2 {
		return nil, fmt.Errorf("%w: invalid modulus q=%d", ErrMalformedPublicKey, q)
	}

	bits := make([]int8, len(ct.Components))
	for k, c := range ct.Components {
		if len(c.U) != params.N {
			return nil, fmt.Errorf("%w: component %d has |u|=%d, want %d", ErrMalformedCiphertext, k, len(c.U), params.N)
		}
		inner := innerProduct(c.U, sk.S, q)
		diff := mod(int64(c.V)-int64(inner), q)
		bits[k] = decodeBit(diff, q)
	}
	return bits, nil
}

// BytesToBits expands data into bits, most significant bit of each byte first.
func BytesToBits(data []byte) []int8 {
	bits := make([]int8, 0, len(data)*8)
	for _, b := range data {
		for j := 7; j >= 0; j-- {
			bits = append(bits, int8(b>>j&1))
		}
	}
	return bits
}

// BitsToBytes packs bits into bytes, most significant bit first, padding the
// final group with zero bits. Bytes that decode to zero are dropped, so a
// message with embedded NUL bytes comes back shorter.
func BitsToBytes(bits []int8) []byte {
	out := make([]byte, 0, (len(bits)+7)/8)
	for i := 0; i < len(bits); i += 8 {
		var b byte
		for j := 0; j < 8; j++ {
			b <<= 1
			if i+j < len(bits) {
				b |= byte(bits[i+j] & 1)
			}
		}
		if b != 0 {
			out = append(out, b)
		}
	}
	return out
}

// EncryptText encrypts a byte string bit by bit.
func EncryptText(pk *lwekem.PublicKey, text []byte, sampler *utils.Sampler) (*lwekem.Ciphertext, error) {
	if len(text) > utils.MaxMessageSize {
		return nil, errors.New("lwe: message exceeds maximum allowed size")
	}
	return Encrypt(pk, BytesToBits(text), sampler)
}

// DecryptText decrypts a ciphertext produced by EncryptText.
func DecryptText(sk *lwekem.SecretKey, ct *lwekem.Ciphertext, params lwekem.LWEParams) ([]byte, error) {
	bits, err := Decrypt(sk, ct, params)
	if err != nil {
		return nil, err
	}
	return BitsToBytes(bits), nil
}
