package lwe

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

const (
	pkMagic = "PK"
	ctMagic = "CT"

	pkHeaderSize = 2 + 2 + 4 + 2 // magic, N, Q, M
	ctHeaderSize = 2 + 4         // magic, count
)

// SerializePublicKey returns the canonical encoding of pk:
//
//	"PK" || N u16 BE || Q u32 BE || M u16 BE || A || B
//
// where A (row-major) and B are int32 little-endian per element. Sigma is
// not part of the encoding.
func SerializePublicKey(pk *lwekem.PublicKey) ([]byte, error) {
	if err := checkPublicKey(pk); err != nil {
		return nil, err
	}
	p := pk.Params
	if p.N > math.MaxUint16 || p.M > math.MaxUint16 || p.Q > math.MaxInt32 {
		return nil, fmt.Errorf("%w: parameters do not fit the encoding", ErrMalformedPublicKey)
	}

	result := make([]byte, pkHeaderSize+4*(len(pk.A)+len(pk.B)))
	copy(result, pkMagic)
	binary.BigEndian.PutUint16(result[2:], uint16(p.N))
	binary.BigEndian.PutUint32(result[4:], uint32(p.Q))
	binary.BigEndian.PutUint16(result[8:], uint16(p.M))

	offset := pkHeaderSize
	for _, v := range pk.A {
		binary.LittleEndian.PutUint32(result[offset:], uint32(v))
		offset += 4
	}
	for _, v := range pk.B {
		binary.LittleEndian.PutUint32(result[offset:], uint32(v))
		offset += 4
	}
	return result, nil
}

// DeserializePublicKey parses the output of SerializePublicKey. The returned
// parameters carry N, Q and M only; Set is Custom and Sigma is zero.
func DeserializePublicKey(data []byte) (*lwekem.PublicKey, error) {
	if len(data) < pkHeaderSize {
		return nil, errors.New("invalid LWE public key: too short")
	}
	if string(data[:2]) != pkMagic {
		return nil, errors.New("invalid LWE public key: bad magic")
	}
	n := int(binary.BigEndian.Uint16(data[2:]))
	q := int(binary.BigEndian.Uint32(data[4:]))
	m := int(binary.BigEndian.Uint16(data[8:]))
	if n == 0 || m < n || q < 2 || q > math.MaxInt32 {
		return nil, fmt.Errorf("invalid LWE public key: bad dimensions n=%d m=%d q=%d", n, m, q)
	}

	aLen := m * n
	if aLen > utils.MaxMatrixElements {
		return nil, errors.New("invalid LWE public key: A length exceeds limit")
	}
	if len(data) != pkHeaderSize+4*(aLen+m) {
		return nil, errors.New("invalid LWE public key: length mismatch")
	}

	offset := pkHeaderSize
	readVec := func(count int) ([]int32, error) {
		out := make([]int32, count)
		for i := range out {
			v := binary.LittleEndian.Uint32(data[offset:])
			if v >= uint32(q) {
				return nil, errors.New("invalid LWE public key: element out of range")
			}
			out[i] = int32(v)
			offset += 4
		}
		return out, nil
	}

	A, err := readVec(aLen)
	if err != nil {
		return nil, err
	}
	B, err := readVec(m)
	if err != nil {
		return nil, err
	}
	return &lwekem.PublicKey{
		A:      A,
		B:      B,
		Params: lwekem.LWEParams{Set: lwekem.Custom, N: n, Q: q, M: m},
	}, nil
}

// SerializeCiphertext returns the canonical encoding of ct:
//
//	"CT" || count u32 BE || { byteLen(U) u32 BE || U (int32 LE) || V u64 BE }
func SerializeCiphertext(ct *lwekem.Ciphertext) []byte {
	if ct == nil {
		ct = &lwekem.Ciphertext{}
	}
	size := ctHeaderSize
	for _, c := range ct.Components {
		size += 4 + 4*len(c.U) + 8
	}

	result := make([]byte, size)
	copy(result, ctMagic)
	binary.BigEndian.PutUint32(result[2:], uint32(len(ct.Components)))

	offset := ctHeaderSize
	for _, c := range ct.Components {
		binary.BigEndian.PutUint32(result[offset:], uint32(4*len(c.U)))
		offset += 4
		for _, u := range c.U {
			binary.LittleEndian.PutUint32(result[offset:], uint32(u))
			offset += 4
		}
		binary.BigEndian.PutUint64(result[offset:], uint64(uint32(c.V)))
		offset += 8
	}
	return result
}

// DeserializeCiphertext parses the output of SerializeCiphertext.
func DeserializeCiphertext(data []byte) (*lwekem.Ciphertext, error) {
	if len(data) < ctHeaderSize || string(data[:2]) != ctMagic {
		return nil, fmt.Errorf("%w: bad header", ErrMalformedCiphertext)
	}
	count, offset, err := utils.SafeReadLength(data, 2, utils.MaxComponents)
	if err != nil {
		return nil, fmt.Errorf("%w: component count: %v", ErrMalformedCiphertext, err)
	}
	// Every component needs at least its length prefix and V.
	if count > (len(data)-offset)/12 {
		return nil, fmt.Errorf("%w: truncated", ErrMalformedCiphertext)
	}

	ct := &lwekem.Ciphertext{Components: make([]lwekem.Component, count)}
	for k := 0; k < count; k++ {
		uBytes, next, err := utils.SafeReadLength(data, offset, 4*utils.MaxVectorLength)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d: %v", ErrMalformedCiphertext, k, err)
		}
		if uBytes%4 != 0 {
			return nil, fmt.Errorf("%w: component %d: U length not multiple of 4", ErrMalformedCiphertext, k)
		}
		offset = next
		if err := utils.ValidateSliceAccess(data, offset, uBytes+8); err != nil {
			return nil, fmt.Errorf("%w: component %d: %v", ErrMalformedCiphertext, k, err)
		}

		u := make([]int32, uBytes/4)
		for i := range u {
			u[i] = int32(binary.LittleEndian.Uint32(data[offset:]))
			offset += 4
		}
		v := binary.BigEndian.Uint64(data[offset:])
		if v > math.MaxInt32 {
			return nil, fmt.Errorf("%w: component %d: V out of range", ErrMalformedCiphertext, k)
		}
		offset += 8
		ct.Components[k] = lwekem.Component{U: u, V: int32(v)}
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedCiphertext, len(data)-offset)
	}
	return ct, nil
}

// CiphertextCompare returns 1 if a and b have identical canonical encodings
// and 0 otherwise. The comparison time depends only on the encoded lengths.
func CiphertextCompare(a, b *lwekem.Ciphertext) int {
	return subtle.ConstantTimeCompare(SerializeCiphertext(a), SerializeCiphertext(b))
}

// CiphertextEqual reports whether a and b have identical canonical encodings.
func CiphertextEqual(a, b *lwekem.Ciphertext) bool {
	return CiphertextCompare(a, b) == 1
}
