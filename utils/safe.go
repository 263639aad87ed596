package utils

import (
	"encoding/binary"
	"errors"
	"math"
)

// Decoder limits. Lengths read from untrusted input are checked against
// these before anything is allocated.
const (
	// MaxVectorLength is the maximum allowed length for vectors (e.g., b, u, s).
	MaxVectorLength = math.MaxUint16

	// MaxMatrixElements is the maximum allowed number of elements in a matrix.
	MaxMatrixElements = 1 << 24 // 16M elements

	// MaxComponents is the maximum allowed number of ciphertext components.
	MaxComponents = 1 << 16

	// MaxMessageSize is the maximum allowed message size in bytes.
	MaxMessageSize = 1 << 20 // 1MB
)

var (
	// ErrOverflow indicates an integer overflow occurred.
	ErrOverflow = errors.New("integer overflow")

	// ErrExceedsLimit indicates a value exceeds the allowed limit.
	ErrExceedsLimit = errors.New("value exceeds allowed limit")

	// ErrInvalidLength indicates an invalid length value.
	ErrInvalidLength = errors.New("invalid length")

	// ErrTruncated indicates the input ended before a field was complete.
	ErrTruncated = errors.New("truncated input")
)

// SafeMultiply multiplies two non-negative integers and returns an error if overflow occurs.
func SafeMultiply(a, b int) (int, error) {
	if a < 0 || b < 0 {
		return 0, ErrInvalidLength
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// ValidateSliceAccess checks that accessing data[offset:offset+size] is safe.
func ValidateSliceAccess(data []byte, offset, size int) error {
	if offset < 0 || size < 0 {
		return ErrInvalidLength
	}
	if offset+size < offset { // overflow check
		return ErrOverflow
	}
	if offset+size > len(data) {
		return ErrTruncated
	}
	return nil
}

// SafeReadUint32 reads a big-endian uint32 at offset and returns the value
// and the offset just past it.
func SafeReadUint32(data []byte, offset int) (uint32, int, error) {
	if err := ValidateSliceAccess(data, offset, 4); err != nil {
		return 0, offset, err
	}
	return binary.BigEndian.Uint32(data[offset:]), offset + 4, nil
}

// SafeReadLength reads a big-endian uint32 length at offset and checks it
// against maxAllowed.
func SafeReadLength(data []byte, offset, maxAllowed int) (length int, newOffset int, err error) {
	raw, next, err := SafeReadUint32(data, offset)
	if err != nil {
		return 0, offset, err
	}
	if uint64(raw) > uint64(maxAllowed) {
		return 0, offset, ErrExceedsLimit
	}
	return int(raw), next, nil
}
