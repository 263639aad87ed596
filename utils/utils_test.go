package utils

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/crypto/sha3"
)

type errorReader struct{}

func (e *errorReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("simulated rand error")
}

func TestValidateSeedEntropy(t *testing.T) {
	seq := make([]byte, 32)
	desc := make([]byte, 32)
	for i := range seq {
		seq[i] = byte(i)
		desc[i] = byte(3 - i) // wraps through 0xff
	}

	tests := []struct {
		name string
		seed []byte
		want error
	}{
		{"zeros", make([]byte, 32), ErrWeakSeed},
		{"ascending", seq, ErrWeakSeed},
		{"descending", desc, ErrWeakSeed},
		{"low diversity", bytes.Repeat([]byte{1, 9, 1, 7}, 8), ErrWeakSeed},
		{"short", make([]byte, 16), ErrShortSeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateSeedEntropy(tt.seed); !errors.Is(err, tt.want) {
				t.Errorf("ValidateSeedEntropy() = %v, want %v", err, tt.want)
			}
		})
	}

	good, _ := SecureRandomBytes(32)
	if err := ValidateSeedEntropy(good); err != nil {
		t.Errorf("ValidateSeedEntropy rejected good seed: %v", err)
	}
}

func TestConstantTimeSelect(t *testing.T) {
	a := []byte{1, 2, 3}
	c := []byte{1, 2, 4}

	if res := ConstantTimeSelect(1, a, c); !bytes.Equal(res, a) {
		t.Error("ConstantTimeSelect(1) failed")
	}
	res := ConstantTimeSelect(0, a, c)
	if !bytes.Equal(res, c) {
		t.Error("ConstantTimeSelect(0) failed")
	}
	if &res[0] == &c[0] {
		t.Error("ConstantTimeSelect must return a copy")
	}

	defer func() {
		if recover() == nil {
			t.Error("ConstantTimeSelect should panic on length mismatch")
		}
	}()
	ConstantTimeSelect(1, a, c[:2])
}

func TestSecureRandomBytes(t *testing.T) {
	b, err := SecureRandomBytes(32)
	if err != nil {
		t.Fatalf("SecureRandomBytes failed: %v", err)
	}
	if len(b) != 32 {
		t.Errorf("Expected 32 bytes, got %d", len(b))
	}

	b2, _ := SecureRandomBytes(32)
	if bytes.Equal(b, b2) {
		t.Error("SecureRandomBytes returned duplicate values")
	}
}

func TestSecureRandomBytes_RandError(t *testing.T) {
	old := RandReader
	RandReader = &errorReader{}
	defer func() { RandReader = old }()

	if _, err := SecureRandomBytes(32); err == nil {
		t.Error("expected error from rand failure")
	}
}

func TestXORBytes(t *testing.T) {
	msg := []byte("HELLO WORLD")
	key := Shake256([]byte("k"), 32)

	enc := XORBytes(msg, key)
	if bytes.Equal(enc, msg) {
		t.Error("XORBytes did not change the message")
	}
	if dec := XORBytes(enc, key); !bytes.Equal(dec, msg) {
		t.Errorf("XOR round trip = %q, want %q", dec, msg)
	}

	// Keys shorter than the message repeat.
	if got := XORBytes([]byte{1, 2, 3}, []byte{1}); !bytes.Equal(got, []byte{0, 3, 2}) {
		t.Errorf("XORBytes with short key = %v", got)
	}
}

func TestZeroize(t *testing.T) {
	b := []byte{1, 2, 3}
	Zeroize(b)
	for _, v := range b {
		if v != 0 {
			t.Error("Zeroize failed")
		}
	}

	i := []int32{1, 2, 3}
	ZeroizeInt32(i)
	for _, v := range i {
		if v != 0 {
			t.Error("ZeroizeInt32 failed")
		}
	}

	s := []int8{1, 0, 1}
	ZeroizeInt8(s)
	for _, v := range s {
		if v != 0 {
			t.Error("ZeroizeInt8 failed")
		}
	}
}

func TestShake(t *testing.T) {
	data := []byte("test")
	out := Shake256(data, 32)
	out2 := Shake256(data, 32)
	if !bytes.Equal(out, out2) {
		t.Error("Shake256 not deterministic")
	}

	long := Shake256(data, 64)
	if !bytes.Equal(long[:32], out) {
		t.Error("Shake256 output should be a prefix of longer output")
	}

	hash := SHA3256(data)
	if len(hash) != 32 {
		t.Errorf("SHA3256 returned wrong length: %d", len(hash))
	}
}

func TestH_Layout(t *testing.T) {
	// H("tag", p1, p2) must equal SHAKE256 over the length-prefixed encoding.
	p1 := []byte("first")
	p2 := []byte{}
	var buf []byte
	for _, p := range [][]byte{[]byte("tag"), p1, p2} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	want := make([]byte, 48)
	sha3.ShakeSum256(want, buf)

	if got := H(48, "tag", p1, p2); !bytes.Equal(got, want) {
		t.Errorf("H layout mismatch:\n got %x\nwant %x", got, want)
	}
}

func TestH_DomainSeparation(t *testing.T) {
	x := []byte("same input")
	if bytes.Equal(H(HashSize, "pk", x), H(HashSize, "mbar", x)) {
		t.Error(`H("pk", X) must differ from H("mbar", X)`)
	}
	if bytes.Equal(H(HashSize, "kdf", x), H(HashSize, "kdf-reject", x)) {
		t.Error(`H("kdf", X) must differ from H("kdf-reject", X)`)
	}
}

func TestH_NoConcatenationAmbiguity(t *testing.T) {
	a := H(HashSize, "ct", []byte("ab"), []byte("c"))
	b := H(HashSize, "ct", []byte("a"), []byte("bc"))
	c := H(HashSize, "ct", []byte("abc"))
	if bytes.Equal(a, b) || bytes.Equal(a, c) || bytes.Equal(b, c) {
		t.Error("H must not collide on re-split parts")
	}
}

func TestH_OutputLength(t *testing.T) {
	for _, n := range []int{0, 1, 32, 100} {
		if got := len(H(n, "coins")); got != n {
			t.Errorf("len(H(%d)) = %d", n, got)
		}
	}
}
