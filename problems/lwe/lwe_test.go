package lwe

import (
	"bytes"
	"errors"
	"testing"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/core"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

type failingPRNG struct{}

func (failingPRNG) Read(p []byte) (int, error) { return 0, errors.New("prng failure") }
func (failingPRNG) Reset()                     {}

func newSampler(t testing.TB, seed byte) *utils.Sampler {
	t.Helper()
	s, err := utils.NewKeyedSampler(bytes.Repeat([]byte{seed}, utils.SamplerSeedSize))
	if err != nil {
		t.Fatalf("NewKeyedSampler failed: %v", err)
	}
	return s
}

func keyPair(t testing.TB, params lwekem.LWEParams) (*lwekem.SecretKey, *lwekem.PublicKey) {
	t.Helper()
	sk, pk, err := KeyGen(params, newSampler(t, 1))
	if err != nil {
		t.Fatalf("KeyGen failed: %v", err)
	}
	return sk, pk
}

func TestMathOps(t *testing.T) {
	if mod(-5, 3) != 1 {
		t.Error("mod(-5, 3) should be 1")
	}
	if mod(5, 3) != 2 {
		t.Error("mod(5, 3) should be 2")
	}
	if mod(-2053, 2053) != 0 {
		t.Error("mod(-q, q) should be 0")
	}

	A := []int32{1, 2, 3, 4, 5, 6} // 2x3
	s := []int8{1, 0, 1}
	got := matVecMul(A, s, 2, 3, 7)
	if got[0] != 4 || got[1] != 3 { // 1+3, 4+6=10 mod 7
		t.Errorf("matVecMul = %v, want [4 3]", got)
	}
	if innerProduct([]int32{5, 6}, []int8{1, 1}, 7) != 4 {
		t.Error("innerProduct([5 6], [1 1]) mod 7 should be 4")
	}
}

func TestDecodeBit(t *testing.T) {
	const q = 2053 // q/4 = 513, 3q/4 = 1539
	tests := []struct {
		diff int32
		want int8
	}{
		{0, 0},
		{512, 0},
		{513, 1},
		{1026, 1},
		{1539, 1},
		{1540, 0},
		{2052, 0},
	}
	for _, tt := range tests {
		if got := decodeBit(tt.diff, q); got != tt.want {
			t.Errorf("decodeBit(%d) = %d, want %d", tt.diff, got, tt.want)
		}
	}
}

func TestKeyGen(t *testing.T) {
	params := core.LWE64Params
	sk, pk := keyPair(t, params)

	if len(sk.S) != params.N {
		t.Fatalf("secret length %d, want %d", len(sk.S), params.N)
	}
	for i, v := range sk.S {
		if v != 0 && v != 1 {
			t.Fatalf("S[%d] = %d, want 0 or 1", i, v)
		}
	}
	if len(pk.A) != params.M*params.N || len(pk.B) != params.M {
		t.Fatalf("public key shape |A|=%d |B|=%d", len(pk.A), len(pk.B))
	}
	for i, v := range pk.A {
		if v < 0 || int(v) >= params.Q {
			t.Fatalf("A[%d] = %d out of range", i, v)
		}
	}

	// B - A*s must be small noise.
	As := matVecMul(pk.A, sk.S, params.M, params.N, params.Q)
	bound := int32(8 * params.Sigma)
	for i := range pk.B {
		e := mod(int64(pk.B[i])-int64(As[i]), params.Q)
		if e > int32(params.Q/2) {
			e -= int32(params.Q)
		}
		if e > bound || e < -bound {
			t.Fatalf("noise e[%d] = %d exceeds %d", i, e, bound)
		}
	}
}

func TestKeyGenDeterministic(t *testing.T) {
	params := core.LWE64Params
	sk1, pk1, _ := KeyGen(params, newSampler(t, 7))
	sk2, pk2, _ := KeyGen(params, newSampler(t, 7))

	pk1Bytes, _ := SerializePublicKey(pk1)
	pk2Bytes, _ := SerializePublicKey(pk2)
	if !bytes.Equal(pk1Bytes, pk2Bytes) {
		t.Error("same sampler seed produced different public keys")
	}
	for i := range sk1.S {
		if sk1.S[i] != sk2.S[i] {
			t.Fatal("same sampler seed produced different secrets")
		}
	}
}

func TestKeyGenInvalidParams(t *testing.T) {
	bad := []lwekem.LWEParams{
		{N: 0, Q: 2053, M: 10, Sigma: 3.2},
		{N: 10, Q: 1, M: 10, Sigma: 3.2},
		{N: 10, Q: 2053, M: 0, Sigma: 3.2},
	}
	for _, p := range bad {
		if _, _, err := KeyGen(p, newSampler(t, 1)); err == nil {
			t.Errorf("KeyGen(%+v) should fail", p)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, set := range []lwekem.ParameterSet{lwekem.LWE64, lwekem.LWE128} {
		t.Run(string(set), func(t *testing.T) {
			params, err := core.GetParams(set)
			if err != nil {
				t.Fatalf("GetParams failed: %v", err)
			}
			sk, pk := keyPair(t, params)

			bits := []int8{1, 0, 1, 1, 0, 0, 1, 0, 0, 1}
			ct, err := Encrypt(pk, bits, newSampler(t, 2))
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if ct.Len() != len(bits) {
				t.Fatalf("ciphertext has %d components, want %d", ct.Len(), len(bits))
			}
			for _, c := range ct.Components {
				if len(c.U) != params.N {
					t.Fatalf("|U| = %d, want %d", len(c.U), params.N)
				}
			}

			dec, err := Decrypt(sk, ct, params)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			for i := range bits {
				if dec[i] != bits[i] {
					t.Fatalf("bit %d: got %d, want %d", i, dec[i], bits[i])
				}
			}
		})
	}
}

func TestEncryptDeterministicSampler(t *testing.T) {
	params := core.LWE64Params
	_, pk := keyPair(t, params)
	bits := BytesToBits([]byte("abc"))

	ct1, _ := Encrypt(pk, bits, newSampler(t, 9))
	ct2, _ := Encrypt(pk, bits, newSampler(t, 9))
	ct3, _ := Encrypt(pk, bits, newSampler(t, 10))

	if !CiphertextEqual(ct1, ct2) {
		t.Error("same sampler seed produced different ciphertexts")
	}
	if CiphertextEqual(ct1, ct3) {
		t.Error("different sampler seeds produced equal ciphertexts")
	}
}

func TestEncryptRejectsNonBits(t *testing.T) {
	_, pk := keyPair(t, core.LWE64Params)
	if _, err := Encrypt(pk, []int8{0, 2}, newSampler(t, 1)); err == nil {
		t.Error("Encrypt should reject a bit value of 2")
	}
}

func TestUninitializedKeys(t *testing.T) {
	params := core.LWE64Params
	if _, err := Encrypt(nil, []int8{1}, newSampler(t, 1)); !errors.Is(err, ErrUninitializedKey) {
		t.Errorf("Encrypt(nil) error = %v, want ErrUninitializedKey", err)
	}
	if _, err := Encrypt(&lwekem.PublicKey{Params: params}, []int8{1}, newSampler(t, 1)); !errors.Is(err, ErrUninitializedKey) {
		t.Errorf("Encrypt(empty) error = %v, want ErrUninitializedKey", err)
	}
	if _, err := Decrypt(nil, &lwekem.Ciphertext{}, params); !errors.Is(err, ErrUninitializedKey) {
		t.Errorf("Decrypt(nil) error = %v, want ErrUninitializedKey", err)
	}
	if _, err := Decrypt(&lwekem.SecretKey{}, &lwekem.Ciphertext{}, params); !errors.Is(err, ErrUninitializedKey) {
		t.Errorf("Decrypt(empty) error = %v, want ErrUninitializedKey", err)
	}
}

func TestMalformedInputs(t *testing.T) {
	params := core.LWE64Params
	sk, pk := keyPair(t, params)

	ct := &lwekem.Ciphertext{Components: []lwekem.Component{{U: make([]int32, params.N-1), V: 0}}}
	if _, err := Decrypt(sk, ct, params); !errors.Is(err, ErrMalformedCiphertext) {
		t.Errorf("short U error = %v, want ErrMalformedCiphertext", err)
	}
	if _, err := Decrypt(sk, nil, params); !errors.Is(err, ErrMalformedCiphertext) {
		t.Errorf("nil ciphertext error = %v, want ErrMalformedCiphertext", err)
	}

	truncated := &lwekem.PublicKey{A: pk.A[:len(pk.A)-1], B: pk.B, Params: params}
	if _, err := Encrypt(truncated, []int8{1}, newSampler(t, 1)); !errors.Is(err, ErrMalformedPublicKey) {
		t.Errorf("truncated A error = %v, want ErrMalformedPublicKey", err)
	}

	zeroQ := params
	zeroQ.Q = 0
	if _, err := Decrypt(sk, &lwekem.Ciphertext{}, zeroQ); !errors.Is(err, ErrMalformedPublicKey) {
		t.Errorf("q=0 error = %v, want ErrMalformedPublicKey", err)
	}

	wrongN := core.LWE128Params
	if _, err := Decrypt(sk, &lwekem.Ciphertext{}, wrongN); err == nil {
		t.Error("Decrypt with mismatched dimension should fail")
	}
}

func TestSamplerFailurePropagates(t *testing.T) {
	_, pk := keyPair(t, core.LWE64Params)

	broken := utils.NewSampler(failingPRNG{})
	if _, _, err := KeyGen(core.LWE64Params, broken); err == nil {
		t.Error("KeyGen should surface sampler errors")
	}
	if _, err := Encrypt(pk, []int8{1}, broken); err == nil {
		t.Error("Encrypt should surface sampler errors")
	}
}

func TestTextRoundTrip(t *testing.T) {
	params := core.LWE64Params
	sk, pk := keyPair(t, params)

	msg := []byte("HELLO WORLD")
	ct, err := EncryptText(pk, msg, newSampler(t, 4))
	if err != nil {
		t.Fatalf("EncryptText failed: %v", err)
	}
	if ct.Len() != 8*len(msg) {
		t.Fatalf("ciphertext has %d components, want %d", ct.Len(), 8*len(msg))
	}
	dec, err := DecryptText(sk, ct, params)
	if err != nil {
		t.Fatalf("DecryptText failed: %v", err)
	}
	if !bytes.Equal(dec, msg) {
		t.Errorf("DecryptText = %q, want %q", dec, msg)
	}
}

func TestBitPacking(t *testing.T) {
	bits := BytesToBits([]byte{0x80, 0x01})
	want := []int8{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	if len(bits) != len(want) {
		t.Fatalf("BytesToBits length %d, want %d", len(bits), len(want))
	}
	for i := range want {
		if bits[i] != want[i] {
			t.Fatalf("bit %d = %d, want %d (MSB first)", i, bits[i], want[i])
		}
	}

	if got := BitsToBytes(BytesToBits([]byte("AB"))); !bytes.Equal(got, []byte("AB")) {
		t.Errorf("BitsToBytes round trip = %q", got)
	}
	// Zero bytes are dropped.
	if got := BitsToBytes(BytesToBits([]byte{'A', 0, 'B'})); !bytes.Equal(got, []byte("AB")) {
		t.Errorf("BitsToBytes with NUL = %q, want %q", got, "AB")
	}
	// A trailing partial group is left-aligned.
	if got := BitsToBytes([]int8{1, 1}); !bytes.Equal(got, []byte{0xC0}) {
		t.Errorf("BitsToBytes partial = %x, want c0", got)
	}
}
