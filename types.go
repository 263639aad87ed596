// Package lwekem implements a small-parameter LWE public-key encryption
// primitive wrapped into a key encapsulation mechanism by a
// Fujisaki-Okamoto transform with implicit rejection.
//
// WARNING: This is a pedagogical construction. It has no ring structure,
// no vetted noise sampler and toy parameters. DO NOT use it to protect
// sensitive data.
package lwekem

// ParameterSet names a built-in parameter set.
type ParameterSet string

const (
	// LWE64 is the n=64 demonstration parameter set.
	LWE64 ParameterSet = "LWE-64"
	// LWE128 is the n=128 parameter set.
	LWE128 ParameterSet = "LWE-128"
	// Custom marks parameters that were loaded explicitly rather than by name.
	Custom ParameterSet = "custom"
)

// =============================================================================
// Parameter Types
// =============================================================================

// LWEParams contains the LWE parameters.
type LWEParams struct {
	Set   ParameterSet `json:"set" yaml:"set"`
	N     int          `json:"n" yaml:"n"`         // Secret dimension
	Q     int          `json:"q" yaml:"q"`         // Prime modulus
	M     int          `json:"m" yaml:"m"`         // Number of samples (rows of A)
	Sigma float64      `json:"sigma" yaml:"sigma"` // Noise scale
}

// =============================================================================
// LWE Key Types
// =============================================================================

// PublicKey is the LWE public key (A, b = A*s + e mod q).
type PublicKey struct {
	A      []int32 // m x n matrix (flattened, row-major)
	B      []int32 // m-vector
	Params LWEParams
}

// SecretKey is the LWE secret key.
type SecretKey struct {
	S []int8 // n-vector in {0, 1}
}

// Public returns pk itself so a bare public key can be passed to
// encapsulation.
func (pk *PublicKey) Public() *PublicKey {
	return pk
}

// =============================================================================
// Ciphertext Types
// =============================================================================

// Component encrypts a single plaintext bit.
type Component struct {
	U []int32 // n-vector
	V int32
}

// Ciphertext is an ordered sequence of per-bit components, most significant
// bit of each plaintext byte first.
type Ciphertext struct {
	Components []Component
}

// Len returns the number of encrypted bits.
func (ct *Ciphertext) Len() int {
	return len(ct.Components)
}

// Clone returns a deep copy of ct.
func (ct *Ciphertext) Clone() *Ciphertext {
	out := &Ciphertext{Components: make([]Component, len(ct.Components))}
	for i, c := range ct.Components {
		out.Components[i] = Component{U: append([]int32(nil), c.U...), V: c.V}
	}
	return out
}

// =============================================================================
// KEM Types
// =============================================================================

// KEMBundle is everything the decapsulating party holds.
type KEMBundle struct {
	PublicKey PublicKey
	SecretKey SecretKey
	PKHash    [32]byte // commitment to the serialized public key
	Z         [32]byte // implicit-rejection secret
}

// Public returns the bundle's public key.
func (b *KEMBundle) Public() *PublicKey {
	if b == nil {
		return nil
	}
	return &b.PublicKey
}

// PublicKeySource is implemented by *PublicKey and *KEMBundle.
type PublicKeySource interface {
	Public() *PublicKey
}

// EncapsulationResult contains the result of KEM encapsulation.
type EncapsulationResult struct {
	SharedSecret []byte
	Ciphertext   Ciphertext
}

// EncryptedMessage contains an encrypted message with its KEM ciphertext.
type EncryptedMessage struct {
	Ciphertext Ciphertext
	Encrypted  []byte // AEAD output (ciphertext || tag)
	Nonce      []byte
}
