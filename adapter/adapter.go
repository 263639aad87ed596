// Package adapter turns the randomized LWE primitive into a deterministic
// encryption of fixed-size messages, the form required by the FO transform.
//
// A 32-byte message travels as its padded standard base64 text, so every
// ciphertext has exactly CarrierBits components. All randomness of one
// encryption comes from a keyed PRNG derived from the caller's coins and
// owned by that call alone.
package adapter

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/core"
	"github.com/BackendStack21/lwe-kem-go/problems/lwe"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

const (
	// MessageSize is the plaintext size accepted by EncryptDeterministic.
	MessageSize = 32
	// CoinsSize is the size of the encryption coins.
	CoinsSize = 32
	// SeedSize is the minimum seed size accepted by KeyGenFromSeed.
	SeedSize = 32
)

var (
	// ErrInvalidMessageSize is returned for messages that are not MessageSize bytes.
	ErrInvalidMessageSize = errors.New("adapter: message must be 32 bytes")
	// ErrInvalidCoinsSize is returned for coins that are not CoinsSize bytes.
	ErrInvalidCoinsSize = errors.New("adapter: coins must be 32 bytes")
)

// CarrierBits returns the number of ciphertext components produced for one
// message: eight per character of its base64 text.
func CarrierBits() int {
	return 8 * base64.StdEncoding.EncodedLen(MessageSize)
}

// KeyGen generates a fresh key pair after validating params.
func KeyGen(params lwekem.LWEParams) (*lwekem.PublicKey, *lwekem.SecretKey, error) {
	if err := core.ValidateParams(params); err != nil {
		return nil, nil, err
	}
	sampler, err := utils.NewRandomSampler()
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: %w", err)
	}
	sk, pk, err := lwe.KeyGen(params, sampler)
	if err != nil {
		return nil, nil, err
	}
	return pk, sk, nil
}

// KeyGenFromSeed derives a key pair from seed. The same seed and
// parameters always yield the same key pair.
func KeyGenFromSeed(params lwekem.LWEParams, seed []byte) (*lwekem.PublicKey, *lwekem.SecretKey, error) {
	if len(seed) < SeedSize {
		return nil, nil, fmt.Errorf("adapter: seed must be at least %d bytes", SeedSize)
	}
	if err := core.ValidateParams(params); err != nil {
		return nil, nil, err
	}
	key := utils.H(utils.SamplerSeedSize, "keygen", seed)
	defer utils.Zeroize(key)

	sampler, err := utils.NewKeyedSampler(key)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: %w", err)
	}
	sk, pk, err := lwe.KeyGen(params, sampler)
	if err != nil {
		return nil, nil, err
	}
	return pk, sk, nil
}

// EncryptDeterministic encrypts msg under pk using only coins as the source
// of randomness. Identical inputs give byte-identical ciphertexts.
func EncryptDeterministic(pk *lwekem.PublicKey, msg, coins []byte) (*lwekem.Ciphertext, error) {
	if len(msg) != MessageSize {
		return nil, ErrInvalidMessageSize
	}
	if len(coins) != CoinsSize {
		return nil, ErrInvalidCoinsSize
	}

	seed := utils.H(utils.SamplerSeedSize, "rng-seed", coins)
	defer utils.Zeroize(seed)
	sampler, err := utils.NewKeyedSampler(seed)
	if err != nil {
		return nil, fmt.Errorf("adapter: %w", err)
	}

	text := make([]byte, base64.StdEncoding.EncodedLen(len(msg)))
	base64.StdEncoding.Encode(text, msg)
	defer utils.Zeroize(text)

	return lwe.EncryptText(pk, text, sampler)
}

// Decrypt recovers the 32-byte message carried by ct. A carrier that is not
// valid base64 decodes to the all-zero message; a valid one is truncated or
// zero-padded to MessageSize. Only uninitialized keys and wrong-shaped
// components are reported as errors.
func Decrypt(sk *lwekem.SecretKey, ct *lwekem.Ciphertext, params lwekem.LWEParams) ([MessageSize]byte, error) {
	var out [MessageSize]byte

	text, err := lwe.DecryptText(sk, ct, params)
	if err != nil {
		return out, err
	}
	defer utils.Zeroize(text)

	// The stdlib decoder skips CR and LF; a strict carrier rejects them.
	if bytes.ContainsAny(text, "\r\n") {
		return out, nil
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(decoded, text)
	if err != nil {
		utils.Zeroize(decoded)
		return out, nil
	}
	copy(out[:], decoded[:n])
	utils.Zeroize(decoded)
	return out, nil
}
