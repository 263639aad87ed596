// Package kem implements the LWE key encapsulation mechanism: a
// Fujisaki-Okamoto transform with implicit rejection over the deterministic
// adapter, plus a KEM+DEM message encryption built on it.
package kem

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/adapter"
	"github.com/BackendStack21/lwe-kem-go/core"
	"github.com/BackendStack21/lwe-kem-go/problems/lwe"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

const (
	// SharedSecretSize is the size of every shared secret, accepted or not.
	SharedSecretSize = 32
	// SeedSize is the minimum seed size for GenerateKeyPairFromSeed.
	SeedSize = utils.MinSeedSize

	tagPK        = "pk"
	tagMbar      = "mbar"
	tagCoins     = "coins"
	tagKDF       = "kdf"
	tagKDFReject = "kdf-reject"
	tagCT        = "ct"
	tagKeygenZ   = "keygen-z"
	tagDEMKey    = "dem-key"
)

// ErrAuthentication is returned by Decrypt when the DEM layer rejects a
// message.
var ErrAuthentication = errors.New("kem: message authentication failed")

// PublicKeyHash returns H("pk", serialize_pk(pk)).
func PublicKeyHash(pk *lwekem.PublicKey) ([32]byte, error) {
	var out [32]byte
	data, err := lwe.SerializePublicKey(pk)
	if err != nil {
		return out, err
	}
	copy(out[:], utils.H(32, tagPK, data))
	return out, nil
}

// GenerateKeyPair generates a KEM bundle for a built-in parameter set.
func GenerateKeyPair(set lwekem.ParameterSet) (*lwekem.KEMBundle, error) {
	params, err := core.GetParams(set)
	if err != nil {
		return nil, err
	}
	return GenerateKeyPairWithParams(params)
}

// GenerateKeyPairWithParams generates a KEM bundle for params.
func GenerateKeyPairWithParams(params lwekem.LWEParams) (*lwekem.KEMBundle, error) {
	pk, sk, err := adapter.KeyGen(params)
	if err != nil {
		return nil, err
	}
	z, err := utils.SecureRandomBytes(32)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(z)
	return newBundle(pk, sk, z)
}

// GenerateKeyPairFromSeed generates a deterministic KEM bundle from seed.
func GenerateKeyPairFromSeed(params lwekem.LWEParams, seed []byte) (*lwekem.KEMBundle, error) {
	if err := utils.ValidateSeedEntropy(seed); err != nil {
		return nil, err
	}
	return deriveKeyPair(params, seed)
}

func deriveKeyPair(params lwekem.LWEParams, seed []byte) (*lwekem.KEMBundle, error) {
	pk, sk, err := adapter.KeyGenFromSeed(params, seed)
	if err != nil {
		return nil, err
	}
	z := utils.H(32, tagKeygenZ, seed)
	defer utils.Zeroize(z)
	return newBundle(pk, sk, z)
}

func newBundle(pk *lwekem.PublicKey, sk *lwekem.SecretKey, z []byte) (*lwekem.KEMBundle, error) {
	pkHash, err := PublicKeyHash(pk)
	if err != nil {
		return nil, err
	}
	bundle := &lwekem.KEMBundle{
		PublicKey: *pk,
		SecretKey: *sk,
		PKHash:    pkHash,
	}
	copy(bundle.Z[:], z)
	return bundle, nil
}

// Encapsulate generates a shared secret and ciphertext for src, which may be
// a public key or a full bundle. The public key hash is always recomputed.
func Encapsulate(src lwekem.PublicKeySource, ad []byte) (*lwekem.EncapsulationResult, error) {
	m, err := utils.SecureRandomBytes(32)
	if err != nil {
		return nil, err
	}
	result, err := EncapsulateDeterministic(src, m, ad)
	utils.Zeroize(m)
	return result, err
}

// EncapsulateDeterministic performs encapsulation with a caller-supplied
// 32-byte seed m.
func EncapsulateDeterministic(src lwekem.PublicKeySource, m, ad []byte) (*lwekem.EncapsulationResult, error) {
	if len(m) != 32 {
		return nil, errors.New("encapsulation seed must be 32 bytes")
	}
	if src == nil || src.Public() == nil {
		return nil, lwe.ErrUninitializedKey
	}
	pk := src.Public()
	pkHash, err := PublicKeyHash(pk)
	if err != nil {
		return nil, err
	}

	mbar := utils.H(adapter.MessageSize, tagMbar, m, pkHash[:], ad)
	defer utils.Zeroize(mbar)
	coins := utils.H(adapter.CoinsSize, tagCoins, mbar, pkHash[:], ad)
	defer utils.Zeroize(coins)

	ct, err := adapter.EncryptDeterministic(pk, mbar, coins)
	if err != nil {
		return nil, err
	}

	ctHash := utils.H(32, tagCT, lwe.SerializeCiphertext(ct))
	sharedSecret := utils.H(SharedSecretSize, tagKDF, mbar, ctHash, pkHash[:], ad)

	return &lwekem.EncapsulationResult{
		SharedSecret: sharedSecret,
		Ciphertext:   *ct,
	}, nil
}

// Decapsulate recovers the shared secret from ct. A ciphertext that does not
// re-encrypt identically yields the implicit-rejection key instead, which is
// not an error: both keys are always computed and one is selected in
// constant time. Errors are returned only for a missing bundle or
// wrong-shaped components.
func Decapsulate(bundle *lwekem.KEMBundle, ct *lwekem.Ciphertext, ad []byte) ([]byte, error) {
	if bundle == nil || len(bundle.SecretKey.S) == 0 || len(bundle.PublicKey.A) == 0 {
		return nil, lwe.ErrUninitializedKey
	}
	if ct == nil {
		return nil, lwe.ErrMalformedCiphertext
	}
	pk := &bundle.PublicKey
	pkHash := bundle.PKHash[:]

	mbar, err := adapter.Decrypt(&bundle.SecretKey, ct, pk.Params)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(mbar[:])

	coins := utils.H(adapter.CoinsSize, tagCoins, mbar[:], pkHash, ad)
	defer utils.Zeroize(coins)
	reEnc, err := adapter.EncryptDeterministic(pk, mbar[:], coins)
	if err != nil {
		return nil, err
	}

	ctBytes := lwe.SerializeCiphertext(ct)
	ctHash := utils.H(32, tagCT, ctBytes)
	accept := utils.H(SharedSecretSize, tagKDF, mbar[:], ctHash, pkHash, ad)
	reject := utils.H(SharedSecretSize, tagKDFReject, bundle.Z[:], ctHash, pkHash, ad)
	defer utils.Zeroize(accept)
	defer utils.Zeroize(reject)

	valid := lwe.CiphertextCompare(ct, reEnc)
	return utils.ConstantTimeSelect(valid, accept, reject), nil
}

// deriveDEMKey expands a shared secret into a ChaCha20-Poly1305 key.
func deriveDEMKey(sharedSecret []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha3.New256, sharedSecret, nil, []byte(tagDEMKey))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt encrypts a message using KEM+DEM. ad binds both the encapsulation
// and the AEAD.
func Encrypt(src lwekem.PublicKeySource, plaintext, ad []byte) (*lwekem.EncryptedMessage, error) {
	if len(plaintext) > utils.MaxMessageSize {
		return nil, errors.New("plaintext exceeds maximum allowed size")
	}
	result, err := Encapsulate(src, ad)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(result.SharedSecret)

	key, err := deriveDEMKey(result.SharedSecret)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce, err := utils.SecureRandomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	return &lwekem.EncryptedMessage{
		Ciphertext: result.Ciphertext,
		Encrypted:  aead.Seal(nil, nonce, plaintext, ad),
		Nonce:      nonce,
	}, nil
}

// Decrypt decrypts an encrypted message. A rejected encapsulation surfaces
// here as ErrAuthentication, since the DEM key no longer matches.
func Decrypt(bundle *lwekem.KEMBundle, em *lwekem.EncryptedMessage, ad []byte) ([]byte, error) {
	if em == nil {
		return nil, errors.New("kem: nil encrypted message")
	}
	sharedSecret, err := Decapsulate(bundle, &em.Ciphertext, ad)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(sharedSecret)

	key, err := deriveDEMKey(sharedSecret)
	if err != nil {
		return nil, err
	}
	defer utils.Zeroize(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(em.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("kem: nonce must be %d bytes", aead.NonceSize())
	}

	plaintext, err := aead.Open(nil, em.Nonce, em.Encrypted, ad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
