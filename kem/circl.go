package kem

import (
	"bytes"
	"crypto/subtle"
	"fmt"

	circlkem "github.com/cloudflare/circl/kem"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/adapter"
	"github.com/BackendStack21/lwe-kem-go/problems/lwe"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

// This file connects the KEM to the generic circl KEM API.

// Scheme returns the circl KEM interface for params. Every encapsulation and
// decapsulation made through the scheme is bound to ad.
func Scheme(params lwekem.LWEParams, ad []byte) circlkem.Scheme {
	return &scheme{params: params, ad: append([]byte(nil), ad...)}
}

type scheme struct {
	params lwekem.LWEParams
	ad     []byte
}

type publicKey struct {
	sch *scheme
	pk  *lwekem.PublicKey
}

type privateKey struct {
	sch    *scheme
	bundle *lwekem.KEMBundle
}

func (s *scheme) Name() string {
	if s.params.Set == lwekem.Custom || s.params.Set == "" {
		return fmt.Sprintf("LWE-KEM-%d-%d-%d", s.params.N, s.params.Q, s.params.M)
	}
	return "KEM-" + string(s.params.Set)
}

func (s *scheme) PublicKeySize() int           { return 10 + 4*(s.params.M*s.params.N+s.params.M) }
func (s *scheme) PrivateKeySize() int          { return 6 + s.PublicKeySize() + s.params.N + 64 }
func (s *scheme) SeedSize() int                { return SeedSize }
func (s *scheme) EncapsulationSeedSize() int   { return 32 }
func (s *scheme) SharedKeySize() int           { return SharedSecretSize }
func (s *scheme) CiphertextSize() int          { return 6 + adapter.CarrierBits()*(4+4*s.params.N+8) }
func (pk *publicKey) Scheme() circlkem.Scheme  { return pk.sch }
func (sk *privateKey) Scheme() circlkem.Scheme { return sk.sch }

func (s *scheme) GenerateKeyPair() (circlkem.PublicKey, circlkem.PrivateKey, error) {
	bundle, err := GenerateKeyPairWithParams(s.params)
	if err != nil {
		return nil, nil, err
	}
	sk := &privateKey{sch: s, bundle: bundle}
	return sk.Public(), sk, nil
}

// DeriveKeyPair panics if seed is not SeedSize bytes.
func (s *scheme) DeriveKeyPair(seed []byte) (circlkem.PublicKey, circlkem.PrivateKey) {
	if len(seed) != s.SeedSize() {
		panic(circlkem.ErrSeedSize)
	}
	bundle, err := deriveKeyPair(s.params, seed)
	if err != nil {
		panic(err)
	}
	sk := &privateKey{sch: s, bundle: bundle}
	return sk.Public(), sk
}

func (s *scheme) Encapsulate(pk circlkem.PublicKey) (ct, ss []byte, err error) {
	seed, err := utils.SecureRandomBytes(s.EncapsulationSeedSize())
	if err != nil {
		return nil, nil, err
	}
	defer utils.Zeroize(seed)
	return s.EncapsulateDeterministically(pk, seed)
}

func (s *scheme) EncapsulateDeterministically(pk circlkem.PublicKey, seed []byte) (ct, ss []byte, err error) {
	if len(seed) != s.EncapsulationSeedSize() {
		return nil, nil, circlkem.ErrSeedSize
	}
	pub, ok := pk.(*publicKey)
	if !ok || pub.sch.params != s.params {
		return nil, nil, circlkem.ErrTypeMismatch
	}
	result, err := EncapsulateDeterministic(pub.pk, seed, s.ad)
	if err != nil {
		return nil, nil, err
	}
	return lwe.SerializeCiphertext(&result.Ciphertext), result.SharedSecret, nil
}

func (s *scheme) Decapsulate(sk circlkem.PrivateKey, ct []byte) ([]byte, error) {
	if len(ct) != s.CiphertextSize() {
		return nil, circlkem.ErrCiphertextSize
	}
	priv, ok := sk.(*privateKey)
	if !ok || priv.sch.params != s.params {
		return nil, circlkem.ErrTypeMismatch
	}
	c, err := lwe.DeserializeCiphertext(ct)
	if err != nil {
		return nil, circlkem.ErrCipherText
	}
	return Decapsulate(priv.bundle, c, s.ad)
}

func (s *scheme) UnmarshalBinaryPublicKey(buf []byte) (circlkem.PublicKey, error) {
	if len(buf) != s.PublicKeySize() {
		return nil, circlkem.ErrPubKeySize
	}
	pk, err := lwe.DeserializePublicKey(buf)
	if err != nil {
		return nil, circlkem.ErrPubKey
	}
	if pk.Params.N != s.params.N || pk.Params.Q != s.params.Q || pk.Params.M != s.params.M {
		return nil, circlkem.ErrPubKey
	}
	pk.Params = s.params
	return &publicKey{sch: s, pk: pk}, nil
}

func (s *scheme) UnmarshalBinaryPrivateKey(buf []byte) (circlkem.PrivateKey, error) {
	if len(buf) != s.PrivateKeySize() {
		return nil, circlkem.ErrPrivKeySize
	}
	bundle, err := DeserializeBundle(buf)
	if err != nil {
		return nil, err
	}
	p := bundle.PublicKey.Params
	if p.N != s.params.N || p.Q != s.params.Q || p.M != s.params.M {
		return nil, circlkem.ErrTypeMismatch
	}
	bundle.PublicKey.Params = s.params
	return &privateKey{sch: s, bundle: bundle}, nil
}

func (pk *publicKey) MarshalBinary() ([]byte, error) {
	return lwe.SerializePublicKey(pk.pk)
}

func (pk *publicKey) Equal(other circlkem.PublicKey) bool {
	oth, ok := other.(*publicKey)
	if !ok {
		return false
	}
	a, errA := pk.MarshalBinary()
	b, errB := oth.MarshalBinary()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (sk *privateKey) MarshalBinary() ([]byte, error) {
	return SerializeBundle(sk.bundle)
}

func (sk *privateKey) Equal(other circlkem.PrivateKey) bool {
	oth, ok := other.(*privateKey)
	if !ok {
		return false
	}
	a, errA := sk.MarshalBinary()
	b, errB := oth.MarshalBinary()
	return errA == nil && errB == nil && subtle.ConstantTimeCompare(a, b) == 1
}

func (sk *privateKey) Public() circlkem.PublicKey {
	return &publicKey{sch: sk.sch, pk: sk.bundle.Public()}
}

// Bundle returns the KEM bundle behind sk, or nil if sk was not produced by
// a Scheme.
func Bundle(sk circlkem.PrivateKey) *lwekem.KEMBundle {
	if priv, ok := sk.(*privateKey); ok {
		return priv.bundle
	}
	return nil
}
