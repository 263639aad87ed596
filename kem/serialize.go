package kem

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/core"
	"github.com/BackendStack21/lwe-kem-go/problems/lwe"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

const bundleMagic = "SK"

// ErrBundleMismatch is returned when a decoded bundle's stored public key
// hash does not match its public key.
var ErrBundleMismatch = errors.New("kem: bundle public key hash mismatch")

// SerializeBundle encodes a KEM bundle:
//
//	"SK" || len(pk) u32 BE || serialize_pk || S (one byte per entry) || PKHash || Z
//
// The result contains secret material.
func SerializeBundle(bundle *lwekem.KEMBundle) ([]byte, error) {
	if bundle == nil || len(bundle.SecretKey.S) == 0 {
		return nil, lwe.ErrUninitializedKey
	}
	pkBytes, err := lwe.SerializePublicKey(&bundle.PublicKey)
	if err != nil {
		return nil, err
	}
	if len(bundle.SecretKey.S) != bundle.PublicKey.Params.N {
		return nil, fmt.Errorf("kem: secret key has %d entries, want %d", len(bundle.SecretKey.S), bundle.PublicKey.Params.N)
	}

	result := make([]byte, 0, 6+len(pkBytes)+len(bundle.SecretKey.S)+64)
	result = append(result, bundleMagic...)
	result = binary.BigEndian.AppendUint32(result, uint32(len(pkBytes)))
	result = append(result, pkBytes...)
	for _, s := range bundle.SecretKey.S {
		result = append(result, byte(s))
	}
	result = append(result, bundle.PKHash[:]...)
	result = append(result, bundle.Z[:]...)
	return result, nil
}

// DeserializeBundle parses the output of SerializeBundle. The public key
// hash is recomputed and must match the stored one. Sigma and the set name
// are restored from the built-in sets when the dimensions match one.
func DeserializeBundle(data []byte) (*lwekem.KEMBundle, error) {
	if len(data) < 6 || string(data[:2]) != bundleMagic {
		return nil, errors.New("invalid KEM bundle: bad header")
	}
	pkLen, offset, err := utils.SafeReadLength(data, 2, len(data))
	if err != nil {
		return nil, fmt.Errorf("invalid KEM bundle: %w", err)
	}
	if err := utils.ValidateSliceAccess(data, offset, pkLen); err != nil {
		return nil, fmt.Errorf("invalid KEM bundle: public key: %w", err)
	}
	pk, err := lwe.DeserializePublicKey(data[offset : offset+pkLen])
	if err != nil {
		return nil, fmt.Errorf("invalid KEM bundle: %w", err)
	}
	offset += pkLen
	pk.Params = core.ParamsFor(pk.Params.N, pk.Params.Q, pk.Params.M)

	n := pk.Params.N
	if len(data)-offset != n+64 {
		return nil, errors.New("invalid KEM bundle: length mismatch")
	}
	s := make([]int8, n)
	for i := range s {
		b := data[offset+i]
		if b > 1 {
			utils.ZeroizeInt8(s)
			return nil, errors.New("invalid KEM bundle: secret entry out of range")
		}
		s[i] = int8(b)
	}
	offset += n

	bundle := &lwekem.KEMBundle{PublicKey: *pk, SecretKey: lwekem.SecretKey{S: s}}
	copy(bundle.PKHash[:], data[offset:offset+32])
	copy(bundle.Z[:], data[offset+32:offset+64])

	want, err := PublicKeyHash(pk)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(want[:], bundle.PKHash[:]) != 1 {
		utils.ZeroizeInt8(s)
		return nil, ErrBundleMismatch
	}
	return bundle, nil
}

const messageMagic = "EM"

// SerializeEncryptedMessage encodes a KEM+DEM message:
//
//	"EM" || len(ct) u32 BE || serialize_ct || len(nonce) u32 BE || nonce || len(enc) u32 BE || enc
func SerializeEncryptedMessage(em *lwekem.EncryptedMessage) []byte {
	ctBytes := lwe.SerializeCiphertext(&em.Ciphertext)
	result := make([]byte, 0, 14+len(ctBytes)+len(em.Nonce)+len(em.Encrypted))
	result = append(result, messageMagic...)
	for _, part := range [][]byte{ctBytes, em.Nonce, em.Encrypted} {
		result = binary.BigEndian.AppendUint32(result, uint32(len(part)))
		result = append(result, part...)
	}
	return result
}

// DeserializeEncryptedMessage parses the output of SerializeEncryptedMessage.
func DeserializeEncryptedMessage(data []byte) (*lwekem.EncryptedMessage, error) {
	if len(data) < 2 || string(data[:2]) != messageMagic {
		return nil, errors.New("invalid encrypted message: bad header")
	}
	offset := 2
	parts := make([][]byte, 3)
	for i := range parts {
		n, next, err := utils.SafeReadLength(data, offset, len(data))
		if err != nil {
			return nil, fmt.Errorf("invalid encrypted message: %w", err)
		}
		if err := utils.ValidateSliceAccess(data, next, n); err != nil {
			return nil, fmt.Errorf("invalid encrypted message: %w", err)
		}
		parts[i] = data[next : next+n]
		offset = next + n
	}
	if offset != len(data) {
		return nil, errors.New("invalid encrypted message: trailing data")
	}

	ct, err := lwe.DeserializeCiphertext(parts[0])
	if err != nil {
		return nil, err
	}
	return &lwekem.EncryptedMessage{
		Ciphertext: *ct,
		Nonce:      append([]byte(nil), parts[1]...),
		Encrypted:  append([]byte(nil), parts[2]...),
	}, nil
}
