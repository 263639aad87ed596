// Package lwekem implements a small-parameter LWE public-key encryption
// primitive wrapped into a key encapsulation mechanism by a
// Fujisaki-Okamoto transform with implicit rejection.
package lwekem

// Version of the lwe-kem Go implementation.
const Version = "0.3.0"

// API summary:
//
// Key Encapsulation (KEM):
//   - kem.GenerateKeyPair(set) - Generate a key bundle for a parameter set
//   - kem.Encapsulate(pk, ad) - Generate shared secret and ciphertext
//   - kem.Decapsulate(bundle, ct, ad) - Recover shared secret (implicit rejection)
//   - kem.Encrypt(pk, plaintext, ad) - Encrypt a message (KEM+DEM)
//   - kem.Decrypt(bundle, encrypted, ad) - Decrypt an encrypted message
//   - kem.Scheme(params, ad) - circl kem.Scheme binding
//
// Building blocks:
//   - lwe.KeyGen / lwe.Encrypt / lwe.Decrypt - bit-oriented LWE primitive
//   - adapter.EncryptDeterministic - coin-driven re-encryption
//   - utils.H - length-prefixed, domain-separated SHAKE256
//
// Parameters:
//   - core.GetParams(set) - Get parameters for a named set
//   - LWE64 - n=64, q=2053, m=114 demonstration parameters
//   - LWE128 - n=128, q=2053, m=178
