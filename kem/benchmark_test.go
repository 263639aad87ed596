package kem

import (
	"testing"

	lwekem "github.com/BackendStack21/lwe-kem-go"
)

var benchSets = []lwekem.ParameterSet{lwekem.LWE64, lwekem.LWE128}

func BenchmarkGenerateKeyPair(b *testing.B) {
	for _, set := range benchSets {
		b.Run(string(set), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := GenerateKeyPair(set); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEncapsulate(b *testing.B) {
	for _, set := range benchSets {
		b.Run(string(set), func(b *testing.B) {
			bundle, err := GenerateKeyPair(set)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Encapsulate(&bundle.PublicKey, sessionAD); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecapsulate(b *testing.B) {
	for _, set := range benchSets {
		b.Run(string(set), func(b *testing.B) {
			bundle, err := GenerateKeyPair(set)
			if err != nil {
				b.Fatal(err)
			}
			result, err := Encapsulate(bundle, sessionAD)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Decapsulate(bundle, &result.Ciphertext, sessionAD); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// The rejection path does the same work as the accepting one.
func BenchmarkDecapsulateReject(b *testing.B) {
	bundle, err := GenerateKeyPair(lwekem.LWE64)
	if err != nil {
		b.Fatal(err)
	}
	result, err := Encapsulate(bundle, sessionAD)
	if err != nil {
		b.Fatal(err)
	}
	tampered := result.Ciphertext.Clone()
	tampered.Components[0].V ^= 1

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decapsulate(bundle, tampered, sessionAD); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncrypt(b *testing.B) {
	bundle, err := GenerateKeyPair(lwekem.LWE64)
	if err != nil {
		b.Fatal(err)
	}
	plaintext := []byte("This is a test message for encryption benchmarking")

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Encrypt(bundle, plaintext, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecrypt(b *testing.B) {
	bundle, err := GenerateKeyPair(lwekem.LWE64)
	if err != nil {
		b.Fatal(err)
	}
	plaintext := []byte("This is a test message for encryption benchmarking")
	encrypted, err := Encrypt(bundle, plaintext, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decrypt(bundle, encrypted, nil); err != nil {
			b.Fatal(err)
		}
	}
}
