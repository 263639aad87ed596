// Package core provides parameter sets and validation for lwe-kem.
package core

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	lwekem "github.com/BackendStack21/lwe-kem-go"
)

// ErrUnknownParameterSet is returned for a parameter set name that is not built in.
var ErrUnknownParameterSet = errors.New("unknown parameter set")

// DefaultSigma is the noise scale shared by the built-in sets.
const DefaultSigma = 3.2

// LWE64Params is the n=64 demonstration parameter set.
var LWE64Params = lwekem.LWEParams{
	Set:   lwekem.LWE64,
	N:     64,
	Q:     2053,
	M:     64 + 50,
	Sigma: DefaultSigma,
}

// LWE128Params is the n=128 parameter set.
var LWE128Params = lwekem.LWEParams{
	Set:   lwekem.LWE128,
	N:     128,
	Q:     2053,
	M:     128 + 50,
	Sigma: DefaultSigma,
}

// GetParams returns the parameter set for the given name.
func GetParams(set lwekem.ParameterSet) (lwekem.LWEParams, error) {
	switch set {
	case lwekem.LWE64:
		return LWE64Params, nil
	case lwekem.LWE128:
		return LWE128Params, nil
	default:
		return lwekem.LWEParams{}, fmt.Errorf("%w: %s", ErrUnknownParameterSet, set)
	}
}

// ParamsFor returns the built-in set with the given dimensions, or Custom
// parameters with DefaultSigma when none matches. It recovers the full
// record from a decoded public key, whose encoding omits sigma.
func ParamsFor(n, q, m int) lwekem.LWEParams {
	for _, p := range []lwekem.LWEParams{LWE64Params, LWE128Params} {
		if p.N == n && p.Q == q && p.M == m {
			return p
		}
	}
	return lwekem.LWEParams{Set: lwekem.Custom, N: n, Q: q, M: m, Sigma: DefaultSigma}
}

// ValidateParams validates the parameter set for consistency and decryption
// correctness.
func ValidateParams(params lwekem.LWEParams) error {
	if params.N <= 0 || params.M <= 0 {
		return errors.New("LWE dimensions must be positive")
	}
	if params.N > math.MaxUint16 || params.M > math.MaxUint16 {
		return errors.New("LWE dimensions must fit in 16 bits")
	}
	// Encryption draws up to n distinct rows out of m.
	if params.M < params.N {
		return errors.New("LWE m must be at least n")
	}
	if params.Q >= math.MaxInt32 {
		return errors.New("LWE modulus must be below 2^31")
	}
	if !isPrime(params.Q) {
		return errors.New("LWE modulus must be prime")
	}
	if params.Sigma <= 0 || math.IsNaN(params.Sigma) || math.IsInf(params.Sigma, 0) {
		return errors.New("LWE sigma must be positive")
	}
	// A ciphertext accumulates at most n noise samples. The decoding
	// thresholds q/4 and 3q/4 assume a binary secret.
	if 6*params.Sigma*math.Sqrt(float64(params.N)) >= float64(params.Q/4) {
		return errors.New("LWE noise budget exceeds the decoding threshold q/4")
	}
	return nil
}

// paramsFile is the on-disk layout of a parameter file.
type paramsFile struct {
	Set   lwekem.ParameterSet `yaml:"set"`
	N     int                 `yaml:"n"`
	Q     int                 `yaml:"q"`
	M     int                 `yaml:"m"`
	Sigma float64             `yaml:"sigma"`
}

// LoadParams reads a YAML parameter file. A file may name a built-in set,
// give explicit values, or both, in which case explicit values override the
// named set. m defaults to n+50 and sigma to DefaultSigma.
func LoadParams(r io.Reader) (lwekem.LWEParams, error) {
	var f paramsFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return lwekem.LWEParams{}, fmt.Errorf("decode parameter file: %w", err)
	}

	params := lwekem.LWEParams{Set: lwekem.Custom, Sigma: DefaultSigma}
	if f.Set != "" && f.Set != lwekem.Custom {
		base, err := GetParams(f.Set)
		if err != nil {
			return lwekem.LWEParams{}, err
		}
		params = base
	}
	overridden := false
	if f.N != 0 {
		params.N = f.N
		overridden = true
	}
	if f.Q != 0 {
		params.Q = f.Q
		overridden = true
	}
	if f.M != 0 {
		params.M = f.M
		overridden = true
	} else if f.N != 0 {
		params.M = f.N + 50
	}
	if f.Sigma != 0 {
		params.Sigma = f.Sigma
		overridden = true
	}
	if overridden {
		params.Set = lwekem.Custom
	}

	if err := ValidateParams(params); err != nil {
		return lwekem.LWEParams{}, err
	}
	return params, nil
}

// LoadParamsFile reads a YAML parameter file from path.
func LoadParamsFile(path string) (lwekem.LWEParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return lwekem.LWEParams{}, err
	}
	defer f.Close()
	return LoadParams(f)
}

// isPrime checks if a number is prime using a simple trial division.
// This is used for validating parameters, not for generating large primes.
func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for i := 3; i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}
