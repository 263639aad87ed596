package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/core"
	"github.com/BackendStack21/lwe-kem-go/kem"
	"github.com/BackendStack21/lwe-kem-go/problems/lwe"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

// maxInputFileSize bounds every file the CLI reads.
const maxInputFileSize = 100 * 1024 * 1024

// OutputFormat represents the encoding of binary fields in exported files.
type OutputFormat string

const (
	FormatHex    OutputFormat = "hex"
	FormatBase64 OutputFormat = "base64"
)

// ParamsRecord describes the parameters a key was generated for.
type ParamsRecord struct {
	Set        string  `json:"set"`
	Dimension  int     `json:"dimension"`
	Modulus    int     `json:"modulus"`
	Samples    int     `json:"samples"`
	ErrorSigma float64 `json:"error_sigma"`
}

// KeyExport is an exported key pair, or a public key when SecretKey is empty.
type KeyExport struct {
	Params      ParamsRecord `json:"params"`
	Encoding    OutputFormat `json:"encoding"`
	PublicKey   string       `json:"public_key"`
	SecretKey   string       `json:"secret_key,omitempty"`
	Fingerprint string       `json:"fingerprint"`
	CreatedAt   string       `json:"created_at"`
}

// EncapsulationExport is an exported encapsulation result.
type EncapsulationExport struct {
	Encoding     OutputFormat `json:"encoding"`
	Ciphertext   string       `json:"ciphertext"`
	SharedSecret string       `json:"shared_secret,omitempty"`
}

// EncryptedExport is an exported KEM+DEM message.
type EncryptedExport struct {
	Encoding   OutputFormat `json:"encoding"`
	Ciphertext string       `json:"ciphertext"`
}

func recordParams(p lwekem.LWEParams) ParamsRecord {
	return ParamsRecord{Set: string(p.Set), Dimension: p.N, Modulus: p.Q, Samples: p.M, ErrorSigma: p.Sigma}
}

func (r ParamsRecord) params() lwekem.LWEParams {
	p := core.ParamsFor(r.Dimension, r.Modulus, r.Samples)
	if r.ErrorSigma > 0 {
		p.Sigma = r.ErrorSigma
	}
	if r.Set != "" {
		p.Set = lwekem.ParameterSet(r.Set)
	}
	return p
}

// fingerprint is the hex SHA3-256 of the serialized public key.
func fingerprint(pkBytes []byte) string {
	return hex.EncodeToString(utils.SHA3256(pkBytes))
}

func encodeBytes(data []byte, format OutputFormat) string {
	switch format {
	case FormatHex:
		return hex.EncodeToString(data)
	default:
		return base64.StdEncoding.EncodeToString(data)
	}
}

func decodeString(s string, format OutputFormat) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch format {
	case FormatHex:
		return hex.DecodeString(s)
	case FormatBase64, "":
		return base64.StdEncoding.DecodeString(s)
	default:
		return nil, errors.Errorf("unknown encoding %q", format)
	}
}

func newKeyExport(bundle *lwekem.KEMBundle, format OutputFormat, withSecret bool) (*KeyExport, error) {
	pkBytes, err := lwe.SerializePublicKey(&bundle.PublicKey)
	if err != nil {
		return nil, err
	}
	export := &KeyExport{
		Params:      recordParams(bundle.PublicKey.Params),
		Encoding:    format,
		PublicKey:   encodeBytes(pkBytes, format),
		Fingerprint: fingerprint(pkBytes),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if withSecret {
		skBytes, err := kem.SerializeBundle(bundle)
		if err != nil {
			return nil, err
		}
		export.SecretKey = encodeBytes(skBytes, format)
		utils.Zeroize(skBytes)
	}
	return export, nil
}

// readInputFile reads a file after checking its size.
func readInputFile(filename string) ([]byte, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat file")
	}
	if info.Size() > maxInputFileSize {
		return nil, errors.Errorf("input file too large: %d > %d bytes", info.Size(), maxInputFileSize)
	}
	return os.ReadFile(filename)
}

func readJSON(filename string, v interface{}) error {
	data, err := readInputFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "cannot parse %s", filename)
	}
	return nil
}

// loadPublicKey reads the public key from a key file and checks its
// fingerprint.
func loadPublicKey(filename string) (*lwekem.PublicKey, error) {
	var export KeyExport
	if err := readJSON(filename, &export); err != nil {
		return nil, err
	}
	pkBytes, err := decodeString(export.PublicKey, export.Encoding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode public key")
	}
	if export.Fingerprint != "" && export.Fingerprint != fingerprint(pkBytes) {
		return nil, errors.New("public key fingerprint mismatch")
	}
	pk, err := lwe.DeserializePublicKey(pkBytes)
	if err != nil {
		return nil, err
	}
	if pk.Params.N != export.Params.Dimension || pk.Params.Q != export.Params.Modulus || pk.Params.M != export.Params.Samples {
		return nil, errors.New("public key does not match its parameter record")
	}
	pk.Params = export.Params.params()
	return pk, nil
}

// loadBundle reads the secret bundle from a key file.
func loadBundle(filename string) (*lwekem.KEMBundle, error) {
	var export KeyExport
	if err := readJSON(filename, &export); err != nil {
		return nil, err
	}
	if export.SecretKey == "" {
		return nil, errors.Errorf("%s contains no secret key", filename)
	}
	skBytes, err := decodeString(export.SecretKey, export.Encoding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode secret key")
	}
	defer utils.Zeroize(skBytes)
	bundle, err := kem.DeserializeBundle(skBytes)
	if err != nil {
		return nil, err
	}
	if export.Params.ErrorSigma > 0 {
		bundle.PublicKey.Params.Sigma = export.Params.ErrorSigma
	}
	return bundle, nil
}

// writeOutput writes data to filename, or to the app's writer when filename
// is empty. Files are created owner read-write only.
func writeOutput(c *cli.Context, data []byte, filename string) error {
	if filename == "" {
		_, err := c.App.Writer.Write(append(data, '\n'))
		return err
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "error creating output file")
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "error writing output file")
	}
	return os.Chmod(filename, 0600)
}

func writeJSON(c *cli.Context, v interface{}, filename string) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error marshaling output")
	}
	return writeOutput(c, out, filename)
}

// readMessage returns the message from --message, --input or stdin.
func readMessage(c *cli.Context) ([]byte, error) {
	if msg := c.String("message"); msg != "" {
		return []byte(msg), nil
	}
	if in := c.String("input"); in != "" {
		return readInputFile(in)
	}
	return io.ReadAll(io.LimitReader(os.Stdin, maxInputFileSize))
}
