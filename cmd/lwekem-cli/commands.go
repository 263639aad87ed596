package main

import (
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	lwekem "github.com/BackendStack21/lwe-kem-go"
	"github.com/BackendStack21/lwe-kem-go/kem"
	"github.com/BackendStack21/lwe-kem-go/problems/lwe"
	"github.com/BackendStack21/lwe-kem-go/utils"
)

// SharedSecretExport is the output of decapsulate.
type SharedSecretExport struct {
	Encoding     OutputFormat `json:"encoding"`
	SharedSecret string       `json:"shared_secret"`
}

var (
	outputFileFlag = &cli.StringFlag{
		Name:    outputFlag,
		Aliases: []string{"o"},
		Usage:   "write output to `FILE` instead of stdout",
	}
	adFileFlag = &cli.StringFlag{
		Name:  adFlag,
		Usage: "associated data bound into the shared secret",
	}
	publicKeyFlag = &cli.StringFlag{
		Name:     "public-key",
		Aliases:  []string{"k"},
		Usage:    "key file holding the recipient public key",
		Required: true,
	}
	secretKeyFlag = &cli.StringFlag{
		Name:     "secret-key",
		Aliases:  []string{"s"},
		Usage:    "key file holding the secret bundle",
		Required: true,
	}
	ciphertextFlag = &cli.StringFlag{
		Name:     "ciphertext",
		Aliases:  []string{"ct"},
		Usage:    "file produced by encapsulate or encrypt",
		Required: true,
	}
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a KEM key pair",
		Flags: []cli.Flag{
			outputFileFlag,
			&cli.StringFlag{
				Name:  "public-output",
				Usage: "also write the public key alone to `FILE`",
			},
			&cli.StringFlag{
				Name:  "seed",
				Usage: "derive the key pair from a hex seed of at least 32 bytes",
			},
		},
		Action: withErrorHandler(kemKeygen),
	}
}

func kemKeygen(c *cli.Context) error {
	log := newLogger(c)
	params, err := resolveParams(c)
	if err != nil {
		return err
	}
	format, err := outputFormat(c)
	if err != nil {
		return err
	}

	start := time.Now()
	var bundle *lwekem.KEMBundle
	if seedHex := c.String("seed"); seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return errors.Wrap(err, "invalid seed")
		}
		bundle, err = kem.GenerateKeyPairFromSeed(params, seed)
		utils.Zeroize(seed)
		if err != nil {
			return errors.Wrap(err, "error generating key pair")
		}
	} else {
		bundle, err = kem.GenerateKeyPairWithParams(params)
		if err != nil {
			return errors.Wrap(err, "error generating key pair")
		}
	}
	elapsed := time.Since(start)

	export, err := newKeyExport(bundle, format, true)
	if err != nil {
		return err
	}
	if err := writeJSON(c, export, c.String(outputFlag)); err != nil {
		return err
	}
	if pubOut := c.String("public-output"); pubOut != "" {
		pub, err := newKeyExport(bundle, format, false)
		if err != nil {
			return err
		}
		if err := writeJSON(c, pub, pubOut); err != nil {
			return err
		}
	}

	log.Info().
		Str("set", string(params.Set)).
		Int("n", params.N).
		Int("m", params.M).
		Str("fingerprint", export.Fingerprint[:16]).
		Dur("took", elapsed).
		Msg("Generated KEM key pair")
	return nil
}

func encapsulateCommand() *cli.Command {
	return &cli.Command{
		Name:    "encapsulate",
		Aliases: []string{"encap"},
		Usage:   "Encapsulate a fresh shared secret to a public key",
		Flags:   []cli.Flag{publicKeyFlag, adFileFlag, outputFileFlag},
		Action:  withErrorHandler(kemEncapsulate),
	}
}

func kemEncapsulate(c *cli.Context) error {
	log := newLogger(c)
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	pk, err := loadPublicKey(c.String("public-key"))
	if err != nil {
		return errors.Wrap(err, "error loading public key")
	}

	start := time.Now()
	result, err := kem.Encapsulate(pk, []byte(c.String(adFlag)))
	if err != nil {
		return errors.Wrap(err, "error encapsulating")
	}
	elapsed := time.Since(start)

	ctBytes := lwe.SerializeCiphertext(&result.Ciphertext)
	export := EncapsulationExport{
		Encoding:     format,
		Ciphertext:   encodeBytes(ctBytes, format),
		SharedSecret: encodeBytes(result.SharedSecret, format),
	}
	if err := writeJSON(c, export, c.String(outputFlag)); err != nil {
		return err
	}
	log.Info().Int("components", result.Ciphertext.Len()).Int("bytes", len(ctBytes)).Dur("took", elapsed).Msg("Encapsulation complete")
	return nil
}

func decapsulateCommand() *cli.Command {
	return &cli.Command{
		Name:    "decapsulate",
		Aliases: []string{"decap"},
		Usage:   "Recover the shared secret from a ciphertext",
		Flags:   []cli.Flag{secretKeyFlag, ciphertextFlag, adFileFlag, outputFileFlag},
		Action:  withErrorHandler(kemDecapsulate),
	}
}

func kemDecapsulate(c *cli.Context) error {
	log := newLogger(c)
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	bundle, err := loadBundle(c.String("secret-key"))
	if err != nil {
		return errors.Wrap(err, "error loading secret key")
	}

	var encap EncapsulationExport
	if err := readJSON(c.String("ciphertext"), &encap); err != nil {
		return err
	}
	ctBytes, err := decodeString(encap.Ciphertext, encap.Encoding)
	if err != nil {
		return errors.Wrap(err, "failed to decode ciphertext")
	}
	ct, err := lwe.DeserializeCiphertext(ctBytes)
	if err != nil {
		return errors.Wrap(err, "error deserializing ciphertext")
	}

	start := time.Now()
	ss, err := kem.Decapsulate(bundle, ct, []byte(c.String(adFlag)))
	if err != nil {
		return errors.Wrap(err, "error decapsulating")
	}
	elapsed := time.Since(start)

	export := SharedSecretExport{Encoding: format, SharedSecret: encodeBytes(ss, format)}
	if err := writeJSON(c, export, c.String(outputFlag)); err != nil {
		return err
	}
	log.Debug().Dur("took", elapsed).Msg("Decapsulation complete")
	return nil
}

func encryptCommand() *cli.Command {
	return &cli.Command{
		Name:    "encrypt",
		Aliases: []string{"enc"},
		Usage:   "Encrypt a message with KEM+DEM",
		Flags: []cli.Flag{
			publicKeyFlag,
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "message text"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "read the message from `FILE`"},
			adFileFlag,
			outputFileFlag,
		},
		Action: withErrorHandler(kemEncrypt),
	}
}

func kemEncrypt(c *cli.Context) error {
	log := newLogger(c)
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	msg, err := readMessage(c)
	if err != nil {
		return errors.Wrap(err, "error reading message")
	}
	pk, err := loadPublicKey(c.String("public-key"))
	if err != nil {
		return errors.Wrap(err, "error loading public key")
	}

	start := time.Now()
	encrypted, err := kem.Encrypt(pk, msg, []byte(c.String(adFlag)))
	if err != nil {
		return errors.Wrap(err, "error encrypting")
	}
	elapsed := time.Since(start)

	encBytes := kem.SerializeEncryptedMessage(encrypted)
	export := EncryptedExport{Encoding: format, Ciphertext: encodeBytes(encBytes, format)}
	if err := writeJSON(c, export, c.String(outputFlag)); err != nil {
		return err
	}
	log.Info().Int("plaintext", len(msg)).Int("ciphertext", len(encBytes)).Dur("took", elapsed).Msg("Encryption successful")
	return nil
}

func decryptCommand() *cli.Command {
	return &cli.Command{
		Name:    "decrypt",
		Aliases: []string{"dec"},
		Usage:   "Decrypt a KEM+DEM message",
		Flags:   []cli.Flag{secretKeyFlag, ciphertextFlag, adFileFlag, outputFileFlag},
		Action:  withErrorHandler(kemDecrypt),
	}
}

func kemDecrypt(c *cli.Context) error {
	log := newLogger(c)
	bundle, err := loadBundle(c.String("secret-key"))
	if err != nil {
		return errors.Wrap(err, "error loading secret key")
	}

	var export EncryptedExport
	if err := readJSON(c.String("ciphertext"), &export); err != nil {
		return err
	}
	encBytes, err := decodeString(export.Ciphertext, export.Encoding)
	if err != nil {
		return errors.Wrap(err, "failed to decode ciphertext")
	}
	em, err := kem.DeserializeEncryptedMessage(encBytes)
	if err != nil {
		return errors.Wrap(err, "error deserializing ciphertext")
	}

	plaintext, err := kem.Decrypt(bundle, em, []byte(c.String(adFlag)))
	if err != nil {
		return errors.Wrap(err, "error decrypting")
	}
	if err := writeOutput(c, plaintext, c.String(outputFlag)); err != nil {
		return err
	}
	log.Debug().Int("plaintext", len(plaintext)).Msg("Decryption successful")
	return nil
}
