// Package cryptox holds the vault's cryptographic core: the password-based
// key derivation, master secret hashing and per-record credential encryption.
//
// Everything here is stateless. Tunables travel in an immutable Params value
// handed to NewKDF; there is no package-level configuration.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/securepass/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIterations = 100_000
	DefaultKeyLength  = 32
	DefaultSaltLength = 16
)

// Params are the KDF tunables.
type Params struct {
	Iterations int
	KeyLength  int
	SaltLength int
}

// DefaultParams returns PBKDF2-HMAC-SHA256 with 100k iterations, a 32 byte
// key and a 16 byte salt.
func DefaultParams() Params {
	return Params{
		Iterations: DefaultIterations,
		KeyLength:  DefaultKeyLength,
		SaltLength: DefaultSaltLength,
	}
}

func (p Params) Validate() error {
	if p.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be positive", common.ErrInvalidInput)
	}
	switch p.KeyLength {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: key length must be 16, 24 or 32", common.ErrInvalidInput)
	}
	if p.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8", common.ErrInvalidInput)
	}
	return nil
}

// KDF derives symmetric keys from a secret and a salt.
type KDF struct {
	params Params
}

func NewKDF(p Params) (*KDF, error) {
	if err := p.Validate(); err != nil {
		return nil, opErr("new kdf", err)
	}
	return &KDF{params: p}, nil
}

func (k *KDF) Params() Params {
	return k.params
}

// Derive runs PBKDF2 over secret and salt and returns the key base64url
// encoded (padded). The encoded form is what the rest of the package treats
// as "the key". Same inputs always give the same output.
func (k *KDF) Derive(secret string, salt []byte) ([]byte, error) {
	if len(salt) != k.params.SaltLength {
		return nil, opErr("derive", fmt.Errorf("%w: salt must be %d bytes, got %d",
			common.ErrInvalidInput, k.params.SaltLength, len(salt)))
	}

	raw := deriveRaw([]byte(secret), salt, k.params.Iterations, k.params.KeyLength)
	defer common.WipeByteArray(raw)

	out := make([]byte, base64.URLEncoding.EncodedLen(len(raw)))
	base64.URLEncoding.Encode(out, raw)
	return out, nil
}

// GenerateSalt returns SaltLength bytes from crypto/rand.
func (k *KDF) GenerateSalt() ([]byte, error) {
	return GenerateSalt(k.params.SaltLength)
}

func GenerateSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, opErr("generate salt", err)
	}
	return salt, nil
}

func deriveRaw(secret, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(secret, salt, iterations, keyLen, sha256.New)
}
