package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securepass/internal/common"
)

const hashSeparator = ":"

// MasterSecretHash is the stored form of a master secret:
// base64(salt) + ":" + base64(derivedKey), where derivedKey is the
// base64url text returned by KDF.Derive.
type MasterSecretHash struct {
	Salt []byte
	Key  []byte
}

func (h MasterSecretHash) String() string {
	return base64.StdEncoding.EncodeToString(h.Salt) + hashSeparator +
		base64.StdEncoding.EncodeToString(h.Key)
}

// ParseMasterSecretHash splits s on the first ':' and decodes both halves.
func ParseMasterSecretHash(s string) (MasterSecretHash, error) {
	saltPart, keyPart, ok := strings.Cut(s, hashSeparator)
	if !ok {
		return MasterSecretHash{}, opErr("parse hash", fmt.Errorf("%w: missing separator", common.ErrMalformedHash))
	}

	salt, err := base64.StdEncoding.Strict().DecodeString(saltPart)
	if err != nil || len(salt) == 0 {
		return MasterSecretHash{}, opErr("parse hash", fmt.Errorf("%w: bad salt encoding", common.ErrMalformedHash))
	}

	key, err := base64.StdEncoding.Strict().DecodeString(keyPart)
	if err != nil || len(key) == 0 {
		return MasterSecretHash{}, opErr("parse hash", fmt.Errorf("%w: bad key encoding", common.ErrMalformedHash))
	}

	return MasterSecretHash{Salt: salt, Key: key}, nil
}

// Hasher hashes and verifies master secrets.
type Hasher struct {
	kdf *KDF
}

func NewHasher(kdf *KDF) *Hasher {
	return &Hasher{kdf: kdf}
}

// Hash derives a key from secret under a fresh salt.
func (h *Hasher) Hash(secret string) (MasterSecretHash, error) {
	salt, err := h.kdf.GenerateSalt()
	if err != nil {
		return MasterSecretHash{}, err
	}
	key, err := h.kdf.Derive(secret, salt)
	if err != nil {
		return MasterSecretHash{}, err
	}
	return MasterSecretHash{Salt: salt, Key: key}, nil
}

// Verify parses stored and reports whether secret matches it.
func (h *Hasher) Verify(secret, stored string) (bool, error) {
	parsed, err := ParseMasterSecretHash(stored)
	if err != nil {
		return false, err
	}
	return h.VerifyHash(secret, parsed)
}

// VerifyHash re-derives the key under the stored salt and compares in
// constant time.
func (h *Hasher) VerifyHash(secret string, stored MasterSecretHash) (bool, error) {
	if len(stored.Salt) != h.kdf.params.SaltLength {
		return false, opErr("verify", fmt.Errorf("%w: salt must be %d bytes", common.ErrMalformedHash, h.kdf.params.SaltLength))
	}

	key, err := h.kdf.Derive(secret, stored.Salt)
	if err != nil {
		return false, err
	}
	defer common.WipeByteArray(key)

	return subtle.ConstantTimeCompare(key, stored.Key) == 1, nil
}
