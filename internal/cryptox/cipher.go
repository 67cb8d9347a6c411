package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/dmitrijs2005/securepass/internal/common"
)

// EncryptedCredential is one encrypted site password. Both fields are
// standard base64. Ciphertext is nonce || AES-GCM sealed box.
//
// The JSON names match the encrypted_data column layout.
type EncryptedCredential struct {
	Salt       string `json:"salt"`
	Ciphertext string `json:"encrypted_password"`
}

// Cipher encrypts credentials under a key derived from the master secret
// and a per-record salt.
type Cipher struct {
	kdf *KDF
}

func NewCipher(kdf *KDF) *Cipher {
	return &Cipher{kdf: kdf}
}

// Encrypt draws a fresh salt on every call, so encrypting the same
// plaintext twice never yields the same record.
func (c *Cipher) Encrypt(plaintext, secret string) (EncryptedCredential, error) {
	salt, err := c.kdf.GenerateSalt()
	if err != nil {
		return EncryptedCredential{}, err
	}

	aead, err := c.aead(secret, salt)
	if err != nil {
		return EncryptedCredential{}, opErr("encrypt", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedCredential{}, opErr("encrypt", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return EncryptedCredential{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Decrypt returns the plaintext or ErrDecryptionFailed. A wrong secret and
// a damaged record are indistinguishable to the caller.
func (c *Cipher) Decrypt(rec EncryptedCredential, secret string) (string, error) {
	salt, err := base64.StdEncoding.Strict().DecodeString(rec.Salt)
	if err != nil || len(salt) != c.kdf.params.SaltLength {
		return "", common.ErrDecryptionFailed
	}

	sealed, err := base64.StdEncoding.Strict().DecodeString(rec.Ciphertext)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	aead, err := c.aead(secret, salt)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", common.ErrDecryptionFailed
	}
	nonce, box := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func (c *Cipher) aead(secret string, salt []byte) (cipher.AEAD, error) {
	encoded, err := c.kdf.Derive(secret, salt)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(encoded)

	key := make([]byte, base64.URLEncoding.DecodedLen(len(encoded)))
	n, err := base64.URLEncoding.Decode(key, encoded)
	if err != nil {
		return nil, err
	}
	key = key[:n]
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
