package cryptox

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c := NewCipher(newTestKDF(t))

	for _, p := range []string{"s3cr3t!", "", "ünïcødé пароль", string(make([]byte, 4096))} {
		rec, err := c.Encrypt(p, "correcthorse")
		require.NoError(t, err)

		got, err := c.Decrypt(rec, "correcthorse")
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestCipher_WrongSecret(t *testing.T) {
	c := NewCipher(newTestKDF(t))

	rec, err := c.Encrypt("s3cr3t!", "correcthorse")
	require.NoError(t, err)

	_, err = c.Decrypt(rec, "wrongpass")
	assert.Equal(t, common.ErrDecryptionFailed, err)
}

func TestCipher_FreshSaltPerRecord(t *testing.T) {
	c := NewCipher(newTestKDF(t))

	a, err := c.Encrypt("same", "pw")
	require.NoError(t, err)
	b, err := c.Encrypt("same", "pw")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestCipher_Decrypt_TamperedOrMalformed(t *testing.T) {
	c := NewCipher(newTestKDF(t))

	rec, err := c.Encrypt("s3cr3t!", "pw")
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(rec.Ciphertext)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01
	flipped := base64.StdEncoding.EncodeToString(sealed)

	otherSalt := base64.StdEncoding.EncodeToString(make([]byte, 16))

	tests := []struct {
		name string
		rec  EncryptedCredential
	}{
		{"flipped tag bit", EncryptedCredential{Salt: rec.Salt, Ciphertext: flipped}},
		{"swapped salt", EncryptedCredential{Salt: otherSalt, Ciphertext: rec.Ciphertext}},
		{"salt not base64", EncryptedCredential{Salt: "%%%", Ciphertext: rec.Ciphertext}},
		{"salt wrong length", EncryptedCredential{Salt: "AAAA", Ciphertext: rec.Ciphertext}},
		{"ciphertext not base64", EncryptedCredential{Salt: rec.Salt, Ciphertext: "%%%"}},
		{"ciphertext too short", EncryptedCredential{Salt: rec.Salt, Ciphertext: "AAAA"}},
		{"empty", EncryptedCredential{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.rec, "pw")
			assert.Equal(t, common.ErrDecryptionFailed, err)
		})
	}
}

func TestEncryptedCredential_JSONLayout(t *testing.T) {
	b, err := json.Marshal(EncryptedCredential{Salt: "c2FsdA==", Ciphertext: "Y3Q="})
	require.NoError(t, err)
	assert.JSONEq(t, `{"salt":"c2FsdA==","encrypted_password":"Y3Q="}`, string(b))
}

func TestEndToEnd_RegisterAndStoreCredential(t *testing.T) {
	kdf := newTestKDF(t)
	h := NewHasher(kdf)
	c := NewCipher(kdf)

	stored, err := h.Hash("correcthorse")
	require.NoError(t, err)

	ok, err := h.Verify("correcthorse", stored.String())
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := c.Encrypt("s3cr3t!", "correcthorse")
	require.NoError(t, err)

	got, err := c.Decrypt(rec, "correcthorse")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t!", got)

	_, err = c.Decrypt(rec, "wrongpass")
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)
}
