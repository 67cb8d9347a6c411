// Package services contains the vault's business logic: the cryptographic
// core (Vault), secret lifecycle (SecretService), users and credentials.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/kdfpool"
	"github.com/dmitrijs2005/securepass/internal/server/metrics"
)

// Vault exposes master secret hashing and credential encryption. Every
// call that derives a key waits for a slot in the KDF pool first.
type Vault struct {
	hasher  *cryptox.Hasher
	cipher  *cryptox.Cipher
	pool    *kdfpool.Pool
	metrics *metrics.Metrics
}

// NewVault validates params and builds the crypto components from them.
func NewVault(params cryptox.Params, pool *kdfpool.Pool, m *metrics.Metrics) (*Vault, error) {
	kdf, err := cryptox.NewKDF(params)
	if err != nil {
		return nil, err
	}
	return &Vault{
		hasher:  cryptox.NewHasher(kdf),
		cipher:  cryptox.NewCipher(kdf),
		pool:    pool,
		metrics: m,
	}, nil
}

// HashMasterSecret returns the storable "salt:key" form of secret.
func (v *Vault) HashMasterSecret(ctx context.Context, secret string) (string, error) {
	defer v.metrics.ObserveKDF("hash", time.Now())

	var out string
	err := v.pool.Do(ctx, func() error {
		h, err := v.hasher.Hash(secret)
		if err != nil {
			return err
		}
		out = h.String()
		return nil
	})
	return out, err
}

// VerifyMasterSecret checks secret against a stored hash. A stored value
// that does not parse gives common.ErrMalformedHash.
func (v *Vault) VerifyMasterSecret(ctx context.Context, secret, stored string) (bool, error) {
	parsed, err := cryptox.ParseMasterSecretHash(stored)
	if err != nil {
		return false, err
	}

	defer v.metrics.ObserveKDF("verify", time.Now())

	var ok bool
	err = v.pool.Do(ctx, func() error {
		var verr error
		ok, verr = v.hasher.VerifyHash(secret, parsed)
		return verr
	})
	return ok, err
}

func (v *Vault) EncryptCredential(ctx context.Context, plaintext, secret string) (cryptox.EncryptedCredential, error) {
	defer v.metrics.ObserveKDF("encrypt", time.Now())

	var rec cryptox.EncryptedCredential
	err := v.pool.Do(ctx, func() error {
		var eerr error
		rec, eerr = v.cipher.Encrypt(plaintext, secret)
		return eerr
	})
	return rec, err
}

// DecryptCredential returns the plaintext or common.ErrDecryptionFailed.
// Only a cancelled wait for the pool produces a different error.
func (v *Vault) DecryptCredential(ctx context.Context, rec cryptox.EncryptedCredential, secret string) (string, error) {
	defer v.metrics.ObserveKDF("decrypt", time.Now())

	var plaintext string
	err := v.pool.Do(ctx, func() error {
		var derr error
		plaintext, derr = v.cipher.Decrypt(rec, secret)
		return derr
	})
	if err != nil && ctx.Err() == nil {
		v.metrics.DecryptFailures.Inc()
	}
	return plaintext, err
}
