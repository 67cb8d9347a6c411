// Package auth signs and checks short-lived recovery grants and enforces the
// master secret policy.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// PurposeRecovery marks a grant that allows setting a new master secret
// after a recovery key was presented.
const PurposeRecovery = "recovery"

// Claims carries the standard claims plus the purpose of the grant and the
// account state it was issued against. The user id travels in Subject.
type Claims struct {
	jwt.RegisteredClaims
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp"`
}

// RecoveryGrant is the content of a signed grant. Fingerprint pins the grant
// to the account state at issue time; once that state changes the grant is
// spent.
type RecoveryGrant struct {
	UserID      string
	Fingerprint string
}

// GenerateRecoveryGrant signs an HS256 grant valid until now+validity.
func GenerateRecoveryGrant(g RecoveryGrant, secretKey []byte, validity time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   g.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Purpose:     PurposeRecovery,
		Fingerprint: g.Fingerprint,
	})

	return token.SignedString(secretKey)
}

// ParseRecoveryGrant checks the signature, expiry and purpose of a grant.
// Expired grants give common.ErrTokenExpired; anything else wrong gives
// common.ErrInvalidToken.
func ParseRecoveryGrant(tokenString string, secretKey []byte, now time.Time) (RecoveryGrant, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return RecoveryGrant{}, common.ErrTokenExpired
		}
		return RecoveryGrant{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != PurposeRecovery || claims.Subject == "" || claims.Fingerprint == "" {
		return RecoveryGrant{}, common.ErrInvalidToken
	}

	return RecoveryGrant{UserID: claims.Subject, Fingerprint: claims.Fingerprint}, nil
}
