// Package common defines shared constants and sentinel errors used across
// the vault core, its repositories and services. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Cryptographic errors. ErrDecryptionFailed never says which check failed.
	ErrInvalidInput     = errors.New("invalid input")
	ErrMalformedHash    = errors.New("malformed hash")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Auth errors (invalid or malformed grant).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("token already used")
)
