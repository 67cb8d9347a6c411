package common

import "time"

const (
	// ResetTokenValidity is how long a password reset token stays usable.
	ResetTokenValidity = time.Hour

	// TokenEntropyBytes is the number of random bytes behind reset tokens and
	// recovery keys.
	TokenEntropyBytes = 32

	// MinMasterSecretLength is the shortest master secret accepted at
	// registration, reset and recovery.
	MinMasterSecretLength = 8
)
