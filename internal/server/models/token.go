package models

import "time"

type ResetToken struct {
	ID        string
	UserID    string
	Token     string
	Expiry    time.Time
	Used      bool
	CreatedAt time.Time
}

// Expired reports whether now is past the token expiry.
func (t *ResetToken) Expired(now time.Time) bool {
	return now.After(t.Expiry)
}

// RecoveryKey stores only the hex SHA-256 of the raw key. There is at most
// one row per user.
type RecoveryKey struct {
	UserID    string
	KeyHash   string
	CreatedAt time.Time
}
