// Package models defines server-side data models persisted in the database.
package models

import "time"

// User owns a master secret hash and, through foreign keys, every
// credential, reset token and recovery key row.
type User struct {
	ID           string    `db:"id"`
	UserName     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
