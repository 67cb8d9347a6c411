package models

import "time"

// Credential is one stored site login. EncryptedData holds the JSON encoded
// cryptox.EncryptedCredential; the plaintext password never reaches the DB.
type Credential struct {
	ID            string
	UserID        string
	SiteName      string
	SiteURL       string
	SiteUsername  string
	EncryptedData string
	CreatedAt     time.Time
}
