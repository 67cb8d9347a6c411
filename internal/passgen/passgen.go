// Package passgen generates random site passwords.
package passgen

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/dmitrijs2005/securepass/internal/common"
)

const (
	DefaultLength = 16
	MaxLength     = 1024

	Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
		"!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Generate returns length characters drawn uniformly from Charset.
func Generate(length int) (string, error) {
	if length < 1 || length > MaxLength {
		return "", fmt.Errorf("%w: length must be between 1 and %d", common.ErrInvalidInput, MaxLength)
	}

	max := big.NewInt(int64(len(Charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = Charset[n.Int64()]
	}
	return string(out), nil
}
