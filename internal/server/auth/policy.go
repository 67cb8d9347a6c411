package auth

import (
	"fmt"
	"unicode/utf8"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/nbutton23/zxcvbn-go"
)

// PasswordPolicy decides whether a master secret is acceptable.
// MinScore is a zxcvbn score from 1 to 4; 0 turns the strength check off.
type PasswordPolicy struct {
	MinLength int
	MinScore  int
}

// Check returns a common.ErrorValidation error describing the first rule
// the secret breaks. userInputs (username, email) count against strength.
func (p PasswordPolicy) Check(secret string, userInputs ...string) error {
	if n := utf8.RuneCountInString(secret); n < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, p.MinLength)
	}
	if p.MinScore <= 0 {
		return nil
	}
	if score := zxcvbn.PasswordStrength(secret, userInputs).Score; score < p.MinScore {
		return fmt.Errorf("%w: password is too weak (score %d, need %d)", common.ErrorValidation, score, p.MinScore)
	}
	return nil
}
