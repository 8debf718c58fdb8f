package service

import (
	"unicode"

	"github.com/itchan-dev/accounts/shared/config"
	"github.com/itchan-dev/accounts/shared/errors"
)

// bcrypt refuses longer inputs
const bcryptMaxBytes = 72

type PasswordPolicy struct {
	minLength int
	maxLength int
}

func NewPasswordPolicy(cfg config.PasswordPolicy) PasswordPolicy {
	return PasswordPolicy{minLength: cfg.MinLength, maxLength: cfg.MaxLength}
}

// Validate checks length bounds and requires a lowercase letter, an uppercase
// letter and a digit.
func (p PasswordPolicy) Validate(password string) error {
	length := len([]rune(password))
	if length < p.minLength {
		return errors.InvalidOperation("Password must be at least %d characters long", p.minLength)
	}
	if length > p.maxLength || len(password) > bcryptMaxBytes {
		return errors.InvalidOperation("Password must be at most %d characters long", p.maxLength)
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower {
		return errors.InvalidOperation("Password must contain at least one lowercase letter")
	}
	if !upper {
		return errors.InvalidOperation("Password must contain at least one uppercase letter")
	}
	if !digit {
		return errors.InvalidOperation("Password must contain at least one digit")
	}
	return nil
}
