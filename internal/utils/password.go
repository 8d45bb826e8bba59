package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/maintenance-auth/internal/model"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.  An empty
// hash (externally authenticated account) never matches.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// SetPassword replaces u.PasswordHash with the digest of plain.  The
// plaintext is not retained.
func SetPassword(u *model.User, plain string, cost int) error {
	hash, err := HashPassword(plain, cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = hash
	return nil
}

// ErrWeakPassword is wrapped by PasswordPolicy.Validate.
var ErrWeakPassword = errors.New("insecure password")

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordPolicy describes the minimum strength accepted on sign-up and
// password reset.
type PasswordPolicy struct {
	MinLength    int
	RequireDigit bool
	RequireLower bool
	RequireUpper bool
}

// DefaultPasswordPolicy requires 8 characters with a digit and both cases.
var DefaultPasswordPolicy = PasswordPolicy{MinLength: 8, RequireDigit: true, RequireLower: true, RequireUpper: true}

// Validate returns nil when plain satisfies the policy.  The error lists
// every unmet rule.  The bcrypt length limit applies to every policy.
func (p PasswordPolicy) Validate(plain string) error {
	var digit, lower, upper bool
	for _, r := range plain {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	var unmet []string
	if len([]rune(plain)) < p.MinLength {
		unmet = append(unmet, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if len(plain) > MaxPasswordBytes {
		unmet = append(unmet, fmt.Sprintf("at most %d bytes", MaxPasswordBytes))
	}
	if p.RequireDigit && !digit {
		unmet = append(unmet, "a digit")
	}
	if p.RequireLower && !lower {
		unmet = append(unmet, "a lowercase letter")
	}
	if p.RequireUpper && !upper {
		unmet = append(unmet, "an uppercase letter")
	}
	if len(unmet) > 0 {
		return fmt.Errorf("%w: password needs %s", ErrWeakPassword, strings.Join(unmet, ", "))
	}
	return nil
}
