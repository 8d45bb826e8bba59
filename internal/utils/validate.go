package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe = regexp.MustCompile(`^[\w+-]+(\.[\w+-]+)*@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
	namesRe = regexp.MustCompile(`^[a-zA-ZñáéíóúüÑÁÉÍÓÚÜ ]+$`)
)

const maxEmailLength = 320

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrInvalidName  = errors.New("invalid name")
)

// ValidateEmail checks length and shape of an address.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidEmail, len(email), maxEmailLength)
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// ValidateName accepts letters (accented included) and spaces only.
func ValidateName(field, value string) error {
	if strings.TrimSpace(value) == "" || !namesRe.MatchString(value) {
		return fmt.Errorf("%w: %s may only contain letters and spaces", ErrInvalidName, field)
	}
	return nil
}

// NormalizeName trims a name and title-cases every word ("ada  LOVELACE"
// becomes "Ada Lovelace").
func NormalizeName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Missing returns the keys of required whose value in body is absent or
// blank, in the order given.
func Missing(body map[string]string, required ...string) []string {
	var out []string
	for _, k := range required {
		if strings.TrimSpace(body[k]) == "" {
			out = append(out, k)
		}
	}
	return out
}
