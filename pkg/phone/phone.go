// Package phone canonicalizes player phone numbers so the same person always
// maps to the same lookup key, regardless of how the provider or a human
// wrote the number.
package phone

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidFormat = errors.New("invalid phone format")

const (
	countryPrefix = "972"

	minDigits = 8
	maxDigits = 15
)

// Normalize converts a raw phone string to canonical international form
// without the '+' prefix, e.g. "050-123-4567" -> "972501234567".
// Idempotent: normalizing an already-canonical number returns it unchanged.
func Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", fmt.Errorf("%w: %q has no digits", ErrInvalidFormat, raw)
	}

	switch {
	case strings.HasPrefix(digits, "0"):
		digits = countryPrefix + digits[1:]
	case strings.HasPrefix(digits, countryPrefix):
		// already canonical
	case (len(digits) == 9 || len(digits) == 10) && strings.HasPrefix(digits, "5"):
		// bare mobile number without country code
		digits = countryPrefix + digits
	}

	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", fmt.Errorf("%w: %q is not a plausible number", ErrInvalidFormat, raw)
	}
	return digits, nil
}

// FormatDisplay renders a number for humans in local form, e.g.
// "972501234567" -> "050-123-4567". Unrecognized shapes fall back to
// dash-grouped digits.
func FormatDisplay(raw string) string {
	digits := stripNonDigits(raw)
	if strings.HasPrefix(digits, countryPrefix) {
		digits = "0" + digits[len(countryPrefix):]
	}

	switch len(digits) {
	case 10:
		return digits[0:3] + "-" + digits[3:6] + "-" + digits[6:]
	case 9:
		return digits[0:2] + "-" + digits[2:5] + "-" + digits[5:]
	}

	var groups []string
	for i := 0; i < len(digits); i += 3 {
		end := i + 3
		if end > len(digits) {
			end = len(digits)
		}
		groups = append(groups, digits[i:end])
	}
	return strings.Join(groups, "-")
}

// Equivalent reports whether two raw numbers normalize to the same key.
// Unparseable inputs are never equivalent to anything.
func Equivalent(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
