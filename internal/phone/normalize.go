// Package phone normalizes customer phone numbers into the numeric format the
// mobile-money provider expects.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// CountryPrefix is the international dialling prefix for Kenya.
const CountryPrefix = "254"

// subscriberLength is the number of digits after the country prefix.
const subscriberLength = 9

// ErrInvalidPhoneNumber is returned when a number cannot be normalized.
var ErrInvalidPhoneNumber = errors.New("invalid phone number format, use 07XXXXXXXX or 2547XXXXXXXX")

var normalizedPattern = regexp.MustCompile(`^254\d{9}$`)

// Normalize converts a raw phone number into 254XXXXXXXXX.
//
// Non-digits are stripped first. A single leading zero is replaced with the
// country prefix, a number already carrying the prefix is kept, and a bare
// 9-digit subscriber number gets the prefix prepended. Anything else is
// rejected.
func Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)

	var normalized string
	switch {
	case strings.HasPrefix(digits, "0"):
		normalized = CountryPrefix + digits[1:]
	case strings.HasPrefix(digits, CountryPrefix):
		normalized = digits
	case len(digits) == subscriberLength:
		normalized = CountryPrefix + digits
	default:
		return "", ErrInvalidPhoneNumber
	}

	if !normalizedPattern.MatchString(normalized) {
		return "", ErrInvalidPhoneNumber
	}
	return normalized, nil
}

// Mask hides the middle of a normalized number for logging.
func Mask(number string) string {
	if len(number) < 9 {
		return "***"
	}
	return number[:5] + strings.Repeat("*", len(number)-8) + number[len(number)-3:]
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
