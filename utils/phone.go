// Package utils provides utility functions for the application.
package utils

import "strings"

// NormalizePhoneE164 converts an arbitrary phone string into Kenyan
// international digit form (254XXXXXXXXX, no plus sign). Unrecognized
// shapes are returned digits-only so callers can still group by them.
// An input with no digits normalizes to the empty string.
func NormalizePhoneE164(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, "254") && (len(digits) == 12 || len(digits) == 13):
		return digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "254" + digits[1:]
	case (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")) && len(digits) == 9:
		return "254" + digits
	default:
		return digits
	}
}

// ToKenyanLocalPhone renders an international number in the local
// 0XXXXXXXXX display form. Inputs already in local form pass through,
// anything else is returned unchanged.
func ToKenyanLocalPhone(e164 string) string {
	if strings.HasPrefix(e164, "254") && len(e164) >= 12 {
		return "0" + e164[3:]
	}
	if strings.HasPrefix(e164, "0") {
		return e164
	}
	return e164
}

// IsKenyanMobile reports whether the value normalizes to a plausible
// Kenyan mobile number.
func IsKenyanMobile(raw string) bool {
	n := NormalizePhoneE164(raw)
	return strings.HasPrefix(n, "254") && (len(n) == 12 || len(n) == 13)
}
