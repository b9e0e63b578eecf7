package utils

import "strings"

// NormalizeEmail trims and lower-cases an address. Applicants and attempts
// are keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
