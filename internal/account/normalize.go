package account

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// NormalizeEmail trims, NFC-normalizes and lowercases an email address so
// lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return lower.String(norm.NFC.String(strings.TrimSpace(email)))
}

// NormalizeName NFC-normalizes a name and collapses runs of whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}
