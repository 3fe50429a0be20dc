package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Company names: letters, digits, spaces and a little punctuation.
var companyNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\s\-'&.]*$`)

// MaxUnitNameLen is the longest token symbol the ledger accepts from setup.
const MaxUnitNameLen = 5

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidCompanyName reports whether name is usable as a company and token name.
func IsValidCompanyName(name string) bool {
	return len(name) <= 64 && companyNameRe.MatchString(name) && UnitName(name) != ""
}

// UnitName derives a token symbol: the letters of the upper-cased name, at most
// MaxUnitNameLen of them.
func UnitName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if b.Len() == MaxUnitNameLen {
			break
		}
		if r <= unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
