// Package validation holds the stateless input checks used by the account
// service: email syntax, email domain allow-list, and password strength.
// All functions are pure.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// CheckEmailFormat rejects empty or malformed addresses.
func CheckEmailFormat(email string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// CheckEmailDomain verifies the lower-cased domain part of email against
// the allow-list. The error message enumerates the allowed set.
func CheckEmailDomain(email string, allowed []string) error {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return fmt.Errorf("invalid email format")
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range allowed {
		if domain == strings.ToLower(d) {
			return nil
		}
	}
	return fmt.Errorf("email domain not allowed. Allowed domains: %s", strings.Join(allowed, ", "))
}

// CheckPasswordStrength requires minLen characters (8 when minLen <= 0),
// at least one uppercase letter and at least one digit. Length is checked
// first so the more specific failure is reported.
func CheckPasswordStrength(password string, minLen int) error {
	if minLen <= 0 {
		minLen = 8
	}
	if utf8.RuneCountInString(password) < minLen {
		return fmt.Errorf("password must be at least %d characters", minLen)
	}
	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasDigit {
		return fmt.Errorf("password must contain at least 1 uppercase letter and 1 number")
	}
	return nil
}
