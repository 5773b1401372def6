package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const MinPasswordLength = 8

// commonPasswords is a short deny-list of the most frequently leaked passwords.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "11111111": {},
	"00000000": {}, "abc12345": {}, "sunshine": {}, "princess": {}, "football": {},
	"baseball": {}, "welcome1": {}, "letmein1": {}, "trustno1": {}, "superman": {},
	"starwars": {}, "whatever": {}, "dragon12": {}, "passw0rd": {}, "admin123": {},
}

// ValidatePassword applies the account password rules and returns one message
// per failed rule. attrs are user attributes (username, names, email) the
// password must not resemble.
func ValidatePassword(password string, attrs ...string) []string {
	var problems []string

	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems,
			fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "This password is too common.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		problems = append(problems, "This password is entirely numeric.")
	}
	if attr, similar := similarTo(password, attrs); similar {
		problems = append(problems, fmt.Sprintf("The password is too similar to the %s.", attr))
	}
	return problems
}

// similarTo reports whether password contains, or is contained in, one of
// attrs (case-insensitive). Email addresses are also checked by local part.
func similarTo(password string, attrs []string) (string, bool) {
	lower := strings.ToLower(password)
	if len(lower) < 3 {
		return "", false
	}
	for i, attr := range attrs {
		candidates := []string{strings.ToLower(strings.TrimSpace(attr))}
		if at := strings.IndexByte(candidates[0], '@'); at > 0 {
			candidates = append(candidates, candidates[0][:at])
		}
		for _, c := range candidates {
			if len(c) < 3 {
				continue
			}
			if strings.Contains(lower, c) || strings.Contains(c, lower) {
				return attrLabel(i), true
			}
		}
	}
	return "", false
}

var attrLabels = []string{"username", "first name", "last name", "email address"}

func attrLabel(i int) string {
	if i < len(attrLabels) {
		return attrLabels[i]
	}
	return "account details"
}
