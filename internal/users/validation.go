package users

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// emailPattern is deliberately loose; the address is only used as a login
// identifier, not for delivery.
var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// Password length bounds, in characters.
const (
	minPasswordLen = 6
	maxPasswordLen = 20
)

// maxNameLen bounds display names, in characters.
const maxNameLen = 20

// ValidEmail reports whether the username looks like an email address.
func ValidEmail(username string) bool {
	return emailPattern.MatchString(username)
}

// ValidatePassword checks password length bounds.
func ValidatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < minPasswordLen:
		return errors.New("password must be at least 6 characters")
	case n > maxPasswordLen:
		return errors.New("password must be at most 20 characters")
	}
	return nil
}

// ValidateName checks that the display name is non-empty and within bounds.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return errors.New("name must be at most 20 characters")
	}
	return nil
}
