// Package validation checks user-supplied account fields.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
	digitRegex    = regexp.MustCompile(`[0-9]`)
	specialRegex  = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
)

// Usernames that collide with routes or look like staff accounts.
var reservedUsernames = map[string]struct{}{
	"admin":         {},
	"administrator": {},
	"api":           {},
	"auth":          {},
	"events":        {},
	"friends":       {},
	"groups":        {},
	"huddle":        {},
	"me":            {},
	"metrics":       {},
	"notifications": {},
	"root":          {},
	"support":       {},
	"swagger":       {},
	"system":        {},
	"users":         {},
	"ws":            {},
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	var hasUpper, hasLower bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !digitRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !specialRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}
	return nil
}

// ValidateUsername checks length, charset and reserved names.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return fmt.Errorf("username must not exceed 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}

	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}
	if IsReservedUsername(username) {
		return fmt.Errorf("username is reserved")
	}
	return nil
}

// IsReservedUsername reports whether name is held back from signup, ignoring case.
func IsReservedUsername(name string) bool {
	_, ok := reservedUsernames[strings.ToLower(name)]
	return ok
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}
