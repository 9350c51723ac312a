// Package validation holds the pure field checks shared by the account
// service and any pre-validation callers. Every check is stateless and
// usable on its own.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/craftbazaar/accounts/internal/domain"
)

type Result struct {
	Valid   bool
	Message string
}

type PasswordResult struct {
	Valid    bool
	Message  string
	Strength int // 0-5, one point per satisfied composition rule
}

const (
	maxEmailLength = 254
	maxLocalLength = 64
	minNameLength  = 2
	maxNameLength  = 50
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)

	upperRegex   = regexp.MustCompile(`[A-Z]`)
	lowerRegex   = regexp.MustCompile(`[a-z]`)
	digitRegex   = regexp.MustCompile(`\d`)
	specialRegex = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

func Email(email string) Result {
	if email == "" {
		return Result{Valid: false, Message: "Email is required"}
	}

	if !emailRegex.MatchString(email) {
		return Result{Valid: false, Message: "Please enter a valid email address"}
	}

	if len(email) > maxEmailLength {
		return Result{Valid: false, Message: "Email address is too long"}
	}

	local := email[:strings.Index(email, "@")]
	if len(local) > maxLocalLength {
		return Result{Valid: false, Message: "Email local part is too long"}
	}

	return Result{Valid: true}
}

// Phone accepts an empty value: the field is optional at signup. Use
// RequiredPhone where presence is mandatory.
func Phone(phone string) Result {
	if phone == "" {
		return Result{Valid: true}
	}
	return RequiredPhone(phone)
}

func RequiredPhone(phone string) Result {
	digits := domain.NormalizePhone(phone)

	if len(digits) < minPhoneDigits {
		return Result{Valid: false, Message: fmt.Sprintf("Phone number must be at least %d digits", minPhoneDigits)}
	}
	if len(digits) > maxPhoneDigits {
		return Result{Valid: false, Message: "Phone number is too long"}
	}

	return Result{Valid: true}
}

// Password scores one strength point per satisfied rule and is valid
// only when all five hold. The failure message enumerates exactly the
// missing categories.
func Password(password string) PasswordResult {
	if password == "" {
		return PasswordResult{Valid: false, Message: "Password is required", Strength: 0}
	}

	strength := 0
	var missing []string

	if len(password) >= 8 {
		strength++
	} else {
		missing = append(missing, "at least 8 characters")
	}

	if upperRegex.MatchString(password) {
		strength++
	} else {
		missing = append(missing, "one uppercase letter")
	}

	if lowerRegex.MatchString(password) {
		strength++
	} else {
		missing = append(missing, "one lowercase letter")
	}

	if digitRegex.MatchString(password) {
		strength++
	} else {
		missing = append(missing, "one number")
	}

	if specialRegex.MatchString(password) {
		strength++
	} else {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		return PasswordResult{
			Valid:    false,
			Message:  "Password must contain " + strings.Join(missing, ", "),
			Strength: strength,
		}
	}

	return PasswordResult{Valid: true, Strength: strength}
}

func Name(name, label string) Result {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return Result{Valid: false, Message: label + " is required"}
	}
	if len(trimmed) < minNameLength {
		return Result{Valid: false, Message: fmt.Sprintf("%s must be at least %d characters", label, minNameLength)}
	}
	if len(trimmed) > maxNameLength {
		return Result{Valid: false, Message: fmt.Sprintf("%s must be less than %d characters", label, maxNameLength)}
	}
	if !nameRegex.MatchString(trimmed) {
		return Result{Valid: false, Message: label + " can only contain letters, spaces, hyphens, and apostrophes"}
	}

	return Result{Valid: true}
}
