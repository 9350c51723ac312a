package domain

import (
	"errors"
	"strings"
)

// Stable error codes returned across the service boundary.
const (
	CodeInvalidFirstName     = "INVALID_FIRST_NAME"
	CodeInvalidLastName      = "INVALID_LAST_NAME"
	CodeInvalidEmail         = "INVALID_EMAIL"
	CodeInvalidPhone         = "INVALID_PHONE"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodePasswordRequired     = "PASSWORD_REQUIRED"
	CodePasswordMismatch     = "PASSWORD_MISMATCH"
	CodeTermsNotAccepted     = "TERMS_NOT_ACCEPTED"
	CodeBusinessNameRequired = "BUSINESS_NAME_REQUIRED"
	CodeInvalidRole          = "INVALID_ROLE"
	CodeUserExists           = "USER_EXISTS"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeAccountDeactivated   = "ACCOUNT_DEACTIVATED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInvalidOrExpired     = "INVALID_OR_EXPIRED_TOKEN"
)

// FieldError is a single field-tagged validation failure.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ValidationErrors collects every violation found in one request, not
// just the first.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ConflictError reports a uniqueness violation on signup. Field is
// "email" or "phone"; email takes precedence when both collide.
type ConflictError struct {
	Field string
}

func (c *ConflictError) Error() string {
	if c.Field == "phone" {
		return "an account with this phone number already exists"
	}
	return "an account with this email address already exists"
}

func (c *ConflictError) FieldError() FieldError {
	return FieldError{Code: CodeUserExists, Message: c.Error(), Field: c.Field}
}

// AuthError covers authentication failures. The INVALID_CREDENTIALS
// variant is deliberately identical for unknown email and wrong
// password so callers cannot enumerate accounts.
type AuthError struct {
	Code    string
	Message string
}

func (a *AuthError) Error() string { return a.Message }

var (
	ErrInvalidCredentials = &AuthError{Code: CodeInvalidCredentials, Message: "Invalid email or password"}
	ErrAccountDeactivated = &AuthError{Code: CodeAccountDeactivated, Message: "Your account has been deactivated"}
)

// TokenError covers verification and reset token redemption failures.
type TokenError struct {
	Code    string
	Message string
}

func (t *TokenError) Error() string { return t.Message }

var (
	ErrInvalidToken          = &TokenError{Code: CodeInvalidToken, Message: "Invalid verification token"}
	ErrInvalidOrExpiredToken = &TokenError{Code: CodeInvalidOrExpired, Message: "Invalid or expired reset token"}
)

// ErrNotFound marks a data inconsistency: a redeemed token pointed at
// an account that no longer exists. Normal operation never hits it.
var ErrNotFound = errors.New("account not found")
