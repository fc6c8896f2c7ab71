package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailTaken is returned on registration when the email already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password;
	// the two are never distinguished to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for malformed, expired or revoked access
	// tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrEmailNotConfirmed is returned on sign-in while the account awaits
	// email confirmation.
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	// ErrProfileMissing is returned when credentials verify but the
	// mirrored profile row cannot be loaded; distinct from bad credentials.
	ErrProfileMissing = errors.New("profile not found")

	// ErrUnauthenticated is returned when no identity can be resolved from
	// session or token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccountNotFound is returned by account lookups for absent ids.
	ErrAccountNotFound = errors.New("account not found")
)

// ValidationError reports bad input shape or value. It is always surfaced
// inline to the caller and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
