package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput wraps every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateEmail is returned when registering an existing email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode is returned when a trainer access code does not match.
	ErrInvalidCode = errors.New("invalid access code")
	// ErrInvalidChallenge is returned for a bad or expired code challenge.
	ErrInvalidChallenge = errors.New("invalid or expired challenge")
	// ErrAccountNotValidated is returned by the strict login policy.
	ErrAccountNotValidated = errors.New("account not validated")

	ErrNotFound         = errors.New("account not found")
	ErrAlreadyValidated = errors.New("account already validated")
	ErrNotTrainer       = errors.New("account is not a trainer")
	ErrNoAccessCode     = errors.New("trainer has no access code yet")

	ErrNoPendingVerification = errors.New("no pending verification code")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrVerificationExpired   = errors.New("verification code expired")
	ErrIncorrectCode         = errors.New("incorrect verification code")

	ErrRegistrationFailed = errors.New("registration failed")
)

// ValidationError reports which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
