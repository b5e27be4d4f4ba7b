package users

import (
	"errors"
	"fmt"
)

// Sentinel errors for common user operations
var (
	// ErrUserNotFound is returned when a user lookup finds no matching record
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailAlreadyTaken is returned when registering with an email that
	// belongs to an existing account
	ErrEmailAlreadyTaken = errors.New("an account with that email already exists")

	// ErrInvalidCredentials is returned when an email/password pair does not
	// match a stored account. The message is deliberately vague.
	ErrInvalidCredentials = errors.New("email and/or password are incorrect")
)

type InvalidRoleError struct {
	Role string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q: must be one of: s, t", e.Role)
}

type InvalidGenderError struct {
	Gender string
}

func (e *InvalidGenderError) Error() string {
	return fmt.Sprintf("invalid gender %q: must be one of: f, m, n", e.Gender)
}

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing following required field(s): %v", e.Fields)
}
