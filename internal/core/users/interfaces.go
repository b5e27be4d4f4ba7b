package users

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ValidateCredentials verifies an email/password pair and returns the
	// matching user. Used by the login endpoint and the password grant.
	ValidateCredentials(ctx context.Context, email, password string) (*User, error)

	UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error)

	// DeleteAccount removes an account after re-verifying the password.
	DeleteAccount(ctx context.Context, id uuid.UUID, password string) error
}
