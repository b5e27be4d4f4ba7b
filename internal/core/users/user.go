package users

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's role, stored and serialized as a single letter.
type Role string

const (
	RoleAdmin   Role = "a"
	RoleStudent Role = "s"
	RoleTutor   Role = "t"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent || r == RoleTutor
}

// Name returns the human-readable role name used by enum listing endpoints.
func (r Role) Name() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleStudent:
		return "Student"
	case RoleTutor:
		return "Tutor"
	}
	return ""
}

// Roles lists every role in wire order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleStudent, RoleTutor}
}

// Gender is stored and serialized as a single letter.
type Gender string

const (
	GenderFemale       Gender = "f"
	GenderMale         Gender = "m"
	GenderNotDisclosed Gender = "n"
)

func (g Gender) Valid() bool {
	return g == GenderFemale || g == GenderMale || g == GenderNotDisclosed
}

func (g Gender) Name() string {
	switch g {
	case GenderFemale:
		return "Female"
	case GenderMale:
		return "Male"
	case GenderNotDisclosed:
		return "Prefer not to say"
	}
	return ""
}

// Genders lists every gender in wire order.
func Genders() []Gender {
	return []Gender{GenderFemale, GenderMale, GenderNotDisclosed}
}

// User is an account row. PasswordHash is a bcrypt digest and never
// leaves the backend.
type User struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	Gender       Gender    `json:"gender"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// RegisterRequest is the input for creating a new account.
type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Location  string `json:"location"`
	Role      string `json:"role"`
	Password  string `json:"password"`
}

// UpdateProfileRequest carries the mutable profile fields. Nil pointers
// leave the stored value untouched.
type UpdateProfileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Gender    *string `json:"gender"`
	Location  *string `json:"location"`
}

// Profile is the projection of a user returned by profile endpoints.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    Gender    `json:"gender"`
	Role      Role      `json:"role"`
	Location  string    `json:"location"`
}

// ProfileView projects a user for the given audience. The email is
// private and only included when the viewer is the user themselves.
func ProfileView(u *User, includePrivate bool) Profile {
	p := Profile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		Role:      u.Role,
		Location:  u.Location,
	}
	if includePrivate {
		p.Email = u.Email
	}
	return p
}
