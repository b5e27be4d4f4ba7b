package tutors

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"Tutorhub/internal/core/subjects"
	"Tutorhub/internal/core/users"
)

// ErrProfileNotFound is returned when a tutor has no profile record
var ErrProfileNotFound = errors.New("tutor not found")

// ReviewState is the admin approval state derived from the review fields.
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewApproved ReviewState = "approved"
	ReviewDenied   ReviewState = "denied"
)

// Profile is the tutor-specific record alongside the user row.
type Profile struct {
	ID      int64
	TutorID uuid.UUID
	Bio     string
	Price   float64

	// Review workflow fields. A profile is approved when it has been
	// reviewed without a denial reason.
	ReviewedAt *time.Time
	ReviewedBy *uuid.UUID
	Reason     string

	Subjects []subjects.Subject

	CreatedAt time.Time
	UpdatedAt time.Time
}

// State derives the approval state from the review fields.
func (p *Profile) State() ReviewState {
	if p.ReviewedAt == nil {
		return ReviewPending
	}
	if p.Reason == "" {
		return ReviewApproved
	}
	return ReviewDenied
}

// Tutor composes the account row and the tutor profile as one value
// with explicit fields from both sources.
type Tutor struct {
	User    users.User
	Profile Profile
}

// TutorView is the wire projection of a tutor. Private fields are only
// present on the private view.
type TutorView struct {
	ID        uuid.UUID          `json:"id"`
	FirstName string             `json:"first_name"`
	LastName  string             `json:"last_name"`
	Gender    users.Gender       `json:"gender"`
	Role      users.Role         `json:"role"`
	Location  string             `json:"location"`
	Bio       string             `json:"bio"`
	Price     float64            `json:"price"`
	Subjects  []subjects.Subject `json:"subjects"`

	// Private fields, omitted from the public view.
	Email      string      `json:"email,omitempty"`
	State      ReviewState `json:"state,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty"`
}

// PublicView projects the fields any authenticated caller may see.
func (t *Tutor) PublicView() TutorView {
	subj := t.Profile.Subjects
	if subj == nil {
		subj = []subjects.Subject{}
	}
	return TutorView{
		ID:        t.User.ID,
		FirstName: t.User.FirstName,
		LastName:  t.User.LastName,
		Gender:    t.User.Gender,
		Role:      t.User.Role,
		Location:  t.User.Location,
		Bio:       t.Profile.Bio,
		Price:     t.Profile.Price,
		Subjects:  subj,
	}
}

// PrivateView projects everything, for the tutor themselves and admins.
func (t *Tutor) PrivateView() TutorView {
	v := t.PublicView()
	v.Email = t.User.Email
	v.State = t.Profile.State()
	v.Reason = t.Profile.Reason
	v.ReviewedAt = t.Profile.ReviewedAt
	return v
}
