package subjects

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrSubjectNotFound is returned when a subject lookup finds no record
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrSubjectExists is returned when creating a subject whose name is taken
	ErrSubjectExists = errors.New("a subject with that name already exists")

	// ErrEmptyName is returned when a subject name is blank
	ErrEmptyName = errors.New("subject name must not be empty")
)

// Subject is one entry of the tutoring subject catalog.
type Subject struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// SubjectRepository defines the interface for subject persistence,
// including the per-user association sets.
type SubjectRepository interface {
	List(ctx context.Context) ([]Subject, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Subject, error)
	Create(ctx context.Context, subject *Subject) (*Subject, error)
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Student interest set.
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]Subject, error)
	AttachToStudent(ctx context.Context, studentID, subjectID uuid.UUID) error
	DetachFromStudent(ctx context.Context, studentID, subjectID uuid.UUID) error

	// Tutor-profile teaching set.
	ListForTutorProfile(ctx context.Context, profileID int64) ([]Subject, error)
	AttachToTutorProfile(ctx context.Context, profileID int64, subjectID uuid.UUID) error
	DetachFromTutorProfile(ctx context.Context, profileID int64, subjectID uuid.UUID) error
}
