package subjects

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SubjectService defines the catalog business logic
type SubjectService interface {
	List(ctx context.Context) ([]Subject, error)
	Create(ctx context.Context, name string) (*Subject, error)

	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]Subject, error)
	AttachToStudent(ctx context.Context, studentID uuid.UUID, subjectIDs []uuid.UUID) ([]Subject, error)
	DetachFromStudent(ctx context.Context, studentID uuid.UUID, subjectIDs []uuid.UUID) ([]Subject, error)
}

type subjectService struct {
	repo SubjectRepository
}

func NewSubjectService(repo SubjectRepository) SubjectService {
	return &subjectService{repo: repo}
}

func (s *subjectService) List(ctx context.Context) ([]Subject, error) {
	return s.repo.List(ctx)
}

// Create adds a catalog entry. Names are stored capitalized and must be
// unique.
func (s *subjectService) Create(ctx context.Context, name string) (*Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	name = strings.ToUpper(name[:1]) + strings.ToLower(name[1:])

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check subject name: %w", err)
	}
	if exists {
		return nil, ErrSubjectExists
	}

	return s.repo.Create(ctx, &Subject{ID: uuid.New(), Name: name})
}

func (s *subjectService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]Subject, error) {
	return s.repo.ListForStudent(ctx, studentID)
}

// AttachToStudent adds subjects to a student's interest set. Unknown
// subject ids are skipped rather than failing the batch.
func (s *subjectService) AttachToStudent(ctx context.Context, studentID uuid.UUID, subjectIDs []uuid.UUID) ([]Subject, error) {
	for _, id := range subjectIDs {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			continue
		}
		if err := s.repo.AttachToStudent(ctx, studentID, id); err != nil {
			return nil, fmt.Errorf("failed to attach subject: %w", err)
		}
	}
	return s.repo.ListForStudent(ctx, studentID)
}

func (s *subjectService) DetachFromStudent(ctx context.Context, studentID uuid.UUID, subjectIDs []uuid.UUID) ([]Subject, error) {
	for _, id := range subjectIDs {
		if err := s.repo.DetachFromStudent(ctx, studentID, id); err != nil {
			return nil, fmt.Errorf("failed to detach subject: %w", err)
		}
	}
	return s.repo.ListForStudent(ctx, studentID)
}
