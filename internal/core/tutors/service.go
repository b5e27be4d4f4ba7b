package tutors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"Tutorhub/internal/core/subjects"
	"Tutorhub/internal/core/users"
)

// ProfileRepository defines the interface for tutor profile persistence
type ProfileRepository interface {
	GetByTutorID(ctx context.Context, tutorID uuid.UUID) (*Profile, error)
	Create(ctx context.Context, profile *Profile) (*Profile, error)
	Update(ctx context.Context, profile *Profile) (*Profile, error)
	ListUnreviewed(ctx context.Context) ([]*Profile, error)
	ListApproved(ctx context.Context) ([]*Profile, error)
}

// TutorService defines tutor profile and approval business logic
type TutorService interface {
	GetTutor(ctx context.Context, tutorID uuid.UUID) (*Tutor, error)
	ListApproved(ctx context.Context) ([]*Tutor, error)
	ListUnreviewed(ctx context.Context) ([]*Tutor, error)
	UpdateProfile(ctx context.Context, tutorID uuid.UUID, req UpdateProfileRequest) (*Tutor, error)

	// Review records an admin decision. Approval clears any reason; a
	// denial must carry one.
	Review(ctx context.Context, tutorID, reviewerID uuid.UUID, approved bool, reason string) (*Tutor, error)
}

// UpdateProfileRequest carries the mutable tutor profile fields.
type UpdateProfileRequest struct {
	Bio        *string     `json:"bio"`
	Price      *float64    `json:"price"`
	SubjectIDs []uuid.UUID `json:"-"`
}

type tutorService struct {
	users    users.UserService
	profiles ProfileRepository
	subjects subjects.SubjectRepository
}

func NewTutorService(userService users.UserService, profiles ProfileRepository, subjectRepo subjects.SubjectRepository) TutorService {
	return &tutorService{users: userService, profiles: profiles, subjects: subjectRepo}
}

func (s *tutorService) GetTutor(ctx context.Context, tutorID uuid.UUID) (*Tutor, error) {
	user, err := s.users.GetByID(ctx, tutorID)
	if err != nil || user.Role != users.RoleTutor {
		return nil, ErrProfileNotFound
	}

	profile, err := s.profiles.GetByTutorID(ctx, tutorID)
	if errors.Is(err, ErrProfileNotFound) {
		// Lazily create the empty profile on first access.
		profile, err = s.profiles.Create(ctx, &Profile{TutorID: tutorID})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tutor profile: %w", err)
	}

	if err := s.loadSubjects(ctx, profile); err != nil {
		return nil, err
	}

	return &Tutor{User: *user, Profile: *profile}, nil
}

func (s *tutorService) ListApproved(ctx context.Context) ([]*Tutor, error) {
	profiles, err := s.profiles.ListApproved(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved tutors: %w", err)
	}
	return s.compose(ctx, profiles), nil
}

func (s *tutorService) ListUnreviewed(ctx context.Context) ([]*Tutor, error) {
	profiles, err := s.profiles.ListUnreviewed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreviewed tutors: %w", err)
	}
	return s.compose(ctx, profiles), nil
}

func (s *tutorService) UpdateProfile(ctx context.Context, tutorID uuid.UUID, req UpdateProfileRequest) (*Tutor, error) {
	tutor, err := s.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	profile := tutor.Profile
	if req.Bio != nil {
		profile.Bio = *req.Bio
	}
	if req.Price != nil {
		profile.Price = *req.Price
	}

	updated, err := s.profiles.Update(ctx, &profile)
	if err != nil {
		return nil, fmt.Errorf("failed to update tutor profile: %w", err)
	}

	if req.SubjectIDs != nil {
		for _, subj := range updated.Subjects {
			if err := s.subjects.DetachFromTutorProfile(ctx, updated.ID, subj.ID); err != nil {
				return nil, fmt.Errorf("failed to clear tutor subjects: %w", err)
			}
		}
		for _, id := range req.SubjectIDs {
			if _, err := s.subjects.GetByID(ctx, id); err != nil {
				continue
			}
			if err := s.subjects.AttachToTutorProfile(ctx, updated.ID, id); err != nil {
				return nil, fmt.Errorf("failed to attach tutor subject: %w", err)
			}
		}
	}

	if err := s.loadSubjects(ctx, updated); err != nil {
		return nil, err
	}

	tutor.Profile = *updated
	return tutor, nil
}

func (s *tutorService) Review(ctx context.Context, tutorID, reviewerID uuid.UUID, approved bool, reason string) (*Tutor, error) {
	tutor, err := s.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	profile := tutor.Profile
	now := time.Now().UTC()
	profile.ReviewedAt = &now
	profile.ReviewedBy = &reviewerID
	if approved {
		profile.Reason = ""
	} else {
		profile.Reason = reason
	}

	updated, err := s.profiles.Update(ctx, &profile)
	if err != nil {
		return nil, fmt.Errorf("failed to record review: %w", err)
	}

	slog.Info("tutor profile reviewed", "tutor_id", tutorID, "reviewer_id", reviewerID, "approved", approved)
	tutor.Profile = *updated
	return tutor, nil
}

func (s *tutorService) loadSubjects(ctx context.Context, profile *Profile) error {
	subj, err := s.subjects.ListForTutorProfile(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to load tutor subjects: %w", err)
	}
	profile.Subjects = subj
	return nil
}

func (s *tutorService) compose(ctx context.Context, profiles []*Profile) []*Tutor {
	tutors := make([]*Tutor, 0, len(profiles))
	for _, p := range profiles {
		user, err := s.users.GetByID(ctx, p.TutorID)
		if err != nil {
			slog.Warn("tutor profile references missing user", "tutor_id", p.TutorID, "error", err)
			continue
		}
		if err := s.loadSubjects(ctx, p); err != nil {
			slog.Warn("failed to load tutor subjects", "tutor_id", p.TutorID, "error", err)
		}
		tutors = append(tutors, &Tutor{User: *user, Profile: *p})
	}
	return tutors
}
