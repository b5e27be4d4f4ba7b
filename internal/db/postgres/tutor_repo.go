package postgres

import (
	"Tutorhub/internal/core/tutors"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type postgresTutorRepo struct {
	db *sql.DB
}

// NewTutorProfileRepository creates a new PostgreSQL tutor profile repository
func NewTutorProfileRepository(db *sql.DB) tutors.ProfileRepository {
	return &postgresTutorRepo{db: db}
}

const profileColumns = `id, tutor_id, bio, price, reviewed_at, reviewed_by, reason, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*tutors.Profile, error) {
	profile := &tutors.Profile{}
	var reviewedAt sql.NullTime
	var reviewedBy uuid.NullUUID
	err := row.Scan(&profile.ID, &profile.TutorID, &profile.Bio, &profile.Price,
		&reviewedAt, &reviewedBy, &profile.Reason, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		profile.ReviewedAt = &reviewedAt.Time
	}
	if reviewedBy.Valid {
		id := reviewedBy.UUID
		profile.ReviewedBy = &id
	}
	return profile, nil
}

// GetByTutorID retrieves the profile for a tutor's user ID
func (r *postgresTutorRepo) GetByTutorID(ctx context.Context, tutorID uuid.UUID) (*tutors.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM tutor_profiles WHERE tutor_id = $1`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, tutorID))
	if err == sql.ErrNoRows {
		return nil, tutors.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tutor profile: %w", err)
	}

	return profile, nil
}

// Create inserts an empty profile for a tutor
func (r *postgresTutorRepo) Create(ctx context.Context, profile *tutors.Profile) (*tutors.Profile, error) {
	query := `
		INSERT INTO tutor_profiles (tutor_id, bio, price)
		VALUES ($1, $2, $3)
		RETURNING ` + profileColumns

	created, err := scanProfile(r.db.QueryRowContext(ctx, query,
		profile.TutorID, profile.Bio, profile.Price))
	if err != nil {
		return nil, fmt.Errorf("failed to create tutor profile: %w", err)
	}

	return created, nil
}

// Update writes the mutable and review fields of a profile
func (r *postgresTutorRepo) Update(ctx context.Context, profile *tutors.Profile) (*tutors.Profile, error) {
	query := `
		UPDATE tutor_profiles
		SET bio = $2, price = $3, reviewed_at = $4, reviewed_by = $5, reason = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	var reviewedAt sql.NullTime
	if profile.ReviewedAt != nil {
		reviewedAt = sql.NullTime{Time: *profile.ReviewedAt, Valid: true}
	}
	var reviewedBy uuid.NullUUID
	if profile.ReviewedBy != nil {
		reviewedBy = uuid.NullUUID{UUID: *profile.ReviewedBy, Valid: true}
	}

	updated, err := scanProfile(r.db.QueryRowContext(ctx, query,
		profile.ID, profile.Bio, profile.Price, reviewedAt, reviewedBy, profile.Reason))
	if err == sql.ErrNoRows {
		return nil, tutors.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tutor profile: %w", err)
	}

	return updated, nil
}

// ListUnreviewed returns profiles awaiting an admin decision
func (r *postgresTutorRepo) ListUnreviewed(ctx context.Context) ([]*tutors.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM tutor_profiles WHERE reviewed_at IS NULL ORDER BY created_at`
	return r.queryProfiles(ctx, query)
}

// ListApproved returns profiles reviewed without a denial reason
func (r *postgresTutorRepo) ListApproved(ctx context.Context) ([]*tutors.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM tutor_profiles WHERE reviewed_at IS NOT NULL AND reason = '' ORDER BY created_at`
	return r.queryProfiles(ctx, query)
}

func (r *postgresTutorRepo) queryProfiles(ctx context.Context, query string, args ...any) ([]*tutors.Profile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tutor profiles: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var result []*tutors.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tutor profile row: %w", err)
		}
		result = append(result, profile)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tutor profile rows: %w", err)
	}

	return result, nil
}
