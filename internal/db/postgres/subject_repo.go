package postgres

import (
	"Tutorhub/internal/core/subjects"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type postgresSubjectRepo struct {
	db *sql.DB
}

// NewSubjectRepository creates a new PostgreSQL subject repository
func NewSubjectRepository(db *sql.DB) subjects.SubjectRepository {
	return &postgresSubjectRepo{db: db}
}

func (r *postgresSubjectRepo) List(ctx context.Context) ([]subjects.Subject, error) {
	return r.querySubjects(ctx, `SELECT id, name FROM subjects ORDER BY name`)
}

func (r *postgresSubjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*subjects.Subject, error) {
	subject := &subjects.Subject{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM subjects WHERE id = $1`, id).
		Scan(&subject.ID, &subject.Name)

	if err == sql.ErrNoRows {
		return nil, subjects.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	return subject, nil
}

func (r *postgresSubjectRepo) Create(ctx context.Context, subject *subjects.Subject) (*subjects.Subject, error) {
	if subject.ID == uuid.Nil {
		subject.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subjects (id, name) VALUES ($1, $2)`, subject.ID, subject.Name)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, subjects.ErrSubjectExists
		}
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	return subject, nil
}

func (r *postgresSubjectRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM subjects WHERE lower(name) = lower($1))`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subject existence: %w", err)
	}
	return exists, nil
}

// ListForStudent returns the student's interest set
func (r *postgresSubjectRepo) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]subjects.Subject, error) {
	query := `
		SELECT s.id, s.name
		FROM subjects s
		JOIN students_subjects ss ON ss.subject_id = s.id
		WHERE ss.student_id = $1
		ORDER BY s.name`
	return r.querySubjects(ctx, query, studentID)
}

func (r *postgresSubjectRepo) AttachToStudent(ctx context.Context, studentID, subjectID uuid.UUID) error {
	// ON CONFLICT keeps attach idempotent
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students_subjects (student_id, subject_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, studentID, subjectID)
	if err != nil {
		return fmt.Errorf("failed to attach subject to student: %w", err)
	}
	return nil
}

func (r *postgresSubjectRepo) DetachFromStudent(ctx context.Context, studentID, subjectID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM students_subjects WHERE student_id = $1 AND subject_id = $2`,
		studentID, subjectID)
	if err != nil {
		return fmt.Errorf("failed to detach subject from student: %w", err)
	}
	return nil
}

// ListForTutorProfile returns the profile's teaching set
func (r *postgresSubjectRepo) ListForTutorProfile(ctx context.Context, profileID int64) ([]subjects.Subject, error) {
	query := `
		SELECT s.id, s.name
		FROM subjects s
		JOIN tutors_subjects ts ON ts.subject_id = s.id
		WHERE ts.profile_id = $1
		ORDER BY s.name`
	return r.querySubjects(ctx, query, profileID)
}

func (r *postgresSubjectRepo) AttachToTutorProfile(ctx context.Context, profileID int64, subjectID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tutors_subjects (profile_id, subject_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, profileID, subjectID)
	if err != nil {
		return fmt.Errorf("failed to attach subject to tutor profile: %w", err)
	}
	return nil
}

func (r *postgresSubjectRepo) DetachFromTutorProfile(ctx context.Context, profileID int64, subjectID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tutors_subjects WHERE profile_id = $1 AND subject_id = $2`,
		profileID, subjectID)
	if err != nil {
		return fmt.Errorf("failed to detach subject from tutor profile: %w", err)
	}
	return nil
}

func (r *postgresSubjectRepo) querySubjects(ctx context.Context, query string, args ...any) ([]subjects.Subject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var result []subjects.Subject
	for rows.Next() {
		var s subjects.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan subject row: %w", err)
		}
		result = append(result, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject rows: %w", err)
	}

	return result, nil
}
