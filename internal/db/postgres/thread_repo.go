package postgres

import (
	"Tutorhub/internal/core/messaging"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type postgresThreadRepo struct {
	db *sql.DB
}

// NewThreadRepository creates a new PostgreSQL message thread repository
func NewThreadRepository(db *sql.DB) messaging.ThreadRepository {
	return &postgresThreadRepo{db: db}
}

const threadColumns = `id, student_id, tutor_id, state, created_at, modified_at`

func scanThread(row interface{ Scan(...any) error }) (*messaging.MessageThread, error) {
	thread := &messaging.MessageThread{}
	err := row.Scan(&thread.ID, &thread.StudentID, &thread.TutorID,
		&thread.State, &thread.CreatedAt, &thread.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// Create inserts a new thread. The (student_id, tutor_id) pair is unique
// so a racing create surfaces the constraint instead of a second thread.
func (r *postgresThreadRepo) Create(ctx context.Context, thread *messaging.MessageThread) (*messaging.MessageThread, error) {
	query := `
		INSERT INTO message_threads (id, student_id, tutor_id, state)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + threadColumns

	if thread.ID == uuid.Nil {
		thread.ID = uuid.New()
	}

	created, err := scanThread(r.db.QueryRowContext(ctx, query,
		thread.ID, thread.StudentID, thread.TutorID, thread.State))
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			// Lost the race; hand back the existing thread.
			return r.GetByParticipants(ctx, thread.StudentID, thread.TutorID)
		}
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	return created, nil
}

// GetByID retrieves a thread by its ID
func (r *postgresThreadRepo) GetByID(ctx context.Context, id uuid.UUID) (*messaging.MessageThread, error) {
	query := `SELECT ` + threadColumns + ` FROM message_threads WHERE id = $1`

	thread, err := scanThread(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, messaging.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return thread, nil
}

// GetByParticipants retrieves the thread for a (student, tutor) pair
func (r *postgresThreadRepo) GetByParticipants(ctx context.Context, studentID, tutorID uuid.UUID) (*messaging.MessageThread, error) {
	query := `SELECT ` + threadColumns + ` FROM message_threads WHERE student_id = $1 AND tutor_id = $2`

	thread, err := scanThread(r.db.QueryRowContext(ctx, query, studentID, tutorID))
	if err == sql.ErrNoRows {
		return nil, messaging.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread by participants: %w", err)
	}

	return thread, nil
}

// UpdateStateLocked applies the transition under SELECT ... FOR UPDATE so
// concurrent approve/block calls serialize on the row.
func (r *postgresThreadRepo) UpdateStateLocked(ctx context.Context, id uuid.UUID, transition func(current messaging.ThreadState) (messaging.ThreadState, error)) (*messaging.MessageThread, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("failed to rollback transaction",
				slog.String("thread_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	var current messaging.ThreadState
	err = tx.QueryRowContext(ctx,
		`SELECT state FROM message_threads WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, messaging.ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock thread: %w", err)
	}

	next, err := transition(current)
	if err != nil {
		return nil, err
	}

	thread, err := scanThread(tx.QueryRowContext(ctx, `
		UPDATE message_threads
		SET state = $2, modified_at = NOW()
		WHERE id = $1
		RETURNING `+threadColumns, id, next))
	if err != nil {
		return nil, fmt.Errorf("failed to update thread state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit thread state: %w", err)
	}

	return thread, nil
}

// Touch bumps the thread's last-activity timestamp
func (r *postgresThreadRepo) Touch(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE message_threads SET modified_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return messaging.ErrThreadNotFound
	}
	return nil
}

// ListForUser returns the user's threads newest-activity first, with the
// denormalized message count and latest message joined in.
func (r *postgresThreadRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*messaging.MessageThread, error) {
	query := listQuery + ` ORDER BY t.modified_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryThreads(ctx, query, args...)
}

// ListForUserByState filters the user's threads by stored state
func (r *postgresThreadRepo) ListForUserByState(ctx context.Context, userID uuid.UUID, states []messaging.ThreadState, limit int) ([]*messaging.MessageThread, error) {
	stateStrs := make([]string, 0, len(states))
	for _, s := range states {
		stateStrs = append(stateStrs, string(s))
	}

	query := listQuery + ` AND t.state = ANY($2) ORDER BY t.modified_at DESC`
	args := []any{userID, pq.Array(stateStrs)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.queryThreads(ctx, query, args...)
}

// listQuery joins each thread with its message count and latest message
// via a lateral subquery.
const listQuery = `
	SELECT t.id, t.student_id, t.tutor_id, t.state, t.created_at, t.modified_at,
	       (SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id) AS message_count,
	       last.id, last.sender_id, last.body, last.state, last.created_at
	FROM message_threads t
	LEFT JOIN LATERAL (
		SELECT id, sender_id, body, state, created_at
		FROM messages
		WHERE thread_id = t.id
		ORDER BY created_at DESC
		LIMIT 1
	) last ON true
	WHERE (t.student_id = $1 OR t.tutor_id = $1)`

func (r *postgresThreadRepo) queryThreads(ctx context.Context, query string, args ...any) ([]*messaging.MessageThread, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var result []*messaging.MessageThread
	for rows.Next() {
		thread := &messaging.MessageThread{}
		var lastID uuid.NullUUID
		var lastSender uuid.NullUUID
		var lastBody, lastState sql.NullString
		var lastCreated sql.NullTime

		err := rows.Scan(&thread.ID, &thread.StudentID, &thread.TutorID,
			&thread.State, &thread.CreatedAt, &thread.ModifiedAt,
			&thread.MessageCount,
			&lastID, &lastSender, &lastBody, &lastState, &lastCreated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread row: %w", err)
		}

		if lastID.Valid {
			thread.LastMessage = &messaging.Message{
				ID:        lastID.UUID,
				ThreadID:  thread.ID,
				SenderID:  lastSender.UUID,
				Body:      lastBody.String,
				State:     messaging.MessageState(lastState.String),
				CreatedAt: lastCreated.Time,
			}
		}
		result = append(result, thread)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread rows: %w", err)
	}

	return result, nil
}
