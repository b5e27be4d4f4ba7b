package postgres

import (
	"Tutorhub/internal/core/messaging"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type postgresMessageRepo struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) messaging.MessageRepository {
	return &postgresMessageRepo{db: db}
}

// Create inserts a message into its thread
func (r *postgresMessageRepo) Create(ctx context.Context, message *messaging.Message) error {
	query := `
		INSERT INTO messages (id, thread_id, sender_id, body, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		message.ID, message.ThreadID, message.SenderID, message.Body, message.State).
		Scan(&message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListByThread returns a page of a thread's messages, newest first
func (r *postgresMessageRepo) ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*messaging.Message, error) {
	query := `
		SELECT id, thread_id, sender_id, body, state, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, threadID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var result []*messaging.Message
	for rows.Next() {
		m := &messaging.Message{}
		err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.State, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		result = append(result, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return result, nil
}

// UnreadThreadCount counts threads whose latest message was sent to the
// user and has not reached the read state.
func (r *postgresMessageRepo) UnreadThreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM message_threads t
		JOIN LATERAL (
			SELECT sender_id, state
			FROM messages
			WHERE thread_id = t.id
			ORDER BY created_at DESC
			LIMIT 1
		) last ON true
		WHERE (t.student_id = $1 OR t.tutor_id = $1)
		  AND last.sender_id <> $1
		  AND last.state <> $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, messaging.MessageRead).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count unread threads: %w", err)
	}

	return count, nil
}
