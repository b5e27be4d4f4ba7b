package messaging

import (
	"context"

	"github.com/google/uuid"
)

// ThreadRepository defines the interface for thread persistence
type ThreadRepository interface {
	Create(ctx context.Context, thread *MessageThread) (*MessageThread, error)
	GetByID(ctx context.Context, id uuid.UUID) (*MessageThread, error)

	// GetByParticipants looks a thread up by its unique (student, tutor)
	// pair. Returns ErrThreadNotFound when no thread exists yet.
	GetByParticipants(ctx context.Context, studentID, tutorID uuid.UUID) (*MessageThread, error)

	// UpdateStateLocked runs the transition function against the current
	// state under a row-level lock and persists the result. Racing
	// transitions serialize on the lock, so the thread always ends in a
	// single well-defined state.
	UpdateStateLocked(ctx context.Context, id uuid.UUID, transition func(current ThreadState) (ThreadState, error)) (*MessageThread, error)

	// Touch bumps the thread's last-activity timestamp.
	Touch(ctx context.Context, id uuid.UUID) error

	// ListForUser returns the user's threads ordered by last activity,
	// newest first, with MessageCount and LastMessage populated.
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*MessageThread, error)

	// ListForUserByState filters the user's threads by stored state.
	ListForUserByState(ctx context.Context, userID uuid.UUID, states []ThreadState, limit int) ([]*MessageThread, error)
}

// MessageRepository defines the interface for message persistence
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error

	// ListByThread returns messages newest first.
	ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*Message, error)

	// UnreadThreadCount counts the user's threads whose latest message is
	// not yet read by them.
	UnreadThreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// Notifier fans a dispatch event out to a user's live connections.
// Implemented by the gateway; delivery is best effort.
type Notifier interface {
	NotifyUser(userID uuid.UUID, event string, data any)

	// NotifyUserExcept skips the connection identified by origin, so the
	// socket an event originated from never receives its own echo.
	NotifyUserExcept(userID, origin uuid.UUID, event string, data any)
}

// Service defines the message router and consent operations
type Service interface {
	// SendMessage routes one message. origin identifies the sender
	// connection the send arrived on (uuid.Nil for HTTP sends); the
	// sender acknowledgement goes to their other connections only.
	SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, body string, origin uuid.UUID) (*Message, error)
	ApproveThread(ctx context.Context, tutorID, threadID uuid.UUID) (*MessageThread, error)
	BlockThread(ctx context.Context, userID, threadID uuid.UUID) (*MessageThread, error)
	GetThread(ctx context.Context, viewerID, threadID uuid.UUID, limit, page int) (*ThreadView, error)
	ListThreads(ctx context.Context, viewerID uuid.UUID) ([]ThreadView, error)
	ListRequests(ctx context.Context, viewerID uuid.UUID) ([]ThreadView, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
}
