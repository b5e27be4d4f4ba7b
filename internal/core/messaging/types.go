package messaging

import (
	"time"

	"github.com/google/uuid"

	"Tutorhub/internal/core/users"
)

// ThreadState is the consent state of a student/tutor thread, stored
// and serialized as a single letter.
type ThreadState string

const (
	// ThreadRequested is the initial state, set when a student's first
	// message creates the thread.
	ThreadRequested ThreadState = "r"

	// ThreadAllowed means the tutor approved the conversation.
	ThreadAllowed ThreadState = "a"

	// ThreadBlocked is terminal; no operation here exits it.
	ThreadBlocked ThreadState = "b"
)

// MessageState tracks delivery progress. Sent is authoritative today;
// delivered/read are stored for the read-receipt surface.
type MessageState string

const (
	MessageSent      MessageState = "s"
	MessageDelivered MessageState = "d"
	MessageRead      MessageState = "r"
)

// MessageThread is the single conversation channel between one student
// and one tutor. The (student, tutor) pair is unique.
type MessageThread struct {
	ID         uuid.UUID
	StudentID  uuid.UUID
	TutorID    uuid.UUID
	State      ThreadState
	CreatedAt  time.Time
	ModifiedAt time.Time

	// Denormalized listing fields, populated by list queries.
	MessageCount int
	LastMessage  *Message
}

// HasParticipant reports whether the user is one of the two parties.
func (t *MessageThread) HasParticipant(id uuid.UUID) bool {
	return t.StudentID == id || t.TutorID == id
}

// RecipientOf returns the other participant from the given user's view.
func (t *MessageThread) RecipientOf(id uuid.UUID) uuid.UUID {
	if t.StudentID == id {
		return t.TutorID
	}
	return t.StudentID
}

// VisibleState masks a block from the blocked student: a student
// viewing their own blocked thread sees it as still requested.
func (t *MessageThread) VisibleState(viewerID uuid.UUID) ThreadState {
	if t.State == ThreadBlocked && viewerID == t.StudentID {
		return ThreadRequested
	}
	return t.State
}

// Message is one immutable message within a thread.
type Message struct {
	ID        uuid.UUID
	ThreadID  uuid.UUID
	SenderID  uuid.UUID
	Body      string
	State     MessageState
	CreatedAt time.Time
}

// RecipientView is the minimal identity shown for the other party.
type RecipientView struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// MessageView is the wire shape of a message.
type MessageView struct {
	ID        uuid.UUID    `json:"id"`
	ThreadID  uuid.UUID    `json:"thread_id"`
	SenderID  uuid.UUID    `json:"sender_id"`
	Body      string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	State     MessageState `json:"state"`
}

// ThreadView is the wire shape of a thread for a particular viewer.
type ThreadView struct {
	ID           uuid.UUID     `json:"id"`
	Recipient    RecipientView `json:"recipient"`
	State        ThreadState   `json:"state"`
	Messages     []MessageView `json:"messages"`
	MessageCount int           `json:"message_count"`
}

// Summary is the precomputed digest sent in the READY frame.
type Summary struct {
	UnreadThreads int          `json:"unread_threads"`
	RecentThreads []ThreadView `json:"recent_threads"`
}

// NewMessageView projects a message for the wire.
func NewMessageView(m *Message) MessageView {
	return MessageView{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		Timestamp: m.CreatedAt,
		State:     m.State,
	}
}

// NewThreadView projects a thread for the given viewer, masking a block
// from the blocked student and resolving the recipient identity.
func NewThreadView(t *MessageThread, viewerID uuid.UUID, recipient *users.User, msgs []*Message) ThreadView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, NewMessageView(m))
	}
	return ThreadView{
		ID: t.ID,
		Recipient: RecipientView{
			ID:        recipient.ID,
			FirstName: recipient.FirstName,
			LastName:  recipient.LastName,
		},
		State:        t.VisibleState(viewerID),
		Messages:     views,
		MessageCount: t.MessageCount,
	}
}
