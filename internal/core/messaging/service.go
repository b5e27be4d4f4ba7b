package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"Tutorhub/internal/core/users"
)

const recentThreadLimit = 10
const defaultPageSize = 10

// Events emitted through the gateway.
const (
	EventMessage        = "MESSAGE"
	EventMessageRequest = "MESSAGE_REQUEST"
	EventMessageSent    = "MESSAGE_SENT"
)

type messagingService struct {
	users    users.UserService
	threads  ThreadRepository
	messages MessageRepository
	notifier Notifier

	now func() time.Time
}

// NewService creates the message router. The notifier may be a no-op in
// contexts without a gateway (tests, offline tools).
func NewService(userService users.UserService, threads ThreadRepository, messages MessageRepository, notifier Notifier) Service {
	return &messagingService{
		users:    userService,
		threads:  threads,
		messages: messages,
		notifier: notifier,
		now:      time.Now,
	}
}

// SendMessage validates the pair, resolves or lazily creates the
// thread, persists the message and fans out notifications. A message
// into a blocked thread is silently dropped: no error, no persistence,
// no delivery, so the block is not signaled to the sender.
func (s *messagingService) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, body string, origin uuid.UUID) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender: %w", err)
	}
	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}

	studentID, tutorID, err := participantPair(sender, recipient)
	if err != nil {
		return nil, err
	}

	created := false
	thread, err := s.threads.GetByParticipants(ctx, studentID, tutorID)
	switch {
	case errors.Is(err, ErrThreadNotFound):
		if sender.Role == users.RoleTutor {
			return nil, ErrTutorInitiated
		}
		thread, err = s.threads.Create(ctx, &MessageThread{
			ID:        uuid.New(),
			StudentID: studentID,
			TutorID:   tutorID,
			State:     ThreadRequested,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create thread: %w", err)
		}
		created = true
	case err != nil:
		return nil, fmt.Errorf("failed to resolve thread: %w", err)
	}

	message := &Message{
		ID:        uuid.New(),
		ThreadID:  thread.ID,
		SenderID:  senderID,
		Body:      body,
		State:     MessageSent,
		CreatedAt: s.now(),
	}

	if thread.State == ThreadBlocked {
		// Silent drop. The sender gets the message back as if it were
		// accepted so the block stays invisible.
		slog.Debug("dropped message into blocked thread", "thread_id", thread.ID, "sender_id", senderID)
		return message, nil
	}

	if !created && thread.State == ThreadRequested && sender.Role == users.RoleTutor {
		return nil, ErrAwaitingConsent
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	if err := s.threads.Touch(ctx, thread.ID); err != nil {
		slog.Warn("failed to touch thread", "thread_id", thread.ID, "error", err)
	}

	// New threads always announce their first message as a request;
	// existing threads broadcast only once allowed.
	if created || thread.State == ThreadAllowed {
		event := EventMessage
		if created {
			event = EventMessageRequest
		}
		data := messageEventData(message, sender)
		s.notifier.NotifyUser(recipientID, event, data)
		// The originating connection already has the message; only the
		// sender's other devices need the acknowledgement.
		s.notifier.NotifyUserExcept(senderID, origin, EventMessageSent, data)
	}

	return message, nil
}

// ApproveThread moves a thread to allowed. Only the tutor participant
// may approve, and a blocked thread stays blocked.
func (s *messagingService) ApproveThread(ctx context.Context, tutorID, threadID uuid.UUID) (*MessageThread, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, ErrThreadNotFound
	}
	if !thread.HasParticipant(tutorID) {
		return nil, ErrThreadNotFound
	}
	if thread.TutorID != tutorID {
		return nil, ErrNotTutor
	}

	return s.threads.UpdateStateLocked(ctx, threadID, func(current ThreadState) (ThreadState, error) {
		if current == ThreadBlocked {
			return current, ErrThreadBlocked
		}
		return ThreadAllowed, nil
	})
}

// BlockThread moves a thread to blocked. Either participant may block;
// blocking an already-blocked thread is a no-op.
func (s *messagingService) BlockThread(ctx context.Context, userID, threadID uuid.UUID) (*MessageThread, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, ErrThreadNotFound
	}
	if !thread.HasParticipant(userID) {
		return nil, ErrThreadNotFound
	}

	return s.threads.UpdateStateLocked(ctx, threadID, func(current ThreadState) (ThreadState, error) {
		return ThreadBlocked, nil
	})
}

func (s *messagingService) GetThread(ctx context.Context, viewerID, threadID uuid.UUID, limit, page int) (*ThreadView, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, ErrThreadNotFound
	}
	if !thread.HasParticipant(viewerID) {
		return nil, ErrThreadNotFound
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	msgs, err := s.messages.ListByThread(ctx, threadID, limit, page*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	recipient, err := s.users.GetByID(ctx, thread.RecipientOf(viewerID))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}

	view := NewThreadView(thread, viewerID, recipient, msgs)
	return &view, nil
}

// ListThreads returns the viewer's threads, newest activity first.
func (s *messagingService) ListThreads(ctx context.Context, viewerID uuid.UUID) ([]ThreadView, error) {
	threads, err := s.threads.ListForUser(ctx, viewerID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return s.project(ctx, viewerID, threads)
}

// ListRequests returns the viewer's threads still awaiting consent.
// For a student this includes blocked threads, which are shown as
// requested so the block is not revealed.
func (s *messagingService) ListRequests(ctx context.Context, viewerID uuid.UUID) ([]ThreadView, error) {
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve viewer: %w", err)
	}

	states := []ThreadState{ThreadRequested}
	if viewer.Role == users.RoleStudent {
		states = append(states, ThreadBlocked)
	}

	threads, err := s.threads.ListForUserByState(ctx, viewerID, states, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return s.project(ctx, viewerID, threads)
}

// Summary builds the READY digest: unread thread count plus the most
// recent threads with their latest message.
func (s *messagingService) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	unread, err := s.messages.UnreadThreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread threads: %w", err)
	}

	threads, err := s.threads.ListForUser(ctx, userID, recentThreadLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent threads: %w", err)
	}

	views, err := s.project(ctx, userID, threads)
	if err != nil {
		return nil, err
	}

	return &Summary{UnreadThreads: unread, RecentThreads: views}, nil
}

func (s *messagingService) project(ctx context.Context, viewerID uuid.UUID, threads []*MessageThread) ([]ThreadView, error) {
	views := make([]ThreadView, 0, len(threads))
	for _, t := range threads {
		recipient, err := s.users.GetByID(ctx, t.RecipientOf(viewerID))
		if err != nil {
			// Orphaned thread; skip rather than fail the whole listing.
			slog.Warn("thread references missing user", "thread_id", t.ID, "error", err)
			continue
		}
		var msgs []*Message
		if t.LastMessage != nil {
			msgs = []*Message{t.LastMessage}
		}
		views = append(views, NewThreadView(t, viewerID, recipient, msgs))
	}
	return views, nil
}

// participantPair orders a sender/recipient pair into (student, tutor).
// Any pair that is not exactly one student and one tutor is a role
// conflict; admins never participate in messaging.
func participantPair(a, b *users.User) (studentID, tutorID uuid.UUID, err error) {
	switch {
	case a.Role == users.RoleStudent && b.Role == users.RoleTutor:
		return a.ID, b.ID, nil
	case a.Role == users.RoleTutor && b.Role == users.RoleStudent:
		return b.ID, a.ID, nil
	default:
		return uuid.Nil, uuid.Nil, ErrRoleConflict
	}
}

func messageEventData(m *Message, sender *users.User) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"thread_id": m.ThreadID,
		"from": map[string]any{
			"id":         sender.ID,
			"first_name": sender.FirstName,
			"last_name":  sender.LastName,
		},
		"message":   m.Body,
		"timestamp": m.CreatedAt,
		"state":     m.State,
	}
}
