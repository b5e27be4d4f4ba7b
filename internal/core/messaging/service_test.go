package messaging

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tutorhub/internal/core/users"
)

// memUsers implements users.UserService over a fixed user set
type memUsers struct {
	byID map[uuid.UUID]*users.User
}

func (s *memUsers) Register(ctx context.Context, req users.RegisterRequest) (*users.User, error) {
	return nil, nil
}

func (s *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return u, nil
}

func (s *memUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return nil, users.ErrUserNotFound
}

func (s *memUsers) ValidateCredentials(ctx context.Context, email, password string) (*users.User, error) {
	return nil, users.ErrInvalidCredentials
}

func (s *memUsers) UpdateProfile(ctx context.Context, id uuid.UUID, req users.UpdateProfileRequest) (*users.User, error) {
	return nil, nil
}

func (s *memUsers) DeleteAccount(ctx context.Context, id uuid.UUID, password string) error {
	return nil
}

// memThreads implements ThreadRepository in memory
type memThreads struct {
	threads map[uuid.UUID]*MessageThread
}

func newMemThreads() *memThreads {
	return &memThreads{threads: make(map[uuid.UUID]*MessageThread)}
}

func (r *memThreads) Create(ctx context.Context, thread *MessageThread) (*MessageThread, error) {
	r.threads[thread.ID] = thread
	return thread, nil
}

func (r *memThreads) GetByID(ctx context.Context, id uuid.UUID) (*MessageThread, error) {
	t, ok := r.threads[id]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return t, nil
}

func (r *memThreads) GetByParticipants(ctx context.Context, studentID, tutorID uuid.UUID) (*MessageThread, error) {
	for _, t := range r.threads {
		if t.StudentID == studentID && t.TutorID == tutorID {
			return t, nil
		}
	}
	return nil, ErrThreadNotFound
}

func (r *memThreads) UpdateStateLocked(ctx context.Context, id uuid.UUID, transition func(current ThreadState) (ThreadState, error)) (*MessageThread, error) {
	t, ok := r.threads[id]
	if !ok {
		return nil, ErrThreadNotFound
	}
	next, err := transition(t.State)
	if err != nil {
		return nil, err
	}
	t.State = next
	return t, nil
}

func (r *memThreads) Touch(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (r *memThreads) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*MessageThread, error) {
	var out []*MessageThread
	for _, t := range r.threads {
		if t.HasParticipant(userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memThreads) ListForUserByState(ctx context.Context, userID uuid.UUID, states []ThreadState, limit int) ([]*MessageThread, error) {
	var out []*MessageThread
	for _, t := range r.threads {
		if !t.HasParticipant(userID) {
			continue
		}
		for _, s := range states {
			if t.State == s {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// memMessages implements MessageRepository in memory
type memMessages struct {
	messages []*Message
}

func (r *memMessages) Create(ctx context.Context, message *Message) error {
	r.messages = append(r.messages, message)
	return nil
}

func (r *memMessages) ListByThread(ctx context.Context, threadID uuid.UUID, limit, offset int) ([]*Message, error) {
	var out []*Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ThreadID == threadID {
			out = append(out, r.messages[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessages) UnreadThreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

// recordingNotifier captures every delivery per user along with the
// excluded origin connection, uuid.Nil when none was excluded.
type recordingNotifier struct {
	deliveries map[uuid.UUID][]string
	origins    map[uuid.UUID][]uuid.UUID
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		deliveries: make(map[uuid.UUID][]string),
		origins:    make(map[uuid.UUID][]uuid.UUID),
	}
}

func (n *recordingNotifier) NotifyUser(userID uuid.UUID, event string, data any) {
	n.NotifyUserExcept(userID, uuid.Nil, event, data)
}

func (n *recordingNotifier) NotifyUserExcept(userID, origin uuid.UUID, event string, data any) {
	n.deliveries[userID] = append(n.deliveries[userID], event)
	n.origins[userID] = append(n.origins[userID], origin)
}

type messagingFixture struct {
	service  Service
	userSvc  *memUsers
	threads  *memThreads
	messages *memMessages
	notifier *recordingNotifier
	student  *users.User
	tutor    *users.User
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()

	student := &users.User{ID: uuid.New(), FirstName: "Alice", LastName: "Nguyen", Role: users.RoleStudent}
	tutor := &users.User{ID: uuid.New(), FirstName: "Tom", LastName: "Baker", Role: users.RoleTutor}

	userSvc := &memUsers{byID: map[uuid.UUID]*users.User{student.ID: student, tutor.ID: tutor}}
	threads := newMemThreads()
	messages := &memMessages{}
	notifier := newRecordingNotifier()

	return &messagingFixture{
		service:  NewService(userSvc, threads, messages, notifier),
		userSvc:  userSvc,
		threads:  threads,
		messages: messages,
		notifier: notifier,
		student:  student,
		tutor:    tutor,
	}
}

func (f *messagingFixture) addUser(t *testing.T, role users.Role) *users.User {
	t.Helper()
	u := &users.User{ID: uuid.New(), FirstName: "Extra", Role: role}
	f.userSvc.byID[u.ID] = u
	return u
}

// threadBetween is a test helper to fetch the single thread of the pair.
func (f *messagingFixture) threadBetween(t *testing.T) *MessageThread {
	t.Helper()
	thread, err := f.threads.GetByParticipants(context.Background(), f.student.ID, f.tutor.ID)
	require.NoError(t, err)
	return thread
}

func TestSendMessageCreatesRequestedThread(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	msg, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello", uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, MessageSent, msg.State)

	thread := f.threadBetween(t)
	assert.Equal(t, ThreadRequested, thread.State)
	assert.Equal(t, f.student.ID, thread.StudentID)
	assert.Equal(t, f.tutor.ID, thread.TutorID)
	assert.Len(t, f.messages.messages, 1)

	// The first message announces itself as a request to the tutor and
	// confirms to the student.
	assert.Equal(t, []string{EventMessageRequest}, f.notifier.deliveries[f.tutor.ID])
	assert.Equal(t, []string{EventMessageSent}, f.notifier.deliveries[f.student.ID])
}

func TestSendMessageAckSkipsOriginConnection(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	origin := uuid.New()
	_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello", origin)
	require.NoError(t, err)

	// The acknowledgement excludes the connection that carried the send;
	// the recipient delivery excludes nothing.
	require.Equal(t, []string{EventMessageSent}, f.notifier.deliveries[f.student.ID])
	assert.Equal(t, []uuid.UUID{origin}, f.notifier.origins[f.student.ID])
	assert.Equal(t, []uuid.UUID{uuid.Nil}, f.notifier.origins[f.tutor.ID])
}

func TestSendMessageValidation(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	t.Run("empty body", func(t *testing.T) {
		_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "   ", uuid.Nil)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("tutor cannot open a thread", func(t *testing.T) {
		_, err := f.service.SendMessage(ctx, f.tutor.ID, f.student.ID, "hi there", uuid.Nil)
		assert.ErrorIs(t, err, ErrTutorInitiated)
	})

	t.Run("same role pair", func(t *testing.T) {
		otherStudent := f.addUser(t, users.RoleStudent)
		_, err := f.service.SendMessage(ctx, f.student.ID, otherStudent.ID, "hi", uuid.Nil)
		assert.ErrorIs(t, err, ErrRoleConflict)
	})

	t.Run("admin recipient", func(t *testing.T) {
		admin := f.addUser(t, users.RoleAdmin)
		_, err := f.service.SendMessage(ctx, f.student.ID, admin.ID, "hi", uuid.Nil)
		assert.ErrorIs(t, err, ErrRoleConflict)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		_, err := f.service.SendMessage(ctx, f.student.ID, uuid.New(), "hi", uuid.Nil)
		assert.Error(t, err)
	})
}

func TestTutorReplyRequiresConsent(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello", uuid.Nil)
	require.NoError(t, err)

	// The thread is still requested; the tutor must approve before replying.
	_, err = f.service.SendMessage(ctx, f.tutor.ID, f.student.ID, "hi back", uuid.Nil)
	assert.ErrorIs(t, err, ErrAwaitingConsent)

	// The student may keep sending while the request is pending.
	_, err = f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "are you there?", uuid.Nil)
	assert.NoError(t, err)
	assert.Len(t, f.messages.messages, 2)
}

func TestApproveThread(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello", uuid.Nil)
	require.NoError(t, err)
	thread := f.threadBetween(t)

	t.Run("student cannot approve", func(t *testing.T) {
		_, err := f.service.ApproveThread(ctx, f.student.ID, thread.ID)
		assert.ErrorIs(t, err, ErrNotTutor)
	})

	t.Run("outsider sees no thread", func(t *testing.T) {
		outsider := f.addUser(t, users.RoleTutor)
		_, err := f.service.ApproveThread(ctx, outsider.ID, thread.ID)
		assert.ErrorIs(t, err, ErrThreadNotFound)
	})

	t.Run("tutor approves", func(t *testing.T) {
		updated, err := f.service.ApproveThread(ctx, f.tutor.ID, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, ThreadAllowed, updated.State)
	})

	t.Run("both sides message freely after approval", func(t *testing.T) {
		_, err := f.service.SendMessage(ctx, f.tutor.ID, f.student.ID, "hi back", uuid.Nil)
		require.NoError(t, err)

		// Allowed-thread traffic broadcasts as MESSAGE.
		events := f.notifier.deliveries[f.student.ID]
		assert.Equal(t, EventMessage, events[len(events)-1])
	})
}

func TestBlockThread(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello", uuid.Nil)
	require.NoError(t, err)
	thread := f.threadBetween(t)

	blocked, err := f.service.BlockThread(ctx, f.tutor.ID, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, ThreadBlocked, blocked.State)

	t.Run("messages into a blocked thread vanish silently", func(t *testing.T) {
		persisted := len(f.messages.messages)
		tutorEvents := len(f.notifier.deliveries[f.tutor.ID])

		msg, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello?", uuid.Nil)
		require.NoError(t, err, "the sender must not learn about the block")
		assert.Equal(t, "hello?", msg.Body)

		assert.Len(t, f.messages.messages, persisted, "dropped messages are not persisted")
		assert.Len(t, f.notifier.deliveries[f.tutor.ID], tutorEvents, "dropped messages are not delivered")
	})

	t.Run("blocked is terminal for approve", func(t *testing.T) {
		_, err := f.service.ApproveThread(ctx, f.tutor.ID, thread.ID)
		assert.ErrorIs(t, err, ErrThreadBlocked)
	})

	t.Run("re-blocking is a no-op", func(t *testing.T) {
		again, err := f.service.BlockThread(ctx, f.tutor.ID, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, ThreadBlocked, again.State)
	})

	t.Run("student sees the thread as requested", func(t *testing.T) {
		view, err := f.service.GetThread(ctx, f.student.ID, thread.ID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, ThreadRequested, view.State)

		tutorView, err := f.service.GetThread(ctx, f.tutor.ID, thread.ID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, ThreadBlocked, tutorView.State)
	})

	t.Run("blocked thread appears in the student's requests", func(t *testing.T) {
		requests, err := f.service.ListRequests(ctx, f.student.ID)
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, ThreadRequested, requests[0].State)

		tutorRequests, err := f.service.ListRequests(ctx, f.tutor.ID)
		require.NoError(t, err)
		assert.Empty(t, tutorRequests, "blocked threads leave the tutor's request list")
	})
}

func TestGetThread(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "first", uuid.Nil)
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "second", uuid.Nil)
	require.NoError(t, err)
	thread := f.threadBetween(t)

	view, err := f.service.GetThread(ctx, f.student.ID, thread.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, f.tutor.ID, view.Recipient.ID)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "second", view.Messages[0].Body, "newest first")

	t.Run("pagination", func(t *testing.T) {
		page, err := f.service.GetThread(ctx, f.student.ID, thread.ID, 1, 1)
		require.NoError(t, err)
		require.Len(t, page.Messages, 1)
		assert.Equal(t, "first", page.Messages[0].Body)
	})

	t.Run("non-participant", func(t *testing.T) {
		outsider := f.addUser(t, users.RoleStudent)
		_, err := f.service.GetThread(ctx, outsider.ID, thread.ID, 0, 0)
		assert.ErrorIs(t, err, ErrThreadNotFound)
	})

	t.Run("unknown thread", func(t *testing.T) {
		_, err := f.service.GetThread(ctx, f.student.ID, uuid.New(), 0, 0)
		assert.ErrorIs(t, err, ErrThreadNotFound)
	})
}

func TestListThreadsAndSummary(t *testing.T) {
	f := newMessagingFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, f.student.ID, f.tutor.ID, "hello", uuid.Nil)
	require.NoError(t, err)

	threads, err := f.service.ListThreads(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, f.tutor.ID, threads[0].Recipient.ID)
	assert.Equal(t, "Tom", threads[0].Recipient.FirstName)

	summary, err := f.service.Summary(ctx, f.tutor.ID)
	require.NoError(t, err)
	require.Len(t, summary.RecentThreads, 1)
	assert.Equal(t, f.student.ID, summary.RecentThreads[0].Recipient.ID)
}
