package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tutorhub/internal/core/auth"
	"Tutorhub/internal/core/messaging"
	"Tutorhub/internal/core/users"
)

// stubValidator accepts a single known token.
type stubValidator struct {
	token string
	user  *users.User
}

func (v *stubValidator) ValidateBearerToken(ctx context.Context, token string, requiredScopes []string) (*auth.Principal, error) {
	if token != v.token {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Principal{User: v.user}, nil
}

// stubMessaging satisfies messaging.Service; only the methods the
// dispatcher touches carry behavior.
type stubMessaging struct {
	sendErr    error
	sent       []string
	sentOrigin uuid.UUID
	summary    *messaging.Summary
}

func (s *stubMessaging) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, body string, origin uuid.UUID) (*messaging.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, body)
	s.sentOrigin = origin
	return &messaging.Message{ID: uuid.New(), SenderID: senderID, Body: body}, nil
}

func (s *stubMessaging) ApproveThread(ctx context.Context, tutorID, threadID uuid.UUID) (*messaging.MessageThread, error) {
	return nil, nil
}

func (s *stubMessaging) BlockThread(ctx context.Context, userID, threadID uuid.UUID) (*messaging.MessageThread, error) {
	return nil, nil
}

func (s *stubMessaging) GetThread(ctx context.Context, viewerID, threadID uuid.UUID, limit, page int) (*messaging.ThreadView, error) {
	return nil, nil
}

func (s *stubMessaging) ListThreads(ctx context.Context, viewerID uuid.UUID) ([]messaging.ThreadView, error) {
	return nil, nil
}

func (s *stubMessaging) ListRequests(ctx context.Context, viewerID uuid.UUID) ([]messaging.ThreadView, error) {
	return nil, nil
}

func (s *stubMessaging) Summary(ctx context.Context, userID uuid.UUID) (*messaging.Summary, error) {
	if s.summary != nil {
		return s.summary, nil
	}
	return &messaging.Summary{RecentThreads: []messaging.ThreadView{}}, nil
}

type gatewayFixture struct {
	gateway   *Gateway
	validator *stubValidator
	messaging *stubMessaging
	user      *users.User
}

func newGatewayFixture(t *testing.T, timeout time.Duration) *gatewayFixture {
	t.Helper()

	user := &users.User{
		ID:        uuid.New(),
		FirstName: "Alice",
		LastName:  "Nguyen",
		Role:      users.RoleStudent,
	}
	validator := &stubValidator{token: "valid-token", user: user}
	msg := &stubMessaging{}

	return &gatewayFixture{
		gateway:   NewGateway(validator, msg, NewRegistry(), timeout),
		validator: validator,
		messaging: msg,
		user:      user,
	}
}

func identifyFrame(token string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"o": OpIdentify,
		"d": map[string]any{
			"token": token,
			"properties": map[string]string{
				"os":     "android",
				"device": "pixel",
			},
		},
	})
	return raw
}

// lastOp returns the opcode of the most recent frame on the socket.
func lastOp(t *testing.T, sock *fakeSocket) Opcode {
	t.Helper()
	frames := sock.frames()
	require.NotEmpty(t, frames)
	return frames[len(frames)-1].Op
}

func TestOpenSendsHello(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	conn, sock := newFakeConn()

	f.gateway.Open(conn)

	require.Len(t, sock.frames(), 1)
	assert.Equal(t, OpHello, sock.frames()[0].Op)
	assert.False(t, sock.isClosed())
}

func TestIdentifyTimeout(t *testing.T) {
	f := newGatewayFixture(t, 20*time.Millisecond)
	conn, sock := newFakeConn()

	f.gateway.Open(conn)

	require.Eventually(t, sock.isClosed, time.Second, 5*time.Millisecond,
		"unidentified connection must be closed after the timeout")
	assert.Equal(t, 0, f.gateway.Registry().CountForUser(f.user.ID))
}

func TestIdentifySuccess(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	f.messaging.summary = &messaging.Summary{UnreadThreads: 3, RecentThreads: []messaging.ThreadView{}}
	conn, sock := newFakeConn()
	ctx := context.Background()

	f.gateway.Open(conn)
	f.gateway.HandleFrame(ctx, conn, identifyFrame("valid-token"))

	assert.True(t, conn.Identified())
	assert.Equal(t, f.user.ID, conn.UserID())
	assert.Equal(t, 1, f.gateway.Registry().CountForUser(f.user.ID))

	frames := sock.frames()
	require.Len(t, frames, 2)
	ready := frames[1]
	assert.Equal(t, OpDispatch, ready.Op)
	assert.Equal(t, "READY", ready.Event)

	var data struct {
		ID            uuid.UUID `json:"id"`
		FirstName     string    `json:"first_name"`
		UnreadThreads int       `json:"unread_threads"`
	}
	require.NoError(t, ready.DataInto(&data))
	assert.Equal(t, f.user.ID, data.ID)
	assert.Equal(t, "Alice", data.FirstName)
	assert.Equal(t, 3, data.UnreadThreads)
}

func TestIdentifyTokenFromUpgradeHeader(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	sock := &fakeSocket{}
	conn := newConnection(sock, "Bearer valid-token", nil)

	f.gateway.Open(conn)
	// Empty token in the frame; the upgrade-time header authenticates.
	f.gateway.HandleFrame(context.Background(), conn, identifyFrame(""))

	assert.True(t, conn.Identified())
}

func TestIdentifyRejections(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  Opcode
	}{
		{
			name:  "invalid token",
			frame: identifyFrame("stolen-token"),
			want:  OpInvalidSession,
		},
		{
			name:  "missing properties",
			frame: []byte(`{"o":2,"d":{"token":"valid-token"}}`),
			want:  OpInvalidSession,
		},
		{
			name:  "missing token",
			frame: identifyFrame(""),
			want:  OpInvalidSession,
		},
		{
			name:  "undecodable data",
			frame: []byte(`{"o":2,"d":"nope"}`),
			want:  OpInvalidSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, time.Minute)
			conn, sock := newFakeConn()

			f.gateway.Open(conn)
			f.gateway.HandleFrame(context.Background(), conn, tt.frame)

			assert.Equal(t, tt.want, lastOp(t, sock))
			assert.True(t, sock.isClosed())
			assert.False(t, conn.Identified())
			assert.Equal(t, 0, f.gateway.Registry().CountForUser(f.user.ID))
		})
	}
}

func TestIdentifyRejectsAdmin(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	f.validator.user.Role = users.RoleAdmin
	conn, sock := newFakeConn()

	f.gateway.Open(conn)
	f.gateway.HandleFrame(context.Background(), conn, identifyFrame("valid-token"))

	assert.Equal(t, OpInvalidSession, lastOp(t, sock))
	assert.True(t, sock.isClosed())
}

func TestFrameBeforeIdentify(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	conn, sock := newFakeConn()

	f.gateway.Open(conn)
	f.gateway.HandleFrame(context.Background(), conn, []byte(`{"o":0,"e":"MESSAGE_CREATE","d":{}}`))

	assert.Equal(t, OpNotAuthenticated, lastOp(t, sock))
	assert.True(t, sock.isClosed())
}

func TestDoubleIdentify(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	conn, sock := newFakeConn()
	ctx := context.Background()

	f.gateway.Open(conn)
	f.gateway.HandleFrame(ctx, conn, identifyFrame("valid-token"))
	require.True(t, conn.Identified())

	f.gateway.HandleFrame(ctx, conn, identifyFrame("valid-token"))
	assert.Equal(t, OpAlreadyAuthenticated, lastOp(t, sock))
	assert.True(t, sock.isClosed())
}

func TestUnknownOpcode(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	conn, sock := newFakeConn()
	ctx := context.Background()

	f.gateway.Open(conn)
	f.gateway.HandleFrame(ctx, conn, identifyFrame("valid-token"))
	f.gateway.HandleFrame(ctx, conn, []byte(`{"o":42}`))

	assert.Equal(t, OpUnknownOpcode, lastOp(t, sock))
	assert.True(t, sock.isClosed())
}

func TestMalformedFrame(t *testing.T) {
	f := newGatewayFixture(t, time.Minute)
	conn, sock := newFakeConn()

	f.gateway.Open(conn)
	f.gateway.HandleFrame(context.Background(), conn, []byte(`not json`))

	assert.Equal(t, OpDecodeError, lastOp(t, sock))
	assert.True(t, sock.isClosed())
}

func TestDispatch(t *testing.T) {
	identify := func(t *testing.T, f *gatewayFixture) (*Connection, *fakeSocket) {
		t.Helper()
		conn, sock := newFakeConn()
		f.gateway.Open(conn)
		f.gateway.HandleFrame(context.Background(), conn, identifyFrame("valid-token"))
		require.True(t, conn.Identified())
		return conn, sock
	}

	t.Run("message create routes through the service", func(t *testing.T) {
		f := newGatewayFixture(t, time.Minute)
		conn, sock := identify(t, f)

		frame := []byte(`{"o":0,"e":"message_create","d":{"recipient_id":"` + uuid.NewString() + `","message":"hello"}}`)
		f.gateway.HandleFrame(context.Background(), conn, frame)

		assert.Equal(t, []string{"hello"}, f.messaging.sent)
		// The router learns which connection carried the send, so the
		// sender acknowledgement can skip it.
		assert.Equal(t, conn.ID(), f.messaging.sentOrigin)
		assert.False(t, sock.isClosed())
	})

	t.Run("validation failure becomes an error event", func(t *testing.T) {
		f := newGatewayFixture(t, time.Minute)
		f.messaging.sendErr = messaging.ErrAwaitingConsent
		conn, sock := identify(t, f)

		frame := []byte(`{"o":0,"e":"MESSAGE_CREATE","d":{"recipient_id":"` + uuid.NewString() + `","message":"hello"}}`)
		f.gateway.HandleFrame(context.Background(), conn, frame)

		last := sock.frames()[len(sock.frames())-1]
		assert.Equal(t, "MESSAGE_ERROR", last.Event)
		assert.False(t, sock.isClosed(), "request-level failures must not kill the connection")
	})

	t.Run("dispatch without event name is a protocol error", func(t *testing.T) {
		f := newGatewayFixture(t, time.Minute)
		conn, sock := identify(t, f)

		f.gateway.HandleFrame(context.Background(), conn, []byte(`{"o":0,"d":{}}`))
		assert.Equal(t, OpDecodeError, lastOp(t, sock))
		assert.True(t, sock.isClosed())
	})

	t.Run("unknown events are ignored", func(t *testing.T) {
		f := newGatewayFixture(t, time.Minute)
		conn, sock := identify(t, f)

		before := len(sock.frames())
		f.gateway.HandleFrame(context.Background(), conn, []byte(`{"o":0,"e":"TYPING_START","d":{}}`))
		assert.Len(t, sock.frames(), before)
		assert.False(t, sock.isClosed())
	})
}

func TestNotifierDelivers(t *testing.T) {
	registry := NewRegistry()
	notifier := NewNotifier(registry)
	userID := uuid.New()

	conn, sock := newFakeConn()
	registry.Register(userID, conn)

	notifier.NotifyUser(userID, "MESSAGE", map[string]string{"message": "hi"})

	frames := sock.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, OpDispatch, frames[0].Op)
	assert.Equal(t, "MESSAGE", frames[0].Event)
}
