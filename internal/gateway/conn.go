package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type connState int

const (
	statePending connState = iota
	stateIdentified
	stateClosed
)

// socket abstracts the underlying bidirectional transport so the
// dispatcher can be exercised without a real websocket.
type socket interface {
	Send(p *Payload) error
	Close() error
}

// Connection is the per-socket state machine: pending until a
// successful identify, then identified until close. It is ephemeral and
// never persisted.
type Connection struct {
	// id distinguishes a user's simultaneous connections, so fan-out can
	// exclude the one a frame arrived on.
	id   uuid.UUID
	sock socket

	mu            sync.Mutex
	state         connState
	userID        uuid.UUID
	identifyTimer *time.Timer

	// authHeader is the Authorization header captured at upgrade time,
	// consulted before the identify frame's token field.
	authHeader string

	// onClose runs exactly once when the connection closes, from either
	// side. The gateway uses it to unregister synchronously.
	onClose func(c *Connection)
}

func newConnection(sock socket, authHeader string, onClose func(*Connection)) *Connection {
	return &Connection{
		id:         uuid.New(),
		sock:       sock,
		state:      statePending,
		authHeader: authHeader,
		onClose:    onClose,
	}
}

// ID returns the connection's identity, fixed at creation.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Send writes a frame to the peer.
func (c *Connection) Send(p *Payload) error {
	return c.sock.Send(p)
}

// SendOpcode writes a bare opcode frame.
func (c *Connection) SendOpcode(op Opcode) error {
	return c.sock.Send(&Payload{Op: op})
}

// Reject sends an error opcode frame and closes the connection.
func (c *Connection) Reject(op Opcode) {
	_ = c.SendOpcode(op)
	c.Close()
}

// Close tears the connection down. Safe to call from the read loop, the
// identify timer and broadcast paths concurrently; only the first call
// does the work.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed
	if c.identifyTimer != nil {
		c.identifyTimer.Stop()
		c.identifyTimer = nil
	}
	onClose := c.onClose
	c.mu.Unlock()

	_ = c.sock.Close()
	if onClose != nil {
		onClose(c)
	}
}

// Identified reports whether the identify handshake has completed.
func (c *Connection) Identified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateIdentified
}

// UserID returns the bound user id, or uuid.Nil before identify.
func (c *Connection) UserID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// armIdentifyTimeout schedules a server-side close unless identify
// succeeds within d. Firing on an already-closed or identified
// connection is a no-op.
func (c *Connection) armIdentifyTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != statePending {
		return
	}
	c.identifyTimer = time.AfterFunc(d, func() {
		c.mu.Lock()
		pending := c.state == statePending
		c.mu.Unlock()
		if pending {
			c.Close()
		}
	})
}

// markIdentified transitions pending → identified, cancelling the
// timeout. Returns false if the connection is not pending (already
// identified or closed), in which case nothing changes.
func (c *Connection) markIdentified(userID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != statePending {
		return false
	}
	c.state = stateIdentified
	c.userID = userID
	if c.identifyTimer != nil {
		c.identifyTimer.Stop()
		c.identifyTimer = nil
	}
	return true
}
