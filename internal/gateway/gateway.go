package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"Tutorhub/internal/core/auth"
	"Tutorhub/internal/core/messaging"
	"Tutorhub/internal/core/users"
)

const defaultIdentifyTimeout = 45 * time.Second

// Events handled and emitted by the gateway.
const (
	eventReady         = "READY"
	eventMessageCreate = "MESSAGE_CREATE"
	eventMessageError  = "MESSAGE_ERROR"
)

// TokenValidator is the slice of the token authority the gateway needs
// to authenticate identify frames.
type TokenValidator interface {
	ValidateBearerToken(ctx context.Context, token string, requiredScopes []string) (*auth.Principal, error)
}

type opHandler func(ctx context.Context, c *Connection, p *Payload)
type eventHandler func(ctx context.Context, c *Connection, p *Payload)

// Gateway owns the opcode and event routing tables, the connection
// registry and the identify handshake. Both tables are built once at
// construction and read-only afterwards.
type Gateway struct {
	validator TokenValidator
	messaging messaging.Service
	registry  *Registry

	opHandlers    map[Opcode]opHandler
	eventHandlers map[string]eventHandler

	identifyTimeout time.Duration
}

// NewGateway wires the dispatcher. A non-positive timeout falls back to
// the 45 second default.
func NewGateway(validator TokenValidator, messagingService messaging.Service, registry *Registry, identifyTimeout time.Duration) *Gateway {
	if identifyTimeout <= 0 {
		identifyTimeout = defaultIdentifyTimeout
	}

	g := &Gateway{
		validator:       validator,
		messaging:       messagingService,
		registry:        registry,
		identifyTimeout: identifyTimeout,
	}

	g.opHandlers = map[Opcode]opHandler{
		OpIdentify: g.handleIdentify,
		OpDispatch: g.handleDispatch,
	}
	g.eventHandlers = map[string]eventHandler{
		eventMessageCreate: g.handleMessageCreate,
	}

	return g
}

// Registry exposes the connection registry for delivery fan-out.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// NotifyUser delivers a dispatch event to a user's live connections.
func (g *Gateway) NotifyUser(userID uuid.UUID, event string, data any) {
	NewNotifier(g.registry).NotifyUser(userID, event, data)
}

// Open runs the server side of a new connection: HELLO, identify timer.
func (g *Gateway) Open(c *Connection) {
	if err := c.SendOpcode(OpHello); err != nil {
		c.Close()
		return
	}
	c.armIdentifyTimeout(g.identifyTimeout)
}

// HandleFrame routes one inbound frame through the dispatch tables.
// Protocol violations send an error opcode and close the connection.
func (g *Gateway) HandleFrame(ctx context.Context, c *Connection, raw []byte) {
	p, err := Decode(raw)
	if err != nil {
		c.Reject(OpDecodeError)
		return
	}

	if !c.Identified() && p.Op != OpIdentify {
		c.Reject(OpNotAuthenticated)
		return
	}

	handler, ok := g.opHandlers[p.Op]
	if !ok {
		c.Reject(OpUnknownOpcode)
		return
	}

	handler(ctx, c, p)
}

type identifyData struct {
	Token      string `json:"token"`
	Properties *struct {
		OS     string `json:"os"`
		Device string `json:"device"`
	} `json:"properties"`
}

func (g *Gateway) handleIdentify(ctx context.Context, c *Connection, p *Payload) {
	if c.Identified() {
		c.Reject(OpAlreadyAuthenticated)
		return
	}

	var data identifyData
	if err := p.DataInto(&data); err != nil {
		c.Reject(OpInvalidSession)
		return
	}
	if data.Properties == nil || data.Properties.OS == "" || data.Properties.Device == "" {
		c.Reject(OpInvalidSession)
		return
	}

	// Prefer an Authorization header supplied at upgrade time, exactly as
	// a bearer-authenticated HTTP request would carry it; the identify
	// frame's token field stands in for the header otherwise.
	token := auth.BearerFromHeader(c.authHeader)
	if token == "" {
		token = data.Token
	}
	if token == "" {
		c.Reject(OpInvalidSession)
		return
	}

	principal, err := g.validator.ValidateBearerToken(ctx, token, nil)
	if err != nil {
		c.Reject(OpInvalidSession)
		return
	}

	// Administrative accounts are excluded from the messaging protocol.
	user := principal.User
	if user.Role == users.RoleAdmin {
		c.Reject(OpInvalidSession)
		return
	}

	if !c.markIdentified(user.ID) {
		c.Reject(OpAlreadyAuthenticated)
		return
	}
	g.registry.Register(user.ID, c)

	summary, err := g.messaging.Summary(ctx, user.ID)
	if err != nil {
		slog.Warn("failed to build ready summary", "user_id", user.ID, "error", err)
		summary = &messaging.Summary{RecentThreads: []messaging.ThreadView{}}
	}

	ready, err := NewEvent(eventReady, map[string]any{
		"id":             user.ID,
		"first_name":     user.FirstName,
		"last_name":      user.LastName,
		"unread_threads": summary.UnreadThreads,
		"recent_threads": summary.RecentThreads,
	})
	if err != nil {
		slog.Error("failed to build ready payload", "error", err)
		c.Close()
		return
	}
	if err := c.Send(ready); err != nil {
		c.Close()
		return
	}

	slog.Info("connection identified", "user_id", user.ID)
}

func (g *Gateway) handleDispatch(ctx context.Context, c *Connection, p *Payload) {
	if p.Event == "" {
		c.Reject(OpDecodeError)
		return
	}

	handler, ok := g.eventHandlers[p.Event]
	if !ok {
		// Unknown events are ignored for forward compatibility.
		slog.Debug("ignoring unhandled event", "event", p.Event)
		return
	}

	handler(ctx, c, p)
}

type messageCreateData struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Message     string    `json:"message"`
}

func (g *Gateway) handleMessageCreate(ctx context.Context, c *Connection, p *Payload) {
	var data messageCreateData
	if err := p.DataInto(&data); err != nil {
		c.Reject(OpDecodeError)
		return
	}

	_, err := g.messaging.SendMessage(ctx, c.UserID(), data.RecipientID, data.Message, c.ID())
	if err != nil {
		// Validation failures are request-rejecting but not fatal to the
		// connection; they come back as an error event.
		if errors.Is(err, messaging.ErrEmptyMessage) ||
			errors.Is(err, messaging.ErrRoleConflict) ||
			errors.Is(err, messaging.ErrTutorInitiated) ||
			errors.Is(err, messaging.ErrAwaitingConsent) {
			if reply, buildErr := NewEvent(eventMessageError, map[string]any{"message": err.Error()}); buildErr == nil {
				_ = c.Send(reply)
			}
			return
		}
		slog.Error("failed to route message", "user_id", c.UserID(), "error", err)
	}
}
