package gateway

import (
	"log/slog"

	"github.com/google/uuid"
)

// Notifier implements messaging.Notifier on top of the connection
// registry: it wraps data in a dispatch frame and fans it out to the
// user's registered connections. It depends only on the registry, so it
// can be handed to the message router before the gateway itself exists.
type Notifier struct {
	registry *Registry
}

func NewNotifier(registry *Registry) *Notifier {
	return &Notifier{registry: registry}
}

func (n *Notifier) NotifyUser(userID uuid.UUID, event string, data any) {
	n.NotifyUserExcept(userID, uuid.Nil, event, data)
}

// NotifyUserExcept skips the connection with the given id, so echoes
// stay off the socket an event originated from.
func (n *Notifier) NotifyUserExcept(userID, origin uuid.UUID, event string, data any) {
	p, err := NewEvent(event, data)
	if err != nil {
		slog.Error("failed to build event payload", "event", event, "error", err)
		return
	}
	n.registry.BroadcastToExcept(userID, p, origin)
}
