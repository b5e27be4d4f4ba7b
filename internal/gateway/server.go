package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Bearer tokens authenticate the session, not cookies, so cross-origin
	// upgrades carry no ambient authority.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSocket adapts a gorilla connection to the socket interface. Writes
// are serialized behind a mutex: the read loop, the identify timer and
// registry broadcasts all send concurrently.
type wsSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSocket) Send(p *Payload) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}

// HandleWS upgrades the request and runs the connection: HELLO, the
// identify timer, then one frame at a time through the dispatcher. One
// goroutine per connection; shared state lives in the registry.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConnection(&wsSocket{conn: ws}, r.Header.Get("Authorization"), func(c *Connection) {
		// Runs exactly once per connection; the registry must never hold a
		// closed connection.
		if id := c.UserID(); id != uuid.Nil {
			g.registry.Unregister(id, c)
		}
	})

	g.Open(conn)

	ctx := r.Context()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		g.HandleFrame(ctx, conn, raw)
	}
}
