package portaros

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Connection is the transport handle the dispatcher drives. Implementations
// must be safe for concurrent Send calls: broadcasts and the connection's own
// dispatch replies may overlap.
type Connection interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string

	// Path is the path the connection handshook on.
	Path() string

	// Send writes one complete message to the peer.
	Send(payload []byte) error

	// Close delivers a final payload, if any, and tears the connection down.
	Close(payload []byte) error
}

// WebSocketConnection adapts a github.com/coder/websocket.Conn to the
// Connection interface, keeping the upgrade request's metadata so message
// requests know their peer. The dispatcher constructs one per accepted
// upgrade; hosts with their own accept loop can do the same.
type WebSocketConnection struct {
	id         string
	path       string
	remoteAddr string
	header     http.Header
	conn       *websocket.Conn
}

var (
	_ Connection     = (*WebSocketConnection)(nil)
	_ ConnectionInfo = (*WebSocketConnection)(nil)
)

// NewWebSocketConnection wraps an accepted WebSocket connection, taking the
// path and peer metadata from the upgrade request. The id is a fresh uuid.
func NewWebSocketConnection(conn *websocket.Conn, r *http.Request) *WebSocketConnection {
	return &WebSocketConnection{
		id:         uuid.NewString(),
		path:       r.URL.Path,
		remoteAddr: r.RemoteAddr,
		header:     r.Header,
		conn:       conn,
	}
}

func (c *WebSocketConnection) ID() string { return c.id }

func (c *WebSocketConnection) Path() string { return c.path }

// RemoteAddr implements ConnectionInfo.
func (c *WebSocketConnection) RemoteAddr() string { return c.remoteAddr }

// HandshakeHeader implements ConnectionInfo.
func (c *WebSocketConnection) HandshakeHeader() http.Header { return c.header }

// Send writes the payload as one text message.
func (c *WebSocketConnection) Send(payload []byte) error {
	return c.conn.Write(context.Background(), websocket.MessageText, payload)
}

// Close sends the payload, best effort, then closes with a normal closure
// status.
func (c *WebSocketConnection) Close(payload []byte) error {
	if len(payload) > 0 {
		_ = c.conn.Write(context.Background(), websocket.MessageText, payload)
	}
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
