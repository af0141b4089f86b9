package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla WebSocket connection with deadlines and close tracking
type Conn struct {
	ws            *websocket.Conn
	mu            sync.Mutex
	closed        bool
	readDeadline  time.Duration
	writeDeadline time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard and the API share an origin in production; the
		// reverse proxy enforces it.
		return true
	},
}

// UpgradeHTTP upgrades an HTTP connection to WebSocket
func UpgradeHTTP(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := &Conn{
		ws:            ws,
		readDeadline:  60 * time.Second,
		writeDeadline: 10 * time.Second,
	}

	ws.SetReadDeadline(time.Now().Add(conn.readDeadline))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(conn.readDeadline))
		return nil
	})

	return conn, nil
}

// ReadMessage reads one message from the connection
func (c *Conn) ReadMessage() (*Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// WriteMessage writes one message to the connection
func (c *Conn) WriteMessage(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.ws.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a ping control message to keep the connection alive
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}

	return c.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeDeadline))
}

// Close closes the connection. Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(c.writeDeadline))
	return c.ws.Close()
}

// IsClosed reports whether the connection has been closed
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the remote address
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
