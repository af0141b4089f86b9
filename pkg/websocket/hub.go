package websocket

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/logging"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    string      `json:"user_id,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Channel   string      `json:"channel,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	Hub    *Hub
	Conn   *Conn
	Send   chan *Message
	UserID string

	mu       sync.RWMutex
	channels map[string]struct{}
}

// Hub maintains active client connections and fans messages out to them
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	mu      sync.RWMutex
	stopped bool

	clientGauge prometheus.Gauge
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *Message, 256),
	}
}

// SetClientGauge wires a gauge tracking the connected client count.
// Call before Start.
func (h *Hub) SetClientGauge(g prometheus.Gauge) {
	h.clientGauge = g
}

func (h *Hub) updateGauge() {
	if h.clientGauge != nil {
		h.clientGauge.Set(float64(len(h.clients)))
	}
}

// Start begins the hub's event loop
func (h *Hub) Start() {
	go h.run()
	logging.Info("websocket hub started")
}

// Stop gracefully stops the hub and closes all client connections
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true

	for id, client := range h.clients {
		if client.Conn != nil {
			client.Conn.Close()
		}
		close(client.Send)
		delete(h.clients, id)
	}
	h.updateGauge()

	logging.Info("websocket hub stopped")
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[client.ID]; ok {
		if existing.Conn != nil {
			existing.Conn.Close()
		}
	}
	h.clients[client.ID] = client
	h.updateGauge()

	logging.Info("client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)),
	)

	client.trySend(&Message{
		Type:      "welcome",
		Data:      map[string]interface{}{"client_id": client.ID},
		Timestamp: time.Now(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	delete(h.clients, client.ID)
	close(client.Send)
	h.updateGauge()

	logging.Info("client unregistered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)),
	)
}

func (h *Hub) broadcastMessage(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.trySend(msg)
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn("broadcast channel full, dropping message", zap.String("type", msg.Type))
	}
}

// SendToUser sends a message to every connection belonging to a user
func (h *Hub) SendToUser(userID string, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			client.trySend(msg)
		}
	}
}

// BroadcastToChannel sends a message to all clients subscribed to a channel
func (h *Hub) BroadcastToChannel(channel string, msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.SubscribedTo(channel) {
			c.trySend(msg)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribe adds the client to a channel
func (c *Client) Subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels == nil {
		c.channels = make(map[string]struct{})
	}
	c.channels[channel] = struct{}{}
}

// Unsubscribe removes the client from a channel
func (c *Client) Unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

// SubscribedTo reports whether the client is subscribed to a channel
func (c *Client) SubscribedTo(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// trySend queues a message without blocking; slow consumers drop messages
// rather than stalling the hub.
func (c *Client) trySend(msg *Message) {
	select {
	case c.Send <- msg:
	default:
		logging.Warn("send channel full, dropping message",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type),
		)
	}
}
