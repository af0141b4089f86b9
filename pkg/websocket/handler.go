package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vawtech/presence/pkg/auth"
	"github.com/vawtech/presence/pkg/logging"
)

// ClientHandler upgrades HTTP requests and pumps messages between the
// connection and the hub. Viewers subscribe to per-user presence channels
// ("presence:<user_id>") to mirror another user's status.
type ClientHandler struct {
	Hub    *Hub
	tokens *auth.TokenManager
}

// NewClientHandler creates a new client handler. A nil token manager
// disables authentication (tests, local development).
func NewClientHandler(hub *Hub, tokens *auth.TokenManager) *ClientHandler {
	return &ClientHandler{Hub: hub, tokens: tokens}
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return ""
}

// ServeHTTP handles WebSocket upgrades
func (h *ClientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := ""

	// Token is validated before the upgrade so auth failures stay plain HTTP
	if h.tokens != nil {
		token := extractToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
			return
		}

		claims, err := h.tokens.Validate(token)
		if err != nil {
			logging.Warn("websocket auth failed", zap.Error(err))
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		userID = claims.UserID
	} else {
		userID = r.URL.Query().Get("user_id")
	}

	conn, err := UpgradeHTTP(w, r)
	if err != nil {
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		Hub:    h.Hub,
		Conn:   conn,
		Send:   make(chan *Message, 256),
		UserID: userID,
	}

	h.Hub.register <- client

	go h.readPump(client)
	go h.writePump(client)

	logging.Info("client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", userID),
		zap.String("remote", conn.RemoteAddr()),
	)
}

func (h *ClientHandler) readPump(client *Client) {
	defer func() {
		client.Hub.unregister <- client
		client.Conn.Close()
	}()

	for {
		msg, err := client.Conn.ReadMessage()
		if err != nil {
			if !client.Conn.IsClosed() {
				logging.Debug("client read error",
					zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		h.processMessage(client, msg)
	}
}

func (h *ClientHandler) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := client.Conn.WriteMessage(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := client.Conn.Ping(); err != nil {
				return
			}
		}
	}
}

func (h *ClientHandler) processMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "ping":
		client.trySend(&Message{
			Type:      "pong",
			Data:      msg.Data,
			Timestamp: time.Now(),
		})

	case "subscribe":
		h.handleSubscribe(client, msg)

	case "unsubscribe":
		h.handleUnsubscribe(client, msg)

	default:
		logging.Debug("unknown message type",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type),
		)
	}
}

func channelFromMessage(msg *Message) (string, bool) {
	if msg.Channel != "" {
		return msg.Channel, true
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	channel, ok := data["channel"].(string)
	return channel, ok
}

func (h *ClientHandler) handleSubscribe(client *Client, msg *Message) {
	channel, ok := channelFromMessage(msg)
	if !ok {
		logging.Debug("subscribe without channel", zap.String("client_id", client.ID))
		return
	}

	client.Subscribe(channel)
	client.trySend(&Message{
		Type:      "subscribed",
		Channel:   channel,
		Timestamp: time.Now(),
	})
}

func (h *ClientHandler) handleUnsubscribe(client *Client, msg *Message) {
	channel, ok := channelFromMessage(msg)
	if !ok {
		return
	}

	client.Unsubscribe(channel)
	client.trySend(&Message{
		Type:      "unsubscribed",
		Channel:   channel,
		Timestamp: time.Now(),
	})
}
