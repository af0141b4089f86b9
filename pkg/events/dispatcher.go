package events

import (
	"time"

	"github.com/vawtech/presence/pkg/logging"
	"github.com/vawtech/presence/pkg/websocket"
)

// Event type constants
const (
	EventPresenceUpdated = "presence.updated"
	EventPresenceLocked  = "presence.locked"
	EventReactivation    = "presence.reactivated"
	EventBreakStarted    = "presence.break_started"
	EventBreakEnded      = "presence.break_ended"
)

// PresenceChannel returns the subscription channel name for a user's
// presence record
func PresenceChannel(userID string) string {
	return "presence:" + userID
}

// Event represents an application event to be dispatched to connected clients
type Event struct {
	Type      string      // Event type constant (e.g., EventPresenceUpdated)
	Channel   string      // Optional: channel name for subscriber filtering
	UserID    string      // Optional: send only to this user's sessions
	Data      interface{} // Event payload
	Timestamp time.Time   // When the event occurred
}

// Dispatcher sends events to connected clients
type Dispatcher interface {
	Dispatch(event Event)
}

// PushHub is the narrow hub surface the dispatcher needs
type PushHub interface {
	Broadcast(msg *websocket.Message)
	SendToUser(userID string, msg *websocket.Message)
	BroadcastToChannel(channel string, msg *websocket.Message)
}

// HubDispatcher implements Dispatcher on top of the WebSocket hub
type HubDispatcher struct {
	hub PushHub
}

// NewHubDispatcher creates a dispatcher backed by a WebSocket hub
func NewHubDispatcher(hub PushHub) Dispatcher {
	return &HubDispatcher{hub: hub}
}

// Dispatch sends an event to connected clients.
// Channel takes priority over UserID; with neither set, the event is
// broadcast to every client.
func (d *HubDispatcher) Dispatch(event Event) {
	if d.hub == nil {
		logging.Warn("dispatcher has no hub, skipping dispatch")
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	msg := &websocket.Message{
		Type:      event.Type,
		Data:      event.Data,
		Timestamp: event.Timestamp,
		UserID:    event.UserID,
		Channel:   event.Channel,
	}

	switch {
	case event.Channel != "":
		d.hub.BroadcastToChannel(event.Channel, msg)
	case event.UserID != "":
		d.hub.SendToUser(event.UserID, msg)
	default:
		d.hub.Broadcast(msg)
	}
}
