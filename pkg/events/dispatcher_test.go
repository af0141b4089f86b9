package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vawtech/presence/pkg/websocket"
)

type recordingHub struct {
	broadcasts []*websocket.Message
	userSends  map[string][]*websocket.Message
	channels   map[string][]*websocket.Message
}

func newRecordingHub() *recordingHub {
	return &recordingHub{
		userSends: make(map[string][]*websocket.Message),
		channels:  make(map[string][]*websocket.Message),
	}
}

func (h *recordingHub) Broadcast(msg *websocket.Message) {
	h.broadcasts = append(h.broadcasts, msg)
}

func (h *recordingHub) SendToUser(userID string, msg *websocket.Message) {
	h.userSends[userID] = append(h.userSends[userID], msg)
}

func (h *recordingHub) BroadcastToChannel(channel string, msg *websocket.Message) {
	h.channels[channel] = append(h.channels[channel], msg)
}

func TestPresenceChannelNaming(t *testing.T) {
	assert.Equal(t, "presence:user-1", PresenceChannel("user-1"))
}

func TestDispatchPrefersChannel(t *testing.T) {
	hub := newRecordingHub()
	d := NewHubDispatcher(hub)

	d.Dispatch(Event{
		Type:    EventPresenceUpdated,
		Channel: PresenceChannel("user-1"),
		UserID:  "user-1",
		Data:    map[string]interface{}{"status": "afk"},
	})

	require.Len(t, hub.channels["presence:user-1"], 1)
	assert.Empty(t, hub.userSends)
	assert.Empty(t, hub.broadcasts)

	msg := hub.channels["presence:user-1"][0]
	assert.Equal(t, EventPresenceUpdated, msg.Type)
	assert.Equal(t, "user-1", msg.UserID)
	assert.False(t, msg.Timestamp.IsZero(), "a missing timestamp is filled in")
}

func TestDispatchFallsBackToUser(t *testing.T) {
	hub := newRecordingHub()
	d := NewHubDispatcher(hub)

	d.Dispatch(Event{Type: EventBreakEnded, UserID: "user-2"})

	require.Len(t, hub.userSends["user-2"], 1)
	assert.Empty(t, hub.broadcasts)
}

func TestDispatchBroadcastsWithoutTarget(t *testing.T) {
	hub := newRecordingHub()
	d := NewHubDispatcher(hub)

	d.Dispatch(Event{Type: EventPresenceUpdated})

	assert.Len(t, hub.broadcasts, 1)
}

func TestDispatchWithNilHub(t *testing.T) {
	d := NewHubDispatcher(nil)

	// Must not panic
	d.Dispatch(Event{Type: EventPresenceUpdated, UserID: "user-1"})
}
