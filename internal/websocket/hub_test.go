package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/storage/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		require.True(t, ok, "client channel closed")
		var raw struct {
			Type    MessageType     `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &raw))
		return Message{Type: raw.Type, Payload: raw.Payload}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestBroadcastReachesClients(t *testing.T) {
	hub := startHub(t)
	a, b := NewClient(hub), NewClient(hub)
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	events := NewEventBroadcaster(hub)
	events.BroadcastSyncCompleted(models.SyncResult{ApartmentID: 3, ImportedCount: 2})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, TypeSyncCompleted, msg.Type)
		var payload SyncPayload
		require.NoError(t, json.Unmarshal(msg.Payload.(json.RawMessage), &payload))
		assert.Equal(t, 3, payload.ApartmentID)
		assert.Equal(t, 2, payload.Imported)
	}
}

func TestBroadcastSyncErrorKind(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	NewEventBroadcaster(hub).BroadcastSyncError(4, &calendar.FetchError{URL: "https://example.com/...(redacted)", Err: errors.New("refused")})

	msg := receive(t, c)
	assert.Equal(t, TypeSyncError, msg.Type)
	var payload SyncErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload.(json.RawMessage), &payload))
	assert.Equal(t, 4, payload.ApartmentID)
	assert.Equal(t, calendar.KindFetch, payload.Error)
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.Send():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.False(t, hub.SendTo(c, []byte("late")))
}

func TestNilBroadcasterIsSilent(t *testing.T) {
	var events *EventBroadcaster
	assert.NotPanics(t, func() {
		events.BroadcastBookingChanged(ActionCreated, models.Booking{ExternalID: "x"})
	})
}
