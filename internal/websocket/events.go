package websocket

import (
	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/logging"
	"github.com/cal-sync/backend/internal/storage/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
// A nil *EventBroadcaster drops every event.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSyncCompleted sends a booking.sync_completed event.
func (b *EventBroadcaster) BroadcastSyncCompleted(result models.SyncResult) {
	b.broadcast(NewMessage(TypeSyncCompleted, SyncPayload{
		ApartmentID: result.ApartmentID,
		Imported:    result.ImportedCount,
		SyncedAt:    result.SyncedAt,
	}))
}

// BroadcastSyncError sends a booking.sync_error event.
func (b *EventBroadcaster) BroadcastSyncError(apartmentID int, err error) {
	b.broadcast(NewMessage(TypeSyncError, SyncErrorPayload{
		ApartmentID: apartmentID,
		Error:       calendar.ErrorKind(err),
		Message:     err.Error(),
	}))
}

// BroadcastBookingChanged sends a booking.changed event.
func (b *EventBroadcaster) BroadcastBookingChanged(action string, booking models.Booking) {
	b.broadcast(NewMessage(TypeBookingChanged, BookingPayload{
		Action:  action,
		Booking: booking,
	}))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	if b == nil || b.hub == nil {
		return
	}

	data, err := msg.JSON()
	if err != nil {
		logging.Logger.WithError(err).Error("encoding websocket message")
		return
	}

	b.hub.Broadcast(data)
}
