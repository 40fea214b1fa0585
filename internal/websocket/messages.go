package websocket

import (
	"encoding/json"
	"time"

	"github.com/cal-sync/backend/internal/storage/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSyncCompleted  MessageType = "booking.sync_completed"
	TypeSyncError      MessageType = "booking.sync_error"
	TypeBookingChanged MessageType = "booking.changed"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Booking change actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClientMessage is a command sent by a client.
type ClientMessage struct {
	Type MessageType `json:"type"`
}

// SyncPayload is the payload for booking.sync_completed events.
type SyncPayload struct {
	ApartmentID int       `json:"apartment_id"`
	Imported    int       `json:"imported"`
	SyncedAt    time.Time `json:"synced_at"`
}

// SyncErrorPayload is the payload for booking.sync_error events.
type SyncErrorPayload struct {
	ApartmentID int    `json:"apartment_id"`
	Error       string `json:"error"`
	Message     string `json:"message"`
}

// BookingPayload is the payload for booking.changed events.
type BookingPayload struct {
	Action  string         `json:"action"`
	Booking models.Booking `json:"booking"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}
