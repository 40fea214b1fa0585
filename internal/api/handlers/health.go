package handlers

import (
	"net/http"
	"time"

	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/storage"
	"github.com/cal-sync/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	ApartmentsConfigured int    `json:"apartments_configured"`
	BookingsCount        int    `json:"bookings_count"`
	WebSocketClients     int    `json:"websocket_clients"`
	NextSyncAt           string `json:"next_sync_at,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, feeds config.FeedURLs, hub *websocket.Hub, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bookingsCount int
		db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM bookings").Scan(&bookingsCount)

		response := StatusResponse{
			ApartmentsConfigured: len(feeds.ApartmentIDs()),
			BookingsCount:        bookingsCount,
		}
		if hub != nil {
			response.WebSocketClients = hub.ClientCount()
		}
		if scheduler != nil {
			if next := scheduler.NextRun(); next != nil {
				response.NextSyncAt = next.UTC().Format(time.RFC3339)
			}
		}

		writeJSON(w, http.StatusOK, response)
	}
}
