// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cal-sync/backend/internal/api/handlers"
	"github.com/cal-sync/backend/internal/api/middleware"
	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/storage"
	"github.com/cal-sync/backend/internal/websocket"
)

// Services bundles everything the routes depend on.
type Services struct {
	DB         *storage.DB
	Feeds      config.FeedURLs
	Bookings   *storage.BookingRepository
	SyncStates *storage.SyncStateRepository
	Sync       *calendar.SyncService
	Publisher  *calendar.Publisher
	Overlaps   *calendar.OverlapDetector
	Scheduler  *calendar.Scheduler
	Hub        *websocket.Hub
	Events     *websocket.EventBroadcaster

	// RefreshOnPublish makes every availability request trigger a
	// background import through Scheduler.Notify.
	RefreshOnPublish bool
}

const (
	apartmentPath = "/{apartmentId:[0-9]+}"
	bookingPath   = "/{externalId}"
)

// NewRouter creates and configures the HTTP router with all API routes.
// Every route also matches with a trailing slash.
func NewRouter(svc Services) http.Handler {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "No such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, middleware.ErrBadRequest, "Method not allowed")
	})

	// Published availability feeds
	var refresher handlers.Refresher
	if svc.RefreshOnPublish && svc.Scheduler != nil {
		refresher = svc.Scheduler
	}
	r.HandleFunc("/ical/availability"+apartmentPath+".ics", handlers.Availability(svc.Publisher, refresher)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(svc.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(svc.DB, svc.Feeds, svc.Hub, svc.Scheduler)).Methods("GET")

	// WebSocket endpoint
	if svc.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(svc.Hub)).Methods("GET")
	}

	// Feed sync endpoints
	api.HandleFunc("/sync", handlers.ListSyncStates(svc.Feeds, svc.SyncStates, svc.Scheduler)).Methods("GET")
	api.HandleFunc("/sync"+apartmentPath, handlers.SyncApartment(svc.Sync)).Methods("POST")
	api.HandleFunc("/sync"+apartmentPath, handlers.GetSyncState(svc.Feeds, svc.SyncStates, svc.Scheduler)).Methods("GET")

	// Booking endpoints
	api.HandleFunc("/bookings", handlers.ListBookings(svc.Bookings)).Methods("GET")
	api.HandleFunc("/bookings", handlers.CreateBooking(svc.Bookings, svc.Events)).Methods("POST")
	api.HandleFunc("/bookings/conflicts", handlers.ListConflicts(svc.Overlaps)).Methods("GET")
	api.HandleFunc("/bookings"+bookingPath, handlers.GetBooking(svc.Bookings)).Methods("GET")
	api.HandleFunc("/bookings"+bookingPath, handlers.UpdateBooking(svc.Bookings, svc.Events)).Methods("PUT")
	api.HandleFunc("/bookings"+bookingPath, handlers.PatchBooking(svc.Bookings, svc.Events)).Methods("PATCH")
	api.HandleFunc("/bookings"+bookingPath, handlers.DeleteBooking(svc.Bookings, svc.Events)).Methods("DELETE")

	return middleware.StripTrailingSlash(r)
}
