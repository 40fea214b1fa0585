package handlers

import (
	"net/http"
	"time"

	"github.com/cal-sync/backend/internal/api/middleware"
	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/logging"
	"github.com/cal-sync/backend/internal/storage"
	"github.com/cal-sync/backend/internal/storage/models"
)

// SyncResponse is returned by a successful sync.
type SyncResponse struct {
	Synced   bool `json:"synced"`
	Imported int  `json:"imported"`
}

// SyncStateResponse describes one configured or previously synced apartment.
type SyncStateResponse struct {
	models.SyncState
	Configured bool       `json:"configured"`
	NextSyncAt *time.Time `json:"next_sync_at,omitempty"`
}

// syncErrorStatus maps a sync error kind to its HTTP status.
var syncErrorStatus = map[string]int{
	calendar.KindConfiguration: http.StatusBadRequest,
	calendar.KindFetch:         http.StatusBadGateway,
	calendar.KindParse:         http.StatusInternalServerError,
	calendar.KindSync:          http.StatusInternalServerError,
}

var syncErrorMessage = map[string]string{
	calendar.KindConfiguration: "No ICS URL configured for this apartment",
	calendar.KindFetch:         "Failed to fetch the ICS feed",
	calendar.KindParse:         "Failed to parse the ICS feed",
	calendar.KindSync:          "Failed to store synced bookings",
}

// SyncApartment imports the Airbnb feed of one apartment.
func SyncApartment(syncService *calendar.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apartmentID, err := apartmentIDVar(r)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		result, err := syncService.Sync(r.Context(), apartmentID)
		if err != nil {
			kind := calendar.ErrorKind(err)
			if kind == calendar.KindSync {
				logging.Logger.WithError(err).WithField("apartment_id", apartmentID).Error("sync failed")
			}
			middleware.WriteErrorWithDetails(w, syncErrorStatus[kind], kind, syncErrorMessage[kind], err.Error())
			return
		}

		writeJSON(w, http.StatusOK, SyncResponse{Synced: true, Imported: result.ImportedCount})
	}
}

// GetSyncState returns the sync state of one apartment.
func GetSyncState(feeds config.FeedURLs, states *storage.SyncStateRepository, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apartmentID, err := apartmentIDVar(r)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		state, err := states.Get(r.Context(), apartmentID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load sync state")
			return
		}

		resp, ok := syncStateResponse(apartmentID, state, feeds, scheduler)
		if !ok {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Apartment has no feed and was never synced")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ListSyncStates returns every configured apartment plus any apartment
// that synced before its feed was removed.
func ListSyncStates(feeds config.FeedURLs, states *storage.SyncStateRepository, scheduler *calendar.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stored, err := states.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to list sync states")
			return
		}

		byID := make(map[int]*models.SyncState, len(stored))
		for i := range stored {
			byID[stored[i].ApartmentID] = &stored[i]
		}

		resp := []SyncStateResponse{}
		for _, id := range feeds.ApartmentIDs() {
			s, _ := syncStateResponse(id, byID[id], feeds, scheduler)
			resp = append(resp, s)
			delete(byID, id)
		}
		for _, s := range stored {
			if _, orphan := byID[s.ApartmentID]; orphan {
				extra, _ := syncStateResponse(s.ApartmentID, &s, feeds, scheduler)
				resp = append(resp, extra)
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func syncStateResponse(apartmentID int, state *models.SyncState, feeds config.FeedURLs, scheduler *calendar.Scheduler) (SyncStateResponse, bool) {
	feedURL, configured := feeds.URL(apartmentID)
	if state == nil && !configured {
		return SyncStateResponse{}, false
	}

	resp := SyncStateResponse{Configured: configured}
	if state != nil {
		resp.SyncState = *state
	} else {
		resp.SyncState = models.SyncState{
			ApartmentID: apartmentID,
			FeedURL:     logging.RedactURL(feedURL),
			SyncStatus:  models.SyncStatusPending,
		}
	}
	if configured && scheduler != nil {
		resp.NextSyncAt = scheduler.NextRun()
	}
	return resp, true
}
