package handlers

import (
	"fmt"
	"net/http"

	"github.com/cal-sync/backend/internal/api/middleware"
	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/logging"
)

// Refresher starts a detached sync of an apartment.
type Refresher interface {
	Notify(apartmentID int)
}

// Availability serves the availability feed of one apartment. When
// refresher is set, every request also triggers a background import of the
// apartment's Airbnb feed; its outcome never affects the response.
func Availability(publisher *calendar.Publisher, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apartmentID, err := apartmentIDVar(r)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		if refresher != nil {
			refresher.Notify(apartmentID)
		}

		feed, err := publisher.Publish(r.Context(), apartmentID)
		if err != nil {
			logging.Logger.WithError(err).WithField("apartment_id", apartmentID).Error("publishing availability")
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to build availability feed")
			return
		}

		w.Header().Set("Content-Type", "text/calendar")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%d.ics"`, apartmentID))
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(feed))
	}
}
