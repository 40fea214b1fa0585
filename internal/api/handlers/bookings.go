package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cal-sync/backend/internal/api/middleware"
	"github.com/cal-sync/backend/internal/calendar"
	"github.com/cal-sync/backend/internal/storage"
	"github.com/cal-sync/backend/internal/storage/models"
	"github.com/cal-sync/backend/internal/websocket"
)

// Booking request types

type BookingRequest struct {
	ExternalID  string      `json:"external_id" validate:"omitempty,max=255"`
	ApartmentID int         `json:"apartment_id" validate:"required,gt=0"`
	StartDate   models.Date `json:"start_date" validate:"required"`
	EndDate     models.Date `json:"end_date" validate:"required"`
	Title       string      `json:"title" validate:"max=255"`
}

type PatchBookingRequest struct {
	ApartmentID *int         `json:"apartment_id" validate:"omitempty,gt=0"`
	StartDate   *models.Date `json:"start_date"`
	EndDate     *models.Date `json:"end_date"`
	Title       *string      `json:"title" validate:"omitempty,max=255"`
}

// ListBookings returns bookings, optionally filtered by apartment and by a
// [from, to] night range.
func ListBookings(repo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := bookingFilter(r)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		bookings, err := repo.List(r.Context(), filter)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query bookings")
			return
		}
		if bookings == nil {
			bookings = []models.Booking{}
		}

		writeJSON(w, http.StatusOK, bookings)
	}
}

func bookingFilter(r *http.Request) (models.BookingFilter, error) {
	var filter models.BookingFilter
	q := r.URL.Query()

	if raw := q.Get("apartment_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return filter, errors.New("apartment_id must be a positive integer")
		}
		filter.ApartmentID = &id
	}
	if raw := q.Get("from"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return filter, errors.New("from must be a YYYY-MM-DD date")
		}
		filter.From = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return filter, errors.New("to must be a YYYY-MM-DD date")
		}
		filter.To = d
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.New("to must not be before from")
	}

	return filter, nil
}

// CreateBooking stores a manual booking.
func CreateBooking(repo *storage.BookingRepository, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if err := validateBooking(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		b := &models.Booking{
			ExternalID:  req.ExternalID,
			ApartmentID: req.ApartmentID,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			Title:       req.Title,
		}
		if err := repo.Create(r.Context(), b); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "A booking with this external_id already exists")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create booking")
			return
		}

		events.BroadcastBookingChanged(websocket.ActionCreated, *b)
		writeJSON(w, http.StatusCreated, b)
	}
}

// GetBooking returns a single booking by external id.
func GetBooking(repo *storage.BookingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := repo.GetByExternalID(r.Context(), mux.Vars(r)["externalId"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if b == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		writeJSON(w, http.StatusOK, b)
	}
}

// UpdateBooking replaces every field of a booking. The external id in the
// path wins over one in the body.
func UpdateBooking(repo *storage.BookingRepository, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := mux.Vars(r)["externalId"]

		var req BookingRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if err := validateBooking(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		existing, err := repo.GetByExternalID(r.Context(), externalID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if existing == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		existing.ApartmentID = req.ApartmentID
		existing.StartDate = req.StartDate
		existing.EndDate = req.EndDate
		existing.Title = req.Title
		saveBooking(w, r, repo, events, existing)
	}
}

// PatchBooking updates the fields present in the body.
func PatchBooking(repo *storage.BookingRepository, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := mux.Vars(r)["externalId"]

		var req PatchBookingRequest
		if err := decodeJSON(r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, validationMessage(err))
			return
		}

		existing, err := repo.GetByExternalID(r.Context(), externalID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if existing == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		if req.ApartmentID != nil {
			existing.ApartmentID = *req.ApartmentID
		}
		if req.StartDate != nil {
			existing.StartDate = *req.StartDate
		}
		if req.EndDate != nil {
			existing.EndDate = *req.EndDate
		}
		if req.Title != nil {
			existing.Title = *req.Title
		}
		if existing.StartDate.IsZero() || existing.EndDate.IsZero() {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start_date and end_date cannot be cleared")
			return
		}
		if existing.EndDate.Before(existing.StartDate) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_date must not be before start_date")
			return
		}

		saveBooking(w, r, repo, events, existing)
	}
}

func saveBooking(w http.ResponseWriter, r *http.Request, repo *storage.BookingRepository, events *websocket.EventBroadcaster, b *models.Booking) {
	if err := repo.Update(r.Context(), b); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update booking")
		return
	}

	events.BroadcastBookingChanged(websocket.ActionUpdated, *b)
	writeJSON(w, http.StatusOK, b)
}

// DeleteBooking removes a booking by external id.
func DeleteBooking(repo *storage.BookingRepository, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID := mux.Vars(r)["externalId"]

		existing, err := repo.GetByExternalID(r.Context(), externalID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query booking")
			return
		}
		if existing == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
			return
		}

		if err := repo.Delete(r.Context(), externalID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking not found")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete booking")
			return
		}

		events.BroadcastBookingChanged(websocket.ActionDeleted, *existing)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListConflicts reports double-booked nights of one apartment.
func ListConflicts(detector *calendar.OverlapDetector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("apartment_id")
		apartmentID, err := strconv.Atoi(raw)
		if err != nil || apartmentID <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "apartment_id must be a positive integer")
			return
		}

		overlaps, err := detector.Overlaps(r.Context(), apartmentID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to check bookings")
			return
		}
		if overlaps == nil {
			overlaps = []calendar.Overlap{}
		}

		writeJSON(w, http.StatusOK, overlaps)
	}
}

func validateBooking(req *BookingRequest) error {
	if err := validate.Struct(req); err != nil {
		return errors.New(validationMessage(err))
	}
	if req.EndDate.Before(req.StartDate) {
		return errors.New("end_date must not be before start_date")
	}
	return nil
}
