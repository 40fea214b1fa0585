package calendar

import (
	"context"
	"fmt"

	"github.com/cal-sync/backend/internal/storage/models"
)

// Overlap is a pair of bookings of one apartment that share nights.
type Overlap struct {
	ApartmentID int         `json:"apartment_id"`
	First       string      `json:"first_external_id"`
	Second      string      `json:"second_external_id"`
	Start       models.Date `json:"overlap_start"`
	End         models.Date `json:"overlap_end"`
	Nights      int         `json:"nights"`
}

// FindOverlaps returns every pair of bookings with the same apartment whose
// inclusive night ranges intersect. Pairs keep the input order of the
// bookings.
func FindOverlaps(bookings []models.Booking) []Overlap {
	var overlaps []Overlap
	for i := range bookings {
		a := &bookings[i]
		for j := i + 1; j < len(bookings); j++ {
			b := &bookings[j]
			if a.ApartmentID != b.ApartmentID || !a.Overlaps(b) {
				continue
			}

			start := a.StartDate
			if b.StartDate.After(start) {
				start = b.StartDate
			}
			end := a.EndDate
			if b.EndDate.Before(end) {
				end = b.EndDate
			}
			span := models.Booking{StartDate: start, EndDate: end}

			overlaps = append(overlaps, Overlap{
				ApartmentID: a.ApartmentID,
				First:       a.ExternalID,
				Second:      b.ExternalID,
				Start:       start,
				End:         end,
				Nights:      span.Nights(),
			})
		}
	}
	return overlaps
}

// OverlapDetector checks stored bookings for double-booked nights.
type OverlapDetector struct {
	bookings BookingReader
}

// NewOverlapDetector creates a new overlap detector.
func NewOverlapDetector(bookings BookingReader) *OverlapDetector {
	return &OverlapDetector{bookings: bookings}
}

// Overlaps returns the overlapping bookings of one apartment.
func (d *OverlapDetector) Overlaps(ctx context.Context, apartmentID int) ([]Overlap, error) {
	bookings, err := d.bookings.ListByApartment(ctx, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	return FindOverlaps(bookings), nil
}
