package calendar

import (
	"context"
	"fmt"

	"github.com/cal-sync/backend/internal/storage/models"
)

// BookingReader lists the stored bookings of an apartment.
type BookingReader interface {
	ListByApartment(ctx context.Context, apartmentID int) ([]models.Booking, error)
}

// Publisher renders an apartment's bookings as an availability feed.
type Publisher struct {
	bookings BookingReader
}

// NewPublisher creates a new availability publisher.
func NewPublisher(bookings BookingReader) *Publisher {
	return &Publisher{bookings: bookings}
}

// Publish returns the VCALENDAR document for an apartment. Every stored
// booking becomes one all-day event whose DTEND is the day after its last
// night. An apartment without bookings gets an empty, valid calendar.
func (p *Publisher) Publish(ctx context.Context, apartmentID int) (string, error) {
	bookings, err := p.bookings.ListByApartment(ctx, apartmentID)
	if err != nil {
		return "", fmt.Errorf("listing bookings: %w", err)
	}

	events := make([]models.FeedEvent, 0, len(bookings))
	for _, b := range bookings {
		events = append(events, models.EventFromBooking(b))
	}

	return Encode(events), nil
}
