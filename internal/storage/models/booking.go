// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Default titles applied when a feed or a stored booking has none.
const (
	DefaultImportedTitle  = "Airbnb"
	DefaultPublishedTitle = "Booking"
)

// Booking is one occupied date range of one apartment.
// StartDate and EndDate are both inclusive: EndDate is the last occupied night.
type Booking struct {
	ExternalID  string    `json:"external_id"`
	ApartmentID int       `json:"apartment_id"`
	StartDate   Date      `json:"start_date"`
	EndDate     Date      `json:"end_date"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Nights returns the number of occupied nights.
func (b *Booking) Nights() int {
	return int(b.EndDate.Time().Sub(b.StartDate.Time()).Hours()/24) + 1
}

// Overlaps reports whether two bookings share at least one night.
func (b *Booking) Overlaps(o *Booking) bool {
	return !b.StartDate.After(o.EndDate) && !o.StartDate.After(b.EndDate)
}

// BookingFilter narrows a booking listing. Zero fields do not filter.
// From/To select bookings that occupy any night in [From, To].
type BookingFilter struct {
	ApartmentID *int
	From        Date
	To          Date
}

// FeedEvent is the wire form of a booking inside an iCalendar feed.
// End is exclusive, per iCalendar DTEND semantics.
type FeedEvent struct {
	UID     string `json:"uid"`
	Start   Date   `json:"dtstart"`
	End     Date   `json:"dtend"`
	Summary string `json:"summary,omitempty"`
}

// BookingFromEvent converts a feed event into a booking of the given
// apartment. The exclusive end moves back one day; a zero-length event
// occupies its start night.
func BookingFromEvent(apartmentID int, ev FeedEvent) Booking {
	end := ev.End.AddDays(-1)
	if end.Before(ev.Start) {
		end = ev.Start
	}
	title := ev.Summary
	if title == "" {
		title = DefaultImportedTitle
	}
	return Booking{
		ExternalID:  ev.UID,
		ApartmentID: apartmentID,
		StartDate:   ev.Start,
		EndDate:     end,
		Title:       title,
	}
}

// EventFromBooking is the inverse of BookingFromEvent.
func EventFromBooking(b Booking) FeedEvent {
	summary := b.Title
	if summary == "" {
		summary = DefaultPublishedTitle
	}
	return FeedEvent{
		UID:     b.ExternalID,
		Start:   b.StartDate,
		End:     b.EndDate.AddDays(1),
		Summary: summary,
	}
}
