// Package calendar provides the ICS codec, feed sync and availability
// publishing.
package calendar

import (
	"bufio"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/cal-sync/backend/internal/storage/models"
)

// Calendar headers of every published feed.
const (
	ProductID     = "-//cal-sync//nairobi-apartments//EN"
	CalendarScale = "GREGORIAN"
)

const (
	icalDateLayout        = "20060102"
	icalDateTimeLayout    = "20060102T150405"
	icalDateTimeUTCLayout = "20060102T150405Z"
)

// ValueKind tells whether a DTSTART/DTEND value carried a time of day.
type ValueKind int

const (
	ValueDate ValueKind = iota
	ValueDateTime
)

// DateValue is a decoded DTSTART/DTEND value before normalization.
// For date-times Time is in the zone the feed wrote it in (UTC, TZID, or
// UTC for floating values).
type DateValue struct {
	Kind ValueKind
	Time time.Time
}

// Date truncates the value to its calendar day as written in the feed.
func (v DateValue) Date() models.Date {
	return models.DateOf(v.Time)
}

// Decode parses a VCALENDAR document into feed events, one per VEVENT in
// document order. Components other than VEVENT are ignored. Any event
// without a UID, DTSTART or DTEND fails the whole decode.
func Decode(feed string) ([]models.FeedEvent, error) {
	feed = strings.TrimPrefix(feed, "\ufeff")

	cal, err := ics.ParseCalendar(strings.NewReader(feed))
	if err != nil {
		return nil, &DecodeError{Msg: "malformed calendar", Err: err}
	}
	// The parser accepts a document with no content lines at all.
	if !hasCalendarWrapper(feed) {
		return nil, &DecodeError{Msg: "not a VCALENDAR document"}
	}

	vevents := cal.Events()
	events := make([]models.FeedEvent, 0, len(vevents))
	for _, ve := range vevents {
		ev, err := decodeEvent(ve)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}

func decodeEvent(ve *ics.VEvent) (models.FeedEvent, error) {
	var ev models.FeedEvent

	uid := ve.GetProperty(ics.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return ev, &DecodeError{Msg: "VEVENT without UID"}
	}
	ev.UID = strings.TrimSpace(uid.Value)

	start, err := dateProperty(ve, ics.ComponentPropertyDtStart)
	if err != nil {
		return ev, &DecodeError{UID: ev.UID, Msg: "DTSTART", Err: err}
	}
	end, err := dateProperty(ve, ics.ComponentPropertyDtEnd)
	if err != nil {
		return ev, &DecodeError{UID: ev.UID, Msg: "DTEND", Err: err}
	}
	ev.Start = start.Date()
	ev.End = end.Date()
	if ev.End.Before(ev.Start) {
		return ev, &DecodeError{UID: ev.UID, Msg: "DTEND before DTSTART"}
	}

	if summary := ve.GetProperty(ics.ComponentPropertySummary); summary != nil {
		ev.Summary = summary.Value
	}

	return ev, nil
}

type missingPropertyError string

func (e missingPropertyError) Error() string { return "missing " + string(e) }

// dateProperty reads a DATE or DATE-TIME property into an explicit variant.
func dateProperty(ve *ics.VEvent, name ics.ComponentProperty) (DateValue, error) {
	prop := ve.GetProperty(name)
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return DateValue{}, missingPropertyError(name)
	}
	return parseDateValue(prop.Value, firstParam(prop.ICalParameters, "VALUE"), firstParam(prop.ICalParameters, "TZID"))
}

func parseDateValue(raw, valueType, tzid string) (DateValue, error) {
	raw = strings.TrimSpace(raw)

	if strings.EqualFold(valueType, "DATE") || !strings.Contains(raw, "T") {
		t, err := time.Parse(icalDateLayout, raw)
		if err != nil {
			return DateValue{}, err
		}
		return DateValue{Kind: ValueDate, Time: t}, nil
	}

	if strings.HasSuffix(raw, "Z") {
		t, err := time.Parse(icalDateTimeUTCLayout, raw)
		if err != nil {
			return DateValue{}, err
		}
		return DateValue{Kind: ValueDateTime, Time: t}, nil
	}

	// An unknown TZID still yields the right wall-clock day.
	loc := time.UTC
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(icalDateTimeLayout, raw, loc)
	if err != nil {
		return DateValue{}, err
	}
	return DateValue{Kind: ValueDateTime, Time: t}, nil
}

func firstParam(params map[string][]string, key string) string {
	for k, vs := range params {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// hasCalendarWrapper checks that the first content line opens a VCALENDAR.
func hasCalendarWrapper(feed string) bool {
	scanner := bufio.NewScanner(strings.NewReader(feed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return strings.EqualFold(line, "BEGIN:VCALENDAR")
	}
	return false
}

// Encode serializes events into a VCALENDAR document, one VEVENT per event
// in input order. DTSTAMP is the current time.
func Encode(events []models.FeedEvent) string {
	return EncodeAt(events, time.Now())
}

// EncodeAt is Encode with an explicit DTSTAMP.
func EncodeAt(events []models.FeedEvent, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetCalscale(CalendarScale)

	for _, e := range events {
		ve := cal.AddEvent(e.UID)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetAllDayStartAt(e.Start.Time())
		ve.SetAllDayEndAt(e.End.Time())

		summary := e.Summary
		if summary == "" {
			summary = models.DefaultPublishedTitle
		}
		ve.SetSummary(summary)
	}

	return cal.Serialize(ics.WithNewLineWindows)
}
