package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2025, time.February, 28)

	assert.Equal(t, "2025-03-01", d.AddDays(1).String())
	assert.Equal(t, "2025-02-27", d.AddDays(-1).String())
	assert.Equal(t, "2024-03-01", NewDate(2024, time.February, 29).AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.Equal(MustParseDate("2025-02-28")))
}

func TestDateOfTruncatesInOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2025, time.January, 10, 23, 30, 0, 0, loc)

	assert.Equal(t, "2025-01-10", DateOf(ts).String())
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2025-04-05"}`), &payload))
	assert.Equal(t, "2025-04-05", payload.D.String())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-04-05"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"d":"05/04/2025"}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"d":20250405}`), &payload))

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &payload))
	assert.True(t, payload.D.IsZero())
}

func TestDateScan(t *testing.T) {
	var d Date

	require.NoError(t, d.Scan("2025-03-01"))
	assert.Equal(t, "2025-03-01", d.String())

	require.NoError(t, d.Scan([]byte("2025-03-02")))
	assert.Equal(t, "2025-03-02", d.String())

	require.NoError(t, d.Scan(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-03-03", d.String())

	require.NoError(t, d.Scan("2025-03-04T00:00:00Z"))
	assert.Equal(t, "2025-03-04", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestBookingEventConversion(t *testing.T) {
	t.Run("exclusive end moves back one day", func(t *testing.T) {
		b := BookingFromEvent(1, FeedEvent{
			UID:   "evt1",
			Start: MustParseDate("2025-01-10"),
			End:   MustParseDate("2025-01-12"),
		})
		assert.Equal(t, "2025-01-10", b.StartDate.String())
		assert.Equal(t, "2025-01-11", b.EndDate.String())
		assert.Equal(t, DefaultImportedTitle, b.Title)
		assert.Equal(t, 2, b.Nights())
	})

	t.Run("zero-length event keeps its start night", func(t *testing.T) {
		b := BookingFromEvent(1, FeedEvent{
			UID:   "z",
			Start: MustParseDate("2025-01-10"),
			End:   MustParseDate("2025-01-10"),
		})
		assert.Equal(t, b.StartDate, b.EndDate)
	})

	t.Run("publish adds the day back", func(t *testing.T) {
		ev := EventFromBooking(Booking{
			ExternalID: "bar",
			StartDate:  MustParseDate("2025-04-05"),
			EndDate:    MustParseDate("2025-04-05"),
		})
		assert.Equal(t, "2025-04-06", ev.End.String())
		assert.Equal(t, DefaultPublishedTitle, ev.Summary)
	})

	t.Run("round trip", func(t *testing.T) {
		ev := FeedEvent{UID: "x", Start: MustParseDate("2025-12-30"), End: MustParseDate("2026-01-02"), Summary: "Reserved"}
		assert.Equal(t, ev, EventFromBooking(BookingFromEvent(5, ev)))
	})
}

func TestBookingOverlaps(t *testing.T) {
	a := &Booking{StartDate: MustParseDate("2025-03-01"), EndDate: MustParseDate("2025-03-03")}
	b := &Booking{StartDate: MustParseDate("2025-03-03"), EndDate: MustParseDate("2025-03-05")}
	c := &Booking{StartDate: MustParseDate("2025-03-04"), EndDate: MustParseDate("2025-03-04")}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
	assert.True(t, b.Overlaps(c))
}
