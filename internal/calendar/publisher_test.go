package calendar

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/storage/models"
)

func TestPublishAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, b := range []models.Booking{
		{ExternalID: "foo", ApartmentID: 1, StartDate: models.MustParseDate("2025-03-01"), EndDate: models.MustParseDate("2025-03-03")},
		{ExternalID: "bar", ApartmentID: 1, StartDate: models.MustParseDate("2025-03-10"), EndDate: models.MustParseDate("2025-03-10"), Title: "Owner"},
		{ExternalID: "baz", ApartmentID: 2, StartDate: models.MustParseDate("2025-03-01"), EndDate: models.MustParseDate("2025-03-02")},
	} {
		b := b
		require.NoError(t, env.bookings.Create(ctx, &b))
	}

	out, err := NewPublisher(env.bookings).Publish(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.NotContains(t, out, "UID:baz")

	events, err := Decode(out)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event("foo", "2025-03-01", "2025-03-04", models.DefaultPublishedTitle), events[0])
	assert.Equal(t, event("bar", "2025-03-10", "2025-03-11", "Owner"), events[1])
}

func TestPublishEmptyApartment(t *testing.T) {
	env := newTestEnv(t)

	out, err := NewPublisher(env.bookings).Publish(context.Background(), 7)
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "END:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}

func TestPublishedFeedResyncsUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	body := airbnbFeed
	srv, _ := feedServer(t, http.StatusOK, &body)
	svc := env.service(config.FeedURLs{1: srv.URL})
	_, err := svc.Sync(ctx, 1)
	require.NoError(t, err)
	before, err := env.bookings.ListByApartment(ctx, 1)
	require.NoError(t, err)

	// Feed our own published calendar back through the importer.
	body, err = NewPublisher(env.bookings).Publish(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Sync(ctx, 1)
	require.NoError(t, err)

	after, err := env.bookings.ListByApartment(ctx, 1)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].StartDate, after[i].StartDate)
		assert.Equal(t, before[i].EndDate, after[i].EndDate)
		assert.Equal(t, before[i].Title, after[i].Title)
	}
}

type failingReader struct{}

func (failingReader) ListByApartment(context.Context, int) ([]models.Booking, error) {
	return nil, errors.New("disk on fire")
}

func TestPublishStoreError(t *testing.T) {
	_, err := NewPublisher(failingReader{}).Publish(context.Background(), 1)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestPublishScenarioFooBar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, b := range []models.Booking{
		{ExternalID: "foo", ApartmentID: 1, StartDate: models.MustParseDate("2025-03-01"), EndDate: models.MustParseDate("2025-03-03")},
		{ExternalID: "bar", ApartmentID: 1, StartDate: models.MustParseDate("2025-04-05"), EndDate: models.MustParseDate("2025-04-05")},
	} {
		b := b
		require.NoError(t, env.bookings.Create(ctx, &b))
	}

	out, err := NewPublisher(env.bookings).Publish(ctx, 1)
	require.NoError(t, err)
	events, err := Decode(out)
	require.NoError(t, err)

	ends := map[string]string{}
	for _, ev := range events {
		ends[ev.UID] = ev.End.String()
	}
	assert.Equal(t, map[string]string{"foo": "2025-03-04", "bar": "2025-04-06"}, ends)
}
