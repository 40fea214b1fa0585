package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cal-sync/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func booking(id string, apt int, start, end, title string) models.Booking {
	return models.Booking{
		ExternalID:  id,
		ApartmentID: apt,
		StartDate:   models.MustParseDate(start),
		EndDate:     models.MustParseDate(end),
		Title:       title,
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestBookingCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(newTestDB(t))

	b := booking("foo", 1, "2025-03-01", "2025-03-03", "Local")
	require.NoError(t, repo.Create(ctx, &b))

	got, err := repo.GetByExternalID(ctx, "foo")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ApartmentID)
	assert.Equal(t, "2025-03-01", got.StartDate.String())
	assert.Equal(t, "2025-03-03", got.EndDate.String())
	assert.Equal(t, "Local", got.Title)
	assert.False(t, got.CreatedAt.IsZero())

	dup := booking("foo", 2, "2025-05-01", "2025-05-02", "")
	err = repo.Create(ctx, &dup)
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	got.Title = "Renamed"
	got.EndDate = models.MustParseDate("2025-03-04")
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByExternalID(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "2025-03-04", got.EndDate.String())

	require.NoError(t, repo.Delete(ctx, "foo"))
	got, err = repo.GetByExternalID(ctx, "foo")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.True(t, errors.Is(repo.Delete(ctx, "foo"), ErrNotFound))
	missing := booking("nope", 1, "2025-01-01", "2025-01-01", "")
	assert.True(t, errors.Is(repo.Update(ctx, &missing), ErrNotFound))
}

func TestCreateGeneratesExternalID(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(newTestDB(t))

	b := booking("", 3, "2025-06-01", "2025-06-02", "Owner stay")
	require.NoError(t, repo.Create(ctx, &b))
	assert.Len(t, b.ExternalID, 36)

	got, err := repo.GetByExternalID(ctx, b.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestStoreRejectsInvertedRange(t *testing.T) {
	repo := NewBookingRepository(newTestDB(t))
	b := booking("bad", 1, "2025-03-05", "2025-03-01", "")
	assert.Error(t, repo.Create(context.Background(), &b))
}

func TestUpsertOverwritesAcrossApartments(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(newTestDB(t))

	first := booking("evt1", 1, "2025-01-10", "2025-01-11", "Airbnb")
	require.NoError(t, repo.Upsert(ctx, &first))
	created, err := repo.GetByExternalID(ctx, "evt1")
	require.NoError(t, err)

	second := booking("evt1", 2, "2025-02-01", "2025-02-03", "Moved")
	require.NoError(t, repo.Upsert(ctx, &second))

	all, err := repo.List(ctx, models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].ApartmentID)
	assert.Equal(t, "2025-02-01", all[0].StartDate.String())
	assert.Equal(t, "2025-02-03", all[0].EndDate.String())
	assert.Equal(t, "Moved", all[0].Title)
	assert.True(t, all[0].CreatedAt.Equal(created.CreatedAt), "created_at survives an upsert")
}

func TestUpsertAllRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(newTestDB(t))

	batch := []models.Booking{
		booking("ok", 1, "2025-01-01", "2025-01-02", ""),
		booking("broken", 1, "2025-01-05", "2025-01-01", ""), // violates CHECK
	}
	_, err := repo.UpsertAll(ctx, batch)
	require.Error(t, err)

	all, err := repo.List(ctx, models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := repo.UpsertAll(ctx, batch[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(newTestDB(t))

	for _, b := range []models.Booking{
		booking("a", 1, "2025-03-01", "2025-03-03", ""),
		booking("b", 1, "2025-04-05", "2025-04-05", ""),
		booking("c", 2, "2025-03-02", "2025-03-02", ""),
	} {
		b := b
		require.NoError(t, repo.Create(ctx, &b))
	}

	apt1, err := repo.ListByApartment(ctx, 1)
	require.NoError(t, err)
	require.Len(t, apt1, 2)
	assert.Equal(t, "a", apt1[0].ExternalID)
	assert.Equal(t, "b", apt1[1].ExternalID)

	march, err := repo.List(ctx, models.BookingFilter{
		From: models.MustParseDate("2025-03-03"),
		To:   models.MustParseDate("2025-03-31"),
	})
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, "a", march[0].ExternalID, "a range touching the last night matches")

	empty, err := repo.ListByApartment(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSyncStateTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncStateRepository(newTestDB(t))

	state, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, repo.UpdateSyncStatus(ctx, 1, "http://example.com/...(redacted)", models.SyncStatusSuccess, 4, nil))
	state, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.SyncStatusSuccess, state.SyncStatus)
	assert.Equal(t, 4, state.LastImported)
	require.NotNil(t, state.LastSyncAt)
	lastSync := *state.LastSyncAt

	msg := "fetching feed: status 503"
	require.NoError(t, repo.UpdateSyncStatus(ctx, 1, "http://example.com/...(redacted)", models.SyncStatusError, 0, &msg))
	state, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, state.SyncStatus)
	require.NotNil(t, state.SyncError)
	assert.Equal(t, msg, *state.SyncError)
	assert.Equal(t, 4, state.LastImported, "a failed sync keeps the last import count")
	require.NotNil(t, state.LastSyncAt)
	assert.True(t, state.LastSyncAt.Equal(lastSync))

	states, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}
