package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cal-sync/backend/internal/storage/models"
)

// SyncStateRepository records the latest sync outcome per apartment.
type SyncStateRepository struct {
	BaseRepository
}

// NewSyncStateRepository creates a new sync state repository.
func NewSyncStateRepository(db *DB) *SyncStateRepository {
	return &SyncStateRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Get retrieves the sync state of an apartment, or nil if it never synced.
func (r *SyncStateRepository) Get(ctx context.Context, apartmentID int) (*models.SyncState, error) {
	s := &models.SyncState{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT apartment_id, feed_url, sync_status, sync_error, last_sync_at, last_imported, updated_at
		FROM feed_sync_state WHERE apartment_id = ?
	`, apartmentID).Scan(
		&s.ApartmentID, &s.FeedURL, &s.SyncStatus, &s.SyncError, &s.LastSyncAt, &s.LastImported, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync state: %w", err)
	}

	return s, nil
}

// List retrieves the sync state of every apartment that has synced.
func (r *SyncStateRepository) List(ctx context.Context) ([]models.SyncState, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT apartment_id, feed_url, sync_status, sync_error, last_sync_at, last_imported, updated_at
		FROM feed_sync_state ORDER BY apartment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sync states: %w", err)
	}
	defer rows.Close()

	var states []models.SyncState
	for rows.Next() {
		var s models.SyncState
		if err := rows.Scan(
			&s.ApartmentID, &s.FeedURL, &s.SyncStatus, &s.SyncError, &s.LastSyncAt, &s.LastImported, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync state: %w", err)
		}
		states = append(states, s)
	}

	return states, rows.Err()
}

// UpdateSyncStatus records a status transition. last_sync_at and
// last_imported only move on success; the error text is cleared unless the
// status is an error.
func (r *SyncStateRepository) UpdateSyncStatus(ctx context.Context, apartmentID int, feedURL, status string, imported int, syncError *string) error {
	now := r.Now()
	var lastSyncAt *time.Time
	if status == models.SyncStatusSuccess {
		lastSyncAt = &now
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO feed_sync_state (
			apartment_id, feed_url, sync_status, sync_error, last_sync_at, last_imported, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(apartment_id) DO UPDATE SET
			feed_url      = excluded.feed_url,
			sync_status   = excluded.sync_status,
			sync_error    = excluded.sync_error,
			last_sync_at  = COALESCE(excluded.last_sync_at, feed_sync_state.last_sync_at),
			last_imported = CASE WHEN excluded.sync_status = ? THEN excluded.last_imported
			                     ELSE feed_sync_state.last_imported END,
			updated_at    = excluded.updated_at
	`, apartmentID, feedURL, status, syncError, lastSyncAt, imported, now, models.SyncStatusSuccess)
	if err != nil {
		return fmt.Errorf("updating sync status: %w", err)
	}

	return nil
}
