package models

import (
	"time"
)

// SyncState records the outcome of the latest feed sync of an apartment.
type SyncState struct {
	ApartmentID  int        `json:"apartment_id"`
	FeedURL      string     `json:"feed_url"` // redacted
	SyncStatus   string     `json:"sync_status"`
	SyncError    *string    `json:"sync_error,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastImported int        `json:"last_imported"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SyncStatus constants
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncResult contains the results of one sync of an apartment feed.
type SyncResult struct {
	ApartmentID   int       `json:"apartment_id"`
	ImportedCount int       `json:"imported"`
	SyncedAt      time.Time `json:"synced_at"`
}
