package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/logging"
	"github.com/cal-sync/backend/internal/storage/models"
)

// BookingStore is the part of the booking repository the sync engine writes to.
type BookingStore interface {
	UpsertAll(ctx context.Context, bookings []models.Booking) (int, error)
}

// SyncStateStore records sync outcomes.
type SyncStateStore interface {
	UpdateSyncStatus(ctx context.Context, apartmentID int, feedURL, status string, imported int, syncError *string) error
}

// Broadcaster is notified after every sync attempt.
type Broadcaster interface {
	BroadcastSyncCompleted(result models.SyncResult)
	BroadcastSyncError(apartmentID int, err error)
}

// SyncService imports Airbnb feeds into the booking store.
type SyncService struct {
	feeds       config.FeedURLs
	fetcher     *Fetcher
	bookings    BookingStore
	states      SyncStateStore
	broadcaster Broadcaster
}

// NewSyncService creates a new calendar sync service. states may be nil.
func NewSyncService(feeds config.FeedURLs, fetcher *Fetcher, bookings BookingStore, states SyncStateStore) *SyncService {
	return &SyncService{
		feeds:    feeds,
		fetcher:  fetcher,
		bookings: bookings,
		states:   states,
	}
}

// SetBroadcaster attaches a listener for sync outcomes.
func (s *SyncService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ApartmentIDs returns the apartments that have a feed configured.
func (s *SyncService) ApartmentIDs() []int {
	return s.feeds.ApartmentIDs()
}

// Sync imports the feed of one apartment. Every event in the feed is
// upserted by its UID with the exclusive DTEND turned into an inclusive
// last night. Bookings whose UID vanished from the feed are left alone.
//
// Errors are *ConfigurationError (nothing fetched or written),
// *FetchError or *ParseError (nothing written), or a storage error.
func (s *SyncService) Sync(ctx context.Context, apartmentID int) (*models.SyncResult, error) {
	feedURL, ok := s.feeds.URL(apartmentID)
	if !ok {
		return nil, &ConfigurationError{ApartmentID: apartmentID}
	}
	redacted := logging.RedactURL(feedURL)

	log := logging.Logger.WithFields(logrus.Fields{
		"apartment_id": apartmentID,
		"feed":         redacted,
	})
	log.Debug("syncing feed")

	s.recordStatus(ctx, apartmentID, redacted, models.SyncStatusSyncing, 0, nil)

	result, err := s.sync(ctx, apartmentID, feedURL)
	if err != nil {
		msg := err.Error()
		s.recordStatus(ctx, apartmentID, redacted, models.SyncStatusError, 0, &msg)
		log.WithError(err).Warn("feed sync failed")
		if s.broadcaster != nil {
			s.broadcaster.BroadcastSyncError(apartmentID, err)
		}
		return nil, err
	}

	s.recordStatus(ctx, apartmentID, redacted, models.SyncStatusSuccess, result.ImportedCount, nil)
	log.WithField("imported", result.ImportedCount).Info("feed synced")
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSyncCompleted(*result)
	}

	return result, nil
}

func (s *SyncService) sync(ctx context.Context, apartmentID int, feedURL string) (*models.SyncResult, error) {
	body, err := s.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	events, err := Decode(body)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	bookings := make([]models.Booking, 0, len(events))
	for _, ev := range events {
		bookings = append(bookings, models.BookingFromEvent(apartmentID, ev))
	}

	n, err := s.bookings.UpsertAll(ctx, bookings)
	if err != nil {
		return nil, fmt.Errorf("storing bookings: %w", err)
	}

	return &models.SyncResult{
		ApartmentID:   apartmentID,
		ImportedCount: n,
		SyncedAt:      time.Now().UTC(),
	}, nil
}

func (s *SyncService) recordStatus(ctx context.Context, apartmentID int, feedURL, status string, imported int, syncErr *string) {
	if s.states == nil {
		return
	}
	if err := s.states.UpdateSyncStatus(ctx, apartmentID, feedURL, status, imported, syncErr); err != nil {
		logging.Logger.WithError(err).WithField("apartment_id", apartmentID).Warn("failed to record sync status")
	}
}

// SyncAll syncs every configured apartment in ascending id order. A failing
// apartment does not stop the others; the joined error lists every failure.
func (s *SyncService) SyncAll(ctx context.Context) ([]models.SyncResult, error) {
	var (
		results []models.SyncResult
		errs    []error
	)
	for _, id := range s.feeds.ApartmentIDs() {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result, err := s.Sync(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("apartment %d: %w", id, err))
			continue
		}
		results = append(results, *result)
	}
	return results, errors.Join(errs...)
}
