package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cal-sync/backend/internal/logging"
	"github.com/cal-sync/backend/internal/storage/models"
)

// Syncer is implemented by SyncService.
type Syncer interface {
	SyncAll(ctx context.Context) ([]models.SyncResult, error)
	Sync(ctx context.Context, apartmentID int) (*models.SyncResult, error)
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs periodic feed syncs and detached refreshes.
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	spec    string
	entryID cron.EntryID

	// Apartments with a refresh in flight
	inFlight map[int]bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. An empty spec disables the periodic
// job; Notify works either way.
func NewScheduler(syncer Syncer, spec string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithParser(cronParser)),
		syncer:   syncer,
		spec:     spec,
		inFlight: make(map[int]bool),
	}
}

// ValidateSchedule reports whether spec is an accepted cron expression.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return nil
}

// Start registers the periodic sync job and starts cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		logging.Logger.Info("periodic feed sync disabled")
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, func() {
		s.syncAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling feed sync: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	logging.Logger.WithField("schedule", s.spec).Info("feed sync scheduler started")
	return nil
}

// Stop stops cron and waits for running jobs and refreshes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	logging.Logger.Info("feed sync scheduler stopped")
}

func (s *Scheduler) syncAll(ctx context.Context) {
	results, err := s.syncer.SyncAll(ctx)
	if err != nil {
		logging.Logger.WithError(err).Warn("scheduled feed sync finished with errors")
	}
	logging.Logger.WithField("synced", len(results)).Debug("scheduled feed sync done")
}

// Notify starts a background sync of one apartment and returns at once.
// The outcome is only logged. A notification for an apartment whose
// refresh is still running is dropped.
func (s *Scheduler) Notify(apartmentID int) {
	s.mu.Lock()
	if s.inFlight[apartmentID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[apartmentID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, apartmentID)
			s.mu.Unlock()
			s.wg.Done()
		}()

		if _, err := s.syncer.Sync(context.Background(), apartmentID); err != nil {
			logging.Logger.WithError(err).WithField("apartment_id", apartmentID).Debug("background refresh failed")
		}
	}()
}

// Wait blocks until every detached refresh has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// NextRun returns the next periodic sync time, or nil when none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	if s.entryID == 0 {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	return &entry.Next
}
