package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes posting history created before a cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SchedulerService runs the periodic history retention purge.
type SchedulerService struct {
	cron          *cron.Cron
	purger        Purger
	retentionDays int
	entryID       cron.EntryID
	now           func() time.Time
}

func NewScheduler(purger Purger, retentionDays int) *SchedulerService {
	return &SchedulerService{
		cron:          cron.New(cron.WithSeconds()),
		purger:        purger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start schedules the purge with a six-field cron expression (seconds first) and
// starts the cron runner. A non-positive retention disables purging.
func (s *SchedulerService) Start(schedule string) error {
	if s.retentionDays <= 0 {
		log.Println("History retention disabled, scheduler not started")
		return nil
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.PurgeNow(context.Background()); err != nil {
			log.Printf("❌ Scheduled history purge failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	s.entryID = entryID

	s.cron.Start()
	log.Printf("Scheduler service initialized: purging history older than %d days (%s)", s.retentionDays, schedule)
	return nil
}

// PurgeNow deletes attempts older than the retention window.
func (s *SchedulerService) PurgeNow(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	n, err := s.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("🧹 Purged %d posting attempts older than %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

// Next returns when the purge will run next, or the zero time if not scheduled.
func (s *SchedulerService) Next() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("Scheduler service stopped")
}
