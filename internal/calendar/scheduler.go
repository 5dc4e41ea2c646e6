package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/holiday-engine/backend/internal/log"
)

// YearFocuser is refocused when the civil year changes.
type YearFocuser interface {
	FocusYear() int
	SetFocusYear(ctx context.Context, year int) error
}

// Scheduler runs the focus-year rollover check on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	target  YearFocuser
	clock   func() time.Time
	loc     *time.Location
	spec    string
	entryID cron.EntryID

	mu       sync.Mutex
	lastRun  time.Time
	seenYear int
}

// NewScheduler creates a rollover scheduler. spec is a robfig/cron spec with
// an optional seconds field ("@daily", "0 5 0 * * *"). today is derived from
// clock in loc.
func NewScheduler(target YearFocuser, spec string, clock func() time.Time, loc *time.Location) *Scheduler {
	if spec == "" {
		spec = "@daily"
	}
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		target: target,
		clock:  clock,
		loc:    loc,
		spec:   spec,
	}
}

// Start registers the rollover job and starts the cron loop. It runs one
// check immediately so a process started on New Year's Day focuses right.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.CheckRollover(ctx); err != nil {
			log.Error("focus year rollover failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling rollover %q: %w", s.spec, err)
	}
	s.entryID = id

	if _, err := s.CheckRollover(ctx); err != nil {
		log.Error("focus year rollover failed", err)
	}

	s.cron.Start()
	log.Info("rollover scheduler started", "spec", s.spec)
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("rollover scheduler stopped")
}

// CheckRollover refocuses the target when the civil year changed since the
// previous check. The first check compares against the target's focus year.
// A focus chosen explicitly within the same civil year is left alone. It
// reports whether a refocus happened.
func (s *Scheduler) CheckRollover(ctx context.Context) (bool, error) {
	now := s.clock()
	year := now.In(s.loc).Year()

	s.mu.Lock()
	s.lastRun = now
	seen := s.seenYear
	s.mu.Unlock()
	if seen == 0 {
		seen = s.target.FocusYear()
	}
	if year == seen {
		s.markSeen(year)
		return false, nil
	}

	current := s.target.FocusYear()
	log.Info("focus year rollover", "from", current, "to", year)
	if err := s.target.SetFocusYear(ctx, year); err != nil {
		return false, fmt.Errorf("refocusing on %d: %w", year, err)
	}
	s.markSeen(year)
	return true, nil
}

func (s *Scheduler) markSeen(year int) {
	s.mu.Lock()
	s.seenYear = year
	s.mu.Unlock()
}

// NextRun returns the next scheduled check, or nil before Start.
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

// LastRun returns when the last check ran.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
