package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitlife/plan-service/internal/logging"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled job
type Job interface {
	// Execute runs the job
	Execute(ctx context.Context) error

	// Name returns the job name
	Name() string
}

// Scheduler manages scheduled jobs with cron expressions
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	logger  *logging.Logger
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		logger:  logger.WithComponent("scheduler"),
	}
}

// AddJob adds a job with a cron expression
func (s *Scheduler) AddJob(cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	id, err := s.cron.AddFunc(cronExpr, func() {
		s.executeJob(job)
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.entries[job.Name()] = id

	s.logger.Info().
		Str("job", job.Name()).
		Str("schedule", cronExpr).
		Msg("Job scheduled")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.RLock()
	jobCount := len(s.entries)
	s.mu.RUnlock()

	s.logger.Info().
		Int("jobs", jobCount).
		Msg("Starting scheduler")

	s.cron.Start()
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// NextRun returns the next scheduled run time for the named job. Zero time
// when the job is unknown or the scheduler has not started.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	id, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// executeJob runs a job with logging and error handling
func (s *Scheduler) executeJob(job Job) {
	s.logger.Info().
		Str("job", job.Name()).
		Msg("Executing scheduled job")

	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	err := job.Execute(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Scheduled job failed")
	} else {
		s.logger.Info().
			Str("job", job.Name()).
			Dur("duration", duration).
			Msg("Scheduled job completed")
	}
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.entries))
	for name := range s.entries {
		jobs = append(jobs, name)
	}
	return jobs
}
