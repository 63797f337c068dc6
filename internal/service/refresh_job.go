package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/domain"
	"fitlife/plan-service/internal/logging"
	"fitlife/plan-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrJobAlreadyRunning is returned when a sweep trigger arrives while a run
// is in progress. Overlapping triggers are dropped, not queued.
var ErrJobAlreadyRunning = errors.New("refresh job already running")

const refreshJobName = "plan-refresh-sweep"

// RefreshJobStats is the record of one sweep run.
type RefreshJobStats struct {
	PlansChecked   int           `json:"plansChecked"`
	PlansRefreshed int           `json:"plansRefreshed"`
	PlansSkipped   int           `json:"plansSkipped"`
	Errors         int           `json:"errors"`
	StartTime      time.Time     `json:"startTime"`
	EndTime        time.Time     `json:"endTime"`
	Duration       time.Duration `json:"duration"`
}

// NextRunInfo describes when the sweep fires next.
type NextRunInfo struct {
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"nextRun"`
	Running  bool      `json:"running"`
}

// RefreshJob is the background sweep that regenerates due plans. One run
// at a time process-wide; plans are processed serially with a fixed pacing
// interval so the external provider is never burst.
type RefreshJob struct {
	plans   repository.PlanRepository
	users   repository.UserRepository
	planSvc PlanService
	cfg     config.RefreshConfig
	logger  *logging.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration)
	running atomic.Bool
	statsMu sync.RWMutex
	last    RefreshJobStats
	hasRun  bool
	nextRun func() time.Time
}

// NewRefreshJob creates the sweep job.
func NewRefreshJob(
	plans repository.PlanRepository,
	users repository.UserRepository,
	planSvc PlanService,
	cfg config.RefreshConfig,
	logger *logging.Logger,
) *RefreshJob {
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = 7 * 24 * time.Hour
	}
	return &RefreshJob{
		plans:   plans,
		users:   users,
		planSvc: planSvc,
		cfg:     cfg,
		logger:  logger.WithComponent("refresh-job"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Name implements scheduler.Job.
func (j *RefreshJob) Name() string { return refreshJobName }

// Execute implements scheduler.Job. A tick that lands while the previous
// run is still going is skipped quietly.
func (j *RefreshJob) Execute(ctx context.Context) error {
	_, err := j.ExecuteRefreshJob(ctx)
	if errors.Is(err, ErrJobAlreadyRunning) {
		j.logger.Warn().Msg("Previous sweep still running, skipping this tick")
		return nil
	}
	return err
}

// SetNextRunFunc wires the scheduler's next-fire lookup into GetNextRunInfo.
func (j *RefreshJob) SetNextRunFunc(fn func() time.Time) {
	j.nextRun = fn
}

// ExecuteRefreshJob runs one sweep: find due plans, refresh each in turn,
// record the run statistics.
func (j *RefreshJob) ExecuteRefreshJob(ctx context.Context) (*RefreshJobStats, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrJobAlreadyRunning
	}
	defer j.running.Store(false)

	stats := RefreshJobStats{StartTime: j.now().UTC()}
	defer func() {
		stats.EndTime = j.now().UTC()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
		j.statsMu.Lock()
		j.last = stats
		j.hasRun = true
		j.statsMu.Unlock()
		j.logger.Info().
			Int("checked", stats.PlansChecked).
			Int("refreshed", stats.PlansRefreshed).
			Int("skipped", stats.PlansSkipped).
			Int("errors", stats.Errors).
			Dur("duration", stats.Duration).
			Msg("Sweep finished")
	}()

	due, err := j.plans.FindDueForRefresh(ctx, j.now().UTC())
	if err != nil {
		return &stats, fmt.Errorf("querying due plans: %w", err)
	}
	stats.PlansChecked = len(due)

	j.logger.Info().Int("due", len(due)).Msg("Sweep started")

	for i, plan := range due {
		if ctx.Err() != nil {
			j.logger.Warn().Err(ctx.Err()).Msg("Sweep interrupted")
			break
		}

		switch j.refreshOne(ctx, &plan) {
		case refreshOutcomeOK:
			stats.PlansRefreshed++
		case refreshOutcomeSkipped:
			stats.PlansSkipped++
		case refreshOutcomeError:
			stats.Errors++
		}

		// Pace the provider between plans, not after the last one.
		if i < len(due)-1 {
			j.sleep(ctx, j.cfg.PacingInterval)
		}
	}

	return &stats, nil
}

type refreshOutcome int

const (
	refreshOutcomeOK refreshOutcome = iota
	refreshOutcomeSkipped
	refreshOutcomeError
)

// refreshOne regenerates a single due plan. Incomplete profiles are a skip,
// not an error: a user who can never succeed should not be hammered.
// Provider or transaction failures leave the existing plan untouched and
// push the plan's nextRefreshDate out so a later sweep retries it.
func (j *RefreshJob) refreshOne(ctx context.Context, plan *domain.Plan) refreshOutcome {
	log := j.logger.WithUser(plan.UserID.Hex())

	user, err := j.users.GetByID(ctx, plan.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Orphaned plan; regeneration can never succeed.
			log.Warn().Str("planId", plan.PlanID).Msg("Skipping plan, owner no longer exists")
			return refreshOutcomeSkipped
		}
		log.Error().Err(err).Str("planId", plan.PlanID).Msg("Loading plan owner failed")
		j.backoff(ctx, plan)
		return refreshOutcomeError
	}

	if missing := domain.MissingProfileFields(user.Profile); len(missing) > 0 {
		log.Info().
			Str("planId", plan.PlanID).
			Str("missingFields", strings.Join(missing, ",")).
			Msg("Skipping plan, profile incomplete")
		return refreshOutcomeSkipped
	}

	_, err = j.planSvc.CreateOrRefresh(ctx, plan.UserID, plan.Type, plan.ProfileSnapshot, user.Preferences, true)
	if err != nil {
		log.Error().Err(err).
			Str("planId", plan.PlanID).
			Str("planType", string(plan.Type)).
			Msg("Plan refresh failed, backing off")
		j.backoff(ctx, plan)
		return refreshOutcomeError
	}

	log.Info().
		Str("planId", plan.PlanID).
		Str("planType", string(plan.Type)).
		Msg("Plan refreshed")
	return refreshOutcomeOK
}

// backoff reschedules a failed plan for a later sweep instead of retrying
// it the same day.
func (j *RefreshJob) backoff(ctx context.Context, plan *domain.Plan) {
	next := j.now().UTC().Add(j.cfg.FailureBackoff)
	if err := j.plans.RescheduleRefresh(ctx, plan.ID, next); err != nil {
		j.logger.Error().Err(err).
			Str("planId", plan.PlanID).
			Msg("Failed to reschedule plan after refresh failure")
	}
}

// TriggerManualRefresh runs a sweep on demand with the same logic as the
// scheduled one. Returns ErrJobAlreadyRunning if one is in flight.
func (j *RefreshJob) TriggerManualRefresh(ctx context.Context) (*RefreshJobStats, error) {
	return j.ExecuteRefreshJob(ctx)
}

// RefreshPlansForGoalChange forces an immediate refresh of the user's
// active plans outside the sweep cadence, using the user's current profile
// rather than the stale snapshot.
func (j *RefreshJob) RefreshPlansForGoalChange(ctx context.Context, userID primitive.ObjectID) error {
	user, err := j.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if missing := domain.MissingProfileFields(user.Profile); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrProfileIncomplete, strings.Join(missing, ", "))
	}

	var errs []string
	for _, planType := range []domain.PlanType{domain.PlanTypeWorkout, domain.PlanTypeDiet} {
		if user.ActivePlanID(planType) == nil {
			continue
		}
		if _, err := j.planSvc.CreateOrRefresh(ctx, userID, planType, user.Profile, user.Preferences, true); err != nil {
			j.logger.Error().Err(err).
				Str("userId", userID.Hex()).
				Str("planType", string(planType)).
				Msg("Goal-change refresh failed")
			errs = append(errs, fmt.Sprintf("%s: %v", planType, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("goal-change refresh: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetJobStats returns the last completed run's statistics, and whether a
// run has completed at all.
func (j *RefreshJob) GetJobStats() (RefreshJobStats, bool) {
	j.statsMu.RLock()
	defer j.statsMu.RUnlock()
	return j.last, j.hasRun
}

// IsJobRunning reports whether a sweep is in flight.
func (j *RefreshJob) IsJobRunning() bool {
	return j.running.Load()
}

// GetNextRunInfo reports the configured cadence and the next fire time.
func (j *RefreshJob) GetNextRunInfo() NextRunInfo {
	info := NextRunInfo{
		Schedule: j.cfg.Schedule,
		Running:  j.IsJobRunning(),
	}
	if j.nextRun != nil {
		info.NextRun = j.nextRun()
	}
	return info
}
