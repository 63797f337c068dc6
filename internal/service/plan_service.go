package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fitlife/plan-service/internal/cache"
	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/domain"
	"fitlife/plan-service/internal/logging"
	"fitlife/plan-service/internal/provider"
	"fitlife/plan-service/internal/repository"
	"fitlife/plan-service/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrProfileIncomplete = errors.New("user profile is missing required fields")
	ErrNoActivePlan      = errors.New("no active plan")
	ErrPlanNotFound      = errors.New("active plan not found for user")
	ErrGeneration        = errors.New("plan generation failed")
)

// --- Service Interface ---

// PlanService is the plan cache coordinator. It owns every write to the
// plan collection and to the user's denormalized active-plan pointer; both
// mutate only inside its transaction.
type PlanService interface {
	// CreateOrRefresh returns the user's active plan, reusing an existing
	// fresh one unless forceRefresh is set, otherwise generating a new plan
	// and atomically swapping it in.
	CreateOrRefresh(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType, profile domain.Profile, preferences map[string]string, forceRefresh bool) (*domain.Plan, error)
	// GetUserActivePlan reads the active plan, cache first, falling back to
	// the store. ErrNoActivePlan when none exists.
	GetUserActivePlan(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) (*domain.Plan, error)
	// Deactivate retires one plan, clearing the user's pointer with it.
	Deactivate(ctx context.Context, userID, planID primitive.ObjectID) error
}

// --- Service Implementation ---

type planService struct {
	planRepo  repository.PlanRepository
	userRepo  repository.UserRepository
	tx        repository.TxRunner
	planCache cache.PlanCache
	provider  provider.PlanProvider
	archiver  storage.PlanArchiver
	ttl       config.TTLConfig
	logger    *logging.Logger
	now       func() time.Time

	// Per-(user,type) locks serialize decide-then-write so two concurrent
	// CreateOrRefresh calls for one user cannot both insert an active plan.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	planRepo repository.PlanRepository,
	userRepo repository.UserRepository,
	tx repository.TxRunner,
	planCache cache.PlanCache,
	planProvider provider.PlanProvider,
	archiver storage.PlanArchiver,
	ttl config.TTLConfig,
	logger *logging.Logger,
) PlanService {
	return &planService{
		planRepo:  planRepo,
		userRepo:  userRepo,
		tx:        tx,
		planCache: planCache,
		provider:  planProvider,
		archiver:  archiver,
		ttl:       ttl,
		logger:    logger.WithComponent("plan-service"),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex guarding one (user, plan type) pair.
func (s *planService) userLock(userID primitive.ObjectID, planType domain.PlanType) *sync.Mutex {
	key := userID.Hex() + "/" + string(planType)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *planService) cacheTTL(planType domain.PlanType) int {
	if planType == domain.PlanTypeDiet {
		return s.ttl.DietPlans
	}
	return s.ttl.WorkoutPlans
}

// CreateOrRefresh implements the reuse-vs-regenerate decision and the
// atomic active-plan swap.
func (s *planService) CreateOrRefresh(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType, profile domain.Profile, preferences map[string]string, forceRefresh bool) (*domain.Plan, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}

	// Precondition: the provider cannot generate from an incomplete
	// profile. Fail before touching the provider, never retried here.
	if missing := domain.MissingProfileFields(profile); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileIncomplete, strings.Join(missing, ", "))
	}

	lock := s.userLock(userID, planType)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()

	// Look for an existing active plan, cache first.
	existing := s.lookupActive(ctx, userID, planType)
	if !forceRefresh && domain.PlanReusable(existing, now) {
		s.logger.Debug().
			Str("userId", userID.Hex()).
			Str("planType", string(planType)).
			Str("planId", existing.PlanID).
			Msg("Reusing existing plan")
		return existing, nil
	}

	// Regenerate. A provider failure leaves all state untouched.
	result, err := s.provider.Generate(ctx, provider.GenerationRequest{
		UserID:      userID.Hex(),
		PlanType:    planType,
		Profile:     profile,
		Preferences: preferences,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	plan := &domain.Plan{
		PlanID:          result.PlanID,
		UserID:          userID,
		Type:            planType,
		IsActive:        true,
		Source:          domain.SourceExternal,
		Workout:         result.Workout,
		Diet:            result.Diet,
		ProfileSnapshot: profile,
	}
	if plan.PlanID == "" {
		plan.PlanID = uuid.NewString()
	}
	plan.Stamp(now)

	var macros *domain.MacroSnapshot
	if planType == domain.PlanTypeDiet && result.Diet != nil {
		macros = &domain.MacroSnapshot{
			MacroTargets: result.Diet.Macros,
			ValidTill:    plan.CacheExpiry,
		}
	}

	// Deactivate, insert, and repoint in one atomic unit: the pointer and
	// the isActive flags never disagree.
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.planRepo.DeactivateActive(txCtx, userID, planType); err != nil {
			return fmt.Errorf("deactivating previous plans: %w", err)
		}
		id, err := s.planRepo.Insert(txCtx, plan)
		if err != nil {
			return fmt.Errorf("inserting plan: %w", err)
		}
		plan.ID = id
		if err := s.userRepo.SetActivePlanRef(txCtx, userID, planType, id, macros); err != nil {
			return fmt.Errorf("updating active plan reference: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects are best-effort: the store already holds the
	// truth.
	s.writeCache(ctx, userID, plan)
	s.archiveSuperseded(ctx, existing)

	s.logger.Info().
		Str("userId", userID.Hex()).
		Str("planType", string(planType)).
		Str("planId", plan.PlanID).
		Bool("forced", forceRefresh).
		Msg("Plan generated and activated")

	return plan, nil
}

// lookupActive returns the user's active plan or nil. Cache errors count
// as misses.
func (s *planService) lookupActive(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) *domain.Plan {
	cached, err := s.planCache.GetPlan(ctx, userID.Hex(), planType)
	if err == nil {
		return cached
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("userId", userID.Hex()).Msg("Cache read failed, falling back to store")
	}

	plan, err := s.planRepo.GetActiveByUser(ctx, userID, planType)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).Str("userId", userID.Hex()).Msg("Active plan lookup failed")
		}
		return nil
	}
	return plan
}

// writeCache stores the plan in the look-aside cache. Failures are logged
// and swallowed.
func (s *planService) writeCache(ctx context.Context, userID primitive.ObjectID, plan *domain.Plan) {
	if err := s.planCache.SetPlan(ctx, userID.Hex(), plan, s.cacheTTL(plan.Type)); err != nil {
		s.logger.Warn().Err(err).
			Str("userId", userID.Hex()).
			Str("planType", string(plan.Type)).
			Msg("Cache write failed")
	}
}

// archiveSuperseded snapshots the plan a refresh just replaced. Best-effort.
func (s *planService) archiveSuperseded(ctx context.Context, old *domain.Plan) {
	if old == nil || s.archiver == nil {
		return
	}
	if err := s.archiver.ArchivePlan(ctx, old); err != nil {
		s.logger.Warn().Err(err).
			Str("planId", old.PlanID).
			Msg("Failed to archive superseded plan")
	}
}

// GetUserActivePlan is the read path: cache hit, or user pointer -> plan
// document with cache repopulation.
func (s *planService) GetUserActivePlan(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) (*domain.Plan, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}

	cached, err := s.planCache.GetPlan(ctx, userID.Hex(), planType)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Str("userId", userID.Hex()).Msg("Cache read failed, falling back to store")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActivePlan
		}
		return nil, err
	}

	planID := user.ActivePlanID(planType)
	if planID == nil {
		return nil, ErrNoActivePlan
	}

	plan, err := s.planRepo.GetByID(ctx, *planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActivePlan
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrNoActivePlan
	}

	s.writeCache(ctx, userID, plan)
	return plan, nil
}

// Deactivate retires the given plan and clears the user's pointer in one
// atomic unit.
func (s *planService) Deactivate(ctx context.Context, userID, planID primitive.ObjectID) error {
	if userID == primitive.NilObjectID || planID == primitive.NilObjectID {
		return errors.New("user ID and plan ID are required")
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	if plan.UserID != userID || !plan.IsActive {
		return ErrPlanNotFound
	}

	lock := s.userLock(userID, plan.Type)
	lock.Lock()
	defer lock.Unlock()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.planRepo.SetInactive(txCtx, userID, planID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPlanNotFound
			}
			return err
		}
		return s.userRepo.ClearActivePlanRef(txCtx, userID, plan.Type)
	})
	if err != nil {
		return err
	}

	if err := s.planCache.DeletePlan(ctx, userID.Hex(), plan.Type); err != nil {
		s.logger.Warn().Err(err).Str("userId", userID.Hex()).Msg("Cache eviction failed")
	}

	s.logger.Info().
		Str("userId", userID.Hex()).
		Str("planId", plan.PlanID).
		Str("planType", string(plan.Type)).
		Msg("Plan deactivated")

	return nil
}
