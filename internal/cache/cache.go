package cache

import (
	"context"
	"errors"

	"fitlife/plan-service/internal/domain"
)

// ErrMiss is returned when no usable entry exists for the key. An expired
// envelope counts as a miss; it is evicted on the way out.
var ErrMiss = errors.New("cache miss")

// PlanCache is the look-aside cache in front of the plan store. It is
// advisory only: callers must treat every error as a miss and fall back to
// the store, never fail the operation.
type PlanCache interface {
	// GetPlan returns the cached active plan of the given type, or ErrMiss.
	GetPlan(ctx context.Context, userID string, planType domain.PlanType) (*domain.Plan, error)
	// SetPlan stores the plan under the user's key with the given TTL in
	// seconds. The TTL is config-supplied and independent of the plan's
	// cacheExpiry.
	SetPlan(ctx context.Context, userID string, plan *domain.Plan, ttlSeconds int) error
	// DeletePlan evicts the entry. Missing keys are not an error.
	DeletePlan(ctx context.Context, userID string, planType domain.PlanType) error
}
