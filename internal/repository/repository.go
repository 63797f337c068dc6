package repository

import (
	"context"
	"time"

	"fitlife/plan-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxRunner executes a function inside one atomic transaction. The context
// passed to fn carries the transaction; repository calls made with it are
// committed or aborted together.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PlanRepository defines the interface for interacting with plan documents.
type PlanRepository interface {
	Insert(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error)
	// GetActiveByUser returns the single active plan of the given type,
	// or ErrNotFound.
	GetActiveByUser(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) (*domain.Plan, error)
	// DeactivateActive flips isActive off on every active plan of the given
	// type for the user. Zero matches is not an error.
	DeactivateActive(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) error
	// SetInactive deactivates one specific plan, verifying ownership and
	// that it is currently active. ErrNotFound otherwise.
	SetInactive(ctx context.Context, userID, planID primitive.ObjectID) error
	// FindDueForRefresh returns active plans whose nextRefreshDate has
	// passed, oldest first.
	FindDueForRefresh(ctx context.Context, now time.Time) ([]domain.Plan, error)
	// RescheduleRefresh pushes a plan's nextRefreshDate without touching
	// anything else. Used as failure backoff by the sweep.
	RescheduleRefresh(ctx context.Context, id primitive.ObjectID, next time.Time) error
	CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// SetActivePlanRef points the user's denormalized active-plan reference
	// at the given plan. For diet plans, macros carries the snapshot to
	// denormalize alongside; nil for workout plans.
	SetActivePlanRef(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType, planID primitive.ObjectID, macros *domain.MacroSnapshot) error
	// ClearActivePlanRef removes the reference (and the macro snapshot for
	// diet plans).
	ClearActivePlanRef(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) error
}
