package provider

import (
	"context"
	"errors"

	"fitlife/plan-service/internal/domain"
)

// Error constants for the provider layer.
var (
	ErrGenerationFailed = errors.New("plan generation failed")
	ErrTimeout          = errors.New("plan generation timed out")
)

// GenerationRequest is the input the external generator needs.
type GenerationRequest struct {
	UserID      string            `json:"userId"`
	PlanType    domain.PlanType   `json:"planType"`
	Profile     domain.Profile    `json:"profile"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// GenerationResult is the provider's payload for one plan. Exactly one of
// Workout/Diet is set, matching the requested type.
type GenerationResult struct {
	PlanID  string                 `json:"planId,omitempty"` // may be empty; caller assigns one then
	Workout *domain.WorkoutPayload `json:"workout,omitempty"`
	Diet    *domain.DietPayload    `json:"diet,omitempty"`
}

// PlanProvider generates a fresh plan from a user profile. Implementations
// must bound the call with a timeout; the coordinator treats non-response
// as failure and does not retry within one call. Calls must be safe to
// repeat for the same user on a later sweep.
type PlanProvider interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}
