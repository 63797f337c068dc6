package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanType distinguishes the two plan collections sharing one lifecycle.
type PlanType string

const (
	PlanTypeWorkout PlanType = "workout"
	PlanTypeDiet    PlanType = "diet"
)

// PlanSource tags where a plan came from. Provenance only; the lifecycle
// does not branch on it.
type PlanSource string

const (
	SourceExternal PlanSource = "external"
	SourceManual   PlanSource = "manual"
)

// Business rules for plan freshness.
const (
	// RefreshInterval is how long a plan stays out of the background sweep.
	RefreshInterval = 14 * 24 * time.Hour
	// CacheLifetime is how long a plan is served as fresh after generation.
	CacheLifetime = 24 * time.Hour
)

// Plan is a workout or diet plan document. At most one plan per
// (userId, type) may have IsActive=true at any time; superseded plans are
// deactivated, never deleted.
type Plan struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID          string             `bson:"planId" json:"planId"` // provider-assigned, or locally generated
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Type            PlanType           `bson:"type" json:"type"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	Source          PlanSource         `bson:"source" json:"source"`
	LastRefreshed   time.Time          `bson:"lastRefreshed" json:"lastRefreshed"`
	NextRefreshDate time.Time          `bson:"nextRefreshDate" json:"nextRefreshDate"`
	CacheExpiry     time.Time          `bson:"cacheExpiry" json:"cacheExpiry"`

	// Exactly one payload is set, matching Type.
	Workout *WorkoutPayload `bson:"workout,omitempty" json:"workout,omitempty"`
	Diet    *DietPayload    `bson:"diet,omitempty" json:"diet,omitempty"`

	// ProfileSnapshot is the generation input, retained for audit/diffing
	// on refresh.
	ProfileSnapshot Profile `bson:"profileSnapshot" json:"profileSnapshot"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutPayload is the exercise schedule. Opaque to the lifecycle beyond
// storage and serialization.
type WorkoutPayload struct {
	Days []WorkoutDay `bson:"days" json:"days"`
}

type WorkoutDay struct {
	Day       string         `bson:"day" json:"day"` // e.g. "monday"
	Focus     string         `bson:"focus,omitempty" json:"focus,omitempty"`
	Exercises []PlanExercise `bson:"exercises" json:"exercises"`
}

type PlanExercise struct {
	Name        string `bson:"name" json:"name"`
	Sets        int    `bson:"sets" json:"sets"`
	Reps        int    `bson:"reps" json:"reps"`
	RestSeconds int    `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
}

// DietPayload is the meal schedule plus the plan's macro targets.
type DietPayload struct {
	Days   []MealDay    `bson:"days" json:"days"`
	Macros MacroTargets `bson:"macros" json:"macros"`
}

type MealDay struct {
	Day   string `bson:"day" json:"day"`
	Meals []Meal `bson:"meals" json:"meals"`
}

type Meal struct {
	Name     string `bson:"name" json:"name"` // e.g. "breakfast"
	Title    string `bson:"title" json:"title"`
	Calories int    `bson:"calories" json:"calories"`
	ProteinG int    `bson:"proteinG,omitempty" json:"proteinG,omitempty"`
	CarbsG   int    `bson:"carbsG,omitempty" json:"carbsG,omitempty"`
	FatG     int    `bson:"fatG,omitempty" json:"fatG,omitempty"`
}

// MacroTargets is the daily macro budget a diet plan was built around.
// A copy is denormalized onto the User record for fast access.
type MacroTargets struct {
	Calories int `bson:"calories" json:"calories"`
	ProteinG int `bson:"proteinG" json:"proteinG"`
	CarbsG   int `bson:"carbsG" json:"carbsG"`
	FatG     int `bson:"fatG" json:"fatG"`
}

// Stamp sets the freshness window fields relative to the refresh time.
func (p *Plan) Stamp(now time.Time) {
	p.LastRefreshed = now
	p.NextRefreshDate = now.Add(RefreshInterval)
	p.CacheExpiry = now.Add(CacheLifetime)
}

// PlanExpired reports whether a plan is stale for serving purposes.
// An active plan past its cacheExpiry still exists and may be served,
// but a fetch should regenerate rather than reuse it.
func PlanExpired(p *Plan, now time.Time) bool {
	return !now.Before(p.CacheExpiry)
}

// PlanNeedsRefresh reports whether a plan is due for the background sweep.
func PlanNeedsRefresh(p *Plan, now time.Time) bool {
	return !now.Before(p.NextRefreshDate)
}

// PlanReusable is the coordinator's reuse rule: an active plan inside both
// freshness windows is returned as-is instead of regenerated.
func PlanReusable(p *Plan, now time.Time) bool {
	if p == nil || !p.IsActive {
		return false
	}
	return !PlanExpired(p, now) && !PlanNeedsRefresh(p, now)
}
