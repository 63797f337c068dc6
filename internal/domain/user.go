package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Goal is the user's fitness objective, one of the inputs the external
// provider requires.
type Goal string

const (
	GoalLoseWeight Goal = "lose_weight"
	GoalMaintain   Goal = "maintain"
	GoalGainMuscle Goal = "gain_muscle"
)

// Profile holds the fields the external plan provider needs to generate a
// plan. A snapshot of it is stored on every generated plan.
type Profile struct {
	Age           int    `bson:"age" json:"age"`
	Gender        string `bson:"gender" json:"gender"`
	HeightCm      int    `bson:"heightCm" json:"heightCm"`
	WeightKg      int    `bson:"weightKg" json:"weightKg"`
	Goal          Goal   `bson:"goal" json:"goal"`
	ActivityLevel string `bson:"activityLevel" json:"activityLevel"`
	DietaryPref   string `bson:"dietaryPref,omitempty" json:"dietaryPref,omitempty"`
}

// ActivePlans is the denormalized pointer set on the User record. Each
// pointer either names the single active plan of that type or is absent.
type ActivePlans struct {
	WorkoutPlanID *primitive.ObjectID `bson:"workoutPlanId,omitempty" json:"workoutPlanId,omitempty"`
	DietPlanID    *primitive.ObjectID `bson:"dietPlanId,omitempty" json:"dietPlanId,omitempty"`
}

// MacroSnapshot is the diet plan's macro targets copied onto the User for
// fast access, with its own validity horizon.
type MacroSnapshot struct {
	MacroTargets `bson:",inline" json:"targets"`
	ValidTill    time.Time `bson:"validTill" json:"validTill"`
}

// User represents an account in the system.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"` // unique
	Profile     Profile            `bson:"profile" json:"profile"`
	Preferences map[string]string  `bson:"preferences,omitempty" json:"preferences,omitempty"`
	ActivePlans ActivePlans        `bson:"activePlans,omitempty" json:"activePlans,omitempty"`
	Macros      *MacroSnapshot     `bson:"macros,omitempty" json:"macros,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ActivePlanID returns the pointer for the given plan type, or nil.
func (u *User) ActivePlanID(t PlanType) *primitive.ObjectID {
	switch t {
	case PlanTypeWorkout:
		return u.ActivePlans.WorkoutPlanID
	case PlanTypeDiet:
		return u.ActivePlans.DietPlanID
	}
	return nil
}

// MissingProfileFields lists the provider-required profile fields that are
// absent. An empty result means the profile satisfies the generation
// precondition.
func MissingProfileFields(p Profile) []string {
	var missing []string
	if p.Age <= 0 {
		missing = append(missing, "age")
	}
	if p.Gender == "" {
		missing = append(missing, "gender")
	}
	if p.HeightCm <= 0 {
		missing = append(missing, "heightCm")
	}
	if p.WeightKg <= 0 {
		missing = append(missing, "weightKg")
	}
	if p.Goal == "" {
		missing = append(missing, "goal")
	}
	if p.ActivityLevel == "" {
		missing = append(missing, "activityLevel")
	}
	return missing
}
