package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitlife/plan-service/internal/domain"
	"fitlife/plan-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var user domain.User
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// pointerField maps a plan type to its denormalized reference field.
func pointerField(planType domain.PlanType) (string, error) {
	switch planType {
	case domain.PlanTypeWorkout:
		return "activePlans.workoutPlanId", nil
	case domain.PlanTypeDiet:
		return "activePlans.dietPlanId", nil
	}
	return "", fmt.Errorf("unknown plan type %q", planType)
}

// SetActivePlanRef points the user's active-plan reference at the given plan.
// For diet plans the macro snapshot is denormalized in the same update.
func (r *mongoUserRepository) SetActivePlanRef(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType, planID primitive.ObjectID, macros *domain.MacroSnapshot) error {
	field, err := pointerField(planType)
	if err != nil {
		return err
	}

	setDoc := bson.M{
		field:       planID,
		"updatedAt": time.Now().UTC(),
	}
	if planType == domain.PlanTypeDiet && macros != nil {
		setDoc["macros"] = macros
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": setDoc})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearActivePlanRef removes the active-plan reference, and the macro
// snapshot for diet plans.
func (r *mongoUserRepository) ClearActivePlanRef(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) error {
	field, err := pointerField(planType)
	if err != nil {
		return err
	}

	unsetDoc := bson.M{field: ""}
	if planType == domain.PlanTypeDiet {
		unsetDoc["macros"] = ""
	}
	update := bson.M{
		"$unset": unsetDoc,
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
// Call this once during application startup.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "activePlans.workoutPlanId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "activePlans.dietPlanId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
