package mongo

import (
	"context"
	"errors"
	"time"

	"fitlife/plan-service/internal/domain"
	"fitlife/plan-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planCollectionName = "plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new Plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// Insert stores a new plan document.
func (r *mongoPlanRepository) Insert(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	if plan.UserID == primitive.NilObjectID || plan.Type == "" || plan.PlanID == "" {
		return primitive.NilObjectID, errors.New("plan requires userId, type, and planId")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan by its document ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	var plan domain.Plan
	filter := bson.M{"_id": id}
	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetActiveByUser retrieves the active plan of the given type for a user.
func (r *mongoPlanRepository) GetActiveByUser(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) (*domain.Plan, error) {
	var plan domain.Plan
	filter := bson.M{
		"userId":   userID,
		"type":     planType,
		"isActive": true,
	}
	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// DeactivateActive marks every active plan of the given type for the user
// as inactive. Matching zero documents is fine; the caller may be creating
// the user's first plan.
func (r *mongoPlanRepository) DeactivateActive(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) error {
	filter := bson.M{
		"userId":   userID,
		"type":     planType,
		"isActive": true,
	}
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	_, err := r.collection.UpdateMany(ctx, filter, update)
	return err
}

// SetInactive deactivates one plan, enforcing ownership and that it is
// currently active.
func (r *mongoPlanRepository) SetInactive(ctx context.Context, userID, planID primitive.ObjectID) error {
	filter := bson.M{
		"_id":      planID,
		"userId":   userID,
		"isActive": true,
	}
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Either the plan doesn't exist, belongs to someone else, or is
		// already inactive.
		return repository.ErrNotFound
	}
	return nil
}

// FindDueForRefresh returns all active plans whose nextRefreshDate has
// passed, oldest due first so the longest-stale plans go first.
func (r *mongoPlanRepository) FindDueForRefresh(ctx context.Context, now time.Time) ([]domain.Plan, error) {
	var plans []domain.Plan
	filter := bson.M{
		"isActive":        true,
		"nextRefreshDate": bson.M{"$lte": now},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "nextRefreshDate", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	// Empty slice when nothing is due (not an error)
	return plans, nil
}

// RescheduleRefresh pushes a plan's nextRefreshDate to the given time.
func (r *mongoPlanRepository) RescheduleRefresh(ctx context.Context, id primitive.ObjectID, next time.Time) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"nextRefreshDate": next, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountByUser counts all plans (active or not) owned by a user.
func (r *mongoPlanRepository) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": userID})
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Main read path: the user's active plan of one type.
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "isActive", Value: 1}},
			Options: options.Index(),
		},
		{
			// Sweep query: active plans due for refresh.
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "nextRefreshDate", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
