package mongo

import (
	"context"
	"errors"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const activityCollectionName = "activity_events"

// mongoActivityRepository implements repository.ActivityRepository using
// MongoDB. The collection is append-only; there are no update paths.
type mongoActivityRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityRepository creates a new instance of mongoActivityRepository.
func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		collection: db.Collection(activityCollectionName),
	}
}

// Create appends one activity event to the customer's log.
func (r *mongoActivityRepository) Create(ctx context.Context, event *domain.ActivityEvent) (primitive.ObjectID, error) {
	if event.ClientID == primitive.NilObjectID || event.ActivityType == "" {
		return primitive.NilObjectID, errors.New("activity client ID and type are required")
	}

	event.ID = primitive.NewObjectID()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetRecentByClientID returns up to limit events for the customer, newest
// first. Newest-first ordering is what the status derivation expects.
func (r *mongoActivityRepository) GetRecentByClientID(ctx context.Context, clientID primitive.ObjectID, limit int64) ([]domain.ActivityEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	return r.find(ctx, bson.M{"clientId": clientID}, opts)
}

// GetByClientIDSince returns the customer's events from since onward,
// newest first.
func (r *mongoActivityRepository) GetByClientIDSince(ctx context.Context, clientID primitive.ObjectID, since time.Time) ([]domain.ActivityEvent, error) {
	filter := bson.M{
		"clientId":  clientID,
		"createdAt": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoActivityRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.ActivityEvent, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []domain.ActivityEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EnsureActivityIndexes creates necessary indexes for the activity_events collection.
func EnsureActivityIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "activityType", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
