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

const subscriptionCollectionName = "subscriptions"

// mongoSubscriptionRepository implements repository.SubscriptionRepository
// using MongoDB. The unique sparse index on stripeSubscriptionId is what
// makes webhook redeliveries safe: a concurrent duplicate insert fails with
// ErrDuplicate instead of creating a second record.
type mongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new instance of mongoSubscriptionRepository.
func NewMongoSubscriptionRepository(db *mongo.Database) repository.SubscriptionRepository {
	return &mongoSubscriptionRepository{
		collection: db.Collection(subscriptionCollectionName),
	}
}

// Create inserts a new subscription record.
func (r *mongoSubscriptionRepository) Create(ctx context.Context, record *domain.SubscriptionRecord) (primitive.ObjectID, error) {
	if record.UserID == primitive.NilObjectID || record.PlanType == "" {
		return primitive.NilObjectID, errors.New("subscription user ID and plan type are required")
	}

	record.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByStripeSubscriptionID retrieves the record keyed by a provider
// subscription id (or checkout session id for one-time purchases).
func (r *mongoSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*domain.SubscriptionRecord, error) {
	return r.findOne(ctx, bson.M{"stripeSubscriptionId": subscriptionID}, nil)
}

// GetLatestByStripeCustomerID retrieves the most recently created record for
// a provider customer.
func (r *mongoSubscriptionRepository) GetLatestByStripeCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, bson.M{"stripeCustomerId": customerID}, opts)
}

// GetLatestByUserID retrieves the user's most recent subscription record.
// "Current" subscription state is inferred by recency.
func (r *mongoSubscriptionRepository) GetLatestByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.SubscriptionRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, bson.M{"userId": userID}, opts)
}

func (r *mongoSubscriptionRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.SubscriptionRecord, error) {
	var record domain.SubscriptionRecord
	var err error
	if opts != nil {
		err = r.collection.FindOne(ctx, filter, opts).Decode(&record)
	} else {
		err = r.collection.FindOne(ctx, filter).Decode(&record)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Update replaces the mutable fields of an existing record.
func (r *mongoSubscriptionRepository) Update(ctx context.Context, record *domain.SubscriptionRecord) error {
	filter := bson.M{"_id": record.ID}
	update := bson.M{
		"$set": bson.M{
			"planType":         record.PlanType,
			"status":           record.Status,
			"stripeCustomerId": record.StripeCustomerID,
			"startDate":        record.StartDate,
			"endDate":          record.EndDate,
			"updatedAt":        time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CancelByStripeSubscriptionID cancels every record matching the
// subscription id. There should be at most one, but updateMany keeps a
// historical duplicate from surviving cancellation.
func (r *mongoSubscriptionRepository) CancelByStripeSubscriptionID(ctx context.Context, subscriptionID string) (int64, error) {
	filter := bson.M{"stripeSubscriptionId": subscriptionID}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.SubscriptionCancelled,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// EnsureSubscriptionIndexes creates necessary indexes for the subscriptions collection.
func EnsureSubscriptionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stripeSubscriptionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "stripeCustomerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
