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

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
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

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByHexID parses a hex id (e.g. from billing metadata) and fetches the
// user. Malformed ids are indistinguishable from missing users on purpose:
// the caller treats both the same way.
func (r *mongoUserRepository) GetByHexID(ctx context.Context, hexID string) (*domain.User, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// GetByStripeCustomerID retrieves the user carrying a given Stripe customer id.
func (r *mongoUserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"stripeCustomerId": customerID})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// AddClientIDToCoach adds a customer's ID to a coach's ClientIDs array.
func (r *mongoUserRepository) AddClientIDToCoach(ctx context.Context, coachID, clientID primitive.ObjectID) error {
	filter := bson.M{"_id": coachID, "role": domain.RoleCoach}
	update := bson.M{
		"$addToSet": bson.M{"clientIds": clientID}, // $addToSet prevents duplicates
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.updateOne(ctx, filter, update)
}

// GetClientsByCoachID retrieves all customer users managed by a coach.
func (r *mongoUserRepository) GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	coach, err := r.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("coach not found")
		}
		return nil, err
	}

	if !coach.IsCoach() {
		return nil, errors.New("user is not a coach")
	}

	if len(coach.ClientIDs) == 0 {
		return []domain.User{}, nil
	}

	var clients []domain.User
	filter := bson.M{"_id": bson.M{"$in": coach.ClientIDs}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// SetCoachForClient sets the CoachID field for a specific customer.
func (r *mongoUserRepository) SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error {
	filter := bson.M{"_id": clientID, "role": domain.RoleCustomer}
	update := bson.M{
		"$set": bson.M{
			"coachId":   coachID,
			"updatedAt": time.Now().UTC(),
		},
	}
	return r.updateOne(ctx, filter, update)
}

// SetPlanType updates the commercial plan stored on the customer's profile.
func (r *mongoUserRepository) SetPlanType(ctx context.Context, userID primitive.ObjectID, plan domain.PlanType) error {
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$set": bson.M{
			"planType":  plan,
			"updatedAt": time.Now().UTC(),
		},
	}
	return r.updateOne(ctx, filter, update)
}

// SetStripeCustomerID records the billing customer id on the profile so
// webhook events can be resolved back to the user.
func (r *mongoUserRepository) SetStripeCustomerID(ctx context.Context, userID primitive.ObjectID, customerID string) error {
	filter := bson.M{"_id": userID}
	update := bson.M{
		"$set": bson.M{
			"stripeCustomerId": customerID,
			"updatedAt":        time.Now().UTC(),
		},
	}
	return r.updateOne(ctx, filter, update)
}

// SetOnboardingCompleted marks the customer as having finished onboarding.
func (r *mongoUserRepository) SetOnboardingCompleted(ctx context.Context, userID primitive.ObjectID) error {
	filter := bson.M{"_id": userID, "role": domain.RoleCustomer}
	update := bson.M{
		"$set": bson.M{
			"onboardingCompleted": true,
			"updatedAt":           time.Now().UTC(),
		},
	}
	return r.updateOne(ctx, filter, update)
}

func (r *mongoUserRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	// ModifiedCount may be 0 if the value was already set, which is fine.
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
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "coachId", Value: 1}},
			Options: options.Index().SetSparse(true), // Sparse because coaches have no coachId
		},
		{
			Keys:    bson.D{{Key: "stripeCustomerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
