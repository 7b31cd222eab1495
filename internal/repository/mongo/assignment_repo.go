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

const assignmentCollectionName = "assignments"

// mongoAssignmentRepository implements repository.AssignmentRepository using MongoDB.
type mongoAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAssignmentRepository creates a new instance of mongoAssignmentRepository.
func NewMongoAssignmentRepository(db *mongo.Database) repository.AssignmentRepository {
	return &mongoAssignmentRepository{
		collection: db.Collection(assignmentCollectionName),
	}
}

// Create inserts a new program assignment.
func (r *mongoAssignmentRepository) Create(ctx context.Context, assignment *domain.ProgramAssignment) (primitive.ObjectID, error) {
	if assignment.ClientID == primitive.NilObjectID || assignment.ProgramID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("assignment client ID and program ID are required")
	}

	assignment.ID = primitive.NewObjectID()
	if assignment.Status == "" {
		assignment.Status = domain.AssignmentActive
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	assignment.UpdatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, assignment)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves an assignment by its ObjectID.
func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProgramAssignment, error) {
	var assignment domain.ProgramAssignment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&assignment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// GetByClientID retrieves the full assignment history of a customer, most
// recently assigned first.
func (r *mongoAssignmentRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.ProgramAssignment, error) {
	return r.find(ctx, bson.M{"clientId": clientID})
}

// GetActiveByClientID retrieves only the customer's active assignments.
func (r *mongoAssignmentRepository) GetActiveByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.ProgramAssignment, error) {
	return r.find(ctx, bson.M{"clientId": clientID, "status": domain.AssignmentActive})
}

func (r *mongoAssignmentRepository) find(ctx context.Context, filter bson.M) ([]domain.ProgramAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "assignedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []domain.ProgramAssignment
	if err = cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// UpdateStatus changes the lifecycle status of one assignment.
func (r *mongoAssignmentRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.AssignmentStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CancelActiveByClientAndCategory cancels every active assignment the client
// has in a category. Used when assigning a replacement program so at most
// one assignment per category stays active.
func (r *mongoAssignmentRepository) CancelActiveByClientAndCategory(ctx context.Context, clientID primitive.ObjectID, category domain.ProgramCategory) (int64, error) {
	filter := bson.M{
		"clientId": clientID,
		"category": category,
		"status":   domain.AssignmentActive,
	}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.AssignmentCancelled,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// EnsureAssignmentIndexes creates necessary indexes for the assignments collection.
func EnsureAssignmentIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "assignedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "status", Value: 1}, {Key: "category", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
