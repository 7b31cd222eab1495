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

const programCollectionName = "programs"

// mongoProgramRepository implements repository.ProgramRepository using MongoDB.
type mongoProgramRepository struct {
	collection *mongo.Collection
}

// NewMongoProgramRepository creates a new instance of mongoProgramRepository.
func NewMongoProgramRepository(db *mongo.Database) repository.ProgramRepository {
	return &mongoProgramRepository{
		collection: db.Collection(programCollectionName),
	}
}

// Create inserts a new program. New programs always start as drafts.
func (r *mongoProgramRepository) Create(ctx context.Context, program *domain.Program) (primitive.ObjectID, error) {
	if program.CoachID == primitive.NilObjectID || program.Title == "" || program.Category == "" {
		return primitive.NilObjectID, errors.New("program coach ID, title, and category are required")
	}

	program.ID = primitive.NewObjectID()
	if program.Status == "" {
		program.Status = domain.ProgramDraft
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, program)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a program by its ObjectID.
func (r *mongoProgramRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Program, error) {
	var program domain.Program
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&program)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &program, nil
}

// GetByCoachID retrieves all programs created by a coach, newest first.
func (r *mongoProgramRepository) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Program, error) {
	return r.find(ctx, bson.M{"coachId": coachID})
}

// GetShopPrograms retrieves all programs published to the shop.
func (r *mongoProgramRepository) GetShopPrograms(ctx context.Context) ([]domain.Program, error) {
	return r.find(ctx, bson.M{"status": domain.ProgramInShop})
}

func (r *mongoProgramRepository) find(ctx context.Context, filter bson.M) ([]domain.Program, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var programs []domain.Program
	if err = cursor.All(ctx, &programs); err != nil {
		return nil, err
	}
	return programs, nil
}

// Update replaces the mutable content fields of a program.
func (r *mongoProgramRepository) Update(ctx context.Context, program *domain.Program) error {
	filter := bson.M{"_id": program.ID, "coachId": program.CoachID}
	update := bson.M{
		"$set": bson.M{
			"title":          program.Title,
			"description":    program.Description,
			"category":       program.Category,
			"durationWeeks":  program.DurationWeeks,
			"headerImageKey": program.HeaderImageKey,
			"updatedAt":      time.Now().UTC(),
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

// UpdateStatus moves a program between lifecycle statuses. The expected
// current status is part of the filter, so a stale or illegal transition
// matches nothing and reports ErrNotFound.
func (r *mongoProgramRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.ProgramStatus) error {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":    to,
			"updatedAt": time.Now().UTC(),
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

// EnsureProgramIndexes creates necessary indexes for the programs collection.
func EnsureProgramIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "coachId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
