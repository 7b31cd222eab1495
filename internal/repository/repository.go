package repository

import (
	"context"
	"time"

	"trainwise/studio-backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// GetByHexID parses a hex ObjectID (e.g. from checkout metadata) and
	// fetches the user; a malformed hex string maps to ErrNotFound.
	GetByHexID(ctx context.Context, hexID string) (*domain.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	AddClientIDToCoach(ctx context.Context, coachID, clientID primitive.ObjectID) error
	GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
	SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error
	SetPlanType(ctx context.Context, userID primitive.ObjectID, plan domain.PlanType) error
	SetStripeCustomerID(ctx context.Context, userID primitive.ObjectID, customerID string) error
	SetOnboardingCompleted(ctx context.Context, userID primitive.ObjectID) error
}

// ProgramRepository defines the interface for interacting with program data.
type ProgramRepository interface {
	Create(ctx context.Context, program *domain.Program) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Program, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Program, error)
	GetShopPrograms(ctx context.Context) ([]domain.Program, error)
	Update(ctx context.Context, program *domain.Program) error
	// UpdateStatus moves a program from one lifecycle status to another.
	// The filter includes the expected current status, so an illegal or
	// concurrent transition surfaces as ErrNotFound.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to domain.ProgramStatus) error
}

// AssignmentRepository defines the interface for interacting with
// program-assignment data.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.ProgramAssignment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ProgramAssignment, error)
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.ProgramAssignment, error)
	GetActiveByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.ProgramAssignment, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.AssignmentStatus) error
	// CancelActiveByClientAndCategory cancels every active assignment the
	// client has in the category and returns how many were cancelled.
	CancelActiveByClientAndCategory(ctx context.Context, clientID primitive.ObjectID, category domain.ProgramCategory) (int64, error)
}

// ActivityRepository defines the interface for the append-only activity log.
type ActivityRepository interface {
	Create(ctx context.Context, event *domain.ActivityEvent) (primitive.ObjectID, error)
	// GetRecentByClientID returns up to limit events, newest first.
	GetRecentByClientID(ctx context.Context, clientID primitive.ObjectID, limit int64) ([]domain.ActivityEvent, error)
	GetByClientIDSince(ctx context.Context, clientID primitive.ObjectID, since time.Time) ([]domain.ActivityEvent, error)
}

// SubscriptionRepository defines the interface for billing subscription
// records. Writes come only from the webhook reconciler.
type SubscriptionRepository interface {
	Create(ctx context.Context, record *domain.SubscriptionRecord) (primitive.ObjectID, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*domain.SubscriptionRecord, error)
	GetLatestByStripeCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error)
	GetLatestByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.SubscriptionRecord, error)
	Update(ctx context.Context, record *domain.SubscriptionRecord) error
	// CancelByStripeSubscriptionID sets status=CANCELLED on every record
	// matching the subscription id (updateMany semantics) and returns the
	// number of records modified.
	CancelByStripeSubscriptionID(ctx context.Context, subscriptionID string) (int64, error)
}
