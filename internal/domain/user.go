package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleCoach    Role = "coach"
	RoleCustomer Role = "customer"
)

// PlanType is the commercial plan a customer is on.
type PlanType string

const (
	PlanTrial    PlanType = "trial"
	PlanBasic    PlanType = "basic"
	PlanStandard PlanType = "standard"
	PlanPremium  PlanType = "premium"
	PlanOTP      PlanType = "otp" // one-time purchase
)

// User represents a user in the system (either a Coach or a Customer).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Customer-specific ---
	PlanType            PlanType `bson:"planType,omitempty" json:"planType,omitempty"`
	OnboardingCompleted bool     `bson:"onboardingCompleted" json:"onboardingCompleted"`
	// StripeCustomerID is set once the customer has been through checkout;
	// the billing webhook resolves users by it.
	StripeCustomerID string `bson:"stripeCustomerId,omitempty" json:"-"`
	// CoachID of the coach managing this customer.
	CoachID *primitive.ObjectID `bson:"coachId,omitempty" json:"coachId,omitempty"`

	// --- Coach-specific ---
	// Stores ObjectIDs of Customers managed by this Coach.
	ClientIDs []primitive.ObjectID `bson:"clientIds,omitempty" json:"clientIds,omitempty"`
}

func (u *User) IsCoach() bool {
	return u.Role == RoleCoach
}

func (u *User) IsCustomer() bool {
	return u.Role == RoleCustomer
}
