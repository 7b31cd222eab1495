package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionPlan is the plan tier recorded on a billing subscription.
// Distinct from PlanType on User only in casing convention: these values
// mirror what the billing integration has historically stored.
type SubscriptionPlan string

const (
	SubPlanPremium  SubscriptionPlan = "PREMIUM"
	SubPlanStandard SubscriptionPlan = "STANDARD"
	SubPlanOTP      SubscriptionPlan = "OTP"
	SubPlanTrial    SubscriptionPlan = "TRIAL"
)

// ProfilePlanType maps a subscription plan onto the plan type stored on the
// customer's profile.
func (p SubscriptionPlan) ProfilePlanType() PlanType {
	switch p {
	case SubPlanPremium:
		return PlanPremium
	case SubPlanOTP:
		return PlanOTP
	case SubPlanTrial:
		return PlanTrial
	default:
		return PlanStandard
	}
}

// SubscriptionStatus of a billing subscription record.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// SubscriptionRecord is the internal mirror of a billing-provider
// subscription. Created and updated exclusively by the webhook reconciler;
// dashboards only read it. StripeSubscriptionID is the idempotency key: for
// one-time purchases (which have no provider subscription) the checkout
// session id is stored there instead.
type SubscriptionRecord struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID               primitive.ObjectID `bson:"userId" json:"userId"`
	PlanType             SubscriptionPlan   `bson:"planType" json:"planType"`
	StripeSubscriptionID string             `bson:"stripeSubscriptionId,omitempty" json:"stripeSubscriptionId,omitempty"`
	StripeCustomerID     string             `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	Status               SubscriptionStatus `bson:"status" json:"status"`
	StartDate            time.Time          `bson:"startDate" json:"startDate"`
	EndDate              time.Time          `bson:"endDate,omitempty" json:"endDate,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}
