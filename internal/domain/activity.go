package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Well-known activity types. The field is free-form on purpose: clients of
// different app versions log types the backend has never seen, and the
// classifier only cares about recency, not the type itself.
const (
	ActivityWorkoutCompleted = "workout_completed"
	ActivityCheckIn          = "check_in"
	ActivityJournalEntry     = "journal_entry"
	ActivityCoachComment     = "coach_comment"
)

// ActivityEvent is one entry in a customer's append-only activity log.
// Newest-first ordering drives the "days since last activity" derivation.
type ActivityEvent struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID     primitive.ObjectID `bson:"clientId" json:"clientId"`
	ActivityType string             `bson:"activityType" json:"activityType"`
	ActivityData bson.M             `bson:"activityData,omitempty" json:"activityData,omitempty"` // Opaque payload
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
