package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for assignment lifecycle
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCancelled AssignmentStatus = "cancelled"
	AssignmentCompleted AssignmentStatus = "completed"
)

// ProgramAssignment connects a Program to a Customer, as assigned by a Coach.
// A customer may accumulate many assignments over time; at most one per
// category should be active at once (enforced when assigning).
type ProgramAssignment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProgramID  primitive.ObjectID `bson:"programId" json:"programId"`
	ClientID   primitive.ObjectID `bson:"clientId" json:"clientId"`
	CoachID    primitive.ObjectID `bson:"coachId" json:"coachId"` // Denormalized for queries/auth
	Category   ProgramCategory    `bson:"category" json:"category"` // Denormalized from the program
	AssignedAt time.Time          `bson:"assignedAt" json:"assignedAt"`
	ExpiresAt  *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"` // Optional expiry (pointer for nullability)
	Status     AssignmentStatus   `bson:"status" json:"status"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsExpired reports whether the assignment carries an expiry that has passed.
// An assignment without an expiry never expires.
func (a *ProgramAssignment) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
