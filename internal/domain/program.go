package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramCategory groups programs by coaching discipline.
type ProgramCategory string

const (
	CategoryFitness   ProgramCategory = "fitness"
	CategoryNutrition ProgramCategory = "nutrition"
	CategoryMental    ProgramCategory = "mental"
)

// ProgramStatus tracks the lifecycle of a program built by a coach.
//
// Legal transitions:
//
//	draft -> saved
//	saved -> assigned (when assigned to a customer)
//	saved -> in_shop  (published for purchase)
//	in_shop -> saved  (withdrawn from shop)
//
// A draft program can never be assigned or published directly.
type ProgramStatus string

const (
	ProgramDraft    ProgramStatus = "draft"
	ProgramSaved    ProgramStatus = "saved"
	ProgramAssigned ProgramStatus = "assigned"
	ProgramInShop   ProgramStatus = "in_shop"
)

// CanTransitionTo reports whether moving from the current status to the
// target status is a legal lifecycle transition.
func (s ProgramStatus) CanTransitionTo(target ProgramStatus) bool {
	switch s {
	case ProgramDraft:
		return target == ProgramSaved
	case ProgramSaved:
		return target == ProgramAssigned || target == ProgramInShop
	case ProgramInShop:
		return target == ProgramSaved
	case ProgramAssigned:
		// Assigned programs stay assigned; further assignments reuse them.
		return target == ProgramAssigned
	}
	return false
}

// Program is a multi-week coaching program (fitness, nutrition or
// mental-health content) built by a coach.
type Program struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID       primitive.ObjectID `bson:"coachId" json:"coachId"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Category      ProgramCategory    `bson:"category" json:"category"`
	Status        ProgramStatus      `bson:"status" json:"status"`
	DurationWeeks int                `bson:"durationWeeks,omitempty" json:"durationWeeks,omitempty"`
	// HeaderImageKey references an optional S3 object shown in program lists.
	HeaderImageKey string    `bson:"headerImageKey,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}
