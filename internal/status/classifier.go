// Package status derives a customer's coaching status from their program
// assignments, activity history and profile. The derivation used to live
// inline in several read paths with slightly different thresholds; it is
// consolidated here as one pure function over plain domain data so every
// caller sees the same answer.
package status

import (
	"errors"
	"fmt"
	"math"
	"time"

	"trainwise/studio-backend/internal/domain"
)

// ClientStatus is the derived status label shown in coach-facing views.
type ClientStatus string

const (
	StatusMissingProgram  ClientStatus = "missing-program"
	StatusProgramExpired  ClientStatus = "program-expired"
	StatusNewComer        ClientStatus = "new-comer"
	StatusWaitingFeedback ClientStatus = "waiting-feedback"
	StatusNeedsFollowUp   ClientStatus = "needs-follow-up"
	StatusOffTrack        ClientStatus = "off-track"
	StatusOnTrack         ClientStatus = "on-track"
)

// Urgency tier attached to a status for sorting/highlighting client lists.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Classification is the result of classifying one customer.
type Classification struct {
	Status  ClientStatus `json:"status"`
	Urgency Urgency      `json:"urgency"`
}

// ErrInvalidInput is returned when the inputs are malformed (zero
// timestamps). The classifier never silently defaults on bad data.
var ErrInvalidInput = errors.New("status: invalid input")

// neverActiveDays stands in for "no activity ever". It exceeds every
// threshold below, so a customer with an empty log always lands on the
// follow-up path.
const neverActiveDays = 999

// Thresholds, in whole days since the last activity event.
const (
	newComerWindowDays    = 7
	premiumFeedbackDays   = 7
	followUpThresholdDays = 14
	offTrackThresholdDays = 7
)

// Classify derives the status and urgency for one customer.
//
// Only assignments with status "active" participate; callers may pass the
// full history and it is filtered here. Activities may arrive in any order;
// only the most recent one matters.
//
// The rules are priority-ordered and the first match wins:
//  1. no active assignment            -> missing-program
//  2. any active assignment expired   -> program-expired
//  3. registered <=7 days ago and onboarded -> new-comer
//  4. premium and silent for >7 days  -> waiting-feedback
//  5. silent for >14 days             -> needs-follow-up
//  6. silent for >7 days              -> off-track
//  7. otherwise                       -> on-track
func Classify(profile *domain.User, assignments []domain.ProgramAssignment, activities []domain.ActivityEvent, now time.Time) (Classification, error) {
	if profile == nil {
		return Classification{}, fmt.Errorf("%w: nil profile", ErrInvalidInput)
	}
	if profile.CreatedAt.IsZero() {
		return Classification{}, fmt.Errorf("%w: profile %s has zero createdAt", ErrInvalidInput, profile.ID.Hex())
	}

	active := filterActive(assignments)

	if len(active) == 0 {
		return classification(StatusMissingProgram), nil
	}

	// Any expired active assignment flags the whole client, even with very
	// recent activity: the coach has to re-assign before anything else.
	for i := range active {
		if active[i].IsExpired(now) {
			return classification(StatusProgramExpired), nil
		}
	}

	daysSinceActivity, err := daysSinceLastActivity(activities, now)
	if err != nil {
		return Classification{}, err
	}

	daysSinceCreated := wholeDaysBetween(profile.CreatedAt, now)
	if daysSinceCreated <= newComerWindowDays && profile.OnboardingCompleted {
		return classification(StatusNewComer), nil
	}

	if profile.PlanType == domain.PlanPremium && daysSinceActivity > premiumFeedbackDays {
		return classification(StatusWaitingFeedback), nil
	}
	if daysSinceActivity > followUpThresholdDays {
		return classification(StatusNeedsFollowUp), nil
	}
	if daysSinceActivity > offTrackThresholdDays {
		return classification(StatusOffTrack), nil
	}
	return classification(StatusOnTrack), nil
}

// UrgencyFor maps a status to its urgency tier.
func UrgencyFor(s ClientStatus) Urgency {
	switch s {
	case StatusMissingProgram, StatusNeedsFollowUp, StatusProgramExpired:
		return UrgencyHigh
	case StatusWaitingFeedback, StatusOffTrack:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func classification(s ClientStatus) Classification {
	return Classification{Status: s, Urgency: UrgencyFor(s)}
}

// DefaultProgress is the percentage reported for an open-ended program (no
// expiry to measure against). Historically two call sites disagreed (25 in
// the list view, 50 in the detail view); 25 is the canonical value now.
const DefaultProgress = 25

// Progress computes the completion percentage of the customer's current
// program for UI progress bars. "Current" is the most recently assigned
// active assignment. Returns 0 when there is no active assignment.
func Progress(assignments []domain.ProgramAssignment, now time.Time) int {
	current := CurrentAssignment(assignments)
	if current == nil {
		return 0
	}
	if current.ExpiresAt == nil {
		return DefaultProgress
	}
	total := current.ExpiresAt.Sub(current.AssignedAt)
	if total <= 0 {
		return 100
	}
	elapsed := now.Sub(current.AssignedAt)
	pct := int(math.Round(float64(elapsed) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// CurrentAssignment returns the most recently assigned active assignment,
// or nil if the customer has none.
func CurrentAssignment(assignments []domain.ProgramAssignment) *domain.ProgramAssignment {
	var current *domain.ProgramAssignment
	for i := range assignments {
		a := &assignments[i]
		if a.Status != domain.AssignmentActive {
			continue
		}
		if current == nil || a.AssignedAt.After(current.AssignedAt) {
			current = a
		}
	}
	return current
}

func filterActive(assignments []domain.ProgramAssignment) []domain.ProgramAssignment {
	active := make([]domain.ProgramAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Status == domain.AssignmentActive {
			active = append(active, a)
		}
	}
	return active
}

// daysSinceLastActivity returns whole days since the newest activity event,
// or neverActiveDays for an empty log. An event stamped exactly at now
// yields 0.
func daysSinceLastActivity(activities []domain.ActivityEvent, now time.Time) (int, error) {
	if len(activities) == 0 {
		return neverActiveDays, nil
	}
	latest := activities[0].CreatedAt
	for _, a := range activities {
		if a.CreatedAt.IsZero() {
			return 0, fmt.Errorf("%w: activity %s has zero createdAt", ErrInvalidInput, a.ID.Hex())
		}
		if a.CreatedAt.After(latest) {
			latest = a.CreatedAt
		}
	}
	d := wholeDaysBetween(latest, now)
	if d < 0 {
		// Clock skew between app clients and the server; treat as today.
		d = 0
	}
	return d, nil
}

// wholeDaysBetween floors the elapsed time between two instants to days.
func wholeDaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
