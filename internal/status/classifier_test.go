package status

import (
	"testing"
	"time"

	"trainwise/studio-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return testNow.Add(-time.Duration(d) * 24 * time.Hour)
}

func testProfile(plan domain.PlanType, createdDaysAgo int, onboarded bool) *domain.User {
	return &domain.User{
		ID:                  primitive.NewObjectID(),
		Role:                domain.RoleCustomer,
		PlanType:            plan,
		OnboardingCompleted: onboarded,
		CreatedAt:           daysAgo(createdDaysAgo),
	}
}

func activeAssignment(expiresAt *time.Time) domain.ProgramAssignment {
	return domain.ProgramAssignment{
		ID:         primitive.NewObjectID(),
		Status:     domain.AssignmentActive,
		AssignedAt: daysAgo(30),
		ExpiresAt:  expiresAt,
	}
}

func activityAt(at time.Time) domain.ActivityEvent {
	return domain.ActivityEvent{
		ID:           primitive.NewObjectID(),
		ActivityType: domain.ActivityWorkoutCompleted,
		CreatedAt:    at,
	}
}

func TestClassify(t *testing.T) {
	expired := daysAgo(1)
	future := daysAgo(-30)

	tests := []struct {
		name        string
		profile     *domain.User
		assignments []domain.ProgramAssignment
		activities  []domain.ActivityEvent
		want        ClientStatus
		wantUrgency Urgency
	}{
		{
			name:        "no assignments at all",
			profile:     testProfile(domain.PlanStandard, 100, true),
			want:        StatusMissingProgram,
			wantUrgency: UrgencyHigh,
		},
		{
			name:    "only cancelled assignments count as missing",
			profile: testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{
				{Status: domain.AssignmentCancelled, AssignedAt: daysAgo(10)},
				{Status: domain.AssignmentCompleted, AssignedAt: daysAgo(40)},
			},
			want:        StatusMissingProgram,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "missing program wins even with activity today",
			profile:     testProfile(domain.PlanStandard, 100, true),
			activities:  []domain.ActivityEvent{activityAt(testNow)},
			want:        StatusMissingProgram,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "expired assignment beats recent activity",
			profile:     testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(&expired)},
			activities:  []domain.ActivityEvent{activityAt(testNow)},
			want:        StatusProgramExpired,
			wantUrgency: UrgencyHigh,
		},
		{
			name:    "one expired among several active flags the client",
			profile: testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{
				activeAssignment(&future),
				activeAssignment(&expired),
			},
			want:        StatusProgramExpired,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "new comer inside the window",
			profile:     testProfile(domain.PlanStandard, 3, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			want:        StatusNewComer,
			wantUrgency: UrgencyLow,
		},
		{
			name:        "registered exactly seven days ago is still new",
			profile:     testProfile(domain.PlanStandard, 7, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			want:        StatusNewComer,
			wantUrgency: UrgencyLow,
		},
		{
			name:        "recent registration without onboarding is not a new comer",
			profile:     testProfile(domain.PlanStandard, 3, false),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			want:        StatusNeedsFollowUp,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "premium silent for eight days waits for feedback",
			profile:     testProfile(domain.PlanPremium, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			activities:  []domain.ActivityEvent{activityAt(daysAgo(8))},
			want:        StatusWaitingFeedback,
			wantUrgency: UrgencyMedium,
		},
		{
			name:        "premium silent for exactly seven days is still on track",
			profile:     testProfile(domain.PlanPremium, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			activities:  []domain.ActivityEvent{activityAt(daysAgo(7))},
			want:        StatusOnTrack,
			wantUrgency: UrgencyLow,
		},
		{
			name:        "standard silent for fifteen days needs follow up",
			profile:     testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			activities:  []domain.ActivityEvent{activityAt(daysAgo(15))},
			want:        StatusNeedsFollowUp,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "standard silent for ten days is off track",
			profile:     testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			activities:  []domain.ActivityEvent{activityAt(daysAgo(10))},
			want:        StatusOffTrack,
			wantUrgency: UrgencyMedium,
		},
		{
			name:        "active today is on track",
			profile:     testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			activities:  []domain.ActivityEvent{activityAt(testNow)},
			want:        StatusOnTrack,
			wantUrgency: UrgencyLow,
		},
		{
			name:        "no activity ever falls through to follow up",
			profile:     testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			want:        StatusNeedsFollowUp,
			wantUrgency: UrgencyHigh,
		},
		{
			name:        "no activity ever on premium waits for feedback",
			profile:     testProfile(domain.PlanPremium, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			want:        StatusWaitingFeedback,
			wantUrgency: UrgencyMedium,
		},
		{
			name:    "only the newest activity matters regardless of order",
			profile: testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{
				activeAssignment(nil),
			},
			activities: []domain.ActivityEvent{
				activityAt(daysAgo(40)),
				activityAt(daysAgo(2)),
				activityAt(daysAgo(20)),
			},
			want:        StatusOnTrack,
			wantUrgency: UrgencyLow,
		},
		{
			name:        "activity timestamp slightly in the future clamps to today",
			profile:     testProfile(domain.PlanStandard, 100, true),
			assignments: []domain.ProgramAssignment{activeAssignment(nil)},
			activities:  []domain.ActivityEvent{activityAt(testNow.Add(2 * time.Minute))},
			want:        StatusOnTrack,
			wantUrgency: UrgencyLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.profile, tt.assignments, tt.activities, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.wantUrgency, got.Urgency)
		})
	}
}

func TestClassify_InvalidInput(t *testing.T) {
	t.Run("nil profile", func(t *testing.T) {
		_, err := Classify(nil, nil, nil, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("zero createdAt on profile", func(t *testing.T) {
		profile := &domain.User{ID: primitive.NewObjectID()}
		_, err := Classify(profile, nil, nil, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("zero createdAt on activity", func(t *testing.T) {
		profile := testProfile(domain.PlanStandard, 100, true)
		assignments := []domain.ProgramAssignment{activeAssignment(nil)}
		activities := []domain.ActivityEvent{{ID: primitive.NewObjectID()}}
		_, err := Classify(profile, assignments, activities, testNow)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestProgress(t *testing.T) {
	t.Run("no active assignment", func(t *testing.T) {
		assert.Equal(t, 0, Progress(nil, testNow))
		assert.Equal(t, 0, Progress([]domain.ProgramAssignment{
			{Status: domain.AssignmentCancelled, AssignedAt: daysAgo(5)},
		}, testNow))
	})

	t.Run("open ended program reports the default", func(t *testing.T) {
		got := Progress([]domain.ProgramAssignment{activeAssignment(nil)}, testNow)
		assert.Equal(t, DefaultProgress, got)
	})

	t.Run("halfway through a bounded program", func(t *testing.T) {
		expires := daysAgo(-30) // assigned 30 days ago, 30 days to go
		got := Progress([]domain.ProgramAssignment{activeAssignment(&expires)}, testNow)
		assert.Equal(t, 50, got)
	})

	t.Run("past expiry clamps to 100", func(t *testing.T) {
		expires := daysAgo(10)
		got := Progress([]domain.ProgramAssignment{activeAssignment(&expires)}, testNow)
		assert.Equal(t, 100, got)
	})

	t.Run("progress before assignment start clamps to 0", func(t *testing.T) {
		expires := testNow.Add(60 * 24 * time.Hour)
		a := domain.ProgramAssignment{
			Status:     domain.AssignmentActive,
			AssignedAt: testNow.Add(24 * time.Hour),
			ExpiresAt:  &expires,
		}
		assert.Equal(t, 0, Progress([]domain.ProgramAssignment{a}, testNow))
	})

	t.Run("most recently assigned active assignment wins", func(t *testing.T) {
		oldExpiry := daysAgo(-10)
		old := domain.ProgramAssignment{
			Status:     domain.AssignmentActive,
			AssignedAt: daysAgo(90),
			ExpiresAt:  &oldExpiry,
		}
		current := activeAssignment(nil) // assigned 30 days ago, open ended
		got := Progress([]domain.ProgramAssignment{old, current}, testNow)
		assert.Equal(t, DefaultProgress, got)
	})
}

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, UrgencyHigh, UrgencyFor(StatusMissingProgram))
	assert.Equal(t, UrgencyHigh, UrgencyFor(StatusProgramExpired))
	assert.Equal(t, UrgencyHigh, UrgencyFor(StatusNeedsFollowUp))
	assert.Equal(t, UrgencyMedium, UrgencyFor(StatusWaitingFeedback))
	assert.Equal(t, UrgencyMedium, UrgencyFor(StatusOffTrack))
	assert.Equal(t, UrgencyLow, UrgencyFor(StatusNewComer))
	assert.Equal(t, UrgencyLow, UrgencyFor(StatusOnTrack))
}
