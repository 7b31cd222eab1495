package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/repository"
	"trainwise/studio-backend/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Additional fakes ---

type fakeSubscriptionRepo struct {
	records []*domain.SubscriptionRecord
}

func (r *fakeSubscriptionRepo) Create(_ context.Context, record *domain.SubscriptionRecord) (primitive.ObjectID, error) {
	record.ID = primitive.NewObjectID()
	r.records = append(r.records, record)
	return record.ID, nil
}

func (r *fakeSubscriptionRepo) GetByStripeSubscriptionID(_ context.Context, subscriptionID string) (*domain.SubscriptionRecord, error) {
	for _, record := range r.records {
		if record.StripeSubscriptionID == subscriptionID {
			return record, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSubscriptionRepo) GetLatestByStripeCustomerID(_ context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	var latest *domain.SubscriptionRecord
	for _, record := range r.records {
		if record.StripeCustomerID != customerID {
			continue
		}
		if latest == nil || record.StartDate.After(latest.StartDate) {
			latest = record
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeSubscriptionRepo) GetLatestByUserID(_ context.Context, userID primitive.ObjectID) (*domain.SubscriptionRecord, error) {
	var latest *domain.SubscriptionRecord
	for _, record := range r.records {
		if record.UserID != userID {
			continue
		}
		if latest == nil || record.StartDate.After(latest.StartDate) {
			latest = record
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeSubscriptionRepo) Update(_ context.Context, _ *domain.SubscriptionRecord) error {
	return nil
}

func (r *fakeSubscriptionRepo) CancelByStripeSubscriptionID(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

type fakeFileStorage struct {
	uploadKeys []string
}

func (s *fakeFileStorage) GeneratePresignedUploadURL(_ context.Context, objectKey, _ string, _ time.Duration) (string, error) {
	s.uploadKeys = append(s.uploadKeys, objectKey)
	return "https://storage.example/upload/" + objectKey, nil
}

func (s *fakeFileStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.example/get/" + objectKey, nil
}

func (s *fakeFileStorage) DeleteObject(_ context.Context, _ string) error { return nil }

func newClientSvc(customer *domain.User, programs *fakeProgramRepo, assignments *fakeAssignmentRepo, activities *fakeActivityRepo, subs *fakeSubscriptionRepo) ClientService {
	return NewClientService(newFakeUserRepo(customer), programs, assignments, activities, subs, &fakeFileStorage{})
}

// --- Tests ---

func TestClientService_GetMyPrograms(t *testing.T) {
	coach := newCoach()
	customer := newManagedCustomer(coach.ID)
	program := savedProgram(coach.ID, domain.CategoryFitness)
	program.HeaderImageKey = "programs/header.jpg"
	programs := newFakeProgramRepo(program)
	assignments := newFakeAssignmentRepo()
	_, err := assignments.Create(context.Background(), &domain.ProgramAssignment{
		ProgramID:  program.ID,
		ClientID:   customer.ID,
		CoachID:    coach.ID,
		Category:   domain.CategoryFitness,
		AssignedAt: time.Now().Add(-7 * 24 * time.Hour),
		Status:     domain.AssignmentActive,
	})
	require.NoError(t, err)
	svc := newClientSvc(customer, programs, assignments, &fakeActivityRepo{}, &fakeSubscriptionRepo{})

	result, err := svc.GetMyPrograms(context.Background(), customer.ID)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, program.ID, result[0].Program.ID)
	assert.Equal(t, status.DefaultProgress, result[0].Progress)
	assert.Equal(t, "https://storage.example/get/programs/header.jpg", result[0].HeaderImageURL)
}

func TestClientService_CheckIn(t *testing.T) {
	coach := newCoach()
	customer := newManagedCustomer(coach.ID)
	activities := &fakeActivityRepo{}
	svc := newClientSvc(customer, newFakeProgramRepo(), newFakeAssignmentRepo(), activities, &fakeSubscriptionRepo{})
	ctx := context.Background()

	t.Run("with note and owned photo key", func(t *testing.T) {
		key := "checkins/" + customer.ID.Hex() + "/abc.jpeg"
		event, err := svc.CheckIn(ctx, customer.ID, "feeling strong", key)
		require.NoError(t, err)
		assert.Equal(t, domain.ActivityCheckIn, event.ActivityType)
		assert.Equal(t, "feeling strong", event.ActivityData["note"])
		assert.Equal(t, key, event.ActivityData["photoObjectKey"])
	})

	t.Run("rejects photo key under another client's prefix", func(t *testing.T) {
		key := "checkins/" + primitive.NewObjectID().Hex() + "/abc.jpeg"
		_, err := svc.CheckIn(ctx, customer.ID, "", key)
		assert.Error(t, err)
	})
}

func TestClientService_RequestCheckInPhotoURL(t *testing.T) {
	coach := newCoach()
	customer := newManagedCustomer(coach.ID)
	svc := newClientSvc(customer, newFakeProgramRepo(), newFakeAssignmentRepo(), &fakeActivityRepo{}, &fakeSubscriptionRepo{})
	ctx := context.Background()

	resp, err := svc.RequestCheckInPhotoURL(ctx, customer.ID, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ObjectKey, "checkins/"+customer.ID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(resp.ObjectKey, ".jpeg"))
	assert.Contains(t, resp.UploadURL, resp.ObjectKey)

	_, err = svc.RequestCheckInPhotoURL(ctx, customer.ID, "application/pdf")
	assert.ErrorIs(t, err, ErrInvalidContentType)
	_, err = svc.RequestCheckInPhotoURL(ctx, customer.ID, "")
	assert.ErrorIs(t, err, ErrInvalidContentType)
}

func TestClientService_GetMySubscription(t *testing.T) {
	coach := newCoach()
	customer := newManagedCustomer(coach.ID)
	subs := &fakeSubscriptionRepo{}
	svc := newClientSvc(customer, newFakeProgramRepo(), newFakeAssignmentRepo(), &fakeActivityRepo{}, subs)
	ctx := context.Background()

	_, err := svc.GetMySubscription(ctx, customer.ID)
	assert.ErrorIs(t, err, ErrNoSubscription)

	older := &domain.SubscriptionRecord{
		UserID:    customer.ID,
		PlanType:  domain.SubPlanStandard,
		Status:    domain.SubscriptionCancelled,
		StartDate: time.Now().Add(-60 * 24 * time.Hour),
	}
	newer := &domain.SubscriptionRecord{
		UserID:    customer.ID,
		PlanType:  domain.SubPlanPremium,
		Status:    domain.SubscriptionActive,
		StartDate: time.Now().Add(-5 * 24 * time.Hour),
	}
	_, _ = subs.Create(ctx, older)
	_, _ = subs.Create(ctx, newer)

	record, err := svc.GetMySubscription(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubPlanPremium, record.PlanType)
}
