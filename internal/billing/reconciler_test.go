package billing

import (
	"context"
	"testing"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Fakes ---

type fakeSubscriptionRepo struct {
	records map[string]*domain.SubscriptionRecord // keyed on stripe subscription id
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{records: make(map[string]*domain.SubscriptionRecord)}
}

func (r *fakeSubscriptionRepo) Create(_ context.Context, record *domain.SubscriptionRecord) (primitive.ObjectID, error) {
	if _, exists := r.records[record.StripeSubscriptionID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	record.ID = primitive.NewObjectID()
	cp := *record
	r.records[record.StripeSubscriptionID] = &cp
	return record.ID, nil
}

func (r *fakeSubscriptionRepo) GetByStripeSubscriptionID(_ context.Context, subscriptionID string) (*domain.SubscriptionRecord, error) {
	record, ok := r.records[subscriptionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *record
	return &cp, nil
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
	cp := *latest
	return &cp, nil
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
	cp := *latest
	return &cp, nil
}

func (r *fakeSubscriptionRepo) Update(_ context.Context, record *domain.SubscriptionRecord) error {
	if _, ok := r.records[record.StripeSubscriptionID]; !ok {
		return repository.ErrNotFound
	}
	cp := *record
	r.records[record.StripeSubscriptionID] = &cp
	return nil
}

func (r *fakeSubscriptionRepo) CancelByStripeSubscriptionID(_ context.Context, subscriptionID string) (int64, error) {
	record, ok := r.records[subscriptionID]
	if !ok {
		return 0, nil
	}
	record.Status = domain.SubscriptionCancelled
	return 1, nil
}

type fakeUserRepo struct {
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	user.ID = primitive.NewObjectID()
	r.users[user.ID] = user
	return user.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByHexID(ctx context.Context, hexID string) (*domain.User, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) GetByStripeCustomerID(_ context.Context, customerID string) (*domain.User, error) {
	for _, u := range r.users {
		if u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) AddClientIDToCoach(_ context.Context, _, _ primitive.ObjectID) error { return nil }

func (r *fakeUserRepo) GetClientsByCoachID(_ context.Context, _ primitive.ObjectID) ([]domain.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) SetCoachForClient(_ context.Context, _, _ primitive.ObjectID) error { return nil }

func (r *fakeUserRepo) SetPlanType(_ context.Context, userID primitive.ObjectID, plan domain.PlanType) error {
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PlanType = plan
	return nil
}

func (r *fakeUserRepo) SetStripeCustomerID(_ context.Context, userID primitive.ObjectID, customerID string) error {
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

func (r *fakeUserRepo) SetOnboardingCompleted(_ context.Context, userID primitive.ObjectID) error {
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.OnboardingCompleted = true
	return nil
}

type fakeProvider struct {
	subscriptions map[string]*ProviderSubscription
}

func (p *fakeProvider) GetSubscription(_ context.Context, subscriptionID string) (*ProviderSubscription, error) {
	sub, ok := p.subscriptions[subscriptionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sub, nil
}

// --- Fixtures ---

var reconcilerNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newCustomer(email, stripeCustomerID string) *domain.User {
	return &domain.User{
		ID:               primitive.NewObjectID(),
		Email:            email,
		Role:             domain.RoleCustomer,
		PlanType:         domain.PlanTrial,
		StripeCustomerID: stripeCustomerID,
		CreatedAt:        reconcilerNow.Add(-30 * 24 * time.Hour),
	}
}

func subscriptionChanged(priceID string) SubscriptionChanged {
	return SubscriptionChanged{
		StripeSubscriptionID: "sub_123",
		StripeCustomerID:     "cus_abc",
		PriceID:              priceID,
		Status:               "active",
		PeriodStart:          reconcilerNow,
		PeriodEnd:            reconcilerNow.Add(30 * 24 * time.Hour),
	}
}

// --- Tests ---

func TestReconcile_SubscriptionChanged_CreatesRecordAndMirrorsPlan(t *testing.T) {
	user := newCustomer("jordan@example.com", "cus_abc")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	rec := NewReconciler(subs, users, nil)

	err := rec.Reconcile(context.Background(), subscriptionChanged("price_premium_monthly"))
	require.NoError(t, err)

	record, err := subs.GetByStripeSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, domain.SubPlanPremium, record.PlanType)
	assert.Equal(t, domain.SubscriptionActive, record.Status)
	assert.Equal(t, domain.PlanPremium, user.PlanType)
}

func TestReconcile_SubscriptionChanged_RedeliveryIsIdempotent(t *testing.T) {
	user := newCustomer("jordan@example.com", "cus_abc")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	rec := NewReconciler(subs, users, nil)

	ev := subscriptionChanged("price_standard_monthly")
	require.NoError(t, rec.Reconcile(context.Background(), ev))
	require.NoError(t, rec.Reconcile(context.Background(), ev))

	assert.Len(t, subs.records, 1)
	record := subs.records["sub_123"]
	assert.Equal(t, domain.SubPlanStandard, record.PlanType)
}

func TestReconcile_SubscriptionChanged_UnknownPriceDefaultsToStandard(t *testing.T) {
	user := newCustomer("jordan@example.com", "cus_abc")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	rec := NewReconciler(subs, users, nil)

	err := rec.Reconcile(context.Background(), subscriptionChanged("price_launch_special_2099"))
	require.NoError(t, err)

	record := subs.records["sub_123"]
	assert.Equal(t, domain.SubPlanStandard, record.PlanType)
	assert.Equal(t, domain.PlanStandard, user.PlanType)
}

func TestReconcile_SubscriptionChanged_NoUserForCustomer(t *testing.T) {
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo()
	rec := NewReconciler(subs, users, nil)

	err := rec.Reconcile(context.Background(), subscriptionChanged("price_premium_monthly"))
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, subs.records)
}

func TestReconcile_SubscriptionChanged_CancelledStatusDoesNotMirrorPlan(t *testing.T) {
	user := newCustomer("jordan@example.com", "cus_abc")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	rec := NewReconciler(subs, users, nil)

	ev := subscriptionChanged("price_premium_monthly")
	ev.Status = "canceled"
	require.NoError(t, rec.Reconcile(context.Background(), ev))

	record := subs.records["sub_123"]
	assert.Equal(t, domain.SubscriptionCancelled, record.Status)
	assert.Equal(t, domain.PlanTrial, user.PlanType, "cancelled subscription must not change the profile plan")
}

func TestReconcile_SubscriptionCancelled(t *testing.T) {
	user := newCustomer("jordan@example.com", "cus_abc")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	rec := NewReconciler(subs, users, nil)

	require.NoError(t, rec.Reconcile(context.Background(), subscriptionChanged("price_premium_monthly")))
	require.NoError(t, rec.Reconcile(context.Background(), SubscriptionCancelled{StripeSubscriptionID: "sub_123"}))

	record := subs.records["sub_123"]
	assert.Equal(t, domain.SubscriptionCancelled, record.Status)
}

func TestReconcile_SubscriptionCancelled_UnknownSubscriptionIsAcknowledged(t *testing.T) {
	rec := NewReconciler(newFakeSubscriptionRepo(), newFakeUserRepo(), nil)
	err := rec.Reconcile(context.Background(), SubscriptionCancelled{StripeSubscriptionID: "sub_never_seen"})
	assert.NoError(t, err)
}

func TestReconcile_CheckoutCompleted_SubscriptionMode(t *testing.T) {
	user := newCustomer("jordan@example.com", "")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	provider := &fakeProvider{subscriptions: map[string]*ProviderSubscription{
		"sub_123": {
			ID:          "sub_123",
			CustomerID:  "cus_abc",
			PriceID:     "price_premium_monthly",
			Status:      "active",
			PeriodStart: reconcilerNow,
			PeriodEnd:   reconcilerNow.Add(30 * 24 * time.Hour),
		},
	}}
	rec := NewReconciler(subs, users, provider)

	err := rec.Reconcile(context.Background(), CheckoutCompleted{
		SessionID:      "cs_1",
		CustomerID:     "cus_abc",
		CustomerEmail:  "jordan@example.com",
		SubscriptionID: "sub_123",
		Mode:           "subscription",
	})
	require.NoError(t, err)

	record := subs.records["sub_123"]
	require.NotNil(t, record)
	assert.Equal(t, user.ID, record.UserID)
	assert.Equal(t, domain.SubPlanStandard, record.PlanType, "checkout alone only writes the provisional plan")
	assert.Equal(t, "cus_abc", user.StripeCustomerID, "customer id is remembered on the profile")
}

func TestReconcile_EventOrderingConverges(t *testing.T) {
	provider := &fakeProvider{subscriptions: map[string]*ProviderSubscription{
		"sub_123": {
			ID:          "sub_123",
			CustomerID:  "cus_abc",
			PriceID:     "price_premium_monthly",
			Status:      "active",
			PeriodStart: reconcilerNow,
			PeriodEnd:   reconcilerNow.Add(30 * 24 * time.Hour),
		},
	}}
	checkout := CheckoutCompleted{
		SessionID:      "cs_1",
		CustomerID:     "cus_abc",
		CustomerEmail:  "jordan@example.com",
		SubscriptionID: "sub_123",
		Mode:           "subscription",
	}
	changed := subscriptionChanged("price_premium_monthly")

	orderings := map[string][]Event{
		"checkout first": {checkout, changed},
		"changed first":  {changed, checkout},
	}
	for name, events := range orderings {
		t.Run(name, func(t *testing.T) {
			user := newCustomer("jordan@example.com", "cus_abc")
			subs := newFakeSubscriptionRepo()
			rec := NewReconciler(subs, newFakeUserRepo(user), provider)

			for _, ev := range events {
				require.NoError(t, rec.Reconcile(context.Background(), ev))
			}

			require.Len(t, subs.records, 1)
			record := subs.records["sub_123"]
			assert.Equal(t, domain.SubPlanPremium, record.PlanType, "price-derived plan must win regardless of delivery order")
			assert.Equal(t, user.ID, record.UserID)
		})
	}
}

func TestReconcile_OneTimePayment(t *testing.T) {
	user := newCustomer("jordan@example.com", "")
	subs := newFakeSubscriptionRepo()
	users := newFakeUserRepo(user)
	rec := NewReconciler(subs, users, nil).WithClock(func() time.Time { return reconcilerNow })

	ev := CheckoutCompleted{
		SessionID:  "cs_otp_1",
		CustomerID: "cus_abc",
		Mode:       "payment",
		Metadata:   map[string]string{"userId": user.ID.Hex(), "planType": "OTP"},
	}
	require.NoError(t, rec.Reconcile(context.Background(), ev))

	record := subs.records["cs_otp_1"]
	require.NotNil(t, record, "session id doubles as the record key")
	assert.Equal(t, domain.SubPlanOTP, record.PlanType)
	assert.Equal(t, reconcilerNow, record.StartDate)
	assert.Equal(t, reconcilerNow.Add(30*24*time.Hour), record.EndDate)
	assert.Equal(t, domain.PlanOTP, user.PlanType)

	// Redelivery must not extend the window or duplicate the record.
	rec.now = func() time.Time { return reconcilerNow.Add(48 * time.Hour) }
	require.NoError(t, rec.Reconcile(context.Background(), ev))
	assert.Len(t, subs.records, 1)
	assert.Equal(t, reconcilerNow.Add(30*24*time.Hour), subs.records["cs_otp_1"].EndDate)
}

func TestReconcile_OneTimePayment_InvalidMetadata(t *testing.T) {
	user := newCustomer("jordan@example.com", "")
	subs := newFakeSubscriptionRepo()
	rec := NewReconciler(subs, newFakeUserRepo(user), nil)

	tests := []struct {
		name     string
		metadata map[string]string
	}{
		{"no metadata", nil},
		{"missing user id", map[string]string{"planType": "OTP"}},
		{"wrong plan type", map[string]string{"userId": user.ID.Hex(), "planType": "PREMIUM"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rec.Reconcile(context.Background(), CheckoutCompleted{
				SessionID: "cs_bad",
				Mode:      "payment",
				Metadata:  tt.metadata,
			})
			assert.ErrorIs(t, err, ErrInvalidMetadata)
			assert.Empty(t, subs.records)
		})
	}
}

func TestReconcile_OneTimePayment_UnknownUser(t *testing.T) {
	subs := newFakeSubscriptionRepo()
	rec := NewReconciler(subs, newFakeUserRepo(), nil)

	err := rec.Reconcile(context.Background(), OneTimePaymentCompleted{
		SessionID: "cs_otp_1",
		UserID:    primitive.NewObjectID().Hex(),
		PlanType:  "OTP",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, subs.records)
}

func TestPlanForPrice(t *testing.T) {
	assert.Equal(t, domain.SubPlanPremium, PlanForPrice("price_premium_monthly"))
	assert.Equal(t, domain.SubPlanPremium, PlanForPrice("price_premium_yearly"))
	assert.Equal(t, domain.SubPlanStandard, PlanForPrice("price_standard_monthly"))
	assert.Equal(t, domain.SubPlanTrial, PlanForPrice("price_trial"))
	assert.Equal(t, domain.SubPlanStandard, PlanForPrice("price_nobody_configured"))
}
