// Package billing reconciles billing-provider webhook events into internal
// subscription records. Delivery is at-least-once, so every write is keyed
// on the provider subscription id (or the checkout session id for one-time
// purchases) and reprocessing an event is a no-op update, never a duplicate
// insert.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trainwise/studio-backend/internal/domain"
	"trainwise/studio-backend/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUserNotFound    = errors.New("billing: no user for billing event")
	ErrInvalidMetadata = errors.New("billing: checkout metadata missing or invalid")
	ErrUnhandledEvent  = errors.New("billing: unhandled event type")
)

// ProviderSubscription is the subset of a provider subscription the
// reconciler reads back when a checkout event arrives without full state.
type ProviderSubscription struct {
	ID          string
	CustomerID  string
	PriceID     string
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Provider is the read side of the billing provider used during
// reconciliation. Implemented by the stripe client; faked in tests.
type Provider interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
}

// otpValidity is how long a one-time purchase grants access.
const otpValidity = 30 * 24 * time.Hour

// Reconciler applies billing events to the subscription store. It is
// stateless; concurrent deliveries for the same subscription serialize on
// the store's unique subscription-id index.
type Reconciler struct {
	subscriptions repository.SubscriptionRepository
	users         repository.UserRepository
	provider      Provider
	now           func() time.Time
}

// NewReconciler creates a Reconciler. provider may be nil if no
// subscription-mode checkouts are expected (tests).
func NewReconciler(subscriptions repository.SubscriptionRepository, users repository.UserRepository, provider Provider) *Reconciler {
	return &Reconciler{
		subscriptions: subscriptions,
		users:         users,
		provider:      provider,
		now:           time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile applies one event. The returned error is informational for the
// caller: the webhook handler logs it and still acknowledges the delivery,
// since these failures are data-level, not transient.
func (r *Reconciler) Reconcile(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case SubscriptionChanged:
		return r.applySubscriptionChanged(ctx, ev)
	case SubscriptionCancelled:
		return r.applySubscriptionCancelled(ctx, ev)
	case CheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, ev)
	case OneTimePaymentCompleted:
		return r.applyOneTimePayment(ctx, ev)
	}
	return fmt.Errorf("%w: %T", ErrUnhandledEvent, event)
}

// applySubscriptionChanged handles subscription created/updated. Both carry
// full state, so this is the authoritative write: it sets the plan type
// derived from the price id, overwriting any provisional value a checkout
// event may have stored.
func (r *Reconciler) applySubscriptionChanged(ctx context.Context, ev SubscriptionChanged) error {
	plan := PlanForPrice(ev.PriceID)
	status := subscriptionStatusFromProvider(ev.Status)

	existing, err := r.subscriptions.GetByStripeSubscriptionID(ctx, ev.StripeSubscriptionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if existing != nil {
		existing.PlanType = plan
		existing.Status = status
		existing.StartDate = ev.PeriodStart
		existing.EndDate = ev.PeriodEnd
		if ev.StripeCustomerID != "" {
			existing.StripeCustomerID = ev.StripeCustomerID
		}
		if err := r.subscriptions.Update(ctx, existing); err != nil {
			return err
		}
		return r.mirrorPlanToProfile(ctx, existing.UserID, plan, status)
	}

	userID, err := r.resolveUserByCustomerID(ctx, ev.StripeCustomerID)
	if err != nil {
		log.Printf("WARN: billing: subscription %s changed but no user for customer %s, skipping", ev.StripeSubscriptionID, ev.StripeCustomerID)
		return err
	}

	record := &domain.SubscriptionRecord{
		UserID:               userID,
		PlanType:             plan,
		StripeSubscriptionID: ev.StripeSubscriptionID,
		StripeCustomerID:     ev.StripeCustomerID,
		Status:               status,
		StartDate:            ev.PeriodStart,
		EndDate:              ev.PeriodEnd,
	}
	if _, err := r.subscriptions.Create(ctx, record); err != nil {
		// A concurrent delivery may have inserted first; the unique index on
		// the subscription id turns the race into a retryable update.
		if errors.Is(err, repository.ErrDuplicate) {
			return r.applySubscriptionChanged(ctx, ev)
		}
		return err
	}
	return r.mirrorPlanToProfile(ctx, userID, plan, status)
}

func (r *Reconciler) applySubscriptionCancelled(ctx context.Context, ev SubscriptionCancelled) error {
	// updateMany for resilience: there should be at most one matching
	// record, but a historical duplicate must not survive cancellation.
	n, err := r.subscriptions.CancelByStripeSubscriptionID(ctx, ev.StripeSubscriptionID)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Printf("WARN: billing: cancellation for unknown subscription %s", ev.StripeSubscriptionID)
	}
	return nil
}

// applyCheckoutCompleted handles checkout.session.completed.
//
// Subscription mode is provisional: the session does not carry the price, so
// the record is written with plan STANDARD and the authoritative plan
// arrives via SubscriptionChanged. Delivery order between the two events is
// not guaranteed, so both paths upsert on the subscription id; whichever
// lands second becomes an update, and the provisional plan is only applied
// on insert so it can never clobber a price-derived plan.
func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, ev CheckoutCompleted) error {
	if ev.Mode == "payment" {
		otp, err := oneTimeFromCheckout(ev)
		if err != nil {
			return err
		}
		return r.applyOneTimePayment(ctx, otp)
	}

	if ev.SubscriptionID == "" {
		return fmt.Errorf("%w: subscription-mode checkout %s has no subscription id", ErrInvalidMetadata, ev.SessionID)
	}

	sub, err := r.provider.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return fmt.Errorf("billing: retrieve subscription %s: %w", ev.SubscriptionID, err)
	}

	user, err := r.users.GetByEmail(ctx, ev.CustomerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("WARN: billing: checkout %s completed but no user with email %s, skipping", ev.SessionID, ev.CustomerEmail)
			return fmt.Errorf("%w: email %s", ErrUserNotFound, ev.CustomerEmail)
		}
		return err
	}

	// Remember the customer id on the profile so later subscription events
	// can resolve this user without a checkout in between.
	if ev.CustomerID != "" && user.StripeCustomerID != ev.CustomerID {
		if err := r.users.SetStripeCustomerID(ctx, user.ID, ev.CustomerID); err != nil {
			log.Printf("WARN: billing: failed to store customer id on user %s: %v", user.ID.Hex(), err)
		}
	}

	existing, err := r.subscriptions.GetByStripeSubscriptionID(ctx, ev.SubscriptionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil {
		// SubscriptionChanged got here first; refresh period only, the plan
		// it derived from the price id is better than our provisional one.
		existing.StartDate = sub.PeriodStart
		existing.EndDate = sub.PeriodEnd
		if ev.CustomerID != "" {
			existing.StripeCustomerID = ev.CustomerID
		}
		return r.subscriptions.Update(ctx, existing)
	}

	record := &domain.SubscriptionRecord{
		UserID:               user.ID,
		PlanType:             domain.SubPlanStandard, // provisional, corrected by SubscriptionChanged
		StripeSubscriptionID: ev.SubscriptionID,
		StripeCustomerID:     ev.CustomerID,
		Status:               subscriptionStatusFromProvider(sub.Status),
		StartDate:            sub.PeriodStart,
		EndDate:              sub.PeriodEnd,
	}
	if _, err := r.subscriptions.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return r.applyCheckoutCompleted(ctx, ev)
		}
		return err
	}
	return nil
}

func (r *Reconciler) applyOneTimePayment(ctx context.Context, ev OneTimePaymentCompleted) error {
	if ev.UserID == "" || ev.PlanType != string(domain.SubPlanOTP) {
		return fmt.Errorf("%w: session %s userId=%q planType=%q", ErrInvalidMetadata, ev.SessionID, ev.UserID, ev.PlanType)
	}
	user, err := r.users.GetByHexID(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("WARN: billing: one-time payment %s for unknown user %s, skipping", ev.SessionID, ev.UserID)
			return fmt.Errorf("%w: id %s", ErrUserNotFound, ev.UserID)
		}
		return err
	}

	// The session id doubles as the subscription id since no provider
	// subscription exists for a one-time purchase.
	existing, err := r.subscriptions.GetByStripeSubscriptionID(ctx, ev.SessionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil {
		return nil // redelivery
	}

	now := r.now().UTC()
	record := &domain.SubscriptionRecord{
		UserID:               user.ID,
		PlanType:             domain.SubPlanOTP,
		StripeSubscriptionID: ev.SessionID,
		StripeCustomerID:     ev.CustomerID,
		Status:               domain.SubscriptionActive,
		StartDate:            now,
		EndDate:              now.Add(otpValidity),
	}
	if _, err := r.subscriptions.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil // concurrent redelivery
		}
		return err
	}
	return r.mirrorPlanToProfile(ctx, user.ID, domain.SubPlanOTP, domain.SubscriptionActive)
}

// oneTimeFromCheckout lifts a payment-mode checkout session into a one-time
// payment event, pulling user and plan from the session metadata.
func oneTimeFromCheckout(ev CheckoutCompleted) (OneTimePaymentCompleted, error) {
	userID := ev.Metadata["userId"]
	planType := ev.Metadata["planType"]
	if userID == "" || planType != string(domain.SubPlanOTP) {
		return OneTimePaymentCompleted{}, fmt.Errorf("%w: session %s userId=%q planType=%q", ErrInvalidMetadata, ev.SessionID, userID, planType)
	}
	return OneTimePaymentCompleted{
		SessionID:  ev.SessionID,
		CustomerID: ev.CustomerID,
		UserID:     userID,
		PlanType:   planType,
	}, nil
}

// resolveUserByCustomerID finds the user for a Stripe customer, first via an
// existing subscription record, then via the customer id stored on the
// profile.
func (r *Reconciler) resolveUserByCustomerID(ctx context.Context, customerID string) (primitive.ObjectID, error) {
	if customerID == "" {
		return primitive.NilObjectID, fmt.Errorf("%w: event has no customer id", ErrUserNotFound)
	}
	record, err := r.subscriptions.GetLatestByStripeCustomerID(ctx, customerID)
	if err == nil {
		return record.UserID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, err
	}
	user, err := r.users.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fmt.Errorf("%w: customer %s", ErrUserNotFound, customerID)
		}
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

// mirrorPlanToProfile keeps the customer's profile plan in step with the
// active subscription. Failures here are logged, not propagated: the
// subscription record is the source of truth and the profile catches up on
// the next event.
func (r *Reconciler) mirrorPlanToProfile(ctx context.Context, userID primitive.ObjectID, plan domain.SubscriptionPlan, status domain.SubscriptionStatus) error {
	if status != domain.SubscriptionActive {
		return nil
	}
	if err := r.users.SetPlanType(ctx, userID, plan.ProfilePlanType()); err != nil {
		log.Printf("WARN: billing: failed to mirror plan %s to user %s: %v", plan, userID.Hex(), err)
	}
	return nil
}

// subscriptionStatusFromProvider folds the provider's status vocabulary into
// the internal two-state one.
func subscriptionStatusFromProvider(s string) domain.SubscriptionStatus {
	switch s {
	case "canceled", "unpaid", "incomplete_expired":
		return domain.SubscriptionCancelled
	default:
		return domain.SubscriptionActive
	}
}
