package billing

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the tagged union of billing-provider events the reconciler
// handles. The sealed marker method keeps the set closed so the type switch
// in Reconcile stays exhaustive.
type Event interface {
	billingEvent()
}

// SubscriptionChanged covers customer.subscription.created and
// customer.subscription.updated: both carry the full subscription state, so
// the reconciler treats them identically.
type SubscriptionChanged struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	PriceID              string
	Status               string
	PeriodStart          time.Time
	PeriodEnd            time.Time
}

// SubscriptionCancelled covers customer.subscription.deleted.
type SubscriptionCancelled struct {
	StripeSubscriptionID string
}

// CheckoutCompleted covers checkout.session.completed in both modes.
type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string // empty in payment mode
	Mode           string // "subscription" or "payment"
	Metadata       map[string]string
}

// OneTimePaymentCompleted is a one-time purchase (payment-mode checkout).
// UserID and PlanType come from checkout metadata and are validated by the
// reconciler.
type OneTimePaymentCompleted struct {
	SessionID  string
	CustomerID string
	UserID     string
	PlanType   string
}

func (SubscriptionChanged) billingEvent()     {}
func (SubscriptionCancelled) billingEvent()   {}
func (CheckoutCompleted) billingEvent()       {}
func (OneTimePaymentCompleted) billingEvent() {}

// Raw Stripe payload shapes, limited to the fields consumed here.

type rawSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type rawCheckoutSession struct {
	ID             string            `json:"id"`
	Customer       string            `json:"customer"`
	Mode           string            `json:"mode"`
	Subscription   string            `json:"subscription"`
	Metadata       map[string]string `json:"metadata"`
	CustomerDetail struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// ParseEvent maps a verified webhook event (type + raw data object) to the
// internal event union. Unhandled event types return (nil, nil): the caller
// acknowledges them without doing anything.
func ParseEvent(eventType string, data json.RawMessage) (Event, error) {
	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub rawSubscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("billing: decode %s: %w", eventType, err)
		}
		ev := SubscriptionChanged{
			StripeSubscriptionID: sub.ID,
			StripeCustomerID:     sub.Customer,
			Status:               sub.Status,
			PeriodStart:          time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			PeriodEnd:            time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		}
		if len(sub.Items.Data) > 0 {
			ev.PriceID = sub.Items.Data[0].Price.ID
		}
		return ev, nil

	case "customer.subscription.deleted":
		var sub rawSubscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("billing: decode %s: %w", eventType, err)
		}
		return SubscriptionCancelled{StripeSubscriptionID: sub.ID}, nil

	case "checkout.session.completed":
		var sess rawCheckoutSession
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, fmt.Errorf("billing: decode %s: %w", eventType, err)
		}
		return CheckoutCompleted{
			SessionID:      sess.ID,
			CustomerID:     sess.Customer,
			CustomerEmail:  sess.CustomerDetail.Email,
			SubscriptionID: sess.Subscription,
			Mode:           sess.Mode,
			Metadata:       sess.Metadata,
		}, nil
	}

	return nil, nil
}
