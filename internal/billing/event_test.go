package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_SubscriptionCreatedAndUpdated(t *testing.T) {
	data := json.RawMessage(`{
		"id": "sub_123",
		"customer": "cus_abc",
		"status": "active",
		"current_period_start": 1740819600,
		"current_period_end": 1743411600,
		"items": {"data": [{"price": {"id": "price_premium_monthly"}}]}
	}`)

	for _, eventType := range []string{"customer.subscription.created", "customer.subscription.updated"} {
		t.Run(eventType, func(t *testing.T) {
			event, err := ParseEvent(eventType, data)
			require.NoError(t, err)

			changed, ok := event.(SubscriptionChanged)
			require.True(t, ok, "expected SubscriptionChanged, got %T", event)
			assert.Equal(t, "sub_123", changed.StripeSubscriptionID)
			assert.Equal(t, "cus_abc", changed.StripeCustomerID)
			assert.Equal(t, "price_premium_monthly", changed.PriceID)
			assert.Equal(t, "active", changed.Status)
			assert.Equal(t, time.Unix(1740819600, 0).UTC(), changed.PeriodStart)
			assert.Equal(t, time.Unix(1743411600, 0).UTC(), changed.PeriodEnd)
		})
	}
}

func TestParseEvent_SubscriptionWithoutItems(t *testing.T) {
	data := json.RawMessage(`{"id": "sub_123", "customer": "cus_abc", "status": "active"}`)

	event, err := ParseEvent("customer.subscription.updated", data)
	require.NoError(t, err)

	changed := event.(SubscriptionChanged)
	assert.Empty(t, changed.PriceID)
}

func TestParseEvent_SubscriptionDeleted(t *testing.T) {
	data := json.RawMessage(`{"id": "sub_123", "customer": "cus_abc", "status": "canceled"}`)

	event, err := ParseEvent("customer.subscription.deleted", data)
	require.NoError(t, err)

	cancelled, ok := event.(SubscriptionCancelled)
	require.True(t, ok, "expected SubscriptionCancelled, got %T", event)
	assert.Equal(t, "sub_123", cancelled.StripeSubscriptionID)
}

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	data := json.RawMessage(`{
		"id": "cs_1",
		"customer": "cus_abc",
		"mode": "subscription",
		"subscription": "sub_123",
		"metadata": {"userId": "64b0c0ffee"},
		"customer_details": {"email": "jordan@example.com"}
	}`)

	event, err := ParseEvent("checkout.session.completed", data)
	require.NoError(t, err)

	checkout, ok := event.(CheckoutCompleted)
	require.True(t, ok, "expected CheckoutCompleted, got %T", event)
	assert.Equal(t, "cs_1", checkout.SessionID)
	assert.Equal(t, "cus_abc", checkout.CustomerID)
	assert.Equal(t, "jordan@example.com", checkout.CustomerEmail)
	assert.Equal(t, "sub_123", checkout.SubscriptionID)
	assert.Equal(t, "subscription", checkout.Mode)
	assert.Equal(t, "64b0c0ffee", checkout.Metadata["userId"])
}

func TestParseEvent_UnhandledTypeIsIgnored(t *testing.T) {
	for _, eventType := range []string{"invoice.paid", "payment_intent.succeeded", "charge.refunded"} {
		event, err := ParseEvent(eventType, json.RawMessage(`{"id": "whatever"}`))
		assert.NoError(t, err)
		assert.Nil(t, event)
	}
}

func TestParseEvent_MalformedData(t *testing.T) {
	_, err := ParseEvent("customer.subscription.updated", json.RawMessage(`{"id": 42}`))
	assert.Error(t, err)
}
