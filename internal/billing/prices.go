package billing

import (
	"log"

	"trainwise/studio-backend/internal/domain"
)

// priceToPlan maps Stripe price ids to internal plan tiers. Prices are
// created by hand in the Stripe dashboard, so new ones appear here before
// they go live; an id missing from the table falls back to STANDARD rather
// than failing the webhook.
var priceToPlan = map[string]domain.SubscriptionPlan{
	"price_premium_monthly":  domain.SubPlanPremium,
	"price_premium_yearly":   domain.SubPlanPremium,
	"price_standard_monthly": domain.SubPlanStandard,
	"price_standard_yearly":  domain.SubPlanStandard,
	"price_trial":            domain.SubPlanTrial,
}

// PlanForPrice resolves a Stripe price id to a subscription plan. Unknown
// price ids map to STANDARD with a warning; they never fail the event.
func PlanForPrice(priceID string) domain.SubscriptionPlan {
	if plan, ok := priceToPlan[priceID]; ok {
		return plan
	}
	log.Printf("WARN: billing: unknown price id %q, defaulting plan to STANDARD", priceID)
	return domain.SubPlanStandard
}

// KnownPriceIDs returns the configured price ids, for diagnostics.
func KnownPriceIDs() []string {
	ids := make([]string, 0, len(priceToPlan))
	for id := range priceToPlan {
		ids = append(ids, id)
	}
	return ids
}
