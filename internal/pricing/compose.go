package pricing

import (
	"math"

	"resume-pricing-api/internal/models"
)

// ApplyOffer composes the final prices for one currency. A nil offer yields
// a copy of base. Every resulting amount is floored at zero.
func ApplyOffer(base models.PlanPrices, offer *models.Offer) models.PlanPrices {
	out := base.Clone()
	if offer == nil {
		return out
	}
	m := offer.Mechanics
	for plan, amount := range out {
		if v, ok := m.Override[plan]; ok {
			out[plan] = clamp(v)
			continue
		}
		targeted := offer.Plan == "" || offer.Plan == plan

		if m.PriceMinor != nil && offer.Plan == plan {
			amount = *m.PriceMinor
		}
		if m.PercentOff != nil && (offer.Plan == plan || (offer.Plan == "" && amount > 0)) {
			amount = percentOff(amount, *m.PercentOff)
		}
		if m.FlatOffMinor != nil && targeted {
			amount = clamp(amount - *m.FlatOffMinor)
		}
		if v, ok := m.FlatOffByPlan[plan]; ok {
			amount = clamp(amount - v)
		}
		out[plan] = clamp(amount)
	}
	return out
}

// percentOff is the only float step; the result is rounded back to an
// integer amount before anything else touches it.
func percentOff(amount int64, pct float64) int64 {
	if pct <= 0 {
		return amount
	}
	if pct >= 100 {
		return 0
	}
	return clamp(int64(math.Round(float64(amount) * (1 - pct/100))))
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
