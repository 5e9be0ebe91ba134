package pricing

import (
	"time"

	"resume-pricing-api/internal/models"
)

// Resolve runs the whole pipeline over one decoded payload: payload and
// offer normalization, activation and composition. requested is the
// currency the caller asked for; a supported currency declared by the
// payload takes precedence.
func Resolve(raw map[string]any, requested models.Currency, now time.Time) *models.PricingState {
	if _, ok := NormalizeCurrency(string(requested)); !ok {
		requested = DefaultCurrency
	}
	payload := NormalizePayload(raw, requested)
	cur := payload.Currency
	if cur == "" {
		cur = requested
	}

	table := MergeTable(payload.Fragment)
	base := table[cur].Clone()
	candidates := NormalizeOffers(raw, cur)
	active, display := SelectOffer(candidates, cur, now)

	return &models.PricingState{
		Status:       models.StatusReady,
		Currency:     cur,
		Symbol:       Symbol(cur),
		BasePrices:   base,
		FinalPrices:  ApplyOffer(base, active),
		Table:        table,
		ActiveOffer:  active,
		DisplayOffer: display,
		Offers:       candidates,
		Meta:         payload.Meta,
		UpdatedAt:    now,
	}
}

// DefaultState is the state published before any retrieval succeeds, or
// after a failure that cannot keep the previous state.
func DefaultState(cur models.Currency, now time.Time) *models.PricingState {
	if _, ok := NormalizeCurrency(string(cur)); !ok {
		cur = DefaultCurrency
	}
	table := DefaultTable()
	return &models.PricingState{
		Status:      models.StatusIdle,
		Currency:    cur,
		Symbol:      Symbol(cur),
		BasePrices:  table[cur].Clone(),
		FinalPrices: table[cur].Clone(),
		Table:       table,
		UpdatedAt:   now,
	}
}

// Reevaluate recomputes activation and final prices of an existing state at
// another instant, without touching its normalized inputs.
func Reevaluate(state *models.PricingState, at time.Time) (*models.Offer, models.PlanPrices) {
	if state == nil {
		return nil, nil
	}
	active, _ := SelectOffer(state.Offers, state.Currency, at)
	return active, ApplyOffer(state.BasePrices, active)
}
