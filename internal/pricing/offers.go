package pricing

import (
	"strings"
	"time"

	"resume-pricing-api/internal/models"
)

// Probe order for offer records; every record found is kept in this order.
var offerProbes = []string{
	"active_offer",
	"activeOffer",
	"offer",
	"offers",
	"limited_time_offers",
	"limitedTimeOffers",
}

var (
	offerIDKeys          = []string{"id", "offer_id", "code"}
	offerLabelKeys       = []string{"label", "title", "name"}
	offerDescriptionKeys = []string{"description", "subtitle", "details"}
	offerStartKeys       = []string{"starts_at", "startsAt", "start_at", "start", "valid_from"}
	offerEndKeys         = []string{"ends_at", "endsAt", "end_at", "end", "expires_at", "valid_until"}
	offerCurrencyKeys    = []string{"currency", "currency_code"}
	offerPlanKeys        = []string{"plan", "plan_key", "target_plan", "planKey"}
	offerActiveKeys      = []string{"active", "is_active", "isActive", "enabled"}

	overrideMapKeys   = []string{"override_prices_minor", "overridePricesMinor", "prices_minor_by_currency", "overrides"}
	overrideTableKeys = []string{"price_table", "pricing_minor", "prices_minor", "pricing"}
	priceKeys         = []string{"price_minor", "offer_price_minor", "offerPriceMinor", "final_price_minor", "amount_minor"}
	percentKeys       = []string{"percent_off", "percentOff", "discount_percent", "percentage_off"}
	flatKeys          = []string{"flat_off_minor", "flatOffMinor", "amount_off_minor", "discount_minor"}
	flatByPlanKeys    = []string{"flat_off_by_plan_minor", "flatOffByPlanMinor"}
)

// NormalizeOffers returns every offer record found in the payload, in
// declared order, without judging activation. fallback is the currency an
// offer without its own currency is resolved against.
func NormalizeOffers(raw map[string]any, fallback models.Currency) []*models.Offer {
	if raw == nil {
		return nil
	}
	var out []*models.Offer
	for _, key := range offerProbes {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch rec := v.(type) {
		case map[string]any:
			out = append(out, NormalizeOffer(rec, fallback))
		case []any:
			for _, item := range rec {
				if obj, ok := item.(map[string]any); ok {
					out = append(out, NormalizeOffer(obj, fallback))
				}
			}
		}
	}
	return out
}

// NormalizeOffer normalizes one offer record. Missing or malformed
// mechanics leave the offer informational only.
func NormalizeOffer(rec map[string]any, fallback models.Currency) *models.Offer {
	o := &models.Offer{}
	if v, ok := first(rec, offerIDKeys...); ok {
		o.ID = toString(v)
	}
	if v, ok := first(rec, offerLabelKeys...); ok {
		o.Label = toString(v)
	}
	if v, ok := first(rec, offerDescriptionKeys...); ok {
		o.Description = toString(v)
	}
	if v, ok := first(rec, offerStartKeys...); ok {
		o.StartsAt = toTime(v)
	}
	if v, ok := first(rec, offerEndKeys...); ok {
		o.EndsAt = toTime(v)
	}
	if v, ok := first(rec, offerCurrencyKeys...); ok {
		o.Currency = offerCurrency(v)
	}
	if v, ok := first(rec, offerPlanKeys...); ok {
		if plan, ok := NormalizePlan(v); ok {
			o.Plan = plan
		}
	}
	if v, ok := first(rec, offerActiveKeys...); ok {
		o.Active = toBool(v)
	}

	resolved := o.Currency
	if resolved == "" {
		resolved = fallback
	}
	o.Mechanics = parseMechanics(rec, resolved, o.Plan)
	return o
}

// offerCurrency keeps an unsupported code uppercased so the offer stays
// targeted at it and never activates for a supported currency.
func offerCurrency(v any) models.Currency {
	if cur, ok := NormalizeCurrency(v); ok {
		return cur
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return models.Currency(strings.ToUpper(strings.TrimSpace(s)))
}

func parseMechanics(rec map[string]any, cur models.Currency, plan models.PlanKey) models.Mechanics {
	var m models.Mechanics

	if cur != "" {
		for _, keys := range [][]string{overrideMapKeys, overrideTableKeys} {
			if v, ok := first(rec, keys...); ok {
				if prices := parseTable(v, cur)[cur]; len(prices) > 0 {
					m.Override = prices
					break
				}
			}
		}
	}
	if plan != "" {
		if v, ok := first(rec, priceKeys...); ok {
			if minor, ok := toMinor(v); ok {
				m.PriceMinor = &minor
			}
		}
	}
	if v, ok := first(rec, percentKeys...); ok {
		if pct, ok := toFloat(v); ok && pct > 0 {
			if pct > 100 {
				pct = 100
			}
			m.PercentOff = &pct
		}
	}
	if v, ok := first(rec, flatKeys...); ok {
		if byPlan := parsePlanPrices(v); byPlan != nil {
			m.FlatOffByPlan = positive(byPlan)
		} else if minor, ok := toMinor(v); ok && minor > 0 {
			m.FlatOffMinor = &minor
		}
	}
	if m.FlatOffByPlan == nil {
		if v, ok := first(rec, flatByPlanKeys...); ok {
			m.FlatOffByPlan = positive(parsePlanPrices(v))
		}
	}

	switch {
	case len(m.Override) > 0:
		m.Primary = models.MechanicOverride
	case m.PriceMinor != nil:
		m.Primary = models.MechanicPrice
	case m.PercentOff != nil:
		m.Primary = models.MechanicPercentOff
	case m.FlatOffMinor != nil || len(m.FlatOffByPlan) > 0:
		m.Primary = models.MechanicFlatOff
	}
	return m
}

// positive drops zero deductions; an empty result is nil.
func positive(p models.PlanPrices) models.PlanPrices {
	var out models.PlanPrices
	for plan, v := range p {
		if v <= 0 {
			continue
		}
		if out == nil {
			out = models.PlanPrices{}
		}
		out[plan] = v
	}
	return out
}

// EncodeOffer renders a normalized offer back into the canonical record
// shape accepted by NormalizeOffer.
func EncodeOffer(o *models.Offer) map[string]any {
	if o == nil {
		return nil
	}
	rec := map[string]any{}
	if o.ID != "" {
		rec["id"] = o.ID
	}
	if o.Label != "" {
		rec["label"] = o.Label
	}
	if o.Description != "" {
		rec["description"] = o.Description
	}
	if o.StartsAt != nil {
		rec["starts_at"] = o.StartsAt.UTC().Format(time.RFC3339Nano)
	}
	if o.EndsAt != nil {
		rec["ends_at"] = o.EndsAt.UTC().Format(time.RFC3339Nano)
	}
	if o.Currency != "" {
		rec["currency"] = string(o.Currency)
	}
	if o.Plan != "" {
		rec["plan"] = string(o.Plan)
	}
	if o.Active != nil {
		rec["active"] = *o.Active
	}
	m := o.Mechanics
	if len(m.Override) > 0 {
		rec["override_prices_minor"] = encodePlanPrices(m.Override)
	}
	if m.PriceMinor != nil {
		rec["price_minor"] = *m.PriceMinor
	}
	if m.PercentOff != nil {
		rec["percent_off"] = *m.PercentOff
	}
	if m.FlatOffMinor != nil {
		rec["flat_off_minor"] = *m.FlatOffMinor
	}
	if len(m.FlatOffByPlan) > 0 {
		rec["flat_off_by_plan_minor"] = encodePlanPrices(m.FlatOffByPlan)
	}
	return rec
}

func encodePlanPrices(p models.PlanPrices) map[string]any {
	out := make(map[string]any, len(p))
	for plan, v := range p {
		out[string(plan)] = v
	}
	return out
}
