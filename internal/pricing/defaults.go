// Package pricing turns untrusted upstream pricing payloads into
// display-ready price tables. Every function here is pure and never fails:
// malformed input degrades to the compiled-in defaults.
package pricing

import "resume-pricing-api/internal/models"

// DefaultCurrency is used when neither the caller nor the payload names a
// supported currency.
const DefaultCurrency = models.CurrencyUSD

// defaultTable is the compiled-in price table in minor units.
var defaultTable = models.PriceTable{
	models.CurrencyUSD: {models.PlanBasic: 0, models.PlanPremium: 999, models.PlanPro: 1999},
	models.CurrencyINR: {models.PlanBasic: 0, models.PlanPremium: 65000, models.PlanPro: 120000},
	models.CurrencyEUR: {models.PlanBasic: 0, models.PlanPremium: 899, models.PlanPro: 1799},
}

var currencySymbols = map[models.Currency]string{
	models.CurrencyUSD: "$",
	models.CurrencyINR: "₹",
	models.CurrencyEUR: "€",
}

var planCatalogue = map[models.PlanKey]models.PlanFeatures{
	models.PlanBasic: {
		Uploads:  "3 uploads/month",
		Features: []string{"Basic ATS scoring", "Resume analysis", "Standard support"},
	},
	models.PlanPremium: {
		Uploads:  "25 uploads/month",
		Features: []string{"Advanced ATS scoring", "Detailed feedback", "Job matching", "Priority support"},
	},
	models.PlanPro: {
		Uploads:  "100 uploads/month",
		Features: []string{"Everything in Premium", "Custom resume builder", "API access", "Dedicated support"},
	},
}

// DefaultTable returns a fresh copy of the compiled-in price table.
func DefaultTable() models.PriceTable {
	return defaultTable.Clone()
}

// DefaultPrices returns the compiled-in prices for one currency.
func DefaultPrices(cur models.Currency) models.PlanPrices {
	return defaultTable[cur].Clone()
}

// Symbol returns the display symbol for a supported currency, or the code
// itself for anything else.
func Symbol(cur models.Currency) string {
	if s, ok := currencySymbols[cur]; ok {
		return s
	}
	return string(cur)
}

// Catalogue returns the display-only feature list of a plan.
func Catalogue(plan models.PlanKey) models.PlanFeatures {
	f := planCatalogue[plan]
	return models.PlanFeatures{
		Uploads:  f.Uploads,
		Features: append([]string(nil), f.Features...),
	}
}

// MergeTable overlays fragment onto the defaults. The result always holds
// every supported currency and plan.
func MergeTable(fragment models.PriceTable) models.PriceTable {
	out := DefaultTable()
	for cur, prices := range fragment {
		base, ok := out[cur]
		if !ok {
			continue
		}
		for plan, amount := range prices {
			if _, known := base[plan]; !known {
				continue
			}
			if amount < 0 {
				amount = 0
			}
			base[plan] = amount
		}
	}
	return out
}
