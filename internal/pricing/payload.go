package pricing

import "resume-pricing-api/internal/models"

// Probe order for a price-table-shaped value inside a payload.
var tableProbes = []string{
	"pricing_minor",
	"prices_minor",
	"price_table",
	"pricing.price_table",
	"pricing.prices_minor",
	"pricing",
	"prices",
}

var currencyProbes = []string{"currency", "currency_code", "pricing.currency"}

var metaKeys = []string{"country", "region", "version", "source", "updated_at", "geo_currency"}

// Payload is the normalized, schema-independent view of an upstream
// pricing response.
type Payload struct {
	Currency models.Currency // empty when the payload declares none
	Fragment models.PriceTable
	Meta     map[string]string
}

// NormalizePayload extracts the declared currency, a price table fragment
// and scalar metadata from an arbitrary decoded payload. A bare plan-keyed
// price map is attributed to the declared currency, or to fallback when the
// payload declares none.
func NormalizePayload(raw map[string]any, fallback models.Currency) Payload {
	p := Payload{Fragment: models.PriceTable{}}
	if raw == nil {
		return p
	}
	if v, ok := first(raw, currencyProbes...); ok {
		if cur, ok := NormalizeCurrency(v); ok {
			p.Currency = cur
		}
	}
	owner := p.Currency
	if owner == "" {
		owner = fallback
	}
	for _, path := range tableProbes {
		v, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if frag := parseTable(v, owner); len(frag) > 0 {
			p.Fragment = frag
			break
		}
	}
	for _, key := range metaKeys {
		if s := toString(raw[key]); s != "" {
			if p.Meta == nil {
				p.Meta = make(map[string]string)
			}
			p.Meta[key] = s
		}
	}
	return p
}

// parseTable reads either a currency-keyed table or, when cur is known, a
// bare plan-keyed map belonging to cur.
func parseTable(v any, cur models.Currency) models.PriceTable {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := models.PriceTable{}
	chosen := map[models.Currency]string{}
	for key, sub := range obj {
		c, ok := NormalizeCurrency(key)
		if !ok {
			continue
		}
		if prev, seen := chosen[c]; seen && !currencyKeyBefore(key, prev, c) {
			continue
		}
		if prices := parsePlanPrices(sub); len(prices) > 0 {
			out[c] = prices
			chosen[c] = key
		}
	}
	if len(out) > 0 || cur == "" {
		return out
	}
	if prices := parsePlanPrices(obj); len(prices) > 0 {
		out[cur] = prices
	}
	return out
}

// currencyKeyBefore reports whether key takes precedence over prev when both
// name c: the uppercase code first, then the lexically smaller key.
func currencyKeyBefore(key, prev string, c models.Currency) bool {
	if (key == string(c)) != (prev == string(c)) {
		return key == string(c)
	}
	return key < prev
}

// parsePlanPrices reads a plan-keyed map, skipping non-numeric or negative
// amounts and unknown plans.
func parsePlanPrices(v any) models.PlanPrices {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := models.PlanPrices{}
	chosen := map[models.PlanKey]string{}
	for key, amount := range obj {
		plan, ok := NormalizePlan(key)
		if !ok {
			continue
		}
		if prev, seen := chosen[plan]; seen && !planKeyBefore(key, prev) {
			continue
		}
		if minor, ok := toMinor(amount); ok {
			out[plan] = minor
			chosen[plan] = key
		}
	}
	return out
}

func planKeyBefore(key, prev string) bool {
	if rk, rp := spellingRank(key), spellingRank(prev); rk != rp {
		return rk < rp
	}
	return key < prev
}
