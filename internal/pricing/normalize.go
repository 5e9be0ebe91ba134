package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"resume-pricing-api/internal/models"
)

// Plan spellings, canonical name first. When a payload carries several
// spellings of one plan the earliest listed wins.
var planSpellings = []struct {
	name string
	plan models.PlanKey
}{
	{"basic", models.PlanBasic},
	{"free", models.PlanBasic},
	{"starter", models.PlanBasic},
	{"premium", models.PlanPremium},
	{"standard", models.PlanPremium},
	{"plus", models.PlanPremium},
	{"pro", models.PlanPro},
	{"professional", models.PlanPro},
	{"enterprise", models.PlanPro},
	{"business", models.PlanPro},
}

var (
	planSynonyms = map[string]models.PlanKey{}
	planRank     = map[string]int{}
)

func init() {
	for i, s := range planSpellings {
		planSynonyms[s.name] = s.plan
		planRank[s.name] = i
	}
}

// NormalizeCurrency maps any casing of a supported code to its Currency.
func NormalizeCurrency(v any) (models.Currency, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	c := models.Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, supported := range models.SupportedCurrencies {
		if c == supported {
			return c, true
		}
	}
	return "", false
}

// NormalizePlan maps a plan name or synonym to its PlanKey.
func NormalizePlan(v any) (models.PlanKey, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	p, ok := planSynonyms[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// spellingRank orders keys that normalize to the same plan; lower wins.
// An exact lowercase spelling beats other casings of it.
func spellingRank(key string) int {
	norm := strings.ToLower(strings.TrimSpace(key))
	r := 2 * planRank[norm]
	if key != norm {
		r++
	}
	return r
}

// toFloat accepts JSON numbers, Go numeric types and numeric strings.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toMinor rounds a numeric value to a minor-unit amount. Negative amounts
// are rejected.
func toMinor(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	r := math.Round(f)
	if r < 0 || r > math.MaxInt64/2 {
		return 0, false
	}
	return int64(r), true
}

// toBool reads the tri-state active flag. Unrecognized values are unset.
func toBool(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			b = true
		case "false", "0", "no", "off":
			b = false
		default:
			return nil
		}
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil
		}
		b = f != 0
	}
	return &b
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime parses RFC3339-ish strings and unix epochs (seconds or millis).
// Anything else is treated as absent.
func toTime(v any) *time.Time {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil
		}
	}
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return nil
	}
	var t time.Time
	if f >= 1e12 {
		t = time.UnixMilli(int64(f)).UTC()
	} else {
		t = time.Unix(int64(f), 0).UTC()
	}
	return &t
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// lookup follows a dotted path through nested objects.
func lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// first returns the first present value among the probed paths.
func first(m map[string]any, paths ...string) (any, bool) {
	for _, p := range paths {
		if v, ok := lookup(m, p); ok {
			return v, true
		}
	}
	return nil, false
}
