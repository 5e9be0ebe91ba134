package models

import "time"

// Currency is an uppercase ISO 4217 code from the supported set.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// SupportedCurrencies lists every currency the price table always carries.
var SupportedCurrencies = []Currency{CurrencyINR, CurrencyUSD, CurrencyEUR}

// PlanKey identifies a subscription tier.
type PlanKey string

const (
	PlanBasic   PlanKey = "basic"
	PlanPremium PlanKey = "premium"
	PlanPro     PlanKey = "pro"
)

// PlanKeys lists the tiers in display order.
var PlanKeys = []PlanKey{PlanBasic, PlanPremium, PlanPro}

// PlanPrices maps a plan to an amount in the currency's minor unit.
type PlanPrices map[PlanKey]int64

// Clone returns an independent copy. A nil map clones to an empty one.
func (p PlanPrices) Clone() PlanPrices {
	out := make(PlanPrices, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// PriceTable maps a currency to its plan prices.
type PriceTable map[Currency]PlanPrices

// Clone returns a deep copy of the table.
func (t PriceTable) Clone() PriceTable {
	out := make(PriceTable, len(t))
	for cur, prices := range t {
		out[cur] = prices.Clone()
	}
	return out
}

// MechanicKind names the first discount mechanic found on an offer record.
type MechanicKind string

const (
	MechanicNone       MechanicKind = ""
	MechanicOverride   MechanicKind = "override"
	MechanicPrice      MechanicKind = "price"
	MechanicPercentOff MechanicKind = "percent_off"
	MechanicFlatOff    MechanicKind = "flat_off"
)

// Mechanics holds every discount shape parsed from one offer record.
// Override entries are authoritative for their plan; the other fields layer
// on top of each other in the order they are declared here.
type Mechanics struct {
	Primary       MechanicKind `json:"primary,omitempty"`
	Override      PlanPrices   `json:"override_minor,omitempty"`
	PriceMinor    *int64       `json:"price_minor,omitempty"`
	PercentOff    *float64     `json:"percent_off,omitempty"`
	FlatOffMinor  *int64       `json:"flat_off_minor,omitempty"`
	FlatOffByPlan PlanPrices   `json:"flat_off_by_plan_minor,omitempty"`
}

// Empty reports whether the offer carries no usable discount.
func (m Mechanics) Empty() bool {
	return len(m.Override) == 0 && m.PriceMinor == nil && m.PercentOff == nil &&
		m.FlatOffMinor == nil && len(m.FlatOffByPlan) == 0
}

// Offer is a promotional offer candidate normalized from an upstream payload.
type Offer struct {
	ID          string     `json:"id,omitempty"`
	Label       string     `json:"label,omitempty"`
	Description string     `json:"description,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Currency    Currency   `json:"currency,omitempty"` // may be outside SupportedCurrencies
	Plan        PlanKey    `json:"plan,omitempty"`
	Active      *bool      `json:"active,omitempty"` // nil means unset
	Mechanics   Mechanics  `json:"mechanics"`
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	c := *o
	if o.StartsAt != nil {
		t := *o.StartsAt
		c.StartsAt = &t
	}
	if o.EndsAt != nil {
		t := *o.EndsAt
		c.EndsAt = &t
	}
	if o.Active != nil {
		b := *o.Active
		c.Active = &b
	}
	if o.Mechanics.Override != nil {
		c.Mechanics.Override = o.Mechanics.Override.Clone()
	}
	if o.Mechanics.FlatOffByPlan != nil {
		c.Mechanics.FlatOffByPlan = o.Mechanics.FlatOffByPlan.Clone()
	}
	if o.Mechanics.PriceMinor != nil {
		v := *o.Mechanics.PriceMinor
		c.Mechanics.PriceMinor = &v
	}
	if o.Mechanics.PercentOff != nil {
		v := *o.Mechanics.PercentOff
		c.Mechanics.PercentOff = &v
	}
	if o.Mechanics.FlatOffMinor != nil {
		v := *o.Mechanics.FlatOffMinor
		c.Mechanics.FlatOffMinor = &v
	}
	return &c
}

// Status is the refresh controller's lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// PricingState is the resolved, display-ready pricing snapshot.
type PricingState struct {
	Status       Status            `json:"status"`
	Currency     Currency          `json:"currency"`
	Symbol       string            `json:"symbol"`
	BasePrices   PlanPrices        `json:"base_prices_minor"`
	FinalPrices  PlanPrices        `json:"final_prices_minor"`
	Table        PriceTable        `json:"table_minor"`
	ActiveOffer  *Offer            `json:"active_offer,omitempty"`
	DisplayOffer *Offer            `json:"display_offer,omitempty"`
	Offers       []*Offer          `json:"offers,omitempty"` // every candidate, declared order
	Meta         map[string]string `json:"meta,omitempty"`
	Loading      bool              `json:"loading"`
	Error        string            `json:"error,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers never alias the controller's cell.
func (s *PricingState) Clone() *PricingState {
	if s == nil {
		return nil
	}
	c := *s
	c.BasePrices = s.BasePrices.Clone()
	c.FinalPrices = s.FinalPrices.Clone()
	c.Table = s.Table.Clone()
	c.ActiveOffer = s.ActiveOffer.Clone()
	c.DisplayOffer = s.DisplayOffer.Clone()
	if s.Offers != nil {
		c.Offers = make([]*Offer, len(s.Offers))
		for i, o := range s.Offers {
			c.Offers[i] = o.Clone()
		}
	}
	if s.Meta != nil {
		c.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

// PlanFeatures is the display-only catalogue entry for a plan.
type PlanFeatures struct {
	Uploads  string   `json:"uploads"`
	Features []string `json:"features"`
}

// PlanView is one plan line of the pricing response.
type PlanView struct {
	Plan         PlanKey      `json:"plan"`
	BaseMinor    int64        `json:"base_minor"`
	FinalMinor   int64        `json:"final_minor"`
	BaseDisplay  string       `json:"base_display"`
	FinalDisplay string       `json:"final_display"`
	Discounted   bool         `json:"discounted"`
	Catalogue    PlanFeatures `json:"catalogue"`
}

// OfferView decorates an offer with countdown information.
type OfferView struct {
	Offer
	Applied         bool   `json:"applied"`
	StartsInSeconds *int64 `json:"starts_in_seconds,omitempty"`
	EndsInSeconds   *int64 `json:"ends_in_seconds,omitempty"`
}

// PricingResponse is the body of GET /pricing.
type PricingResponse struct {
	Status       Status            `json:"status"`
	Currency     Currency          `json:"currency"`
	Symbol       string            `json:"symbol"`
	Locale       string            `json:"locale"`
	Plans        []PlanView        `json:"plans"`
	Table        PriceTable        `json:"table_minor"`
	ActiveOffer  *OfferView        `json:"active_offer,omitempty"`
	DisplayOffer *OfferView        `json:"display_offer,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	Loading      bool              `json:"loading"`
	Error        string            `json:"error,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EvaluateResponse is the body of GET /pricing/offers/evaluate.
type EvaluateResponse struct {
	At          time.Time  `json:"at"`
	Currency    Currency   `json:"currency"`
	ActiveOffer *Offer     `json:"active_offer,omitempty"`
	FinalPrices PlanPrices `json:"final_prices_minor"`
}

// Snapshot is one recorded publication of the pricing state.
type Snapshot struct {
	ID          string     `json:"id"` // uuid
	Currency    Currency   `json:"currency"`
	Status      Status     `json:"status"`
	OfferID     string     `json:"offer_id,omitempty"`
	FinalPrices PlanPrices `json:"final_prices_minor"`
	Error       string     `json:"error,omitempty"`
	RecordedAt  time.Time  `json:"recorded_at"`
}

// SetCurrencyRequest is the body of PUT /pricing/currency.
type SetCurrencyRequest struct {
	Currency string `json:"currency"`
}

// VisibilityRequest is the body of POST /pricing/visibility.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// AcceptedResponse acknowledges an asynchronous trigger.
type AcceptedResponse struct {
	Accepted bool     `json:"accepted"`
	Currency Currency `json:"currency"`
}

// HistoryResponse is the body of GET /pricing/history.
type HistoryResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
