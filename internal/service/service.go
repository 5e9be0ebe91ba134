package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"resume-pricing-api/internal/database"
	"resume-pricing-api/internal/events"
	"resume-pricing-api/internal/features"
	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/pricing"
	"resume-pricing-api/internal/tracing"
	"resume-pricing-api/internal/validation"
)

const defaultLocale = "en"

var (
	// ErrFeatureDisabled is returned when the endpoint's feature flag is off.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrHistoryUnavailable is returned when no history store is configured.
	ErrHistoryUnavailable = errors.New("snapshot history unavailable")
)

// Controller is the part of the refresh controller the service drives.
type Controller interface {
	Snapshot() *models.PricingState
	Refresh() error
	SetCurrency(cur models.Currency) error
	SetVisible(visible bool) error
	Evaluate(at time.Time) (*models.Offer, models.PlanPrices, models.Currency)
}

// History stores published pricing snapshots.
type History interface {
	InsertSnapshot(snap models.Snapshot) (models.Snapshot, error)
	ListSnapshots(limit int) ([]models.Snapshot, error)
}

// Service provides business logic for the pricing API.
type Service struct {
	ctrl    Controller
	history History
	flags   *features.Manager
	now     func() time.Time
}

// Options holds optional collaborators of the service.
type Options struct {
	History History // nil disables the history endpoint
	Flags   *features.Manager
	Events  *events.Manager
	Now     func() time.Time
}

// NewService creates a new service instance. When both a history store and
// an event manager are given, every published or failed state is recorded.
func NewService(ctrl Controller, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Flags == nil {
		opts.Flags = features.NewDefaultManager(nil)
	}
	s := &Service{
		ctrl:    ctrl,
		history: opts.History,
		flags:   opts.Flags,
		now:     opts.Now,
	}
	if s.history != nil {
		opts.Events.Subscribe(events.EventPricingPublished, s.recordSnapshot)
		opts.Events.Subscribe(events.EventPricingFailed, s.recordSnapshot)
	}
	return s
}

func (s *Service) recordSnapshot(ctx context.Context, e events.Event) error {
	if !s.flags.IsEnabled(features.FeatureSnapshotHistory) {
		return nil
	}
	data, ok := e.Data.(events.PricingData)
	if !ok || data.State == nil {
		return fmt.Errorf("unexpected event payload %T", e.Data)
	}
	_, err := s.history.InsertSnapshot(database.SnapshotFromState(data.State, e.Timestamp))
	return err
}

// GetPricing renders the current state for the given locale.
func (s *Service) GetPricing(ctx context.Context, locale string) (models.PricingResponse, error) {
	_, span := tracing.GetTracer().StartSpan(ctx, "service.GetPricing")
	defer span.End()

	locale, err := validation.ValidateLocale(locale, "locale")
	if err != nil {
		return models.PricingResponse{}, err
	}

	state := s.ctrl.Snapshot()
	span.SetAttributes(tracing.StateAttributes(state)...)
	return BuildResponse(state, locale, s.now()), nil
}

// Refresh requests a manual retrieval.
func (s *Service) Refresh(ctx context.Context) (models.AcceptedResponse, error) {
	_, span := tracing.GetTracer().StartSpan(ctx, "service.Refresh")
	defer span.End()

	if err := s.ctrl.Refresh(); err != nil {
		return models.AcceptedResponse{}, fmt.Errorf("failed to trigger refresh: %w", err)
	}
	return models.AcceptedResponse{Accepted: true, Currency: s.ctrl.Snapshot().Currency}, nil
}

// SetCurrency changes the requested currency.
func (s *Service) SetCurrency(ctx context.Context, code string) (models.AcceptedResponse, error) {
	_, span := tracing.GetTracer().StartSpan(ctx, "service.SetCurrency")
	defer span.End()

	cur, err := validation.ValidateCurrency(code, "currency")
	if err != nil {
		return models.AcceptedResponse{}, err
	}
	span.SetAttributes(attribute.String("pricing.currency", string(cur)))

	if err := s.ctrl.SetCurrency(cur); err != nil {
		return models.AcceptedResponse{}, fmt.Errorf("failed to change currency: %w", err)
	}
	return models.AcceptedResponse{Accepted: true, Currency: cur}, nil
}

// SetVisibility forwards a visibility change of the hosting page.
func (s *Service) SetVisibility(ctx context.Context, visible bool) error {
	_, span := tracing.GetTracer().StartSpan(ctx, "service.SetVisibility")
	defer span.End()

	if err := s.ctrl.SetVisible(visible); err != nil {
		return fmt.Errorf("failed to report visibility: %w", err)
	}
	return nil
}

// EvaluateOffers previews offer activation at the given RFC3339 instant,
// or now when at is empty.
func (s *Service) EvaluateOffers(ctx context.Context, at string) (models.EvaluateResponse, error) {
	_, span := tracing.GetTracer().StartSpan(ctx, "service.EvaluateOffers")
	defer span.End()

	if !s.flags.IsEnabled(features.FeatureOfferPreview) {
		return models.EvaluateResponse{}, ErrFeatureDisabled
	}

	when := s.now().UTC()
	if at != "" {
		parsed, err := validation.ValidateTimeString(at, "at")
		if err != nil {
			return models.EvaluateResponse{}, err
		}
		when = parsed.UTC()
	}

	active, final, cur := s.ctrl.Evaluate(when)
	return models.EvaluateResponse{
		At:          when,
		Currency:    cur,
		ActiveOffer: active,
		FinalPrices: final,
	}, nil
}

// History returns the most recent snapshots.
func (s *Service) History(ctx context.Context, limit string) (models.HistoryResponse, error) {
	_, span := tracing.GetTracer().StartSpan(ctx, "service.History")
	defer span.End()

	if s.history == nil {
		return models.HistoryResponse{}, ErrHistoryUnavailable
	}
	if !s.flags.IsEnabled(features.FeatureSnapshotHistory) {
		return models.HistoryResponse{}, ErrFeatureDisabled
	}

	n, err := validation.ValidateLimit(limit, "limit", database.DefaultHistoryLimit)
	if err != nil {
		return models.HistoryResponse{}, err
	}

	snaps, err := s.history.ListSnapshots(n)
	if err != nil {
		log.Printf("history query failed: %v", err)
		return models.HistoryResponse{}, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return models.HistoryResponse{Snapshots: snaps}, nil
}

// Flags lists the feature flags and their state.
func (s *Service) Flags() []features.FeatureFlag {
	return s.flags.GetAll()
}

// BuildResponse renders a state. now drives the offer countdowns.
func BuildResponse(state *models.PricingState, locale string, now time.Time) models.PricingResponse {
	if locale == "" {
		locale = defaultLocale
	}
	code := string(state.Currency)

	plans := make([]models.PlanView, 0, len(models.PlanKeys))
	for _, plan := range models.PlanKeys {
		base := state.BasePrices[plan]
		final, ok := state.FinalPrices[plan]
		if !ok {
			final = base
		}
		plans = append(plans, models.PlanView{
			Plan:         plan,
			BaseMinor:    base,
			FinalMinor:   final,
			BaseDisplay:  pricing.FormatFromMinor(base, code, locale),
			FinalDisplay: pricing.FormatFromMinor(final, code, locale),
			Discounted:   final < base,
			Catalogue:    pricing.Catalogue(plan),
		})
	}

	return models.PricingResponse{
		Status:       state.Status,
		Currency:     state.Currency,
		Symbol:       state.Symbol,
		Locale:       locale,
		Plans:        plans,
		Table:        state.Table,
		ActiveOffer:  offerView(state.ActiveOffer, true, now),
		DisplayOffer: offerView(state.DisplayOffer, state.ActiveOffer != nil, now),
		Meta:         state.Meta,
		Loading:      state.Loading,
		Error:        state.Error,
		UpdatedAt:    state.UpdatedAt,
	}
}

func offerView(o *models.Offer, applied bool, now time.Time) *models.OfferView {
	if o == nil {
		return nil
	}
	return &models.OfferView{
		Offer:           *o.Clone(),
		Applied:         applied,
		StartsInSeconds: secondsUntil(o.StartsAt, now),
		EndsInSeconds:   secondsUntil(o.EndsAt, now),
	}
}

// secondsUntil rounds up so a countdown never shows 0 before the edge.
func secondsUntil(t *time.Time, now time.Time) *int64 {
	if t == nil || !t.After(now) {
		return nil
	}
	secs := int64(math.Ceil(t.Sub(now).Seconds()))
	return &secs
}
