package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-pricing-api/internal/database"
	"resume-pricing-api/internal/events"
	"resume-pricing-api/internal/features"
	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/pricing"
	"resume-pricing-api/internal/validation"
)

type stubController struct {
	state     *models.PricingState
	refreshes int
	currency  models.Currency
	visible   []bool
	err       error
}

func (c *stubController) Snapshot() *models.PricingState { return c.state.Clone() }

func (c *stubController) Refresh() error {
	c.refreshes++
	return c.err
}

func (c *stubController) SetCurrency(cur models.Currency) error {
	c.currency = cur
	return c.err
}

func (c *stubController) SetVisible(visible bool) error {
	c.visible = append(c.visible, visible)
	return c.err
}

func (c *stubController) Evaluate(at time.Time) (*models.Offer, models.PlanPrices, models.Currency) {
	active, final := pricing.Reevaluate(c.state, at)
	return active, final, c.state.Currency
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2025, 10, 21, 10, 0, 0, 0, time.UTC)

func offerState(t *testing.T) *models.PricingState {
	t.Helper()
	raw := map[string]any{
		"currency":     "USD",
		"prices_minor": map[string]any{"USD": map[string]any{"basic": 0, "premium": 1000, "pro": 2000}},
		"active_offer": map[string]any{
			"id":          "autumn",
			"label":       "Autumn sale",
			"percent_off": 25,
			"starts_at":   "2025-10-01T00:00:00Z",
			"ends_at":     "2025-10-21T10:01:30Z",
		},
	}
	return pricing.Resolve(raw, models.CurrencyUSD, testNow)
}

func TestGetPricing_RendersPlansAndOffer(t *testing.T) {
	ctrl := &stubController{state: offerState(t)}
	svc := NewService(ctrl, Options{Now: func() time.Time { return testNow }})

	resp, err := svc.GetPricing(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, resp.Status)
	assert.Equal(t, "en", resp.Locale)
	assert.Equal(t, "$", resp.Symbol)
	require.Len(t, resp.Plans, 3)

	premium := resp.Plans[1]
	assert.Equal(t, models.PlanPremium, premium.Plan)
	assert.Equal(t, int64(1000), premium.BaseMinor)
	assert.Equal(t, int64(750), premium.FinalMinor)
	assert.True(t, premium.Discounted)
	assert.Contains(t, premium.FinalDisplay, "7.50")
	assert.NotEmpty(t, premium.Catalogue.Features)

	basic := resp.Plans[0]
	assert.False(t, basic.Discounted)
	assert.Equal(t, int64(0), basic.FinalMinor)

	require.NotNil(t, resp.ActiveOffer)
	assert.True(t, resp.ActiveOffer.Applied)
	assert.Equal(t, "autumn", resp.ActiveOffer.ID)
	require.NotNil(t, resp.ActiveOffer.EndsInSeconds)
	assert.Equal(t, int64(90), *resp.ActiveOffer.EndsInSeconds)
	assert.Nil(t, resp.ActiveOffer.StartsInSeconds)
}

func TestGetPricing_DisplayOnlyOfferIsNotApplied(t *testing.T) {
	ctrl := &stubController{state: offerState(t)}
	later := testNow.Add(time.Hour)
	ctrl.state = pricing.Resolve(map[string]any{
		"offers": []any{map[string]any{
			"id":          "winter",
			"percent_off": 40,
			"starts_at":   later.Format(time.RFC3339),
		}},
	}, models.CurrencyEUR, testNow)
	svc := NewService(ctrl, Options{Now: func() time.Time { return testNow }})

	resp, err := svc.GetPricing(context.Background(), "de-DE")
	require.NoError(t, err)

	assert.Nil(t, resp.ActiveOffer)
	require.NotNil(t, resp.DisplayOffer)
	assert.False(t, resp.DisplayOffer.Applied)
	require.NotNil(t, resp.DisplayOffer.StartsInSeconds)
	assert.Equal(t, int64(3600), *resp.DisplayOffer.StartsInSeconds)
	for _, p := range resp.Plans {
		assert.Equal(t, p.BaseMinor, p.FinalMinor)
	}
}

func TestGetPricing_InvalidLocale(t *testing.T) {
	svc := NewService(&stubController{state: pricing.DefaultState(models.CurrencyUSD, testNow)}, Options{})

	_, err := svc.GetPricing(context.Background(), "!!")
	var verr *validation.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSetCurrency(t *testing.T) {
	ctrl := &stubController{state: pricing.DefaultState(models.CurrencyUSD, testNow)}
	svc := NewService(ctrl, Options{})

	resp, err := svc.SetCurrency(context.Background(), "inr")
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyINR, resp.Currency)
	assert.Equal(t, models.CurrencyINR, ctrl.currency)

	_, err = svc.SetCurrency(context.Background(), "GBP")
	assert.Error(t, err)
	assert.Equal(t, models.CurrencyINR, ctrl.currency)
}

func TestRefreshAndVisibility(t *testing.T) {
	ctrl := &stubController{state: pricing.DefaultState(models.CurrencyEUR, testNow)}
	svc := NewService(ctrl, Options{})

	resp, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, models.CurrencyEUR, resp.Currency)
	assert.Equal(t, 1, ctrl.refreshes)

	require.NoError(t, svc.SetVisibility(context.Background(), false))
	require.NoError(t, svc.SetVisibility(context.Background(), true))
	assert.Equal(t, []bool{false, true}, ctrl.visible)

	ctrl.err = errors.New("stopped")
	_, err = svc.Refresh(context.Background())
	assert.ErrorIs(t, err, ctrl.err)
}

func TestEvaluateOffers(t *testing.T) {
	ctrl := &stubController{state: offerState(t)}
	svc := NewService(ctrl, Options{Now: func() time.Time { return testNow }})

	resp, err := svc.EvaluateOffers(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, resp.ActiveOffer)
	assert.Equal(t, int64(750), resp.FinalPrices[models.PlanPremium])

	resp, err = svc.EvaluateOffers(context.Background(), "2025-10-21T10:01:30Z")
	require.NoError(t, err)
	assert.Nil(t, resp.ActiveOffer)
	assert.Equal(t, int64(1000), resp.FinalPrices[models.PlanPremium])

	_, err = svc.EvaluateOffers(context.Background(), "tomorrow")
	assert.Error(t, err)
}

func TestEvaluateOffers_FeatureDisabled(t *testing.T) {
	flags := features.NewDefaultManager(map[string]bool{features.FeatureOfferPreview: false})
	svc := NewService(&stubController{state: offerState(t)}, Options{Flags: flags})

	_, err := svc.EvaluateOffers(context.Background(), "")
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestHistory_RecordsPublishedStates(t *testing.T) {
	db := setupTestDB(t)
	em := events.NewManager(true)
	ctrl := &stubController{state: offerState(t)}
	svc := NewService(ctrl, Options{History: db, Events: em})

	em.PublishPricing(context.Background(), events.EventPricingPublished, ctrl.state)
	failed := pricing.DefaultState(models.CurrencyINR, testNow)
	failed.Status = models.StatusError
	failed.Error = "boom"
	em.PublishPricing(context.Background(), events.EventPricingFailed, failed)
	em.Shutdown()

	resp, err := svc.History(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, resp.Snapshots, 2)

	byCurrency := map[models.Currency]models.Snapshot{}
	for _, snap := range resp.Snapshots {
		byCurrency[snap.Currency] = snap
	}
	assert.Equal(t, "autumn", byCurrency[models.CurrencyUSD].OfferID)
	assert.Equal(t, int64(750), byCurrency[models.CurrencyUSD].FinalPrices[models.PlanPremium])
	assert.Equal(t, "boom", byCurrency[models.CurrencyINR].Error)
	assert.Equal(t, models.StatusError, byCurrency[models.CurrencyINR].Status)
}

func TestHistory_Unavailable(t *testing.T) {
	svc := NewService(&stubController{state: offerState(t)}, Options{})

	_, err := svc.History(context.Background(), "")
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestHistory_FlagOffSkipsRecording(t *testing.T) {
	db := setupTestDB(t)
	em := events.NewManager(true)
	flags := features.NewDefaultManager(nil)
	flags.Disable(features.FeatureSnapshotHistory)
	svc := NewService(&stubController{state: offerState(t)}, Options{History: db, Events: em, Flags: flags})

	em.PublishPricing(context.Background(), events.EventPricingPublished, offerState(t))
	em.Shutdown()

	_, err := svc.History(context.Background(), "")
	assert.ErrorIs(t, err, ErrFeatureDisabled)

	snaps, err := db.ListSnapshots(0)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestHistory_InvalidLimit(t *testing.T) {
	svc := NewService(&stubController{state: offerState(t)}, Options{History: setupTestDB(t)})

	_, err := svc.History(context.Background(), "-1")
	var verr *validation.ValidationError
	assert.True(t, errors.As(err, &verr))
}
