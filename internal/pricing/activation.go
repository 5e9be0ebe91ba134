package pricing

import (
	"time"

	"resume-pricing-api/internal/models"
)

// IsActive reports whether offer may affect prices for cur at now. The
// activation window is half-open: [StartsAt, EndsAt).
func IsActive(offer *models.Offer, cur models.Currency, now time.Time) bool {
	if offer == nil {
		return false
	}
	if offer.Active != nil && !*offer.Active {
		return false
	}
	if offer.Currency != "" && offer.Currency != cur {
		return false
	}
	if offer.StartsAt != nil && now.Before(*offer.StartsAt) {
		return false
	}
	if offer.EndsAt != nil && !now.Before(*offer.EndsAt) {
		return false
	}
	return true
}

// SelectOffer picks the first activatable candidate in declared order.
// display is the offer to show (the active one, otherwise the first
// candidate); only active may ever be passed to ApplyOffer.
func SelectOffer(candidates []*models.Offer, cur models.Currency, now time.Time) (active, display *models.Offer) {
	for _, o := range candidates {
		if IsActive(o, cur, now) {
			return o, o
		}
	}
	if len(candidates) > 0 {
		return nil, candidates[0]
	}
	return nil, nil
}
