package upstream

import (
	"context"
	"errors"
	"log"
	"time"

	"resume-pricing-api/internal/cache"
	"resume-pricing-api/internal/features"
)

// CachedFetcher serves recent payloads from a cache so bursts of triggers
// (interval tick, visibility, several replicas) hit the upstream once per
// TTL. Fresh requests always go upstream and refresh the entry. Cache
// failures are logged and never fail a retrieval.
type CachedFetcher struct {
	next  Fetcher
	cache cache.Cache
	ttl   time.Duration
	flags *features.Manager
}

// NewCachedFetcher wraps next. The cache is only consulted while the
// response-cache feature flag is enabled.
func NewCachedFetcher(next Fetcher, c cache.Cache, ttl time.Duration, flags *features.Manager) *CachedFetcher {
	return &CachedFetcher{next: next, cache: c, ttl: ttl, flags: flags}
}

func cacheKey(req Request) string {
	if req.Currency == "" {
		return "pricing:payload:auto"
	}
	return "pricing:payload:" + string(req.Currency)
}

func (f *CachedFetcher) enabled() bool {
	return f.cache != nil && f.ttl > 0 && (f.flags == nil || f.flags.IsEnabled(features.FeatureResponseCache))
}

// Fetch implements Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, req Request) (map[string]any, error) {
	if !f.enabled() {
		return f.next.Fetch(ctx, req)
	}
	key := cacheKey(req)
	if !req.Fresh {
		data, err := f.cache.Get(ctx, key)
		switch {
		case err == nil:
			if payload, decErr := Decode(data); decErr == nil {
				return payload, nil
			}
		case !errors.Is(err, cache.ErrNotFound):
			log.Printf("pricing cache get %s: %v", key, err)
		}
	}

	payload, err := f.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, f.cache, key, payload, f.ttl); err != nil {
		log.Printf("pricing cache set %s: %v", key, err)
	}
	return payload, nil
}
