package services

import (
	"context"
	"errors"
	"math"
	"time"

	"property-valuation/cache"
	"property-valuation/client/pricing"
	"property-valuation/metrics"
	"property-valuation/models"
	"property-valuation/utils"
)

const (
	// SqFtToSqm converts square feet to square metres.
	SqFtToSqm = 0.092903

	// DefaultCacheTTL is how long a fetched postcode series is reused.
	DefaultCacheTTL = 24 * time.Hour

	// NotAvailable is the text shown when no valuation can be produced.
	NotAvailable = "Not available"
)

// ErrNoRecommendation is returned when a series yields no usable price.
var ErrNoRecommendation = errors.New("no price recommendation for postcode")

// Fetcher retrieves a raw pricing series for a postcode.
type Fetcher interface {
	Fetch(ctx context.Context, postcode string) (*models.PricingResult, error)
}

// Valuator projects a local-average value for a property from its postcode
// series and floor area. Series are cached per normalised postcode.
//
// Concurrent misses for the same postcode may each fetch; the last write to
// the cache wins.
type Valuator struct {
	fetcher  Fetcher
	repairer *Repairer
	cache    cache.SeriesCache
	ttl      time.Duration
	now      func() time.Time
	logger   *utils.Logger
	metrics  *metrics.Metrics
}

// ValuatorOption configures a Valuator.
type ValuatorOption func(*Valuator)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) ValuatorOption {
	return func(v *Valuator) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithValuatorClock overrides the wall clock.
func WithValuatorClock(now func() time.Time) ValuatorOption {
	return func(v *Valuator) { v.now = now }
}

// WithValuatorMetrics records cache and valuation outcomes.
func WithValuatorMetrics(m *metrics.Metrics) ValuatorOption {
	return func(v *Valuator) { v.metrics = m }
}

// NewValuator creates a Valuator backed by the given cache.
func NewValuator(fetcher Fetcher, repairer *Repairer, seriesCache cache.SeriesCache, logger *utils.Logger, opts ...ValuatorOption) *Valuator {
	v := &Valuator{
		fetcher:  fetcher,
		repairer: repairer,
		cache:    seriesCache,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// GetLocalAverageValue returns the projected local-average value for a
// property, or false when no valuation is available for any reason. It never
// fails: the valuation is advisory and callers render NotAvailable instead.
func (v *Valuator) GetLocalAverageValue(ctx context.Context, postcode string, floorAreaSqFt float64) (float64, bool) {
	rec, err := v.Estimate(ctx, postcode, floorAreaSqFt)
	if err != nil {
		v.logger.Debug("[valuation] %q unavailable: %v", postcode, err)
		return 0, false
	}
	return rec.LocalAverage, true
}

// Estimate values one property and reports why when it cannot.
func (v *Valuator) Estimate(ctx context.Context, postcode string, floorAreaSqFt float64) (rec *models.ValuationRecord, err error) {
	defer func() {
		if err != nil {
			v.metrics.ObserveValuation(metrics.ValuationUnavailable)
		} else {
			v.metrics.ObserveValuation(metrics.ValuationAvailable)
		}
	}()

	if math.IsNaN(floorAreaSqFt) || math.IsInf(floorAreaSqFt, 0) || floorAreaSqFt <= 0 {
		return nil, &pricing.InvalidInputError{Field: "floor_area", Reason: "must be a positive number"}
	}

	entry, err := v.series(ctx, postcode)
	if err != nil {
		return nil, err
	}

	recommendation := Recommend(entry.Series)
	if recommendation == nil || recommendation.PricePerSqm <= 0 {
		return nil, ErrNoRecommendation
	}

	sqm := floorAreaSqFt * SqFtToSqm
	return &models.ValuationRecord{
		Postcode:      entry.Postcode,
		FloorAreaSqFt: floorAreaSqFt,
		FloorAreaSqm:  sqm,
		PricePerSqm:   recommendation.PricePerSqm,
		Year:          recommendation.Year,
		Confidence:    recommendation.Confidence,
		SampleSize:    recommendation.SampleSize,
		LocalAverage:  RoundToThousand(recommendation.PricePerSqm * sqm),
		Available:     true,
		Source:        entry.Source,
		CreatedAt:     v.now(),
	}, nil
}

// series returns the repaired series for postcode, from cache when fresh.
func (v *Valuator) series(ctx context.Context, postcode string) (*models.CacheEntry, error) {
	key := pricing.NormalizePostcode(postcode)
	if key == "" {
		return nil, &pricing.InvalidInputError{Field: "postcode", Reason: "must not be empty"}
	}

	entry, err := v.cache.Get(ctx, key)
	switch {
	case err == nil && entry.Fresh(v.now(), v.ttl):
		v.metrics.ObserveCache(metrics.CacheHit)
		return entry, nil
	case err == nil:
		v.metrics.ObserveCache(metrics.CacheStale)
		v.logger.Debug("[valuation] Cached series for %q is stale (fetched %s)", key, entry.FetchedAt.Format(time.RFC3339))
	case errors.Is(err, cache.ErrCacheMiss):
		v.metrics.ObserveCache(metrics.CacheMiss)
	default:
		v.metrics.ObserveCache(metrics.CacheError)
		v.logger.Warn("[valuation] Cache lookup for %q failed, fetching: %v", key, err)
	}

	res, err := v.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	fresh := &models.CacheEntry{
		Postcode:  key,
		Source:    res.Source,
		Series:    v.repairer.Repair(res.Series),
		FetchedAt: v.now(),
	}

	if res.IsSynthetic() {
		v.logger.Warn("[valuation] Synthetic series for %q is not cached", key)
		return fresh, nil
	}
	if err := v.cache.Set(ctx, key, fresh); err != nil {
		v.logger.Warn("[valuation] Could not cache series for %q: %v", key, err)
	}
	return fresh, nil
}

// RoundToThousand rounds half-up to the nearest 1000.
func RoundToThousand(v float64) float64 {
	return math.Floor(v/1000+0.5) * 1000
}
