package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-valuation/cache"
	"property-valuation/client/pricing"
	"property-valuation/models"
	"property-valuation/utils"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	result func(postcode string) (*models.PricingResult, error)
}

func newFakeFetcher(result func(postcode string) (*models.PricingResult, error)) *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), result: result}
}

func (f *fakeFetcher) Fetch(_ context.Context, postcode string) (*models.PricingResult, error) {
	f.mu.Lock()
	f.calls[postcode]++
	f.mu.Unlock()
	return f.result(postcode)
}

func (f *fakeFetcher) count(postcode string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[postcode]
}

func liveSeries(postcode string) (*models.PricingResult, error) {
	return &models.PricingResult{
		Source:   models.SourceLive,
		Postcode: postcode,
		Series: models.PricingSeries{Points: []models.PriceDataPoint{
			{Year: 2022, Count: 8, Median: models.Float(5000)},
			{Year: 2023, Count: 12, Median: models.Null(), Mean: models.Float(6000)},
		}},
	}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestValuator(f Fetcher, c *clock) (*Valuator, *cache.MemoryCache) {
	mc := cache.NewMemoryCache(100, 0)
	v := NewValuator(f, newTestRepairer(), mc, utils.NewNopLogger(), WithValuatorClock(c.Now))
	return v, mc
}

func TestLocalAverageValue(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	v, _ := newTestValuator(newFakeFetcher(liveSeries), c)

	// 1000 sq ft = 92.903 sqm; 2023 median is missing so it is interpolated
	// from 2022 (5000) → 5000 per sqm → 464,515 → 465,000.
	got, ok := v.GetLocalAverageValue(context.Background(), "SW4 0ES", 1000)
	require.True(t, ok)
	assert.Equal(t, 465000.0, got)
}

func TestEstimateDetails(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	v, _ := newTestValuator(newFakeFetcher(liveSeries), c)

	rec, err := v.Estimate(context.Background(), "sw4  0es", 1000)
	require.NoError(t, err)
	assert.Equal(t, "SW4 0ES", rec.Postcode)
	assert.InDelta(t, 92.903, rec.FloorAreaSqm, 1e-9)
	assert.Equal(t, 2023, rec.Year)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, 12, rec.SampleSize)
	assert.Equal(t, models.SourceLive, rec.Source)
	assert.True(t, rec.Available)
	assert.Equal(t, c.Now(), rec.CreatedAt)
}

func TestLocalAverageInvalidFloorArea(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	f := newFakeFetcher(liveSeries)
	v, _ := newTestValuator(f, c)

	for _, area := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		got, ok := v.GetLocalAverageValue(context.Background(), "SW4 0ES", area)
		assert.False(t, ok, "area %v", area)
		assert.Zero(t, got)
	}
	assert.Zero(t, f.count("SW4 0ES"), "an invalid floor area must not hit the network")
}

func TestLocalAverageUnavailableOnFetchFailure(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	f := newFakeFetcher(func(string) (*models.PricingResult, error) {
		return nil, &pricing.UpstreamFetchError{StatusCode: 500, Reason: "Internal Server Error"}
	})
	v, mc := newTestValuator(f, c)

	_, ok := v.GetLocalAverageValue(context.Background(), "SW4 0ES", 850)
	assert.False(t, ok)
	assert.Equal(t, 0, mc.Len())

	_, err := v.Estimate(context.Background(), "SW4 0ES", 850)
	assert.True(t, pricing.IsUpstream(err))
}

func TestLocalAverageUnavailableOnEmptySeries(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	f := newFakeFetcher(func(pc string) (*models.PricingResult, error) {
		return &models.PricingResult{Source: models.SourceLive, Postcode: pc}, nil
	})
	v, _ := newTestValuator(f, c)

	_, err := v.Estimate(context.Background(), "SW4 0ES", 850)
	assert.ErrorIs(t, err, ErrNoRecommendation)

	_, ok := v.GetLocalAverageValue(context.Background(), "", 850)
	assert.False(t, ok)
}

func TestValuationCacheReuse(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	f := newFakeFetcher(liveSeries)
	v, mc := newTestValuator(f, c)
	ctx := context.Background()

	_, ok := v.GetLocalAverageValue(ctx, "SW4 0ES", 1000)
	require.True(t, ok)
	c.Advance(23 * time.Hour)
	_, ok = v.GetLocalAverageValue(ctx, "sw4 0es", 700)
	require.True(t, ok)

	assert.Equal(t, 1, f.count("SW4 0ES"))
	assert.Equal(t, 1, mc.Len())
}

func TestValuationCacheExpiry(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	f := newFakeFetcher(liveSeries)
	v, mc := newTestValuator(f, c)
	ctx := context.Background()

	_, ok := v.GetLocalAverageValue(ctx, "SW4 0ES", 1000)
	require.True(t, ok)
	c.Advance(24*time.Hour + time.Minute)
	_, ok = v.GetLocalAverageValue(ctx, "SW4 0ES", 1000)
	require.True(t, ok)

	assert.Equal(t, 2, f.count("SW4 0ES"))
	entry, err := mc.Get(ctx, "SW4 0ES")
	require.NoError(t, err)
	assert.Equal(t, c.Now(), entry.FetchedAt, "stale entry is replaced")
}

func TestValuationSyntheticNotCached(t *testing.T) {
	c := &clock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	f := newFakeFetcher(func(pc string) (*models.PricingResult, error) {
		return &models.PricingResult{
			Source:   models.SourceSynthetic,
			Postcode: pc,
			Series:   pricing.SyntheticSeries(pc, c.Now()),
		}, nil
	})
	v, mc := newTestValuator(f, c)

	rec, err := v.Estimate(context.Background(), "SW4 0ES", 1000)
	require.NoError(t, err)
	assert.Equal(t, models.SourceSynthetic, rec.Source)
	assert.Equal(t, 0, mc.Len())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*models.CacheEntry, error) {
	return nil, errors.New("backend down")
}
func (failingCache) Set(context.Context, string, *models.CacheEntry) error {
	return errors.New("backend down")
}
func (failingCache) Delete(context.Context, string) error { return nil }

func TestValuationSurvivesCacheFailure(t *testing.T) {
	f := newFakeFetcher(liveSeries)
	v := NewValuator(f, newTestRepairer(), failingCache{}, utils.NewNopLogger())

	_, ok := v.GetLocalAverageValue(context.Background(), "SW4 0ES", 1000)
	assert.True(t, ok)
}

func TestValuationCacheAgainstPricingAPI(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"price_per_floor_area_per_year":[
			{"year":2022,"count":9,"mean":NaN,"median":7000.0},
			{"year":2023,"count":15,"mean":7600.0,"median":NaN}
		]}`))
	}))
	defer srv.Close()

	client := pricing.New(srv.URL, "/pricing", utils.NewNopLogger())
	v := NewValuator(client, newTestRepairer(), cache.NewMemoryCache(10, DefaultCacheTTL), utils.NewNopLogger())
	ctx := context.Background()

	first, ok := v.GetLocalAverageValue(ctx, "SW4 0ES", 1000)
	require.True(t, ok)
	second, ok := v.GetLocalAverageValue(ctx, "SW4 0ES", 1000)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second call must be served from cache")
}

func TestRoundToThousand(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{464515, 465000},
		{464499.99, 464000},
		{464500, 465000},
		{499, 0},
		{500, 1000},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundToThousand(tt.in), "RoundToThousand(%v)", tt.in)
	}
}
