package models

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Accepted range for a point's year. Points outside it carry Year 0 and are
// dropped by Normalize.
const (
	MinYear = 1000
	MaxYear = 9999
)

// maxCount caps the transaction count so it always fits an int.
const maxCount = math.MaxInt32

// PriceDataPoint is one calendar year's price-per-floor-area statistic for a
// postcode area. Prices are per square metre.
type PriceDataPoint struct {
	Year       int       `json:"year"`
	Count      int       `json:"count"`
	Mean       NullFloat `json:"mean"`
	Median     NullFloat `json:"median"`
	Std        NullFloat `json:"std"`
	LowerBound NullFloat `json:"lower_bound"`
	UpperBound NullFloat `json:"upper_bound"`
}

// UnmarshalJSON tolerates malformed rows. A count that is missing,
// non-numeric, fractional or negative decodes as 0 and a huge count is capped
// at math.MaxInt32. A year that is missing, fractional or outside
// [MinYear, MaxYear] decodes as 0, as does a null element.
func (p *PriceDataPoint) UnmarshalJSON(data []byte) error {
	type alias PriceDataPoint
	aux := struct {
		Year  NullFloat `json:"year"`
		Count NullFloat `json:"count"`
		*alias
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.Year = 0
	if y := aux.Year; y.Valid && y.Value == math.Trunc(y.Value) && y.Value >= MinYear && y.Value <= MaxYear {
		p.Year = int(y.Value)
	}

	p.Count = 0
	switch c := aux.Count; {
	case !c.Valid || c.Value <= 0 || c.Value != math.Trunc(c.Value):
	case c.Value > maxCount:
		p.Count = maxCount
	default:
		p.Count = int(c.Value)
	}
	return nil
}

// HasYear reports whether the point carries a usable calendar year.
func (p PriceDataPoint) HasYear() bool {
	return p.Year >= MinYear && p.Year <= MaxYear
}

// PricingSeries is the per-year series for one postcode, ascending by year.
type PricingSeries struct {
	Points []PriceDataPoint `json:"price_per_floor_area_per_year"`
}

// Len returns the number of points.
func (s PricingSeries) Len() int { return len(s.Points) }

// Clone returns a deep copy of the series.
func (s PricingSeries) Clone() PricingSeries {
	out := PricingSeries{Points: make([]PriceDataPoint, len(s.Points))}
	copy(out.Points, s.Points)
	return out
}

// Normalize drops points without a usable year, sorts the rest ascending by
// year and drops repeated years, keeping the first occurrence in payload
// order.
func (s PricingSeries) Normalize() PricingSeries {
	out := s.Clone()
	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Year < out.Points[j].Year
	})

	uniq := out.Points[:0]
	for _, p := range out.Points {
		if !p.HasYear() {
			continue
		}
		if n := len(uniq); n > 0 && p.Year == uniq[n-1].Year {
			continue
		}
		uniq = append(uniq, p)
	}
	out.Points = uniq
	return out
}

// SeriesSource tags where a series came from.
type SeriesSource string

const (
	SourceLive      SeriesSource = "live"
	SourceSynthetic SeriesSource = "synthetic"
)

// PricingResult is the outcome of a pricing fetch. Synthetic results are
// generated locally when the upstream payload could not be parsed and must
// not be presented as real market data.
type PricingResult struct {
	Source   SeriesSource  `json:"source"`
	Postcode string        `json:"postcode"`
	Series   PricingSeries `json:"series"`
}

// IsSynthetic reports whether the series is locally generated.
func (r *PricingResult) IsSynthetic() bool {
	return r.Source == SourceSynthetic
}

// Confidence is a coarse reliability label derived from sample size.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// PriceRecommendation is a derived point estimate. It is never persisted on
// its own.
type PriceRecommendation struct {
	PricePerSqm float64    `json:"pricePerSqm"`
	Year        int        `json:"year"`
	Confidence  Confidence `json:"confidence"`
	SampleSize  int        `json:"sampleSize"`
	TotalValue  *float64   `json:"totalValue,omitempty"`
}

// CacheEntry is a cached, repaired series for a postcode.
type CacheEntry struct {
	Postcode  string        `json:"postcode"`
	Source    SeriesSource  `json:"source"`
	Series    PricingSeries `json:"series"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}
