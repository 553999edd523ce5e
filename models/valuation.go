package models

import "time"

// Property is one row of batch valuation input.
type Property struct {
	Reference     string
	Postcode      string
	FloorAreaSqFt float64
}

// ValuationRecord is the outcome of valuing one property. Unavailable
// records keep the reason so the caller can render "Not available".
type ValuationRecord struct {
	ID            int64
	Reference     string
	Postcode      string
	FloorAreaSqFt float64
	FloorAreaSqm  float64
	PricePerSqm   float64
	Year          int
	Confidence    Confidence
	SampleSize    int
	LocalAverage  float64
	Available     bool
	Source        SeriesSource
	Reason        string
	CreatedAt     time.Time
}

// ValuationSummary holds aggregate figures over a batch of valuations.
type ValuationSummary struct {
	TotalProperties     int
	AvailableValuations int
	SyntheticValuations int
	AverageValue        float64
	MinValue            float64
	MaxValue            float64
	MostValuable        *ValuationRecord
	TopValued           []*ValuationRecord
	ByConfidence        map[Confidence]int
	ByArea              map[string]int
}
