package services

import "property-valuation/models"

// Sample-size thresholds for confidence tiers.
const (
	mediumConfidenceMinCount = 3
	highConfidenceMinCount   = 10
)

// ConfidenceFor maps a transaction count to a confidence tier:
// fewer than 3 is low, fewer than 10 is medium, otherwise high.
// It is the only place confidence is computed.
func ConfidenceFor(count int) models.Confidence {
	switch {
	case count < mediumConfidenceMinCount:
		return models.ConfidenceLow
	case count < highConfidenceMinCount:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceHigh
	}
}

// Recommend derives a price recommendation from the most recent year of a
// repaired series. It returns nil for an empty series or when the latest
// point has neither a median nor a mean. TotalValue is left unset.
func Recommend(series models.PricingSeries) *models.PriceRecommendation {
	if len(series.Points) == 0 {
		return nil
	}

	latest := series.Points[0]
	for _, p := range series.Points[1:] {
		if p.Year > latest.Year {
			latest = p
		}
	}

	price := latest.Median
	if !price.Valid {
		price = latest.Mean
	}
	if !price.Valid {
		return nil
	}

	return &models.PriceRecommendation{
		PricePerSqm: price.Value,
		Year:        latest.Year,
		Confidence:  ConfidenceFor(latest.Count),
		SampleSize:  latest.Count,
	}
}

// WithTotalValue returns a copy of rec with TotalValue set for a floor area
// in square metres.
func WithTotalValue(rec *models.PriceRecommendation, floorAreaSqm float64) *models.PriceRecommendation {
	if rec == nil {
		return nil
	}
	cp := *rec
	total := rec.PricePerSqm * floorAreaSqm
	cp.TotalValue = &total
	return &cp
}
