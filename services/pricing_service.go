package services

import (
	"context"

	"property-valuation/models"
	"property-valuation/utils"
)

// PricingService is the entry point used by the HTTP and CLI layers.
type PricingService struct {
	fetcher  Fetcher
	repairer *Repairer
	valuator *Valuator
	logger   *utils.Logger
}

// NewPricingService wires the pipeline stages together.
func NewPricingService(fetcher Fetcher, repairer *Repairer, valuator *Valuator, logger *utils.Logger) *PricingService {
	return &PricingService{
		fetcher:  fetcher,
		repairer: repairer,
		valuator: valuator,
		logger:   logger,
	}
}

// GetPricingData fetches and repairs the series for postcode. It fails only
// with an InvalidInputError or UpstreamFetchError; an unparseable upstream
// payload yields a synthetic result instead.
func (s *PricingService) GetPricingData(ctx context.Context, postcode string) (*models.PricingResult, error) {
	res, err := s.fetcher.Fetch(ctx, postcode)
	if err != nil {
		return nil, err
	}
	res.Series = s.repairer.Repair(res.Series)
	if res.IsSynthetic() {
		s.logger.Warn("[pricing] Serving synthetic series for %q", res.Postcode)
	}
	return res, nil
}

// GetRecommendedPrice derives the recommendation for a repaired series.
func (s *PricingService) GetRecommendedPrice(series models.PricingSeries) *models.PriceRecommendation {
	return Recommend(series)
}

// GetLocalAverageValue returns the projected value or false when unavailable.
func (s *PricingService) GetLocalAverageValue(ctx context.Context, postcode string, floorAreaSqFt float64) (float64, bool) {
	return s.valuator.GetLocalAverageValue(ctx, postcode, floorAreaSqFt)
}

// Estimate exposes the detailed valuation for callers that report reasons.
func (s *PricingService) Estimate(ctx context.Context, postcode string, floorAreaSqFt float64) (*models.ValuationRecord, error) {
	return s.valuator.Estimate(ctx, postcode, floorAreaSqFt)
}
