package services

import (
	"sort"

	"property-valuation/models"
	"property-valuation/utils"
)

// Bound factors used when the upstream omits a confidence band. These bands
// are display aids only; they are not derived from the sample distribution.
const (
	upperBoundFactor = 1.15
	lowerBoundFactor = 0.85
)

// Repairer fills missing median/mean values in a pricing series from
// neighbouring years and derives missing bounds.
type Repairer struct {
	logger *utils.Logger
}

// NewRepairer creates a Repairer with the given logger.
func NewRepairer(logger *utils.Logger) *Repairer {
	return &Repairer{logger: logger}
}

type fieldAccessor func(p *models.PriceDataPoint) *models.NullFloat

func medianOf(p *models.PriceDataPoint) *models.NullFloat { return &p.Median }
func meanOf(p *models.PriceDataPoint) *models.NullFloat   { return &p.Mean }

// Repair returns a sorted copy of series with gaps filled. The input is not
// modified.
//
// Median and mean are repaired independently, each in one left-to-right pass
// over the points in year order:
//   - both neighbours valid: their arithmetic mean
//   - only the previous valid: copied forward
//   - only the next valid: copied backward
//
// A value filled earlier in the pass counts as valid for later points. After
// the pass the only gaps that can remain form a leading run before the first
// valid value; that run is back-filled from its right neighbour, so every
// point of a series with at least one valid value ends up valid and a second
// Repair changes nothing.
func (r *Repairer) Repair(series models.PricingSeries) models.PricingSeries {
	out := series.Clone()
	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Year < out.Points[j].Year
	})

	filled := fillGaps(out.Points, medianOf) + fillGaps(out.Points, meanOf)
	bounds := deriveBounds(out.Points)

	if filled > 0 || bounds > 0 {
		r.logger.Debug("[repair] Filled %d values and %d bounds across %d points",
			filled, bounds, len(out.Points))
	}
	return out
}

func fillGaps(points []models.PriceDataPoint, field fieldAccessor) int {
	filled := 0
	for i := range points {
		v := field(&points[i])
		if v.Valid {
			continue
		}

		var prev, next models.NullFloat
		if i > 0 {
			prev = *field(&points[i-1])
		}
		if i < len(points)-1 {
			next = *field(&points[i+1])
		}

		switch {
		case prev.Valid && next.Valid:
			*v = models.Float((prev.Value + next.Value) / 2)
		case prev.Valid:
			*v = prev
		case next.Valid:
			*v = next
		default:
			continue
		}
		filled++
	}

	// Leading run with no earlier neighbour.
	first := -1
	for i := range points {
		if field(&points[i]).Valid {
			first = i
			break
		}
	}
	for i := first - 1; i >= 0; i-- {
		*field(&points[i]) = *field(&points[i+1])
		filled++
	}
	return filled
}

func deriveBounds(points []models.PriceDataPoint) int {
	derived := 0
	for i := range points {
		p := &points[i]
		if !p.Median.Valid {
			continue
		}
		if !p.UpperBound.Valid {
			p.UpperBound = models.Float(p.Median.Value * upperBoundFactor)
			derived++
		}
		if !p.LowerBound.Valid {
			p.LowerBound = models.Float(p.Median.Value * lowerBoundFactor)
			derived++
		}
	}
	return derived
}
