package services

import (
	"fmt"
	"sort"
	"strings"

	"property-valuation/models"
	"property-valuation/utils"
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

func (s *SummaryService) Generate(records []*models.ValuationRecord) *models.ValuationSummary {
	summary := &models.ValuationSummary{
		ByConfidence: make(map[models.Confidence]int),
		ByArea:       make(map[string]int),
	}

	if len(records) == 0 {
		return summary
	}

	summary.TotalProperties = len(records)

	var valued []*models.ValuationRecord
	for _, r := range records {
		if area := postcodeArea(r.Postcode); area != "" {
			summary.ByArea[area]++
		}
		if !r.Available {
			continue
		}
		summary.AvailableValuations++
		summary.ByConfidence[r.Confidence]++
		if r.Source == models.SourceSynthetic {
			summary.SyntheticValuations++
		}
		if r.LocalAverage > 0 {
			valued = append(valued, r)
		}
	}

	// Value stats (only available valuations with a positive value)
	if len(valued) > 0 {
		summary.MinValue = valued[0].LocalAverage
		summary.MaxValue = valued[0].LocalAverage
		summary.MostValuable = valued[0]
		var total float64
		for _, r := range valued {
			total += r.LocalAverage
			if r.LocalAverage < summary.MinValue {
				summary.MinValue = r.LocalAverage
			}
			if r.LocalAverage > summary.MaxValue {
				summary.MaxValue = r.LocalAverage
				summary.MostValuable = r
			}
		}
		summary.AverageValue = round2(total / float64(len(valued)))
	}

	// Top 5 by value
	top := append([]*models.ValuationRecord(nil), valued...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].LocalAverage > top[j].LocalAverage
	})
	if len(top) > 5 {
		top = top[:5]
	}
	summary.TopValued = top

	return summary
}

func (s *SummaryService) Print(r *models.ValuationSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🏠 LOCAL-AVERAGE VALUATIONS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Properties            : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Printf("  Valued                : \033[1m%d\033[0m\n", r.AvailableValuations)
	fmt.Printf("  Not available         : \033[1m%d\033[0m\n", r.TotalProperties-r.AvailableValuations)
	if r.SyntheticValuations > 0 {
		fmt.Printf("  From synthetic data   : \033[1;31m%d\033[0m\n", r.SyntheticValuations)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Local Average Values\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.AverageValue > 0 {
		fmt.Printf("  Average : \033[1;32m£%s\033[0m\n", formatMoney(r.AverageValue))
		fmt.Printf("  Minimum : \033[1;32m£%s\033[0m\n", formatMoney(r.MinValue))
		fmt.Printf("  Maximum : \033[1;32m£%s\033[0m\n", formatMoney(r.MaxValue))
	} else {
		fmt.Printf("  %s\n", NotAvailable)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Confidence\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, c := range []models.Confidence{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow} {
		fmt.Printf("  %-8s %s (%d)\n", c, strings.Repeat("█", r.ByConfidence[c]), r.ByConfidence[c])
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Top 5 Highest Valued Properties\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.TopValued) == 0 {
		fmt.Printf("  No valued properties\n")
	} else {
		for i, v := range r.TopValued {
			fmt.Printf("  \033[1m%d.\033[0m %-20s %-10s \033[1;32m£%s\033[0m\n",
				i+1, truncate(v.Reference, 20), v.Postcode, formatMoney(v.LocalAverage))
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Properties by Postcode Area\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ByArea) == 0 {
		fmt.Printf("  No postcode data\n")
	} else {
		type areaCount struct {
			area  string
			count int
		}
		var areas []areaCount
		for a, cnt := range r.ByArea {
			areas = append(areas, areaCount{a, cnt})
		}
		sort.Slice(areas, func(i, j int) bool {
			if areas[i].count == areas[j].count {
				return areas[i].area < areas[j].area
			}
			return areas[i].count > areas[j].count
		})
		for _, ac := range areas {
			fmt.Printf("  %-10s %s (%d)\n", ac.area, strings.Repeat("█", ac.count), ac.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

// postcodeArea is the outward code of a normalised postcode.
func postcodeArea(postcode string) string {
	fields := strings.Fields(postcode)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func formatMoney(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
