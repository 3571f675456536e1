package services

import (
	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

// InsightService computes summary statistics over a snapshot. The result
// feeds the daily digest notification and the end-of-cycle log line.
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates an InsightService with the given logger.
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds a MarketReport from the snapshot's listings.
func (s *InsightService) Generate(snapshot *models.Snapshot) *models.MarketReport {
	report := &models.MarketReport{
		ListingsByRegion: make(map[string]int),
	}
	if snapshot == nil || snapshot.Count() == 0 {
		return report
	}

	report.TotalListings = snapshot.Count()

	var total float64
	for _, l := range snapshot.Listings {
		if l.SearchRegion != "" {
			report.ListingsByRegion[l.SearchRegion]++
		}

		price, ok := l.Price()
		if !ok {
			continue
		}
		report.PricedListings++
		total += price

		if report.PricedListings == 1 {
			report.MinPrice = price
			report.MaxPrice = price
			report.Cheapest = l
			continue
		}
		if price < report.MinPrice {
			report.MinPrice = price
			report.Cheapest = l
		}
		if price > report.MaxPrice {
			report.MaxPrice = price
		}
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(total / float64(report.PricedListings))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	return report
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
