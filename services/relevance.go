package services

import (
	"strings"

	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

// RelevanceFilter decides whether a normalized listing is in scope: at
// least one include keyword present, no exclude keyword present, and a
// parsed price inside the configured band. The three checks are independent
// and combined with AND; a failing record is dropped silently.
type RelevanceFilter struct {
	logger   *utils.Logger
	includes []string
	excludes []string
	prices   *PriceParser
}

// NewRelevanceFilter creates a filter over the given keyword sets and price band.
func NewRelevanceFilter(includes, excludes []string, minPrice, maxPrice float64, logger *utils.Logger) *RelevanceFilter {
	return &RelevanceFilter{
		logger:   logger,
		includes: lowerAll(includes),
		excludes: lowerAll(excludes),
		prices:   NewPriceParser(minPrice, maxPrice),
	}
}

// IsRelevant reports whether the listing matches the target criteria.
// As a side effect it stamps the parsed price onto the listing, since the
// same value drives both filtering and later comparisons.
func (f *RelevanceFilter) IsRelevant(l *models.Listing) bool {
	text := strings.ToLower(l.SearchableText())

	if !containsAny(text, f.includes) {
		return false
	}
	if containsAny(text, f.excludes) {
		f.logger.Debug("[relevance] Excluded model keyword in %s", l.ID)
		return false
	}

	price, ok := f.prices.Extract(l.PriceText + " " + l.Title)
	if !ok {
		return false
	}
	l.SetPrice(price)
	return true
}

// Filter returns the relevant subset of listings.
func (f *RelevanceFilter) Filter(listings []*models.Listing) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if f.IsRelevant(l) {
			out = append(out, l)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
