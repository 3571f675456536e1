package services

import (
	"math"
	"sort"

	"marketplace-monitor/models"
)

// ChangeDetector compares two snapshots and classifies every listing id
// into at most one of: new, removed, price changed. It is a pure function
// of the two snapshots; ids are emitted sorted within each category so the
// result is deterministic for a given pair of inputs.
type ChangeDetector struct {
	prices *PriceParser
	// Threshold is the minimum absolute price move that counts as a change.
	Threshold float64
}

// NewChangeDetector creates a detector using the given band-restricted
// price parser and change threshold.
func NewChangeDetector(prices *PriceParser, threshold float64) *ChangeDetector {
	return &ChangeDetector{prices: prices, Threshold: threshold}
}

// Detect diffs previous against current. Detect(A, A) is always empty, and
// the result is empty iff the two snapshots resolve to identical id→price
// mappings.
func (d *ChangeDetector) Detect(previous, current *models.Snapshot) []models.ChangeEvent {
	var events []models.ChangeEvent

	for _, id := range sortedIDs(current) {
		if _, existed := previous.Listings[id]; !existed {
			events = append(events, models.ChangeEvent{
				Type:      models.ChangeNew,
				ListingID: id,
				New:       current.Listings[id],
			})
		}
	}

	for _, id := range sortedIDs(previous) {
		if _, exists := current.Listings[id]; !exists {
			events = append(events, models.ChangeEvent{
				Type:      models.ChangeRemoved,
				ListingID: id,
				Old:       previous.Listings[id],
			})
		}
	}

	for _, id := range sortedIDs(previous) {
		newListing, exists := current.Listings[id]
		if !exists {
			continue
		}
		oldListing := previous.Listings[id]

		oldPrice, oldOK := d.listingPrice(oldListing)
		newPrice, newOK := d.listingPrice(newListing)
		if !oldOK || !newOK {
			continue
		}
		if math.Abs(newPrice-oldPrice) <= d.Threshold {
			continue
		}

		events = append(events, models.ChangeEvent{
			Type:      models.ChangePriceChanged,
			ListingID: id,
			Old:       oldListing,
			New:       newListing,
			PriceDiff: newPrice - oldPrice,
		})
	}

	return events
}

// listingPrice re-parses the price from title + price text. Parsing at diff
// time rather than trusting the stored value keeps the comparison honest
// when older snapshots predate a band change.
func (d *ChangeDetector) listingPrice(l *models.Listing) (float64, bool) {
	return d.prices.Extract(l.Title + " " + l.PriceText)
}

func sortedIDs(s *models.Snapshot) []string {
	ids := make([]string, 0, len(s.Listings))
	for id := range s.Listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CountByType tallies events per category for summaries.
func CountByType(events []models.ChangeEvent) (newCount, removedCount, priceCount int) {
	for _, ev := range events {
		switch ev.Type {
		case models.ChangeNew:
			newCount++
		case models.ChangeRemoved:
			removedCount++
		case models.ChangePriceChanged:
			priceCount++
		}
	}
	return
}
