package services

import (
	"time"

	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

// PartitionResult is the outcome of one (region, query) fetch after
// extraction and relevance filtering.
type PartitionResult struct {
	Region   string
	Query    string
	Listings []*models.Listing
}

// Aggregator merges per-partition results into one deduplicated snapshot.
// Identity is the listing id; the first partition to report an id wins, and
// its (region, query) provenance sticks — later partitions reporting the
// same id only bump the duplicate counter.
type Aggregator struct {
	logger *utils.Logger
}

// NewAggregator creates an Aggregator with the given logger.
func NewAggregator(logger *utils.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Merge combines partition results into a snapshot taken at takenAt and
// reports dedup bookkeeping.
func (a *Aggregator) Merge(results []PartitionResult, takenAt time.Time) (*models.Snapshot, models.AggregateStats) {
	snapshot := models.NewSnapshot(takenAt)
	stats := models.AggregateStats{ByRegion: make(map[string]int)}

	for _, res := range results {
		stats.TotalDiscovered += len(res.Listings)
		stats.ByRegion[res.Region] += len(res.Listings)

		for _, l := range res.Listings {
			if _, seen := snapshot.Listings[l.ID]; seen {
				stats.DuplicatesDropped++
				continue
			}
			l.SearchRegion = res.Region
			l.SearchQuery = res.Query
			snapshot.Listings[l.ID] = l
		}
	}

	a.logger.Info("[aggregator] %d discovered across %d partitions → %d unique (%d duplicates dropped)",
		stats.TotalDiscovered, len(results), snapshot.Count(), stats.DuplicatesDropped)
	return snapshot, stats
}
