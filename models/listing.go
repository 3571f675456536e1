package models

import "time"

// RawBlock holds the unstructured text attributed to one listing anchor,
// exactly as the browser handed it over. Produced by the scraper, consumed
// by the extractor within a single cycle, never persisted.
type RawBlock struct {
	Lines []string
	URL   string
	Image string
}

// Listing is the normalized record the whole pipeline operates on.
// Unresolved text fields stay empty; the parsed price is exposed through
// Price so that "no price" is never conflated with a zero price.
type Listing struct {
	ID             string    `json:"listing_id"`
	Title          string    `json:"title"`
	PriceText      string    `json:"price_text"`
	ExtractedPrice float64   `json:"extracted_price,omitempty"`
	HasPrice       bool      `json:"has_price"`
	Location       string    `json:"location"`
	Description    string    `json:"description"`
	ListedDateRaw  string    `json:"listed_date"`
	ListedDate     string    `json:"listed_date_parsed"`
	URL            string    `json:"url"`
	Image          string    `json:"image,omitempty"`
	ScrapedAt      time.Time `json:"scraped_at"`
	SearchRegion   string    `json:"search_region,omitempty"`
	SearchQuery    string    `json:"search_query,omitempty"`
}

// Price returns the parsed price and whether one was resolved.
func (l *Listing) Price() (float64, bool) {
	return l.ExtractedPrice, l.HasPrice
}

// SetPrice records a resolved price.
func (l *Listing) SetPrice(p float64) {
	l.ExtractedPrice = p
	l.HasPrice = true
}

// SearchableText concatenates the fields relevance decisions look at.
func (l *Listing) SearchableText() string {
	return l.Title + " " + l.PriceText + " " + l.Description
}

// Snapshot is one point-in-time observation: every normalized listing seen
// in a cycle keyed by id, plus when it was taken. Immutable once built.
type Snapshot struct {
	TakenAt  time.Time           `json:"timestamp"`
	Listings map[string]*Listing `json:"listings"`
}

// NewSnapshot creates an empty snapshot stamped with the given time.
func NewSnapshot(takenAt time.Time) *Snapshot {
	return &Snapshot{TakenAt: takenAt, Listings: make(map[string]*Listing)}
}

// Count returns the number of listings in the snapshot.
func (s *Snapshot) Count() int { return len(s.Listings) }

// ChangeType classifies one diff result.
type ChangeType string

const (
	ChangeNew          ChangeType = "new"
	ChangeRemoved      ChangeType = "removed"
	ChangePriceChanged ChangeType = "price_change"
)

// ChangeEvent is one classified difference between two snapshots for a
// single listing identity. Old/New are nil where the variant has no side.
type ChangeEvent struct {
	Type      ChangeType
	ListingID string
	Old       *Listing
	New       *Listing
	PriceDiff float64 // new minus old, set only for ChangePriceChanged
}

// AggregateStats is the dedup bookkeeping the aggregator reports.
type AggregateStats struct {
	TotalDiscovered   int
	DuplicatesDropped int
	ByRegion          map[string]int
}

// CycleReport summarizes one monitoring cycle for logging.
type CycleReport struct {
	StartedAt        time.Time
	PartitionsOK     int
	PartitionsFailed int
	RawBlocks        int
	Relevant         int
	Stats            AggregateStats
	NewCount         int
	RemovedCount     int
	PriceChangeCount int
}

// MarketReport holds the computed summary over one snapshot, used for the
// daily digest.
type MarketReport struct {
	TotalListings    int
	PricedListings   int
	AveragePrice     float64
	MinPrice         float64
	MaxPrice         float64
	Cheapest         *Listing
	ListingsByRegion map[string]int
}
