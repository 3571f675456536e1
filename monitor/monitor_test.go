package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketplace-monitor/config"
	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Regions:              []config.SearchRegion{{Name: "North Jersey", MarketID: "1"}},
		Queries:              []string{"cb500f"},
		IncludeKeywords:      []string{"cb500f", "cb500x"},
		ExcludeKeywords:      []string{"cb650"},
		MinPrice:             3500,
		MaxPrice:             5800,
		PriceChangeThreshold: 50,
		RegionCodes:          []string{"NY", "NJ", "PA", "DE"},
		DomainKeywords:       []string{"honda"},
		MaxConcurrency:       2,
		RateLimitMs:          0,
		DigestHour:           -1, // never triggers during tests
	}
}

func block(id, title, price, location string) models.RawBlock {
	return models.RawBlock{
		Lines: []string{title, price, location},
		URL:   fmt.Sprintf("https://www.facebook.com/marketplace/item/%s/", id),
	}
}

type fakeFetcher struct {
	mu     sync.Mutex
	blocks map[string][]models.RawBlock // keyed region/query
	fail   map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, region config.SearchRegion, query string) ([]models.RawBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := region.Name + "/" + query
	if f.fail[key] {
		return nil, errors.New("browser crashed")
	}
	return f.blocks[key], nil
}

type fakeStore struct {
	previous *models.Snapshot
	saved    *models.Snapshot
	history  []*models.Snapshot
	loadErr  error
	saveErr  error
}

func (s *fakeStore) LoadPrevious() (*models.Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.previous == nil {
		return models.NewSnapshot(time.Time{}), nil
	}
	return s.previous, nil
}

func (s *fakeStore) SaveCurrent(snapshot *models.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = snapshot
	return nil
}

func (s *fakeStore) AppendHistory(snapshot *models.Snapshot) error {
	s.history = append(s.history, snapshot)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries [][]models.ChangeEvent
	digests   int
	errors    []string
}

func (n *fakeNotifier) SendChangesSummary(events []models.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, events)
	return nil
}

func (n *fakeNotifier) SendDailySummary(*models.MarketReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests++
	return nil
}

func (n *fakeNotifier) SendError(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
	return nil
}

func newTestMonitor(cfg *config.Config, fetcher Fetcher, store *fakeStore, notifier *fakeNotifier) *Monitor {
	return New(cfg, fetcher, store, notifier, utils.NewLogger(false))
}

func TestRunCycleNotifiesExactlyOnce(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{blocks: map[string][]models.RawBlock{
		"North Jersey/cb500f": {
			block("1111111111111", "2021 Honda cb500f", "$4,500", "Trenton, NJ"),
			block("2222222222222", "Honda cb500x adventure", "$5,000", "Newark, NJ"),
		},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	if err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(notifier.summaries) != 1 {
		t.Fatalf("SendChangesSummary called %d times; want exactly once", len(notifier.summaries))
	}
	if len(notifier.summaries[0]) != 2 {
		t.Errorf("summary carried %d events; want the complete set of 2", len(notifier.summaries[0]))
	}
	for _, ev := range notifier.summaries[0] {
		if ev.Type != models.ChangeNew {
			t.Errorf("event %+v; want New on a fresh store", ev)
		}
	}

	if store.saved == nil || store.saved.Count() != 2 {
		t.Error("current snapshot was not persisted")
	}
	if len(store.history) != 1 {
		t.Errorf("history appended %d times; want 1", len(store.history))
	}
}

func TestRunCycleNoChangesNoNotification(t *testing.T) {
	cfg := testConfig()

	previous := models.NewSnapshot(time.Now().Add(-time.Hour))
	prevListing := &models.Listing{ID: "1111111111111", Title: "2021 Honda cb500f", PriceText: "$4,500"}
	previous.Listings[prevListing.ID] = prevListing

	fetcher := &fakeFetcher{blocks: map[string][]models.RawBlock{
		"North Jersey/cb500f": {block("1111111111111", "2021 Honda cb500f", "$4,500", "Trenton, NJ")},
	}}
	store := &fakeStore{previous: previous}
	notifier := &fakeNotifier{}

	if err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(notifier.summaries) != 0 {
		t.Errorf("SendChangesSummary called %d times on an unchanged snapshot; want zero", len(notifier.summaries))
	}
	if store.saved == nil {
		t.Error("unchanged snapshot should still be persisted")
	}
}

func TestRunCycleEmptyKeepsPreviousSnapshot(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{blocks: map[string][]models.RawBlock{}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background())
	if !errors.Is(err, ErrEmptyCycle) {
		t.Fatalf("RunCycle = %v; want ErrEmptyCycle", err)
	}

	if store.saved != nil {
		t.Error("empty cycle must not overwrite the previous snapshot")
	}
	if len(notifier.errors) == 0 {
		t.Error("empty cycle should be reported")
	}
}

func TestRunCyclePartitionFailureIsolated(t *testing.T) {
	cfg := testConfig()
	cfg.Regions = []config.SearchRegion{
		{Name: "North Jersey", MarketID: "1"},
		{Name: "Philadelphia", MarketID: "2"},
	}

	fetcher := &fakeFetcher{
		blocks: map[string][]models.RawBlock{
			"North Jersey/cb500f": {block("1111111111111", "2021 Honda cb500f", "$4,500", "Trenton, NJ")},
		},
		fail: map[string]bool{"Philadelphia/cb500f": true},
	}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	if err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background()); err != nil {
		t.Fatalf("a single failed partition must not abort the cycle: %v", err)
	}

	if store.saved == nil || store.saved.Count() != 1 {
		t.Error("surviving partition's listing should be persisted")
	}
	if len(notifier.errors) != 1 {
		t.Errorf("failed partition reported %d times; want 1", len(notifier.errors))
	}
}

func TestRunCycleStoreErrorAborts(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{blocks: map[string][]models.RawBlock{
		"North Jersey/cb500f": {block("1111111111111", "2021 Honda cb500f", "$4,500", "Trenton, NJ")},
	}}
	store := &fakeStore{saveErr: errors.New("disk full")}
	notifier := &fakeNotifier{}

	if err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background()); err == nil {
		t.Fatal("store failure should abort the cycle")
	}

	if len(notifier.summaries) != 0 {
		t.Error("no change notification may be dispatched after a store failure")
	}
}

func TestRunCycleLoadErrorAborts(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{}
	store := &fakeStore{loadErr: errors.New("corrupt state")}
	notifier := &fakeNotifier{}

	if err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background()); err == nil {
		t.Fatal("load failure should abort the cycle")
	}
	if len(notifier.summaries) != 0 {
		t.Error("no notifications against an unknown previous state")
	}
}

func TestRunCycleFiltersIrrelevantBlocks(t *testing.T) {
	cfg := testConfig()
	fetcher := &fakeFetcher{blocks: map[string][]models.RawBlock{
		"North Jersey/cb500f": {
			block("1111111111111", "2021 Honda cb500f", "$4,500", "Trenton, NJ"),
			block("3333333333333", "Honda cb650r", "$4,500", "Trenton, NJ"),     // excluded model
			block("4444444444444", "Honda cb500f project", "$900", "Camden, NJ"), // below band
		},
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	if err := newTestMonitor(cfg, fetcher, store, notifier).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if store.saved.Count() != 1 {
		t.Errorf("snapshot has %d listings; want only the relevant one", store.saved.Count())
	}
	if _, ok := store.saved.Listings["1111111111111"]; !ok {
		t.Error("the relevant listing is missing from the snapshot")
	}
}
