package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(t.TempDir(), 30, utils.NewLogger(false))
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	return store
}

func sampleSnapshot() *models.Snapshot {
	snapshot := models.NewSnapshot(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	l := &models.Listing{
		ID:            "1234567890123",
		Title:         "2023 Honda cb500f",
		PriceText:     "$5,495",
		Location:      "Dover, DE",
		Description:   "Garage kept, never dropped",
		ListedDateRaw: "3 days ago",
		ListedDate:    "2024-01-07",
		URL:           "https://www.facebook.com/marketplace/item/1234567890123/",
		Image:         "https://example.com/img.jpg",
		ScrapedAt:     time.Date(2024, 1, 10, 9, 0, 1, 0, time.UTC),
		SearchRegion:  "Delaware",
		SearchQuery:   "cb500f",
	}
	l.SetPrice(5495)
	snapshot.Listings[l.ID] = l
	return snapshot
}

func TestLoadPreviousFreshStart(t *testing.T) {
	store := newTestStore(t)

	snapshot, err := store.LoadPrevious()
	if err != nil {
		t.Fatalf("LoadPrevious on empty store: %v", err)
	}
	if snapshot.Count() != 0 {
		t.Errorf("fresh store returned %d listings; want 0", snapshot.Count())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	original := sampleSnapshot()

	if err := store.SaveCurrent(original); err != nil {
		t.Fatalf("SaveCurrent: %v", err)
	}

	loaded, err := store.LoadPrevious()
	if err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}

	if !loaded.TakenAt.Equal(original.TakenAt) {
		t.Errorf("TakenAt = %v; want %v", loaded.TakenAt, original.TakenAt)
	}
	if loaded.Count() != 1 {
		t.Fatalf("loaded %d listings; want 1", loaded.Count())
	}

	want := original.Listings["1234567890123"]
	got := loaded.Listings["1234567890123"]
	if got == nil {
		t.Fatal("listing missing after round trip")
	}

	if got.Title != want.Title ||
		got.PriceText != want.PriceText ||
		got.Location != want.Location ||
		got.Description != want.Description ||
		got.ListedDateRaw != want.ListedDateRaw ||
		got.ListedDate != want.ListedDate ||
		got.URL != want.URL ||
		got.Image != want.Image ||
		got.SearchRegion != want.SearchRegion ||
		got.SearchQuery != want.SearchQuery {
		t.Errorf("listing fields drifted after round trip:\ngot  %+v\nwant %+v", got, want)
	}
	if !got.ScrapedAt.Equal(want.ScrapedAt) {
		t.Errorf("ScrapedAt = %v; want %v", got.ScrapedAt, want.ScrapedAt)
	}
	gotPrice, gotOK := got.Price()
	wantPrice, wantOK := want.Price()
	if gotPrice != wantPrice || gotOK != wantOK {
		t.Errorf("Price() = (%.2f, %v); want (%.2f, %v)", gotPrice, gotOK, wantPrice, wantOK)
	}
}

func TestLoadPreviousRejectsMalformedState(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(store.dataDir, currentStateFile)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.LoadPrevious(); err == nil {
		t.Error("expected an error for a malformed state file")
	}
}

func TestAppendHistoryWritesTimestampedFile(t *testing.T) {
	store := newTestStore(t)
	snapshot := sampleSnapshot()

	if err := store.AppendHistory(snapshot); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	want := filepath.Join(store.dataDir, historicalDir, "listings_20240110_090000.json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("history file not written: %v", err)
	}
}

func TestPruneHistoryRemovesOldFiles(t *testing.T) {
	store := newTestStore(t)
	dir := filepath.Join(store.dataDir, historicalDir)

	oldFile := filepath.Join(dir, "listings_20230101_000000.json")
	newFile := filepath.Join(dir, "listings_20240110_090000.json")
	for _, f := range []string{oldFile, newFile} {
		if err := os.WriteFile(f, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	stale := time.Now().AddDate(0, 0, -40)
	if err := os.Chtimes(oldFile, stale, stale); err != nil {
		t.Fatal(err)
	}

	if err := store.pruneHistory(); err != nil {
		t.Fatalf("pruneHistory: %v", err)
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("file past retention should have been pruned")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("recent file should have been kept")
	}
}
