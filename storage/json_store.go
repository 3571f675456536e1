package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

const (
	currentStateFile = "current_state.json"
	historicalDir    = "historical"
)

// snapshotFile is the on-disk form of a snapshot: the listings as a sorted
// list plus the timestamp and record count, one cohesive unit per cycle.
type snapshotFile struct {
	Timestamp time.Time         `json:"timestamp"`
	Count     int               `json:"count"`
	Listings  []*models.Listing `json:"listings"`
}

// JSONStore persists snapshots as JSON files under a data directory:
// current_state.json for the latest snapshot and historical/listings_*.json
// for the retained history.
type JSONStore struct {
	dataDir       string
	retentionDays int
	logger        *utils.Logger
}

// NewJSONStore creates the data and history directories and returns a
// ready-to-use store.
func NewJSONStore(dataDir string, retentionDays int, logger *utils.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, historicalDir), 0755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &JSONStore{dataDir: dataDir, retentionDays: retentionDays, logger: logger}, nil
}

// LoadPrevious reads the current-state file. A missing file is a fresh
// start and yields an empty snapshot; a malformed file is an error — the
// cycle must not diff against garbage.
func (s *JSONStore) LoadPrevious() (*models.Snapshot, error) {
	path := filepath.Join(s.dataDir, currentStateFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.logger.Info("[store] No current state file, starting fresh")
		return models.NewSnapshot(time.Time{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read current state: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("store: decode current state: %w", err)
	}

	snapshot := models.NewSnapshot(file.Timestamp)
	for _, l := range file.Listings {
		if l.ID == "" {
			continue
		}
		snapshot.Listings[l.ID] = l
	}

	s.logger.Info("[store] Loaded %d listings from current state", snapshot.Count())
	return snapshot, nil
}

// SaveCurrent replaces the current-state file with the given snapshot.
func (s *JSONStore) SaveCurrent(snapshot *models.Snapshot) error {
	path := filepath.Join(s.dataDir, currentStateFile)
	if err := s.writeSnapshot(path, snapshot); err != nil {
		return err
	}
	s.logger.Info("[store] Saved current state with %d listings", snapshot.Count())
	return nil
}

// AppendHistory writes the snapshot as a timestamped history file and
// prunes files older than the retention window.
func (s *JSONStore) AppendHistory(snapshot *models.Snapshot) error {
	name := fmt.Sprintf("listings_%s.json", snapshot.TakenAt.Format("20060102_150405"))
	path := filepath.Join(s.dataDir, historicalDir, name)

	if err := s.writeSnapshot(path, snapshot); err != nil {
		return err
	}
	s.logger.Info("[store] Saved historical data to %s", name)

	if err := s.pruneHistory(); err != nil {
		// Pruning failure does not endanger the cycle's data.
		s.logger.Warn("[store] History pruning failed: %v", err)
	}
	return nil
}

func (s *JSONStore) writeSnapshot(path string, snapshot *models.Snapshot) error {
	file := snapshotFile{
		Timestamp: snapshot.TakenAt,
		Count:     snapshot.Count(),
		Listings:  sortedListings(snapshot),
	}

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *JSONStore) pruneHistory() error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	dir := filepath.Join(s.dataDir, historicalDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("[store] Pruned %d historical files past %d-day retention", deleted, s.retentionDays)
	}
	return nil
}

func sortedListings(snapshot *models.Snapshot) []*models.Listing {
	listings := make([]*models.Listing, 0, snapshot.Count())
	for _, l := range snapshot.Listings {
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings
}
