package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace-monitor/config"
	"marketplace-monitor/models"
	"marketplace-monitor/services"
	"marketplace-monitor/storage"
	"marketplace-monitor/utils"
)

// ErrCycleBusy is returned when a cycle is already in flight. Two cycles
// diffing against the same stored snapshot would race and lose updates, so
// only one runs at a time.
var ErrCycleBusy = errors.New("monitor: cycle already in progress")

// ErrEmptyCycle is returned when no partition yielded any relevant listing.
// An all-empty result almost always means an upstream fetch problem, so the
// previous snapshot is left untouched rather than overwritten with nothing.
var ErrEmptyCycle = errors.New("monitor: no listings found in any partition")

// Fetcher is the external collaborator that produces raw blocks for one
// search partition. A failed fetch is isolated to its partition.
type Fetcher interface {
	Fetch(ctx context.Context, region config.SearchRegion, query string) ([]models.RawBlock, error)
}

// Notifier is the external delivery channel for change events and reports.
type Notifier interface {
	SendChangesSummary(events []models.ChangeEvent) error
	SendDailySummary(report *models.MarketReport) error
	SendError(errorMessage string) error
}

// Monitor runs the scrape → normalize → filter → aggregate → diff →
// persist → notify cycle. The pipeline stages themselves are pure and
// synchronous; the monitor owns the concurrency at the fetch boundary and
// the single-flight guarantee at the store boundary.
type Monitor struct {
	cfg      *config.Config
	logger   *utils.Logger
	fetcher  Fetcher
	store    storage.SnapshotStore
	notifier Notifier

	// Optional secondary sinks; failures there never abort a cycle.
	Archiver storage.SnapshotArchiver
	Exporter storage.SnapshotExporter

	extractor  *services.FieldExtractor
	filter     *services.RelevanceFilter
	aggregator *services.Aggregator
	detector   *services.ChangeDetector
	insights   *services.InsightService

	cycleMu sync.Mutex
	now     func() time.Time
}

// New wires a Monitor from its collaborators and the pure pipeline stages.
func New(cfg *config.Config, fetcher Fetcher, store storage.SnapshotStore, notifier Notifier, logger *utils.Logger) *Monitor {
	prices := services.NewPriceParser(cfg.MinPrice, cfg.MaxPrice)
	return &Monitor{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher,
		store:      store,
		notifier:   notifier,
		extractor:  services.NewFieldExtractor(cfg.RegionCodes, cfg.DomainKeywords, logger, time.Now),
		filter:     services.NewRelevanceFilter(cfg.IncludeKeywords, cfg.ExcludeKeywords, cfg.MinPrice, cfg.MaxPrice, logger),
		aggregator: services.NewAggregator(logger),
		detector:   services.NewChangeDetector(prices, cfg.PriceChangeThreshold),
		insights:   services.NewInsightService(logger),
		now:        time.Now,
	}
}

// RunCycle executes one monitoring cycle. It returns ErrCycleBusy when a
// cycle is already running, ErrEmptyCycle when every partition came back
// empty, and a wrapped store error when persistence fails; partition fetch
// failures are absorbed.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if !m.cycleMu.TryLock() {
		return ErrCycleBusy
	}
	defer m.cycleMu.Unlock()

	startedAt := m.now()
	m.logger.Info("[monitor] Starting cycle at %s", startedAt.Format("2006-01-02 15:04:05"))
	report := models.CycleReport{StartedAt: startedAt}

	previous, err := m.store.LoadPrevious()
	if err != nil {
		m.notifyError(fmt.Sprintf("❌ Cycle aborted, cannot load previous state: %v", err))
		return fmt.Errorf("monitor: load previous snapshot: %w", err)
	}

	results := m.fetchAllPartitions(ctx, &report)

	if report.Relevant == 0 {
		m.logger.Warn("[monitor] No listings found - possible scraping issue")
		m.notifyError("⚠️ No listings found in any partition - possible scraping issue")
		return ErrEmptyCycle
	}

	current, stats := m.aggregator.Merge(results, startedAt)
	report.Stats = stats

	events := m.detector.Detect(previous, current)
	report.NewCount, report.RemovedCount, report.PriceChangeCount = services.CountByType(events)

	if err := m.store.SaveCurrent(current); err != nil {
		m.notifyError(fmt.Sprintf("❌ Cycle aborted, cannot save current state: %v", err))
		return fmt.Errorf("monitor: save current snapshot: %w", err)
	}
	if err := m.store.AppendHistory(current); err != nil {
		m.notifyError(fmt.Sprintf("❌ Cycle aborted, cannot append history: %v", err))
		return fmt.Errorf("monitor: append history: %w", err)
	}

	m.runSecondarySinks(current)

	if len(events) > 0 {
		m.logger.Info("[monitor] Found %d changes (%d new, %d removed, %d price)",
			len(events), report.NewCount, report.RemovedCount, report.PriceChangeCount)
		if err := m.notifier.SendChangesSummary(events); err != nil {
			m.logger.Warn("[monitor] Change notification failed: %v", err)
		}
	} else {
		m.logger.Info("[monitor] No changes detected")
	}

	if startedAt.Hour() == m.cfg.DigestHour && startedAt.Minute() < 5 {
		if err := m.notifier.SendDailySummary(m.insights.Generate(current)); err != nil {
			m.logger.Warn("[monitor] Daily digest failed: %v", err)
		}
	}

	m.logReport(&report, current)
	return nil
}

// fetchAllPartitions runs every (region, query) fetch through the worker
// pool, normalizes and filters each partition's blocks, and collects the
// per-partition results. A failed partition contributes zero records.
func (m *Monitor) fetchAllPartitions(ctx context.Context, report *models.CycleReport) []services.PartitionResult {
	pool := utils.NewWorkerPool(m.cfg.MaxConcurrency, m.cfg.RateLimitMs)

	var mu sync.Mutex
	var results []services.PartitionResult

	for _, region := range m.cfg.Regions {
		for _, query := range m.cfg.Queries {
			region, query := region, query
			pool.Submit(func() {
				blocks, err := m.fetcher.Fetch(ctx, region, query)
				if err != nil {
					m.logger.Error("[monitor] Fetch failed for %s/%q: %v", region.Name, query, err)
					m.notifyError(fmt.Sprintf("❌ Scrape error %s (%s): %v", region.Name, query, err))
					mu.Lock()
					report.PartitionsFailed++
					mu.Unlock()
					return
				}

				relevant := m.normalizePartition(blocks)

				mu.Lock()
				report.PartitionsOK++
				report.RawBlocks += len(blocks)
				report.Relevant += len(relevant)
				results = append(results, services.PartitionResult{
					Region:   region.Name,
					Query:    query,
					Listings: relevant,
				})
				mu.Unlock()

				m.logger.Info("[monitor] %s/%q: %d blocks, %d relevant", region.Name, query, len(blocks), len(relevant))
			})
		}
	}
	pool.Wait()

	return results
}

// normalizePartition runs the pure extraction and relevance stages over one
// partition's raw blocks. Blocks without an extractable id are dropped.
func (m *Monitor) normalizePartition(blocks []models.RawBlock) []*models.Listing {
	listings := make([]*models.Listing, 0, len(blocks))
	for _, block := range blocks {
		listing, ok := m.extractor.Extract(block)
		if !ok {
			continue
		}
		listings = append(listings, listing)
	}
	return m.filter.Filter(listings)
}

func (m *Monitor) runSecondarySinks(current *models.Snapshot) {
	if m.Archiver != nil {
		if err := m.Archiver.Archive(current); err != nil {
			m.logger.Warn("[monitor] Archive failed: %v", err)
		}
	}
	if m.Exporter != nil {
		if err := m.Exporter.Export(current); err != nil {
			m.logger.Warn("[monitor] CSV export failed: %v", err)
		}
	}
}

func (m *Monitor) notifyError(message string) {
	if err := m.notifier.SendError(message); err != nil {
		m.logger.Warn("[monitor] Error notification failed: %v", err)
	}
}

func (m *Monitor) logReport(report *models.CycleReport, current *models.Snapshot) {
	m.logger.Info("[monitor] Cycle done in %v — partitions %d ok / %d failed | %d blocks → %d relevant → %d unique | changes: %d new, %d removed, %d price",
		m.now().Sub(report.StartedAt).Round(time.Millisecond),
		report.PartitionsOK, report.PartitionsFailed,
		report.RawBlocks, report.Relevant, current.Count(),
		report.NewCount, report.RemovedCount, report.PriceChangeCount)
}
