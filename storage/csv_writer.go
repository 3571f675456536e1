package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"marketplace-monitor/models"
)

// CSVWriter exports the current snapshot to a CSV file for quick manual
// inspection. Each export replaces the previous file.
type CSVWriter struct {
	path string
}

// NewCSVWriter creates a writer targeting the given path. Intermediate
// directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{path: path}, nil
}

// Export writes every listing of the snapshot, sorted by id.
func (c *CSVWriter) Export(snapshot *models.Snapshot) error {
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"listing_id", "title", "price_text", "extracted_price", "location",
		"description", "listed_date", "listed_date_parsed", "url",
		"search_region", "search_query", "scraped_at",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, l := range sortedListings(snapshot) {
		price := ""
		if p, ok := l.Price(); ok {
			price = strconv.FormatFloat(p, 'f', 2, 64)
		}
		row := []string{
			l.ID,
			l.Title,
			l.PriceText,
			price,
			l.Location,
			l.Description,
			l.ListedDateRaw,
			l.ListedDate,
			l.URL,
			l.SearchRegion,
			l.SearchQuery,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
