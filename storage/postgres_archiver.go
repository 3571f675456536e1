package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"marketplace-monitor/models"
)

// PostgresArchiver keeps an append-only archive of every cycle's listings
// in PostgreSQL, one row per (cycle timestamp, listing id). The JSON store
// remains the source of truth for diffing; the archive exists for ad-hoc
// price-history queries.
type PostgresArchiver struct {
	db *sql.DB
}

// NewPostgresArchiver opens a connection, runs schema migrations, and
// returns a ready-to-use archiver.
func NewPostgresArchiver(dsn string) (*PostgresArchiver, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pa := &PostgresArchiver{db: db}
	if err := pa.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pa, nil
}

func (pa *PostgresArchiver) migrate() error {
	_, err := pa.db.Exec(`
		CREATE TABLE IF NOT EXISTS listing_archive (
			id              SERIAL PRIMARY KEY,
			cycle_at        TIMESTAMPTZ   NOT NULL,
			listing_id      VARCHAR(32)   NOT NULL,
			title           TEXT          NOT NULL DEFAULT '',
			price_text      TEXT          NOT NULL DEFAULT '',
			extracted_price NUMERIC(10,2),
			location        TEXT          NOT NULL DEFAULT '',
			description     TEXT          NOT NULL DEFAULT '',
			listed_date     TEXT          NOT NULL DEFAULT '',
			url             TEXT          NOT NULL,
			search_region   TEXT          NOT NULL DEFAULT '',
			search_query    TEXT          NOT NULL DEFAULT '',
			scraped_at      TIMESTAMPTZ   NOT NULL,
			UNIQUE (cycle_at, listing_id)
		);

		CREATE INDEX IF NOT EXISTS idx_archive_listing_id ON listing_archive(listing_id);
		CREATE INDEX IF NOT EXISTS idx_archive_cycle_at   ON listing_archive(cycle_at);
	`)
	return err
}

// Archive batch-inserts every listing of the snapshot under its cycle timestamp.
func (pa *PostgresArchiver) Archive(snapshot *models.Snapshot) error {
	if snapshot.Count() == 0 {
		return nil
	}

	listings := sortedListings(snapshot)

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pa.insertBatch(snapshot.TakenAt, listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pa *PostgresArchiver) insertBatch(cycleAt time.Time, batch []*models.Listing) error {
	const cols = 12
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for c := 0; c < cols; c++ {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var price sql.NullFloat64
		if p, ok := l.Price(); ok {
			price = sql.NullFloat64{Float64: p, Valid: true}
		}
		valueArgs = append(valueArgs,
			cycleAt, l.ID, l.Title, l.PriceText, price, l.Location,
			l.Description, l.ListedDateRaw, l.URL, l.SearchRegion, l.SearchQuery, l.ScrapedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO listing_archive (
			cycle_at, listing_id, title, price_text, extracted_price, location,
			description, listed_date, url, search_region, search_query, scraped_at
		)
		VALUES %s
		ON CONFLICT (cycle_at, listing_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := pa.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (pa *PostgresArchiver) Close() error {
	return pa.db.Close()
}
