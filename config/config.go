package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// SearchRegion is one marketplace region used to scope a search request.
type SearchRegion struct {
	Name     string
	MarketID string
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Search partitions: every region is combined with every query.
	Regions []SearchRegion
	Queries []string

	// Relevance criteria.
	IncludeKeywords []string
	ExcludeKeywords []string
	MinPrice        float64
	MaxPrice        float64

	// Change detection.
	PriceChangeThreshold float64

	// Field extraction: two-letter region codes recognized in location
	// lines, and brand keywords that mark an overlong title as a glued
	// multi-field blob.
	RegionCodes    []string
	DomainKeywords []string

	// Scraper knobs.
	CookiesPath     string
	DaysSinceListed int
	MaxScrolls      int
	ScrollDelayMs   int
	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
	ChromeBin       string

	// Storage.
	DataDir       string
	RetentionDays int
	CSVOutputPath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresEnabled  bool

	// Notifications.
	TelegramBotToken string
	TelegramChatID   string
	DigestHour       int
}

// defaultRegions covers the search area around Summit, NJ with the
// marketplace location ids the search URLs are built from.
var defaultRegions = []SearchRegion{
	{"New York Metro", "103727996333163"},
	{"North Jersey", "109824442381734"},
	{"Central Jersey", "104052089631773"},
	{"Philadelphia", "112724858717904"},
	{"South Jersey", "104095516327164"},
	{"Pennsylvania", "110396605639860"},
	{"Maryland", "106441769381283"},
	{"Virginia", "113301148664532"},
	{"Connecticut", "109415472407501"},
	{"Delaware", "106015479455140"},
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Regions: getEnvRegions("SEARCH_REGIONS", defaultRegions),
		Queries: getEnvList("SEARCH_QUERIES", []string{"cb500f", "cb500x", "cb 500f", "cb 500x"}),

		IncludeKeywords: getEnvList("INCLUDE_KEYWORDS", []string{"cb500f", "cb500x", "cb 500f", "cb 500x"}),
		ExcludeKeywords: getEnvList("EXCLUDE_KEYWORDS", []string{"cb650", "cb300", "cb1000", "cbr500", "cbr600"}),
		MinPrice:        getEnvFloat("MIN_PRICE", 3500),
		MaxPrice:        getEnvFloat("MAX_PRICE", 5800),

		PriceChangeThreshold: getEnvFloat("PRICE_CHANGE_THRESHOLD", 50),

		RegionCodes:    getEnvList("REGION_CODES", []string{"NY", "NJ", "PA", "CT", "MA", "DE", "MD", "VA", "FL", "NC", "SC"}),
		DomainKeywords: getEnvList("DOMAIN_KEYWORDS", []string{"honda"}),

		CookiesPath:     getEnv("COOKIES_PATH", "./data/cookies.json"),
		DaysSinceListed: getEnvInt("DAYS_SINCE_LISTED", 14),
		MaxScrolls:      getEnvInt("MAX_SCROLLS", 3),
		ScrollDelayMs:   getEnvInt("SCROLL_DELAY_MS", 2000),
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		DataDir:       getEnv("DATA_DIR", "./data"),
		RetentionDays: getEnvInt("RETENTION_DAYS", 30),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/current_listings.csv"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "monitor"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "monitor123"),
		PostgresDB:       getEnv("POSTGRES_DB", "listings_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		DigestHour:       getEnvInt("DIGEST_HOUR", 9),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList parses a comma-separated list, trimming whitespace.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnvRegions parses "Name:marketID,Name:marketID" pairs.
func getEnvRegions(key string, fallback []SearchRegion) []SearchRegion {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []SearchRegion
	for _, part := range strings.Split(val, ",") {
		name, id, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || name == "" || id == "" {
			continue
		}
		out = append(out, SearchRegion{Name: name, MarketID: id})
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
