package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace-monitor/models"
	"marketplace-monitor/services"
	"marketplace-monitor/utils"
)

// displayPriceMin/Max bound the figures shown in messages. Wider than the
// relevance band on purpose: a listing already accepted by the filter may
// quote a secondary figure outside the target band that is still the one
// worth displaying.
const (
	displayPriceMin = 3000
	displayPriceMax = 10000
)

var yearRegexp = regexp.MustCompile(`\b(20(?:1[3-9]|2[0-5]))\b`)

// TelegramNotifier delivers change summaries, error reports, and the daily
// digest through the Telegram Bot API. With no token configured it becomes
// a no-op, so local runs work without credentials.
type TelegramNotifier struct {
	apiURL   string
	chatID   string
	client   *http.Client
	logger   *utils.Logger
	keywords []string
	prices   *services.PriceParser
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
// keywords are the target-model terms used to label listings in messages.
func NewTelegramNotifier(botToken, chatID string, keywords []string, logger *utils.Logger) *TelegramNotifier {
	apiURL := ""
	if botToken != "" {
		apiURL = "https://api.telegram.org/bot" + botToken
	}
	return &TelegramNotifier{
		apiURL:   apiURL,
		chatID:   chatID,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		keywords: keywords,
		prices:   services.NewPriceParser(displayPriceMin, displayPriceMax),
	}
}

// SendChangesSummary delivers the complete change set as one message.
func (t *TelegramNotifier) SendChangesSummary(events []models.ChangeEvent) error {
	newCount, removedCount, priceCount := services.CountByType(events)

	lines := []string{"📊 CHANGES SUMMARY", ""}

	if newCount > 0 {
		lines = append(lines, fmt.Sprintf("🆕 New listings: %d", newCount))
		for _, ev := range events {
			if ev.Type != models.ChangeNew {
				continue
			}
			lines = append(lines, "", t.formatListing(ev.New), "🔗 "+ev.New.URL)
		}
	}

	if removedCount > 0 {
		lines = append(lines, "", fmt.Sprintf("❌ Removed listings: %d", removedCount))
	}

	if priceCount > 0 {
		lines = append(lines, "", fmt.Sprintf("💰 Price changes: %d", priceCount))
		for _, ev := range events {
			if ev.Type != models.ChangePriceChanged {
				continue
			}
			oldPrice, oldOK := t.prices.Extract(ev.Old.Title + " " + ev.Old.PriceText)
			newPrice, newOK := t.prices.Extract(ev.New.Title + " " + ev.New.PriceText)
			if oldOK && newOK {
				direction := "📉"
				if newPrice > oldPrice {
					direction = "📈"
				}
				lines = append(lines, fmt.Sprintf("%s %s → %s", direction, formatDollars(oldPrice), formatDollars(newPrice)))
			}
		}
	}

	return t.sendMessage(strings.Join(lines, "\n"))
}

// SendDailySummary delivers the market digest built from a report.
func (t *TelegramNotifier) SendDailySummary(report *models.MarketReport) error {
	lines := []string{
		"📊 Daily summary",
		"",
		fmt.Sprintf("🏍 Total listings: %d", report.TotalListings),
	}

	if report.PricedListings > 0 {
		lines = append(lines,
			"",
			"💰 Price statistics:",
			fmt.Sprintf("   • Average: %s", formatDollars(report.AveragePrice)),
			fmt.Sprintf("   • Minimum: %s", formatDollars(report.MinPrice)),
			fmt.Sprintf("   • Maximum: %s", formatDollars(report.MaxPrice)),
		)
	}

	if len(report.ListingsByRegion) > 0 {
		lines = append(lines, "", "📍 By region:")
		for region, count := range report.ListingsByRegion {
			lines = append(lines, fmt.Sprintf("   • %s: %d", region, count))
		}
	}

	return t.sendMessage(strings.Join(lines, "\n"))
}

// SendError reports a monitoring problem.
func (t *TelegramNotifier) SendError(errorMessage string) error {
	message := fmt.Sprintf("⚠️ Monitoring error\n\n%s\n\nTime: %s",
		errorMessage, time.Now().Format("2006-01-02 15:04:05"))
	return t.sendMessage(message)
}

// formatListing renders one listing block: year/model headline when both
// resolve, otherwise the raw title, then location, age, and a trimmed
// description.
func (t *TelegramNotifier) formatListing(l *models.Listing) string {
	allText := l.Title + " " + l.PriceText
	price, hasPrice := t.prices.Extract(allText)
	year := extractYear(allText)
	model := t.matchModel(allText)

	var lines []string
	switch {
	case year != "" && hasPrice:
		lines = append(lines, fmt.Sprintf("🏍 %s %s - %s", year, model, formatDollars(price)))
	case hasPrice:
		lines = append(lines, fmt.Sprintf("🏍 %s - %s", model, formatDollars(price)))
	default:
		lines = append(lines, "🏍 "+l.Title)
		if l.PriceText != "" && l.PriceText != l.Title {
			lines = append(lines, "💰 "+l.PriceText)
		}
	}

	if l.Location != "" {
		lines = append(lines, "📍 "+l.Location)
	}
	if l.ListedDateRaw != "" {
		lines = append(lines, "📅 "+l.ListedDateRaw)
	}
	if len(l.Description) > 20 {
		desc := l.Description
		if len(desc) > 100 {
			// Back off to a rune boundary so the cut never emits a
			// partial multi-byte character.
			cut := 100
			for cut > 0 && !utf8.RuneStart(desc[cut]) {
				cut--
			}
			desc = desc[:cut] + "..."
		}
		lines = append(lines, "📝 "+desc)
	}

	return strings.Join(lines, "\n")
}

// matchModel labels a listing by the first configured keyword found in its
// text, upper-cased; falls back to a generic label when none match.
func (t *TelegramNotifier) matchModel(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range t.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return strings.ToUpper(strings.ReplaceAll(kw, " ", ""))
		}
	}
	return "listing"
}

func (t *TelegramNotifier) sendMessage(text string) error {
	if t.apiURL == "" {
		t.logger.Debug("[telegram] No bot token configured, skipping message")
		return nil
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"disable_web_page_preview": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: encode payload: %w", err)
	}

	resp, err := t.client.Post(t.apiURL+"/sendMessage", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: send message: status %d: %s", resp.StatusCode, string(detail))
	}

	t.logger.Debug("[telegram] Message sent")
	return nil
}

func extractYear(text string) string {
	if m := yearRegexp.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func formatDollars(v float64) string {
	s := strconv.FormatInt(int64(v+0.5), 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return "$" + s
}
