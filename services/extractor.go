package services

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

const (
	// minIDLength guards against picking up short numeric path segments
	// (page numbers, category ids) as listing ids.
	minIDLength = 10

	// blobTitleLen is the title length beyond which a concatenated-field
	// blob is suspected.
	blobTitleLen = 80

	descriptionMinLen = 25
	titleSwapMinLen   = 5
	maxTitleTokens    = 6
	maxClassifyLines  = 9
)

// dateMarkers flag a line as a listing-age phrase.
var dateMarkers = []string{"ago", "day", "week", "month", "hour", "minute"}

// strongDateMarkers are the markers that disqualify a line from being a
// title or description candidate.
var strongDateMarkers = []string{"ago", "day", "week"}

// FieldExtractor reconstructs a normalized Listing from the unstructured
// text block attached to one listing anchor. The upstream text has no
// reliable delimiters, so classification is heuristic: ordered pattern
// precedence over lines when the block is segmented, and a lossy
// split-by-pattern fallback when several fields arrive glued into one
// string. Fields that cannot be resolved stay empty, never guessed.
type FieldExtractor struct {
	logger         *utils.Logger
	regionCodes    []string
	domainKeywords []string
	locationRegexp *regexp.Regexp
	now            func() time.Time
}

// NewFieldExtractor creates an extractor recognizing the given two-letter
// region codes in location text and the given keywords as blob-split
// triggers. nowFn supplies the clock for relative-date resolution.
func NewFieldExtractor(regionCodes, domainKeywords []string, logger *utils.Logger, nowFn func() time.Time) *FieldExtractor {
	if nowFn == nil {
		nowFn = time.Now
	}
	quoted := make([]string, len(regionCodes))
	for i, c := range regionCodes {
		quoted[i] = regexp.QuoteMeta(strings.ToUpper(c))
	}
	// Free text, a comma, a region code, optionally a mileage suffix.
	locPattern := `([A-Za-z\s]+,\s*(?:` + strings.Join(quoted, "|") + `)(?:\s*\d+K?\s*miles?)?)`

	return &FieldExtractor{
		logger:         logger,
		regionCodes:    regionCodes,
		domainKeywords: domainKeywords,
		locationRegexp: regexp.MustCompile(locPattern),
		now:            nowFn,
	}
}

// Extract turns one raw block into a Listing. Returns false when the block
// carries no usable listing id — such blocks are dropped, an id is never
// synthesized.
func (e *FieldExtractor) Extract(block models.RawBlock) (*models.Listing, bool) {
	id := extractListingID(block.URL)
	if id == "" {
		return nil, false
	}

	lines := make([]string, 0, len(block.Lines))
	for _, l := range block.Lines {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}

	var title, priceText, location, description, listedDate string
	if len(lines) > 0 {
		title = lines[0]
	}

	// Line-classification pass: each line is claimed by at most one field,
	// in precedence order price → location → date → description.
	limit := len(lines)
	if limit > maxClassifyLines+1 {
		limit = maxClassifyLines + 1
	}
	for i := 1; i < limit; i++ {
		line := lines[i]
		lower := strings.ToLower(line)
		switch {
		case priceText == "" && e.looksLikePrice(line):
			priceText = line
		case location == "" && e.looksLikeLocation(line):
			location = line
		case listedDate == "" && containsAny(lower, dateMarkers):
			listedDate = line
		case len(line) > descriptionMinLen && !containsAny(lower, strongDateMarkers) && !strings.Contains(line, "$"):
			if description == "" {
				description = line
			} else {
				description += " " + line
			}
		}
	}

	// Title/price swap: when the first line is actually the price and no
	// price line was claimed elsewhere, promote the next plausible line.
	if strings.Contains(title, "$") && priceText == "" {
		priceText = title
		swapLimit := len(lines)
		if swapLimit > 4 {
			swapLimit = 4
		}
		for i := 1; i < swapLimit; i++ {
			line := lines[i]
			if !strings.Contains(line, "$") && len(line) > titleSwapMinLen &&
				!containsAny(strings.ToLower(line), strongDateMarkers) {
				title = line
				break
			}
		}
	}

	// Concatenated-field fallback: an overlong title that still carries a
	// price or a domain keyword means several fields arrived glued
	// together. The split is best-effort and lossy — a clean short title is
	// preferred over completeness.
	if len(title) > blobTitleLen && (strings.Contains(title, "$") || containsAny(strings.ToLower(title), e.domainKeywords)) {
		parts := e.splitConcatenated(title)
		if parts.price != "" && priceText == "" {
			priceText = parts.price
		}
		if parts.location != "" && location == "" {
			location = parts.location
		}
		if parts.cleanTitle != "" {
			title = parts.cleanTitle
		}
		e.logger.Debug("[extractor] Split concatenated title for %s", id)
	}

	resolved := ResolveRelativeDate(listedDate, e.now())
	if resolved == listedDate {
		resolved = ""
	}

	return &models.Listing{
		ID:            id,
		Title:         title,
		PriceText:     priceText,
		Location:      location,
		Description:   description,
		ListedDateRaw: listedDate,
		ListedDate:    resolved,
		URL:           block.URL,
		Image:         block.Image,
		ScrapedAt:     e.now(),
	}, true
}

type splitFields struct {
	price      string
	location   string
	cleanTitle string
}

// splitConcatenated pulls price and location patterns out of a glued blob
// and reduces the remainder to a short title. Ambiguity is accepted: a
// location pattern matching inside a run-on title is a known mis-extraction
// this heuristic does not try to resolve.
func (e *FieldExtractor) splitConcatenated(text string) splitFields {
	var out splitFields

	if prices := FindPriceTexts(text); len(prices) > 0 {
		out.price = strings.Join(prices, " ")
		for _, p := range prices {
			text = strings.Replace(text, p, " ", 1)
		}
	}

	if m := e.locationRegexp.FindStringSubmatch(text); m != nil {
		out.location = strings.TrimSpace(m[1])
		text = strings.Replace(text, m[0], " ", 1)
	}

	var tokens []string
	for _, tok := range strings.Fields(text) {
		if len(tok) > 2 && !isNumeric(tok) {
			tokens = append(tokens, tok)
		}
		if len(tokens) == maxTitleTokens {
			break
		}
	}
	out.cleanTitle = strings.Join(tokens, " ")

	return out
}

// looksLikePrice accepts lines with a currency symbol, plus short lines
// containing any digit — marketplace price rows are rarely longer than a
// dozen characters. A short digit-bearing line naming a domain keyword is
// a model line ("2023 Honda cb500f"), not a price row; claiming it as
// price would defeat the title/price swap when the price arrives first.
func (e *FieldExtractor) looksLikePrice(line string) bool {
	if strings.Contains(line, "$") {
		return true
	}
	if len(line) >= 20 || !strings.ContainsFunc(line, unicode.IsDigit) {
		return false
	}
	return !containsAny(strings.ToLower(line), e.domainKeywords)
}

func (e *FieldExtractor) looksLikeLocation(line string) bool {
	if !strings.Contains(line, ",") {
		return false
	}
	upper := strings.ToUpper(line)
	for _, code := range e.regionCodes {
		if strings.Contains(upper, strings.ToUpper(code)) {
			return true
		}
	}
	return false
}

// extractListingID returns the first all-digit path segment of the anchor
// URL long enough to be a listing id.
func extractListingID(url string) string {
	for _, part := range strings.Split(url, "/") {
		if len(part) >= minIDLength && isNumeric(part) {
			return part
		}
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
