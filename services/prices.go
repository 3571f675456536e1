package services

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRegexp captures dollar amounts: either a bare 3–6 digit run
// ("$4500") or 1–2 leading digits with comma-grouped thousands ("$4,500").
// The bare run is tried first so "$4500" resolves to 4500, not 45.
var priceRegexp = regexp.MustCompile(`\$(\d{3,6}|\d{1,2}(?:,\d{3})*)`)

// PriceParser extracts a plausible price from free text. Scraped blocks
// often carry two figures (asking price plus a crossed-out original), so
// the parser keeps the largest candidate — the higher figure is the stable
// one, markdowns show up as a secondary lower number.
type PriceParser struct {
	// MinPrice/MaxPrice, when both set, discard candidates outside the band
	// before taking the maximum.
	MinPrice float64
	MaxPrice float64
}

// NewPriceParser creates a parser restricted to the [min, max] band.
// A zero band means no restriction.
func NewPriceParser(min, max float64) *PriceParser {
	return &PriceParser{MinPrice: min, MaxPrice: max}
}

// Extract returns the largest in-band price found in text. The second
// return value is false when no candidate survives; the zero value is never
// used as a "not found" sentinel.
func (p *PriceParser) Extract(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}

	matches := priceRegexp.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}

	best := 0.0
	found := false
	for _, m := range matches {
		val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if p.banded() && (val < p.MinPrice || val > p.MaxPrice) {
			continue
		}
		if !found || val > best {
			best = val
			found = true
		}
	}
	return best, found
}

func (p *PriceParser) banded() bool {
	return p.MinPrice != 0 || p.MaxPrice != 0
}

// FindPriceTexts returns every raw price substring in order of appearance,
// used by the concatenated-field fallback to strip prices out of a blob.
func FindPriceTexts(text string) []string {
	return priceRegexp.FindAllString(text, -1)
}
