package services

import (
	"fmt"
	"testing"
)

func TestPriceParserExtract(t *testing.T) {
	p := NewPriceParser(0, 0)

	tests := []struct {
		text  string
		want  float64
		found bool
	}{
		{"$4,500", 4500, true},
		{"$4500", 4500, true},
		{"2014 Honda cb500f $3,800 firm", 3800, true},
		{"$2,700 $3,500", 3500, true}, // crossed-out price: the larger wins
		{"no price here", 0, false},
		{"", 0, false},
		{"4500", 0, false}, // bare number without $ is not a price
		{"$12", 12, true},
	}

	for _, tt := range tests {
		got, found := p.Extract(tt.text)
		if got != tt.want || found != tt.found {
			t.Errorf("Extract(%q) = (%.2f, %v); want (%.2f, %v)", tt.text, got, found, tt.want, tt.found)
		}
	}
}

func TestPriceParserBand(t *testing.T) {
	p := NewPriceParser(3500, 5800)

	tests := []struct {
		text  string
		want  float64
		found bool
	}{
		{"$4,500", 4500, true},
		{"$2,700 $4,100", 4100, true}, // out-of-band candidate discarded
		{"$2,700", 0, false},
		{"$9,999", 0, false},
		{"$3,500", 3500, true}, // band is inclusive
		{"$5,800", 5800, true},
	}

	for _, tt := range tests {
		got, found := p.Extract(tt.text)
		if got != tt.want || found != tt.found {
			t.Errorf("Extract(%q) = (%.2f, %v); want (%.2f, %v)", tt.text, got, found, tt.want, tt.found)
		}
	}
}

func TestPriceParserIdempotent(t *testing.T) {
	p := NewPriceParser(0, 0)

	for _, text := range []string{"$4,500", "$800", "$12,000"} {
		first, ok := p.Extract(text)
		if !ok {
			t.Fatalf("Extract(%q) found no price", text)
		}

		rendered := fmt.Sprintf("$%s", commaGroup(first))
		second, ok := p.Extract(rendered)
		if !ok || second != first {
			t.Errorf("Extract(%q) = (%.2f, %v) after re-rendering %q; want %.2f", rendered, second, ok, text, first)
		}
	}
}

// commaGroup renders a price the way the marketplace does ("4500" → "4,500").
func commaGroup(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	if len(s) > 3 {
		s = s[:len(s)-3] + "," + s[len(s)-3:]
	}
	return s
}

func TestFindPriceTexts(t *testing.T) {
	got := FindPriceTexts("$2,700$3,5002014 Honda cb500f")
	if len(got) != 2 || got[0] != "$2,700" || got[1] != "$3,500" {
		t.Errorf("FindPriceTexts = %v; want [$2,700 $3,500]", got)
	}

	if got := FindPriceTexts("no dollars"); len(got) != 0 {
		t.Errorf("FindPriceTexts on plain text = %v; want none", got)
	}
}
