package services

import (
	"testing"
	"time"
)

func TestResolveRelativeDate(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want string
	}{
		{"3 days ago", "2024-01-07"},
		{"1 day ago", "2024-01-09"},
		{"2 weeks ago", "2023-12-27"},
		{"1 month ago", "2023-12-11"}, // months approximate to 30 days
		{"5 hours ago", "2024-01-10"},
		{"30 minutes ago", "2024-01-10"},
		{"Listed 3 Days Ago", "2024-01-07"}, // case-insensitive
	}

	for _, tt := range tests {
		got := ResolveRelativeDate(tt.raw, now)
		if got != tt.want {
			t.Errorf("ResolveRelativeDate(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestResolveRelativeDatePassThrough(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	// Non-matching input comes back unchanged so callers can detect
	// "unresolved" by comparing with the input.
	for _, raw := range []string{"yesterday", "just now", "January 5", "in 3 days"} {
		if got := ResolveRelativeDate(raw, now); got != raw {
			t.Errorf("ResolveRelativeDate(%q) = %q; want pass-through", raw, got)
		}
	}

	if got := ResolveRelativeDate("", now); got != "" {
		t.Errorf("ResolveRelativeDate(\"\") = %q; want empty", got)
	}
}
