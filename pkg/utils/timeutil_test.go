package utils

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	// 02:30 UTC on the 10th is still the 9th in New York
	got := StartOfDay(time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC), ny)
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, ny)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
}

func TestFloorTo(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 10, 14, 20, 0, 0, loc), time.Date(2026, 3, 10, 12, 0, 0, 0, loc)},
		{time.Date(2026, 3, 10, 15, 0, 0, 0, loc), time.Date(2026, 3, 10, 15, 0, 0, 0, loc)},
		{time.Date(2026, 3, 10, 2, 59, 59, 0, loc), time.Date(2026, 3, 10, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		if got := FloorTo(tt.in, 3*time.Hour, loc); !got.Equal(tt.want) {
			t.Errorf("FloorTo(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	got := FormatDate(time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC), tokyo)
	if got != "2026-03-11" {
		t.Errorf("FormatDate = %q, want 2026-03-11", got)
	}
}
