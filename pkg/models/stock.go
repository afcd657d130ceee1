// Package models defines the core data structures used throughout sentidash.
package models

import (
	"strings"
	"time"
)

// StockQuote is an immutable price/profile snapshot for a single symbol.
type StockQuote struct {
	Symbol        string    `json:"symbol"` // normalised upper-case, e.g. "AAPL"
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PrevClose     float64   `json:"prev_close"`
	Exchange      string    `json:"exchange,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	MarketCap     *float64  `json:"market_cap,omitempty"` // millions, nil when the profile has none
	FetchedAt     time.Time `json:"fetched_at"`
}

// Candle is a single OHLCV bar of price data.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SymbolMatch is one hit of a symbol search.
type SymbolMatch struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"display_symbol"`
	Description   string `json:"description"`
	Type          string `json:"type,omitempty"`
}

// TimeRange selects the look-back window for news, candles and trend bucketing.
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"

	DefaultRange = Range7d
)

// ParseTimeRange parses a range string case-insensitively.
// Unknown or empty values fall back to DefaultRange.
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(strings.ToLower(strings.TrimSpace(s))) {
	case Range24h:
		return Range24h
	case Range7d:
		return Range7d
	case Range30d:
		return Range30d
	default:
		return DefaultRange
	}
}

// Duration returns the look-back length of the range.
func (r TimeRange) Duration() time.Duration {
	switch r {
	case Range24h:
		return 24 * time.Hour
	case Range30d:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Valid reports whether r is one of the known ranges.
func (r TimeRange) Valid() bool {
	return r == Range24h || r == Range7d || r == Range30d
}
