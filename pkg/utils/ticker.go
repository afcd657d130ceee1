package utils

import (
	"strings"
	"unicode"
)

// Common company-name aliases users type instead of the listed symbol.
var tickerAliases = map[string]string{
	"APPLE":     "AAPL",
	"MICROSOFT": "MSFT",
	"GOOGLE":    "GOOGL",
	"ALPHABET":  "GOOGL",
	"AMAZON":    "AMZN",
	"FACEBOOK":  "META",
	"FB":        "META",
	"TESLA":     "TSLA",
	"NVIDIA":    "NVDA",
	"NETFLIX":   "NFLX",
	"BRK.B":     "BRK-B",
	"BRK B":     "BRK-B",
}

// NormalizeTicker normalizes a user-input ticker to its canonical symbol.
// It handles aliases, uppercasing, and whitespace.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (cashtags)
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ValidTicker reports whether s (after normalisation) looks like a listed symbol:
// 1-12 characters of letters, digits, '.', '-' or ':'.
func ValidTicker(s string) bool {
	s = NormalizeTicker(s)
	if s == "" || len(s) > 12 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) && r != '.' && r != '-' && r != ':' {
			return false
		}
	}
	return true
}
