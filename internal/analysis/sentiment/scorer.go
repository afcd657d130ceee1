package sentiment

import (
	"math"
	"strings"

	"github.com/seenimoa/sentidash/pkg/models"
)

// ------------------------------------------------------------------
// Keyword-based sentiment scorer (offline, no LLM needed).
// Used only when analysis.offline_fallback is enabled and no LLM
// backend is reachable.
// ------------------------------------------------------------------

// bullish / bearish keyword dictionaries (lowercase).
var bullishWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "surge": 0.7, "upbeat": 0.5,
	"positive": 0.4, "growth": 0.4, "upgrade": 0.6, "outperform": 0.6,
	"buy": 0.5, "strong": 0.4, "recovery": 0.5, "breakout": 0.6,
	"record high": 0.7, "all-time high": 0.7, "beat": 0.5,
	"exceeds": 0.5, "raises guidance": 0.6, "expansion": 0.4,
	"profit": 0.3, "dividend": 0.4, "buyback": 0.5,
}

var bearishWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "slump": 0.6,
	"negative": 0.4, "downgrade": 0.6, "underperform": 0.6,
	"sell": 0.5, "weak": 0.4, "decline": 0.5, "loss": 0.4,
	"selloff": 0.7, "fall": 0.4, "lawsuit": 0.5,
	"default": 0.7, "fraud": 0.8, "recall": 0.5, "investigation": 0.5,
	"cut": 0.3, "miss": 0.5, "warning": 0.5, "layoffs": 0.4,
}

// ScoreHeadline returns a sentiment score for a single headline.
// Score ranges from -1.0 (very bearish) to +1.0 (very bullish).
func ScoreHeadline(headline string) (score float64, confidence float64) {
	lower := strings.ToLower(headline)

	bullScore := 0.0
	bearScore := 0.0
	matches := 0

	for word, weight := range bullishWords {
		if strings.Contains(lower, word) {
			bullScore += weight
			matches++
		}
	}
	for word, weight := range bearishWords {
		if strings.Contains(lower, word) {
			bearScore += weight
			matches++
		}
	}

	total := bullScore + bearScore
	if matches == 0 || total == 0 {
		return 0, 0.1 // no signal
	}

	// Net score normalised to -1..+1, damped so a single keyword never
	// reaches the extremes.
	score = (bullScore - bearScore) / total * math.Min(total, 1)
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)
	return score, confidence
}

// ScoreArticle classifies an article from its keywords. symbol, when
// non-empty, raises relevance for articles that mention it.
func ScoreArticle(article models.NewsArticle, symbol string) models.AnalyzedArticle {
	text := article.Title
	if article.Summary != "" {
		text += " " + article.Summary
	}
	score, confidence := ScoreHeadline(text)

	out := models.AnalyzedArticle{
		NewsArticle:   article,
		Score:         score,
		Relevance:     models.RelevanceLow,
		Justification: "Keyword scoring",
		Confidence:    confidenceLabel(confidence),
	}

	bull, bear := hasAny(text, bullishWords), hasAny(text, bearishWords)
	switch {
	case bull && bear && math.Abs(score) < leanThreshold:
		out.Category = models.CategoryMixed
	case score > notableThreshold:
		out.Category = models.CategoryBullish
	case score < -notableThreshold:
		out.Category = models.CategoryBearish
	default:
		out.Category = models.CategoryNeutralImpact
	}

	if symbol != "" {
		upper := strings.ToUpper(text)
		switch {
		case strings.Contains(strings.ToUpper(article.Title), strings.ToUpper(symbol)):
			out.Relevance = models.RelevanceHigh
		case strings.Contains(upper, strings.ToUpper(symbol)):
			out.Relevance = models.RelevanceMedium
		}
	}
	return out
}

func hasAny(text string, words map[string]float64) bool {
	lower := strings.ToLower(text)
	for w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func confidenceLabel(c float64) string {
	switch {
	case c >= 0.6:
		return "high"
	case c >= 0.35:
		return "medium"
	default:
		return "low"
	}
}
