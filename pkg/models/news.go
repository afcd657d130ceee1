package models

import "time"

// NewsArticle represents a single news article about a symbol.
type NewsArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// Category is the LLM verdict on how an article moves the stock.
type Category string

const (
	CategoryBullish       Category = "bullish"
	CategoryBearish       Category = "bearish"
	CategoryNeutralImpact Category = "neutral-impact"
	CategoryMixed         Category = "mixed"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBullish, CategoryBearish, CategoryNeutralImpact, CategoryMixed:
		return true
	}
	return false
}

// Relevance says how closely an article concerns the symbol itself.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// Valid reports whether r is a known relevance level.
func (r Relevance) Valid() bool {
	return r == RelevanceHigh || r == RelevanceMedium || r == RelevanceLow
}

// AnalyzedArticle is a NewsArticle plus the LLM classification.
// Category and Score are always set; failed analyses carry the defaults.
type AnalyzedArticle struct {
	NewsArticle
	Category      Category  `json:"category"`
	Score         float64   `json:"score"` // -1.0 (very bearish) to +1.0 (very bullish)
	Relevance     Relevance `json:"relevance"`
	Justification string    `json:"justification,omitempty"`
	Entities      []string  `json:"entities,omitempty"`
	Confidence    string    `json:"confidence,omitempty"` // "high", "medium", "low"
}

// DefaultAnalysis returns the neutral verdict used when an article could not be analysed.
func DefaultAnalysis(a NewsArticle) AnalyzedArticle {
	return AnalyzedArticle{
		NewsArticle: a,
		Category:    CategoryNeutralImpact,
		Score:       0,
		Relevance:   RelevanceLow,
	}
}
