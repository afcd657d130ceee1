package models

import "time"

// SentimentAggregate is the roll-up of analysed articles for one symbol and range.
type SentimentAggregate struct {
	Overall      float64               `json:"overall"`  // mean score
	Positive     float64               `json:"positive"` // fraction bullish
	Negative     float64               `json:"negative"` // fraction bearish
	Neutral      float64               `json:"neutral"`  // fraction neutral-impact or mixed
	Trend        []SentimentTrendPoint `json:"trend"`
	Summary      StructuredSummary     `json:"summary"`
	ArticleCount int                   `json:"article_count"`
}

// SentimentTrendPoint is the mean score of one time bucket.
type SentimentTrendPoint struct {
	Time  time.Time `json:"time"` // bucket start
	Score float64   `json:"score"`
	Count int       `json:"count"`
}

// Polarity tags a key factor as pushing the stock up or down.
type Polarity string

const (
	PolarityBullish Polarity = "bullish"
	PolarityBearish Polarity = "bearish"
	PolarityNeutral Polarity = "neutral"
)

// KeyFactor highlights one article that drives the overall verdict.
type KeyFactor struct {
	Polarity Polarity `json:"polarity"`
	Prefix   string   `json:"prefix"`
	Title    string   `json:"title"`
	Score    *float64 `json:"score,omitempty"`
	Excerpt  string   `json:"excerpt,omitempty"`
}

// StructuredSummary is the human-readable part of an aggregate.
type StructuredSummary struct {
	Overall      string      `json:"overall"`
	AverageScore string      `json:"average_score"`
	KeyFactors   []KeyFactor `json:"key_factors"`
	Relevance    string      `json:"relevance"`
	HasContent   bool        `json:"has_content"`
}
