package sentiment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/seenimoa/sentidash/pkg/models"
)

// Label thresholds on the overall score.
const (
	strongThreshold = 0.5
	leanThreshold   = 0.15

	// keyFactorThreshold selects the headline bullish/bearish drivers.
	keyFactorThreshold = 0.3
	// notableThreshold is the floor for the fallback "Notable" factors.
	notableThreshold = 0.1

	excerptLen = 160
)

// Label names the overall verdict for a score. mixed reports whether any
// article was classified as mixed; it only matters inside the neutral band.
func Label(score float64, mixed bool) string {
	switch {
	case score > strongThreshold:
		return "Decidedly bullish"
	case score > leanThreshold:
		return "Leaning bullish"
	case score < -strongThreshold:
		return "Decidedly bearish"
	case score < -leanThreshold:
		return "Leaning bearish"
	case mixed:
		return "Mixed"
	default:
		return "Neutral"
	}
}

func emptySummary() models.StructuredSummary {
	return models.StructuredSummary{
		Overall:      "No recent news found for this symbol.",
		AverageScore: "No articles to score.",
		KeyFactors:   []models.KeyFactor{},
		Relevance:    "No coverage to assess.",
		HasContent:   false,
	}
}

// Summarize builds the structured summary for a non-empty article set.
func Summarize(overall float64, articles []models.AnalyzedArticle) models.StructuredSummary {
	if len(articles) == 0 {
		return emptySummary()
	}
	mixed := false
	for _, a := range articles {
		if a.Category == models.CategoryMixed {
			mixed = true
			break
		}
	}
	label := Label(overall, mixed)

	return models.StructuredSummary{
		Overall:      fmt.Sprintf("%s sentiment across %d %s.", label, len(articles), plural(len(articles), "article", "articles")),
		AverageScore: fmt.Sprintf("Average score %+.2f on a scale from -1 to +1.", overall),
		KeyFactors:   keyFactors(articles),
		Relevance:    relevanceRemark(articles),
		HasContent:   true,
	}
}

func keyFactors(articles []models.AnalyzedArticle) []models.KeyFactor {
	var top, bottom *models.AnalyzedArticle
	for i := range articles {
		a := &articles[i]
		switch a.Category {
		case models.CategoryBullish:
			if a.Score > keyFactorThreshold && (top == nil || a.Score > top.Score) {
				top = a
			}
		case models.CategoryBearish:
			if a.Score < -keyFactorThreshold && (bottom == nil || a.Score < bottom.Score) {
				bottom = a
			}
		}
	}

	var factors []models.KeyFactor
	if top != nil {
		factors = append(factors, factor(*top, models.PolarityBullish, "Tailwind"))
	}
	if bottom != nil {
		factors = append(factors, factor(*bottom, models.PolarityBearish, "Headwind"))
	}
	if len(factors) > 0 {
		return factors
	}

	// Fall back to the strongest signals in either direction.
	ranked := make([]models.AnalyzedArticle, 0, len(articles))
	for _, a := range articles {
		if math.Abs(a.Score) > notableThreshold {
			ranked = append(ranked, a)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Score) > math.Abs(ranked[j].Score)
	})
	for i := 0; i < len(ranked) && i < 2; i++ {
		p := models.PolarityBullish
		if ranked[i].Score < 0 {
			p = models.PolarityBearish
		}
		factors = append(factors, factor(ranked[i], p, "Notable"))
	}
	if len(factors) > 0 {
		return factors
	}

	return []models.KeyFactor{{
		Polarity: models.PolarityNeutral,
		Prefix:   "Note",
		Title:    "No dominant factor stands out in recent coverage.",
	}}
}

func factor(a models.AnalyzedArticle, p models.Polarity, prefix string) models.KeyFactor {
	score := a.Score
	return models.KeyFactor{
		Polarity: p,
		Prefix:   prefix,
		Title:    a.Title,
		Score:    &score,
		Excerpt:  excerpt(a),
	}
}

func excerpt(a models.AnalyzedArticle) string {
	s := strings.TrimSpace(a.Justification)
	if s == "" {
		s = strings.TrimSpace(a.Summary)
	}
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return strings.TrimSpace(string(r[:excerptLen])) + "…"
}

func relevanceRemark(articles []models.AnalyzedArticle) string {
	total := len(articles)
	high := 0
	for _, a := range articles {
		if a.Relevance == models.RelevanceHigh {
			high++
		}
	}
	switch {
	case high == 0:
		return "None of the articles focus directly on the company."
	case high == total:
		return fmt.Sprintf("All %d %s focus directly on the company.", total, plural(total, "article", "articles"))
	case high*2 >= total:
		return fmt.Sprintf("%d of %d articles focus directly on the company.", high, total)
	default:
		return fmt.Sprintf("Only %d of %d articles focus directly on the company.", high, total)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
