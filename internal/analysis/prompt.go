package analysis

import (
	"fmt"
	"strings"

	"github.com/seenimoa/sentidash/pkg/models"
)

// SystemPrompt instructs the model to classify each article and answer
// in JSON only.
const SystemPrompt = `You are a financial news analyst. For each numbered article, judge how the news is likely to move the share price of the given company.

## Classification
- category: one of "bullish", "bearish", "neutral-impact", "mixed"
- score: a number from -1.0 (very bearish) to 1.0 (very bullish)
- relevance: "high" if the article is mainly about the company, "medium" if it is a significant mention, "low" otherwise
- justification: one or two sentences explaining the verdict
- entities: companies, people or products the article names
- confidence: "high", "medium" or "low"

## Guidelines
1. Judge the price impact, not the tone of the writing
2. Market-wide news counts only through its effect on this company
3. Use "mixed" when the article carries both clear positives and clear negatives
4. Keep the score near 0 for routine news

## Output Format
Reply with a single JSON object and nothing else:
{"articles":[{"index":0,"category":"bullish","score":0.6,"relevance":"high","justification":"...","entities":["..."],"confidence":"medium"}]}
Return exactly one entry per article, using the article's index.`

// maxSummary caps each article summary sent to the model.
const maxSummary = 600

// UserPrompt lists the batch of articles for symbol.
func UserPrompt(symbol string, articles []models.NewsArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company ticker: %s\n\nArticles:\n", symbol)
	for i, a := range articles {
		fmt.Fprintf(&b, "\n[%d] %s\n", i, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, "Source: %s\n", a.Source)
		}
		if !a.PublishedAt.IsZero() {
			fmt.Fprintf(&b, "Published: %s\n", a.PublishedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		if s := truncate(a.Summary, maxSummary); s != "" {
			fmt.Fprintf(&b, "Summary: %s\n", s)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
