// Package sentiment rolls analysed news articles up into an overall score,
// category fractions, a bucketed trend series and a structured summary.
// It also provides a deterministic keyword scorer for use without an LLM.
package sentiment

import (
	"sort"
	"time"

	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// intradayBucket is the trend resolution for the 24h range.
const intradayBucket = 3 * time.Hour

// Options supplies the clock and time zone used for trend bucketing.
type Options struct {
	Now      time.Time
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Empty returns the aggregate for a symbol with no news.
func Empty() models.SentimentAggregate {
	return models.SentimentAggregate{
		Overall:  0,
		Positive: 0,
		Negative: 0,
		Neutral:  1,
		Trend:    []models.SentimentTrendPoint{},
		Summary:  emptySummary(),
	}
}

// Aggregate computes the roll-up of articles for rng. It is pure: the
// result depends only on its arguments.
func Aggregate(rng models.TimeRange, articles []models.AnalyzedArticle, opts Options) models.SentimentAggregate {
	if len(articles) == 0 {
		return Empty()
	}
	opts = opts.withDefaults()

	var sum float64
	var bull, bear, neutral int
	for _, a := range articles {
		sum += a.Score
		switch a.Category {
		case models.CategoryBullish:
			bull++
		case models.CategoryBearish:
			bear++
		case models.CategoryNeutralImpact, models.CategoryMixed:
			neutral++
		}
	}
	n := float64(len(articles))
	overall := sum / n

	return models.SentimentAggregate{
		Overall:      overall,
		Positive:     float64(bull) / n,
		Negative:     float64(bear) / n,
		Neutral:      float64(neutral) / n,
		Trend:        Trend(rng, articles, opts),
		Summary:      Summarize(overall, articles),
		ArticleCount: len(articles),
	}
}

// Trend buckets articles by publication time and returns the mean score of
// each non-empty bucket in ascending time order. The 24h range uses 3-hour
// buckets anchored at the current 3-hour boundary; every other range uses
// local calendar days. Articles without a publication time still count
// toward Aggregate's fractions but are left out of the series.
func Trend(rng models.TimeRange, articles []models.AnalyzedArticle, opts Options) []models.SentimentTrendPoint {
	opts = opts.withDefaults()

	type acc struct {
		sum   float64
		count int
	}
	buckets := make(map[int64]*acc)
	starts := make(map[int64]time.Time)

	var anchor time.Time
	if rng == models.Range24h {
		anchor = utils.FloorTo(opts.Now, intradayBucket, opts.Location)
	}

	for _, a := range articles {
		if a.PublishedAt.IsZero() {
			continue
		}
		var start time.Time
		if rng == models.Range24h {
			start = intradayStart(anchor, a.PublishedAt)
		} else {
			start = utils.StartOfDay(a.PublishedAt, opts.Location)
		}
		k := start.UnixNano()
		b, ok := buckets[k]
		if !ok {
			b = &acc{}
			buckets[k] = b
			starts[k] = start
		}
		b.sum += a.Score
		b.count++
	}

	points := make([]models.SentimentTrendPoint, 0, len(buckets))
	for k, b := range buckets {
		points = append(points, models.SentimentTrendPoint{
			Time:  starts[k],
			Score: b.sum / float64(b.count),
			Count: b.count,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points
}

// intradayStart maps t to the start of its 3-hour bucket counted back from
// anchor. Articles at or after anchor land in the anchor bucket.
func intradayStart(anchor, t time.Time) time.Time {
	offset := anchor.Sub(t)
	if offset <= 0 {
		return anchor
	}
	steps := (offset + intradayBucket - 1) / intradayBucket
	return anchor.Add(-steps * intradayBucket)
}
