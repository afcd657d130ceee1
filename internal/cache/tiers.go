package cache

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/pkg/models"
)

// Default tier lifetimes.
const (
	DefaultQuoteTTL     = 2 * time.Minute
	DefaultNewsTTL      = 10 * time.Minute
	DefaultSentimentTTL = 10 * time.Minute
	DefaultLookupTTL    = 2 * time.Minute
)

// Options configures NewTiers.
type Options struct {
	QuoteTTL     time.Duration
	NewsTTL      time.Duration
	SentimentTTL time.Duration
	LookupTTL    time.Duration

	// RedisURL, when set, moves the lookup tier to Redis.
	RedisURL    string
	RedisPrefix string

	// Backend, when set, holds the lookup tier and takes precedence over
	// RedisURL. Tiers.Close closes it if it is an io.Closer.
	Backend Backend

	Now    func() time.Time
	Logger *slog.Logger
}

// Tiers groups the response caches. Quotes are keyed by symbol; News and
// Sentiment by symbol and range. All in-memory tiers share one lock so
// ClearAll is atomic with respect to readers.
type Tiers struct {
	mu sync.Mutex

	Quotes    *Cache[models.StockQuote]
	News      *Cache[[]models.AnalyzedArticle]
	Sentiment *Cache[models.SentimentAggregate]
	Lookup    *Lookup
}

// NewTiers builds the cache tiers, falling back to defaults for zero TTLs.
func NewTiers(ctx context.Context, opts Options) *Tiers {
	if opts.QuoteTTL <= 0 {
		opts.QuoteTTL = DefaultQuoteTTL
	}
	if opts.NewsTTL <= 0 {
		opts.NewsTTL = DefaultNewsTTL
	}
	if opts.SentimentTTL <= 0 {
		opts.SentimentTTL = DefaultSentimentTTL
	}
	if opts.LookupTTL <= 0 {
		opts.LookupTTL = DefaultLookupTTL
	}
	if opts.RedisPrefix == "" {
		opts.RedisPrefix = "sentidash:"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := infra.OrDefault(opts.Logger)

	t := &Tiers{}
	t.Quotes = newShared[models.StockQuote](&t.mu, opts.QuoteTTL, opts.Now)
	t.News = newShared[[]models.AnalyzedArticle](&t.mu, opts.NewsTTL, opts.Now)
	t.Sentiment = newShared[models.SentimentAggregate](&t.mu, opts.SentimentTTL, opts.Now)
	t.Lookup = &Lookup{
		backend: opts.Backend,
		ttl:     opts.LookupTTL,
	}
	if t.Lookup.backend == nil {
		t.Lookup.backend = lookupBackend(ctx, &t.mu, opts.RedisURL, opts.RedisPrefix, opts.LookupTTL, opts.Now, logger)
	}
	return t
}

// ClearAll empties every tier. The in-memory tiers are cleared under a
// single lock; a Redis lookup tier is cleared afterwards.
func (t *Tiers) ClearAll(ctx context.Context) error {
	t.mu.Lock()
	t.Quotes.clearLocked()
	t.News.clearLocked()
	t.Sentiment.clearLocked()
	mem, isMem := t.Lookup.backend.(*memoryBackend)
	if isMem {
		mem.c.clearLocked()
	}
	t.mu.Unlock()

	if !isMem {
		return t.Lookup.backend.Clear(ctx)
	}
	return nil
}

// RangeKey builds the News/Sentiment key for a symbol and range.
func RangeKey(symbol string, rng models.TimeRange) string {
	return strings.ToUpper(symbol) + ":" + string(rng)
}

// Close releases the lookup backend when it holds a connection, as the
// Redis backend does.
func (t *Tiers) Close() error {
	if c, ok := t.Lookup.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
