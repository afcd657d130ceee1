package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/sentidash/pkg/models"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
}

// ── Cache ──

func TestCacheTTLBoundary(t *testing.T) {
	clk := newClock()
	c := newShared[string](&sync.Mutex{}, 2*time.Minute, clk.Now)
	c.Set("AAPL", "quote")

	clk.Advance(2 * time.Minute) // exactly TTL: still valid
	if v, ok := c.Get("AAPL"); !ok || v != "quote" {
		t.Fatalf("Get at TTL = %q, %v; want hit", v, ok)
	}
	clk.Advance(time.Nanosecond)
	if _, ok := c.Get("AAPL"); ok {
		t.Fatal("Get after TTL should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, Len = %d", c.Len())
	}
}

func TestCacheSetOverwrites(t *testing.T) {
	clk := newClock()
	c := newShared[int](&sync.Mutex{}, time.Minute, clk.Now)
	c.Set("k", 1)
	clk.Advance(50 * time.Second)
	c.Set("k", 2) // refreshes CachedAt
	clk.Advance(50 * time.Second)
	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Errorf("Get = %d, %v; want 2, true", v, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Get after Delete should miss")
	}
}

func TestEntryFresh(t *testing.T) {
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := Entry[int]{CachedAt: at, TTL: time.Second}
	if !e.Fresh(at.Add(time.Second)) || e.Fresh(at.Add(time.Second+1)) {
		t.Error("Fresh boundary mismatch")
	}
}

// ── Tiers ──

func TestTiersDefaultsAndClearAll(t *testing.T) {
	ctx := context.Background()
	tiers := NewTiers(ctx, Options{})
	defer tiers.Close()

	if tiers.Quotes.TTL() != DefaultQuoteTTL || tiers.News.TTL() != DefaultNewsTTL || tiers.Sentiment.TTL() != DefaultSentimentTTL {
		t.Errorf("unexpected TTLs %v/%v/%v", tiers.Quotes.TTL(), tiers.News.TTL(), tiers.Sentiment.TTL())
	}

	key := RangeKey("aapl", models.Range7d)
	tiers.Quotes.Set("AAPL", models.StockQuote{Symbol: "AAPL"})
	tiers.News.Set(key, []models.AnalyzedArticle{{Category: models.CategoryBullish}})
	tiers.Sentiment.Set(key, models.SentimentAggregate{Overall: 0.4})
	if err := tiers.Lookup.SetJSON(ctx, "search:apple", []models.SymbolMatch{{Symbol: "AAPL"}}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	if err := tiers.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if _, ok := tiers.Quotes.Get("AAPL"); ok {
		t.Error("quote survived ClearAll")
	}
	if _, ok := tiers.News.Get(key); ok {
		t.Error("news survived ClearAll")
	}
	if _, ok := tiers.Sentiment.Get(key); ok {
		t.Error("sentiment survived ClearAll")
	}
	var matches []models.SymbolMatch
	if tiers.Lookup.GetJSON(ctx, "search:apple", &matches) {
		t.Error("lookup survived ClearAll")
	}
}

func TestLookupJSONRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	tiers := NewTiers(ctx, Options{LookupTTL: 30 * time.Second, Now: clk.Now})

	in := []models.Candle{{Close: 190.5, Volume: 1000}}
	if err := tiers.Lookup.SetJSON(ctx, "candles:AAPL:7d", in); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out []models.Candle
	if !tiers.Lookup.GetJSON(ctx, "candles:AAPL:7d", &out) || len(out) != 1 || out[0].Close != 190.5 {
		t.Fatalf("GetJSON = %+v", out)
	}
	clk.Advance(31 * time.Second)
	if tiers.Lookup.GetJSON(ctx, "candles:AAPL:7d", &out) {
		t.Error("lookup entry should expire")
	}
}

func TestTiersRedisUnreachableFallsBackToMemory(t *testing.T) {
	tiers := NewTiers(context.Background(), Options{RedisURL: "redis://127.0.0.1:1/0"})
	if _, ok := tiers.Lookup.Backend().(*memoryBackend); !ok {
		t.Fatalf("backend = %T, want memory fallback", tiers.Lookup.Backend())
	}
	if _, err := NewRedisBackend(context.Background(), "not a url", "x:"); err == nil {
		t.Error("NewRedisBackend should reject a malformed url")
	}
}

// closingBackend is an in-memory Backend that records Close.
type closingBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

func (b *closingBackend) Get(_ context.Context, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok
}

func (b *closingBackend) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		b.data = make(map[string][]byte)
	}
	b.data[key] = val
	return nil
}

func (b *closingBackend) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	return nil
}

func (b *closingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func TestTiersCloseReleasesBackend(t *testing.T) {
	ctx := context.Background()
	backend := &closingBackend{}
	tiers := NewTiers(ctx, Options{Backend: backend, RedisURL: "redis://127.0.0.1:1/0"})
	if tiers.Lookup.Backend() != Backend(backend) {
		t.Fatalf("backend = %T, want the injected backend", tiers.Lookup.Backend())
	}
	if err := tiers.Lookup.SetJSON(ctx, "k", 1); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if err := tiers.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !backend.closed {
		t.Error("Close left the lookup backend open")
	}

	if err := NewTiers(ctx, Options{}).Close(); err != nil {
		t.Errorf("Close on memory tiers: %v", err)
	}
}

func TestRangeKey(t *testing.T) {
	if got := RangeKey("msft", models.Range24h); got != "MSFT:24h" {
		t.Errorf("RangeKey = %q", got)
	}
}
