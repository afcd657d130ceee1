package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// Status is the display state of a screen.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is what a screen displays. Quote, News and Sentiment are nil
// while loading and after an error.
type State struct {
	Status     Status                     `json:"status"`
	Generation uint64                     `json:"generation"`
	Symbol     string                     `json:"symbol,omitempty"`
	Range      models.TimeRange           `json:"range,omitempty"`
	Quote      *models.StockQuote         `json:"quote"`
	News       []models.AnalyzedArticle   `json:"news"`
	Sentiment  *models.SentimentAggregate `json:"sentiment"`
	Candles    []models.Candle            `json:"candles,omitempty"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// SearchRequest starts a search. Snapshot, when its symbol matches, is
// used instead of fetching the quote.
type SearchRequest struct {
	Symbol   string
	Range    models.TimeRange
	Snapshot *models.StockQuote
}

// Screen is one dashboard session. Each Search bumps the generation and
// results of older generations are discarded when they arrive.
type Screen struct {
	svc *Service

	mu     sync.Mutex
	gen    uint64
	state  State
	subs   map[int]chan State
	nextID int
}

// NewScreen creates an idle screen.
func (s *Service) NewScreen() *Screen {
	return &Screen{
		svc:   s,
		state: State{Status: StatusIdle},
		subs:  make(map[int]chan State),
	}
}

// State returns the current state.
func (sc *Screen) State() State {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// Subscribe returns a channel receiving every applied state. A slow reader
// only sees the latest state. Call the returned func to unsubscribe.
func (sc *Screen) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	sc.mu.Lock()
	id := sc.nextID
	sc.nextID++
	sc.subs[id] = ch
	sc.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sc.mu.Lock()
			delete(sc.subs, id)
			sc.mu.Unlock()
		})
	}
}

// Search runs one search and returns the state it produced. If a newer
// search started meanwhile, the result is not applied and the returned
// state is the one this search computed.
func (sc *Screen) Search(ctx context.Context, req SearchRequest) State {
	rng := req.Range
	if !rng.Valid() {
		rng = models.DefaultRange
	}

	sc.mu.Lock()
	sc.gen++
	gen := sc.gen
	sc.setLocked(State{Status: StatusLoading, Generation: gen, Symbol: utils.NormalizeTicker(req.Symbol), Range: rng, UpdatedAt: sc.svc.now()})
	sc.mu.Unlock()

	result := sc.run(ctx, gen, req.Symbol, rng, req.Snapshot)

	sc.mu.Lock()
	if gen == sc.gen {
		sc.setLocked(result)
	} else {
		sc.svc.logger.Debug("discarding superseded search", "symbol", result.Symbol, "generation", gen, "current", sc.gen)
	}
	sc.mu.Unlock()
	return result
}

func (sc *Screen) run(ctx context.Context, gen uint64, rawSymbol string, rng models.TimeRange, snap *models.StockQuote) State {
	svc := sc.svc
	failed := State{Status: StatusError, Generation: gen, Symbol: utils.NormalizeTicker(rawSymbol), Range: rng}

	symbol, err := normalizeSymbol(rawSymbol)
	if err != nil {
		svc.logger.Warn("search rejected", "symbol", rawSymbol, "error", err)
		failed.UpdatedAt = svc.now()
		return failed
	}

	var (
		quote     models.StockQuote
		articles  []models.AnalyzedArticle
		aggregate models.SentimentAggregate
		candles   []models.Candle
	)

	var g errgroup.Group
	g.Go(guard(func() error {
		if snap != nil && utils.NormalizeTicker(snap.Symbol) == symbol {
			quote = *snap
			return nil
		}
		q, err := svc.Quote(ctx, symbol)
		if err != nil {
			return fmt.Errorf("quote: %w", err)
		}
		quote = q
		return nil
	}))
	g.Go(guard(func() error {
		articles, aggregate = svc.NewsSentiment(ctx, symbol, rng)
		return nil
	}))
	g.Go(guard(func() error {
		candles = svc.Candles(ctx, symbol, rng)
		return nil
	}))

	if err := g.Wait(); err != nil {
		svc.logger.Error("search failed", "symbol", symbol, "range", rng, "error", err)
		failed.UpdatedAt = svc.now()
		return failed
	}
	return State{
		Status:     StatusSuccess,
		Generation: gen,
		Symbol:     symbol,
		Range:      rng,
		Quote:      &quote,
		News:       articles,
		Sentiment:  &aggregate,
		Candles:    candles,
		UpdatedAt:  svc.now(),
	}
}

func (sc *Screen) setLocked(st State) {
	sc.state = st
	for _, ch := range sc.subs {
		select {
		case ch <- st:
		default:
			// Replace the unread state with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// guard turns a panic in fn into an error.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}
