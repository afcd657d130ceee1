package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/internal/llm"
	"github.com/seenimoa/sentidash/pkg/models"
)

// DefaultBatchSize is the number of articles per LLM request.
const DefaultBatchSize = 20

// LLM classifies articles in-process through an LLM provider.
type LLM struct {
	provider  llm.LLMProvider
	batchSize int
	opts      llm.ChatOptions
	logger    *slog.Logger
}

// LLMOption configures an LLM analyzer.
type LLMOption func(*LLM)

// WithBatchSize sets how many articles go into one request.
func WithBatchSize(n int) LLMOption {
	return func(a *LLM) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithChatOptions sets the model options for each request.
func WithChatOptions(o llm.ChatOptions) LLMOption {
	return func(a *LLM) { a.opts = o }
}

// WithLLMLogger sets the logger.
func WithLLMLogger(l *slog.Logger) LLMOption {
	return func(a *LLM) { a.logger = l }
}

// NewLLM creates an analyzer backed by provider.
func NewLLM(provider llm.LLMProvider, opts ...LLMOption) *LLM {
	a := &LLM{
		provider:  provider,
		batchSize: DefaultBatchSize,
		opts:      llm.ChatOptions{Temperature: 0.1},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.opts.JSON = true
	a.logger = infra.OrDefault(a.logger)
	return a
}

// Analyze classifies articles batch by batch. A failed batch is defaulted
// and the rest continue; the error is returned only if every batch failed.
func (a *LLM) Analyze(ctx context.Context, symbol string, articles []models.NewsArticle) ([]models.AnalyzedArticle, error) {
	out := make([]models.AnalyzedArticle, 0, len(articles))
	failed := 0
	batches := 0
	var lastErr error
	for start := 0; start < len(articles); start += a.batchSize {
		end := min(start+a.batchSize, len(articles))
		batch := articles[start:end]
		batches++

		res, err := a.analyzeBatch(ctx, symbol, batch)
		if err != nil {
			failed++
			lastErr = err
			a.logger.Warn("llm batch failed", "symbol", symbol, "offset", start, "size", len(batch), "error", err)
			res = Defaults(batch)
		}
		out = append(out, res...)
	}
	if batches > 0 && failed == batches {
		return nil, lastErr
	}
	return out, nil
}

func (a *LLM) analyzeBatch(ctx context.Context, symbol string, batch []models.NewsArticle) ([]models.AnalyzedArticle, error) {
	start := time.Now()
	opts := a.opts
	resp, err := a.provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(SystemPrompt),
		llm.UserMessage(UserPrompt(symbol, batch)),
	}, &opts)
	if err != nil {
		return nil, fmt.Errorf("analysis: chat: %w", err)
	}
	verdicts, err := DecodeVerdicts([]byte(resp.Content))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("llm batch analysed", "symbol", symbol, "size", len(batch), "verdicts", len(verdicts), "took", time.Since(start))
	return Apply(batch, verdicts), nil
}
