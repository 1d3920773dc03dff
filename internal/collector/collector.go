package collector

import (
	"context"
	"time"

	"marketscraper/internal/store"
	"marketscraper/models"
)

// MarketSource is the market data surface the market task consumes.
type MarketSource interface {
	FetchTicker(ctx context.Context, symbol string) (models.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (models.OrderBookSnapshot, error)
	FetchTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error)
	FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
}

// NewsSource returns raw headlines. A non-nil error may accompany partial
// results.
type NewsSource interface {
	Fetch(ctx context.Context) ([]models.RawNewsItem, error)
}

// SentimentSource computes a snapshot for the given instant.
type SentimentSource interface {
	Compute(now time.Time) models.SentimentSnapshot
}

// Store is the persistence surface shared by all tasks.
type Store interface {
	Append(ctx context.Context, key store.Key, records ...any) (int, error)
	AppendUnique(ctx context.Context, key store.Key, records ...store.Identified) (int, error)
	SetLatest(ctx context.Context, collection string, record any) error
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

func utcNow() time.Time { return time.Now().UTC() }

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
