package market

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"marketscraper/internal/symbols"
	"marketscraper/logger"
	"marketscraper/models"
)

// FallbackFunc is notified each time synthetic data replaces a live result.
type FallbackFunc func(kind models.Kind, symbol string, cause error)

type Options struct {
	RequestsPerSecond float64
	Burst             int
	// Fallback enables the synthetic generator when the live client is
	// absent or fails. When false such failures surface as ErrUnavailable.
	Fallback   bool
	Synthetic  *Synthetic
	OnFallback FallbackFunc
}

// Adapter normalizes live venue data and substitutes synthetic data on
// failure. A nil Client means every call is served synthetically.
type Adapter struct {
	client     Client
	synthetic  *Synthetic
	limiter    *rate.Limiter
	fallback   bool
	onFallback FallbackFunc
	log        *logger.Log
}

func NewAdapter(client Client, opts Options) *Adapter {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	synth := opts.Synthetic
	if synth == nil {
		synth = NewSynthetic(time.Now().UnixNano())
	}
	return &Adapter{
		client:     client,
		synthetic:  synth,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		fallback:   opts.Fallback,
		onFallback: opts.OnFallback,
		log:        logger.GetLogger(),
	}
}

// Live reports whether a venue client is configured.
func (a *Adapter) Live() bool { return a.client != nil }

func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	sym := symbols.Canonical(symbol)
	t, err := fetch(ctx, a, models.KindTickers, sym, func(c Client) (models.Ticker, error) {
		t, err := c.FetchTicker(ctx, sym)
		if err != nil {
			return t, err
		}
		return t, t.Validate()
	})
	if err == nil {
		return t, nil
	}
	if !a.useFallback(ctx) {
		return models.Ticker{}, err
	}
	a.noteFallback(models.KindTickers, sym, err)
	return a.synthetic.Ticker(symbol), nil
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, depth int) (models.OrderBookSnapshot, error) {
	sym := symbols.Canonical(symbol)
	book, err := fetch(ctx, a, models.KindOrderbooks, sym, func(c Client) (models.OrderBookSnapshot, error) {
		b, err := c.FetchOrderBook(ctx, sym, depth)
		if err != nil {
			return b, err
		}
		b.Truncate(depth)
		return b, b.Validate()
	})
	if err == nil {
		return book, nil
	}
	if !a.useFallback(ctx) {
		return models.OrderBookSnapshot{}, err
	}
	a.noteFallback(models.KindOrderbooks, sym, err)
	return a.synthetic.OrderBook(symbol, depth), nil
}

func (a *Adapter) FetchTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	sym := symbols.Canonical(symbol)
	trades, err := fetch(ctx, a, models.KindTrades, sym, func(c Client) ([]models.Trade, error) {
		trades, err := c.FetchTrades(ctx, sym, limit)
		if err != nil {
			return nil, err
		}
		for _, t := range trades {
			if err := t.Validate(); err != nil {
				return nil, err
			}
		}
		return trades, nil
	})
	if err == nil {
		return trades, nil
	}
	if !a.useFallback(ctx) {
		return nil, err
	}
	a.noteFallback(models.KindTrades, sym, err)
	return a.synthetic.Trades(symbol, limit), nil
}

func (a *Adapter) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	sym := symbols.Canonical(symbol)
	kind := models.CandleKind(tf)
	candles, err := fetch(ctx, a, kind, sym, func(c Client) ([]models.Candle, error) {
		candles, err := c.FetchCandles(ctx, sym, tf, limit)
		if err != nil {
			return nil, err
		}
		return candles, models.ValidateCandles(candles)
	})
	if err == nil {
		return candles, nil
	}
	if !a.useFallback(ctx) {
		return nil, err
	}
	a.noteFallback(kind, sym, err)
	return a.synthetic.Candles(symbol, tf, limit), nil
}

// fetch runs call against the live client behind the rate limiter. Every
// failure is wrapped in ErrUnavailable except context cancellation.
func fetch[T any](ctx context.Context, a *Adapter, kind models.Kind, symbol string, call func(Client) (T, error)) (T, error) {
	var zero T
	if a.client == nil {
		return zero, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, kind, symbol, errNoClient)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	v, err := call(a.client)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w: %s %s from %s: %w", ErrUnavailable, kind, symbol, a.client.Name(), err)
	}

	logger.LogPerformanceEntry(a.log.WithComponent("market_adapter"), "market_adapter", "fetch_"+string(kind), time.Since(start), logger.Fields{
		"symbol": symbol,
		"venue":  a.client.Name(),
	})
	return v, nil
}

func (a *Adapter) useFallback(ctx context.Context) bool {
	return a.fallback && ctx.Err() == nil
}

func (a *Adapter) noteFallback(kind models.Kind, symbol string, cause error) {
	logger.RecordFallback(string(kind))
	entry := a.log.WithComponent("market_adapter").WithFields(logger.Fields{
		"symbol": symbol,
		"kind":   kind,
	})
	if a.client == nil {
		entry.Debug("serving synthetic data")
	} else {
		entry.WithError(cause).Warn("live fetch failed, serving synthetic data")
	}
	if a.onFallback != nil {
		a.onFallback(kind, symbol, cause)
	}
}
