package market

import (
	"context"
	"errors"

	"marketscraper/models"
)

// ErrUnavailable is returned by the Adapter when live data could not be
// obtained and synthetic fallback is disabled.
var ErrUnavailable = errors.New("market data unavailable")

var errNoClient = errors.New("no live client configured")

// Client is a live market-data venue. Symbols are passed in canonical form
// ("BTCUSDT").
type Client interface {
	Name() string
	FetchTicker(ctx context.Context, symbol string) (models.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (models.OrderBookSnapshot, error)
	FetchTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error)
	FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
}
