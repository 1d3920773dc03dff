package market

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketscraper/internal/symbols"
	"marketscraper/models"
)

const defaultBasePrice = 100.0

var basePrices = map[string]float64{
	"BTC":  101500,
	"ETH":  3900,
	"SOL":  225,
	"BNB":  720,
	"XRP":  2.45,
	"ADA":  1.05,
	"DOGE": 0.41,
	"AVAX": 48,
}

// BasePrice returns the reference price of a symbol's base asset, or 100 for
// unknown assets.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[symbols.Base(symbol)]; ok {
		return p
	}
	return defaultBasePrice
}

// Synthetic produces plausible market data around BasePrice. It is safe for
// concurrent use.
type Synthetic struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{
		rng: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *Synthetic) WithClock(now func() time.Time) *Synthetic {
	s.now = now
	return s
}

func (s *Synthetic) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Synthetic) Ticker(symbol string) models.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := BasePrice(symbol) * (1 + s.uniform(-0.02, 0.02))
	return models.Ticker{
		Symbol:     symbols.Canonical(symbol),
		Last:       price,
		Bid:        price * 0.9999,
		Ask:        price * 1.0001,
		High:       price * 1.02,
		Low:        price * 0.98,
		Volume:     s.uniform(1e9, 5e9),
		Change:     s.uniform(-3, 3),
		Percentage: s.uniform(-3, 3),
		Timestamp:  s.now(),
	}
}

// OrderBook builds depth levels per side stepping 0.01% away from the base
// price on each level.
func (s *Synthetic) OrderBook(symbol string, depth int) models.OrderBookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := BasePrice(symbol)
	book := models.OrderBookSnapshot{
		Symbol:    symbols.Canonical(symbol),
		Bids:      make([]models.PriceLevel, 0, depth),
		Asks:      make([]models.PriceLevel, 0, depth),
		Timestamp: s.now(),
	}
	for i := 1; i <= depth; i++ {
		step := 0.0001 * float64(i)
		book.Bids = append(book.Bids, models.PriceLevel{Price: base * (1 - step), Size: s.uniform(0.1, 10)})
		book.Asks = append(book.Asks, models.PriceLevel{Price: base * (1 + step), Size: s.uniform(0.1, 10)})
	}
	return book
}

// Trades returns limit ticks, newest first, one second apart.
func (s *Synthetic) Trades(symbol string, limit int) []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := BasePrice(symbol)
	canonical := symbols.Canonical(symbol)
	now := s.now().UnixMilli()
	trades := make([]models.Trade, 0, limit)
	for i := 0; i < limit; i++ {
		side := models.SideBuy
		if s.rng.Intn(2) == 1 {
			side = models.SideSell
		}
		trades = append(trades, models.Trade{
			Symbol:    canonical,
			ID:        uuid.NewString(),
			Price:     base * (1 + s.uniform(-0.001, 0.001)),
			Amount:    s.uniform(0.01, 5),
			Side:      side,
			Timestamp: now - int64(i)*1000,
		})
	}
	return trades
}

// Candles returns a continuous price path of limit candles whose last bucket
// contains the current time. Each candle opens at the previous close.
func (s *Synthetic) Candles(symbol string, tf models.Timeframe, limit int) []models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := tf.StepMillis()
	if step <= 0 || limit <= 0 {
		return nil
	}
	now := s.now().UnixMilli()
	last := now - now%step

	price := BasePrice(symbol)
	candles := make([]models.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		open := price
		closePrice := open * (1 + s.uniform(-0.01, 0.01))
		candles = append(candles, models.Candle{
			Timestamp: last - int64(limit-1-i)*step,
			Open:      open,
			High:      math.Max(open, closePrice) * (1 + s.uniform(0, 0.005)),
			Low:       math.Min(open, closePrice) * (1 - s.uniform(0, 0.005)),
			Close:     closePrice,
			Volume:    s.uniform(1e6, 1e8),
		})
		price = closePrice
	}
	return candles
}
