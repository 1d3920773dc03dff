package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind names the market data document a record is persisted into.
type Kind string

const (
	KindTickers    Kind = "tickers"
	KindOrderbooks Kind = "orderbooks"
	KindTrades     Kind = "trades"
)

// CandleKind returns the document kind for candles of the given timeframe, e.g. "ohlcv-1h".
func CandleKind(tf Timeframe) Kind {
	return Kind("ohlcv-" + tf.String())
}

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Ticker is a normalized 24h ticker captured at Timestamp.
type Ticker struct {
	Symbol     string    `json:"symbol"`
	Last       float64   `json:"last"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Volume     float64   `json:"volume"`
	Change     float64   `json:"change"`
	Percentage float64   `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate rejects tickers that cannot describe a real market.
func (t Ticker) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("ticker: empty symbol")
	}
	if !positive(t.Last) {
		return fmt.Errorf("ticker %s: invalid last price %v", t.Symbol, t.Last)
	}
	if t.Bid < 0 || t.Ask < 0 || (t.Bid > 0 && t.Ask > 0 && t.Bid > t.Ask) {
		return fmt.Errorf("ticker %s: crossed or negative quote bid=%v ask=%v", t.Symbol, t.Bid, t.Ask)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("ticker %s: missing timestamp", t.Symbol)
	}
	return nil
}

// PriceLevel is a single (price, size) order book level. It is encoded as a
// two element JSON array.
type PriceLevel struct {
	Price float64
	Size  float64
}

func (p PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Price, p.Size})
}

func (p *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	p.Price, p.Size = pair[0], pair[1]
	return nil
}

// OrderBookSnapshot holds bids in descending and asks in ascending price order.
type OrderBookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// Truncate caps both sides to depth levels.
func (o *OrderBookSnapshot) Truncate(depth int) {
	if depth <= 0 {
		return
	}
	if len(o.Bids) > depth {
		o.Bids = o.Bids[:depth]
	}
	if len(o.Asks) > depth {
		o.Asks = o.Asks[:depth]
	}
}

func (o OrderBookSnapshot) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("orderbook: empty symbol")
	}
	if len(o.Bids) == 0 && len(o.Asks) == 0 {
		return fmt.Errorf("orderbook %s: empty book", o.Symbol)
	}
	for i := 1; i < len(o.Bids); i++ {
		if o.Bids[i].Price > o.Bids[i-1].Price {
			return fmt.Errorf("orderbook %s: bids not descending at level %d", o.Symbol, i)
		}
	}
	for i := 1; i < len(o.Asks); i++ {
		if o.Asks[i].Price < o.Asks[i-1].Price {
			return fmt.Errorf("orderbook %s: asks not ascending at level %d", o.Symbol, i)
		}
	}
	return nil
}

// Trade is a single executed trade. Timestamp is in epoch milliseconds.
type Trade struct {
	Symbol    string  `json:"symbol"`
	ID        string  `json:"id"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Side      Side    `json:"side"`
	Timestamp int64   `json:"timestamp"`
}

func (t Trade) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("trade: empty id")
	}
	if !positive(t.Price) || t.Amount < 0 {
		return fmt.Errorf("trade %s: invalid price %v or amount %v", t.ID, t.Price, t.Amount)
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("trade %s: unknown side %q", t.ID, t.Side)
	}
	return nil
}

// Candle is one OHLCV bucket starting at Timestamp (epoch milliseconds).
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (c Candle) Validate() error {
	if c.High < math.Max(c.Open, c.Close) {
		return fmt.Errorf("candle %d: high %v below body", c.Timestamp, c.High)
	}
	if c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("candle %d: low %v above body", c.Timestamp, c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %d: negative volume", c.Timestamp)
	}
	return nil
}

// ValidateCandles checks every candle and that timestamps strictly increase.
func ValidateCandles(candles []Candle) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return err
		}
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return fmt.Errorf("candle %d: timestamps not increasing", i)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
