package collector

import (
	"context"
	"fmt"
	"time"

	"marketscraper/internal/metrics"
	"marketscraper/internal/store"
	"marketscraper/internal/symbols"
	"marketscraper/logger"
	"marketscraper/models"
)

const MarketTask = "market"

type MarketConfig struct {
	Collection     string
	Symbols        []string
	CandleSymbols  int
	Timeframes     []models.Timeframe
	OrderbookDepth int
	TradesLimit    int
	CandlesLimit   int
	PacingDelay    time.Duration
}

// Market collects ticker, order book and trades for every symbol, then
// candles for the leading CandleSymbols symbols.
type Market struct {
	cfg    MarketConfig
	source MarketSource
	store  Store
	now    func() time.Time
	log    *logger.Log
}

func NewMarket(cfg MarketConfig, source MarketSource, st Store) *Market {
	if cfg.CandleSymbols > len(cfg.Symbols) {
		cfg.CandleSymbols = len(cfg.Symbols)
	}
	if cfg.CandleSymbols < 0 {
		cfg.CandleSymbols = 0
	}
	return &Market{
		cfg:    cfg,
		source: source,
		store:  st,
		now:    utcNow,
		log:    logger.GetLogger(),
	}
}

// Cycle runs one pass. Failures of single symbols or kinds are logged and
// counted; the cycle fails only when nothing could be collected. A done ctx
// ends the pass with ctx.Err().
func (m *Market) Cycle(ctx context.Context) error {
	now := m.now()
	log := m.log.WithComponent("market_collector").WithFields(logger.Fields{"date": store.DateOf(now)})

	attempted, failed := 0, 0
	for i, sym := range m.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, kind := range []models.Kind{models.KindTickers, models.KindOrderbooks, models.KindTrades} {
			if err := ctx.Err(); err != nil {
				return err
			}
			attempted++
			if err := m.collect(ctx, sym, kind, now); err != nil {
				failed++
				m.itemFailed(log, sym, kind, err)
			}
		}
		if i < len(m.cfg.Symbols)-1 {
			if err := sleep(ctx, m.cfg.PacingDelay); err != nil {
				return err
			}
		}
	}

	for _, sym := range m.cfg.Symbols[:m.cfg.CandleSymbols] {
		for _, tf := range m.cfg.Timeframes {
			if err := ctx.Err(); err != nil {
				return err
			}
			attempted++
			if err := m.collectCandles(ctx, sym, tf, now); err != nil {
				failed++
				m.itemFailed(log, sym, models.CandleKind(tf), err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"symbols":   len(m.cfg.Symbols),
		"attempted": attempted,
		"failed":    failed,
	}).Info("market cycle finished")

	if attempted > 0 && failed == attempted {
		return fmt.Errorf("market cycle: all %d items failed", attempted)
	}
	return nil
}

func (m *Market) collect(ctx context.Context, symbol string, kind models.Kind, now time.Time) error {
	var records []any
	switch kind {
	case models.KindTickers:
		t, err := m.source.FetchTicker(ctx, symbol)
		if err != nil {
			return err
		}
		records = []any{t}
	case models.KindOrderbooks:
		b, err := m.source.FetchOrderBook(ctx, symbol, m.cfg.OrderbookDepth)
		if err != nil {
			return err
		}
		records = []any{b}
	case models.KindTrades:
		trades, err := m.source.FetchTrades(ctx, symbol, m.cfg.TradesLimit)
		if err != nil {
			return err
		}
		records = toAny(trades)
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return m.persist(ctx, symbol, kind, now, records)
}

func (m *Market) collectCandles(ctx context.Context, symbol string, tf models.Timeframe, now time.Time) error {
	candles, err := m.source.FetchCandles(ctx, symbol, tf, m.cfg.CandlesLimit)
	if err != nil {
		return err
	}
	return m.persist(ctx, symbol, models.CandleKind(tf), now, toAny(candles))
}

func (m *Market) persist(ctx context.Context, symbol string, kind models.Kind, now time.Time, records []any) error {
	if len(records) == 0 {
		return nil
	}
	canonical := symbols.Canonical(symbol)
	key := store.MarketKey(m.cfg.Collection, canonical, string(kind), now)
	retained, err := m.store.Append(ctx, key, records...)
	if err != nil {
		return fmt.Errorf("persist %s: %w", kind, err)
	}
	metrics.RecordsWritten(m.log, MarketTask, m.cfg.Collection, canonical, string(kind), len(records))
	m.log.WithComponent("market_collector").WithFields(logger.Fields{
		"symbol":   canonical,
		"kind":     kind,
		"records":  len(records),
		"retained": retained,
	}).Debug("market records saved")
	return nil
}

func (m *Market) itemFailed(log *logger.Entry, symbol string, kind models.Kind, err error) {
	metrics.ItemFailure(m.log, MarketTask, symbols.Canonical(symbol), string(kind))
	log.WithError(err).WithFields(logger.Fields{
		"symbol": symbol,
		"kind":   kind,
	}).Warn("market item failed")
}
