package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"marketscraper/config"
	"marketscraper/internal/symbols"
	"marketscraper/logger"
	"marketscraper/models"
)

const venueName = "binance"

var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000}

// Client serves market data from the Binance USDT-M futures REST API.
type Client struct {
	client *futures.Client
	now    func() time.Time
	log    *logger.Log
}

// NewClient builds a futures client with a pooled transport. An empty
// BaseURL keeps the library default endpoint.
func NewClient(cfg config.VenueConfig) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	client := futures.NewClient("", "")
	client.HTTPClient = httpClient
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		client.SetApiEndpoint(base)
	}

	log.WithComponent("binance_client").WithFields(logger.Fields{
		"base_url":           cfg.BaseURL,
		"max_idle_conns":     cfg.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.ConnectionPool.MaxConnsPerHost,
		"timeout":            cfg.Timeout,
	}).Info("binance client initialized")

	return &Client{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

func (c *Client) Name() string { return venueName }

// WeightLimit queries exchangeInfo for the REQUEST_WEIGHT per minute limit.
// It returns 0 if the limit cannot be determined.
func (c *Client) WeightLimit(ctx context.Context) (int64, error) {
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}

// FetchTicker merges the 24h statistics with the current best bid and ask.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("24hr stats: %w", err)
	}
	if len(stats) == 0 {
		return models.Ticker{}, fmt.Errorf("24hr stats: empty response for %s", symbol)
	}
	books, err := c.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("book ticker: %w", err)
	}
	if len(books) == 0 {
		return models.Ticker{}, fmt.Errorf("book ticker: empty response for %s", symbol)
	}

	s, b := stats[0], books[0]
	p := parser{}
	t := models.Ticker{
		Symbol:     symbols.Canonical(symbol),
		Last:       p.float("lastPrice", s.LastPrice),
		Bid:        p.float("bidPrice", b.BidPrice),
		Ask:        p.float("askPrice", b.AskPrice),
		High:       p.float("highPrice", s.HighPrice),
		Low:        p.float("lowPrice", s.LowPrice),
		Volume:     p.float("quoteVolume", s.QuoteVolume),
		Change:     p.float("priceChange", s.PriceChange),
		Percentage: p.float("priceChangePercent", s.PriceChangePercent),
		Timestamp:  c.now(),
	}
	if p.err != nil {
		return models.Ticker{}, p.err
	}
	return t, nil
}

func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (models.OrderBookSnapshot, error) {
	res, err := c.client.NewDepthService().
		Symbol(symbol).
		Limit(depthLimit(depth)).
		Do(ctx)
	if err != nil {
		return models.OrderBookSnapshot{}, fmt.Errorf("depth: %w", err)
	}

	p := parser{}
	book := models.OrderBookSnapshot{
		Symbol:    symbols.Canonical(symbol),
		Bids:      make([]models.PriceLevel, 0, len(res.Bids)),
		Asks:      make([]models.PriceLevel, 0, len(res.Asks)),
		Timestamp: c.now(),
	}
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, models.PriceLevel{Price: p.float("bid price", b.Price), Size: p.float("bid qty", b.Quantity)})
	}
	for _, a := range res.Asks {
		book.Asks = append(book.Asks, models.PriceLevel{Price: p.float("ask price", a.Price), Size: p.float("ask qty", a.Quantity)})
	}
	if p.err != nil {
		return models.OrderBookSnapshot{}, p.err
	}
	book.Truncate(depth)
	return book, nil
}

func (c *Client) FetchTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	res, err := c.client.NewRecentTradesService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}

	p := parser{}
	canonical := symbols.Canonical(symbol)
	trades := make([]models.Trade, 0, len(res))
	for _, tr := range res {
		side := models.SideBuy
		if tr.IsBuyerMaker {
			side = models.SideSell
		}
		trades = append(trades, models.Trade{
			Symbol:    canonical,
			ID:        strconv.FormatInt(tr.ID, 10),
			Price:     p.float("price", tr.Price),
			Amount:    p.float("qty", tr.Quantity),
			Side:      side,
			Timestamp: tr.Time,
		})
	}
	if p.err != nil {
		return nil, p.err
	}
	return trades, nil
}

func (c *Client) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	res, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval(tf.String()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines: %w", err)
	}

	p := parser{}
	candles := make([]models.Candle, 0, len(res))
	for _, k := range res {
		candles = append(candles, models.Candle{
			Timestamp: k.OpenTime,
			Open:      p.float("open", k.Open),
			High:      p.float("high", k.High),
			Low:       p.float("low", k.Low),
			Close:     p.float("close", k.Close),
			Volume:    p.float("volume", k.Volume),
		})
	}
	if p.err != nil {
		return nil, p.err
	}
	return candles, nil
}

// depthLimit rounds depth up to the nearest limit the depth endpoint accepts.
func depthLimit(depth int) int {
	for _, l := range depthLimits {
		if depth <= l {
			return l
		}
	}
	return depthLimits[len(depthLimits)-1]
}

// parser converts venue decimal strings, keeping the first failure.
type parser struct {
	err error
}

func (p *parser) float(field, s string) float64 {
	if p.err != nil {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.err = fmt.Errorf("parse %s %q: %w", field, s, err)
		return 0
	}
	return d.InexactFloat64()
}
