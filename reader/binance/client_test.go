package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketscraper/config"
	"marketscraper/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
	mux.HandleFunc("/fapi/v1/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("unexpected symbol %q", r.URL.Query().Get("symbol"))
		}
		write(w, map[string]interface{}{
			"symbol":             "BTCUSDT",
			"priceChange":        "-120.50",
			"priceChangePercent": "-0.118",
			"weightedAvgPrice":   "101400.00",
			"lastPrice":          "101500.10",
			"lastQty":            "0.010",
			"openPrice":          "101620.60",
			"highPrice":          "102000.00",
			"lowPrice":           "100900.00",
			"volume":             "15000.5",
			"quoteVolume":        "1523000000.75",
			"openTime":           1700000000000,
			"closeTime":          1700086400000,
			"firstId":            1,
			"lastId":             2,
			"count":              2,
		})
	})
	mux.HandleFunc("/fapi/v1/ticker/bookTicker", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{
			"symbol":   "BTCUSDT",
			"bidPrice": "101500.00",
			"bidQty":   "1.5",
			"askPrice": "101500.20",
			"askQty":   "2.0",
			"time":     1700000000000,
		})
	})
	mux.HandleFunc("/fapi/v1/depth", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("unexpected depth limit %q", got)
		}
		write(w, map[string]interface{}{
			"lastUpdateId": 42,
			"E":            1700000000000,
			"T":            1700000000000,
			"bids":         [][]string{{"100.0", "1"}, {"99.5", "2"}, {"99.0", "3"}, {"98.5", "4"}, {"98.0", "5"}},
			"asks":         [][]string{{"100.5", "1"}, {"101.0", "2"}, {"101.5", "3"}, {"102.0", "4"}, {"102.5", "5"}},
		})
	})
	mux.HandleFunc("/fapi/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		write(w, []map[string]interface{}{
			{"id": 7, "price": "100.1", "qty": "0.5", "quoteQty": "50.05", "time": 1700000000001, "isBuyerMaker": true},
			{"id": 8, "price": "100.2", "qty": "0.25", "quoteQty": "25.05", "time": 1700000000002, "isBuyerMaker": false},
		})
	})
	mux.HandleFunc("/fapi/v1/klines", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("unexpected interval %q", got)
		}
		write(w, [][]interface{}{
			{1700000000000, "100", "105", "99", "104", "10", 1700003599999, "1000", 5, "5", "500", "0"},
			{1700003600000, "104", "106", "103", "103.5", "12", 1700007199999, "1200", 6, "6", "600", "0"},
		})
	})
	mux.HandleFunc("/fapi/v1/exchangeInfo", func(w http.ResponseWriter, r *http.Request) {
		write(w, map[string]interface{}{
			"timezone":   "UTC",
			"serverTime": 1700000000000,
			"rateLimits": []map[string]interface{}{
				{"rateLimitType": "ORDERS", "interval": "MINUTE", "intervalNum": 1, "limit": 1200},
				{"rateLimitType": "REQUEST_WEIGHT", "interval": "MINUTE", "intervalNum": 1, "limit": 2400},
			},
			"exchangeFilters": []interface{}{},
			"symbols":         []interface{}{},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(config.VenueConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		ConnectionPool: config.ConnectionPoolConfig{
			MaxIdleConns:    1,
			MaxConnsPerHost: 1,
			IdleConnTimeout: time.Second,
		},
	})
	c.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestFetchTicker(t *testing.T) {
	c := newTestClient(t, newTestServer(t).URL)
	tk, err := c.FetchTicker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("FetchTicker failed: %v", err)
	}
	if tk.Symbol != "BTCUSDT" || tk.Last != 101500.10 || tk.Bid != 101500.00 || tk.Ask != 101500.20 {
		t.Fatalf("unexpected ticker %+v", tk)
	}
	if tk.Volume != 1523000000.75 || tk.Change != -120.50 {
		t.Fatalf("unexpected volume/change %+v", tk)
	}
	if err := tk.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestFetchOrderBook(t *testing.T) {
	c := newTestClient(t, newTestServer(t).URL)
	book, err := c.FetchOrderBook(context.Background(), "BTCUSDT", 3)
	if err != nil {
		t.Fatalf("FetchOrderBook failed: %v", err)
	}
	if len(book.Bids) != 3 || len(book.Asks) != 3 {
		t.Fatalf("expected depth 3, got %d/%d", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0] != (models.PriceLevel{Price: 100, Size: 1}) {
		t.Fatalf("unexpected top bid %+v", book.Bids[0])
	}
	if err := book.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestMultiplierContractKeepsRequestedSymbol(t *testing.T) {
	c := newTestClient(t, newTestServer(t).URL)
	book, err := c.FetchOrderBook(context.Background(), "1000PEPEUSDT", 3)
	if err != nil {
		t.Fatalf("FetchOrderBook failed: %v", err)
	}
	if book.Symbol != "1000PEPEUSDT" {
		t.Fatalf("record symbol %q differs from the requested contract", book.Symbol)
	}
	trades, err := c.FetchTrades(context.Background(), "1000PEPEUSDT", 2)
	if err != nil {
		t.Fatalf("FetchTrades failed: %v", err)
	}
	if trades[0].Symbol != "1000PEPEUSDT" {
		t.Fatalf("trade symbol %q differs from the requested contract", trades[0].Symbol)
	}
}

func TestFetchTrades(t *testing.T) {
	c := newTestClient(t, newTestServer(t).URL)
	trades, err := c.FetchTrades(context.Background(), "BTCUSDT", 2)
	if err != nil {
		t.Fatalf("FetchTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].ID != "7" || trades[0].Side != models.SideSell || trades[1].Side != models.SideBuy {
		t.Fatalf("unexpected trades %+v", trades)
	}
	if trades[0].Timestamp != 1700000000001 {
		t.Fatalf("unexpected timestamp %d", trades[0].Timestamp)
	}
}

func TestFetchCandles(t *testing.T) {
	c := newTestClient(t, newTestServer(t).URL)
	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", models.MustTimeframe("1h"), 2)
	if err != nil {
		t.Fatalf("FetchCandles failed: %v", err)
	}
	if len(candles) != 2 || candles[1].Open != 104 || candles[1].Close != 103.5 {
		t.Fatalf("unexpected candles %+v", candles)
	}
	if err := models.ValidateCandles(candles); err != nil {
		t.Fatal(err)
	}
}

func TestWeightLimit(t *testing.T) {
	c := newTestClient(t, newTestServer(t).URL)
	limit, err := c.WeightLimit(context.Background())
	if err != nil {
		t.Fatalf("WeightLimit failed: %v", err)
	}
	if limit != 2400 {
		t.Fatalf("unexpected weight limit %d", limit)
	}
}

func TestFetchTickerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":-1000,"msg":"internal"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.FetchTicker(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("expected error for server failure")
	}
}

func TestParserKeepsFirstError(t *testing.T) {
	p := parser{}
	if v := p.float("ok", "1.25"); v != 1.25 {
		t.Fatalf("unexpected value %v", v)
	}
	p.float("bad", "abc")
	p.float("worse", "")
	if p.err == nil || !strings.Contains(p.err.Error(), "bad") {
		t.Fatalf("unexpected error %v", p.err)
	}
}

func TestDepthLimit(t *testing.T) {
	cases := map[int]int{1: 5, 5: 5, 6: 10, 20: 20, 21: 50, 5000: 1000}
	for in, want := range cases {
		if got := depthLimit(in); got != want {
			t.Errorf("depthLimit(%d)=%d want %d", in, got, want)
		}
	}
}
