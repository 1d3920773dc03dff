package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPriceLevelEncodesAsPair(t *testing.T) {
	book := OrderBookSnapshot{
		Symbol:    "BTCUSDT",
		Bids:      []PriceLevel{{Price: 100.5, Size: 1.2}},
		Asks:      []PriceLevel{{Price: 100.6, Size: 3}},
		Timestamp: time.Unix(0, 0).UTC(),
	}
	data, err := json.Marshal(book)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw struct {
		Bids [][]float64 `json:"bids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if len(raw.Bids) != 1 || raw.Bids[0][0] != 100.5 || raw.Bids[0][1] != 1.2 {
		t.Fatalf("unexpected bids encoding: %s", data)
	}

	var out OrderBookSnapshot
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Asks[0] != book.Asks[0] {
		t.Fatalf("ask mismatch: %+v != %+v", out.Asks[0], book.Asks[0])
	}
}

func TestOrderBookTruncateAndValidate(t *testing.T) {
	book := OrderBookSnapshot{Symbol: "ETHUSDT"}
	for i := 0; i < 30; i++ {
		book.Bids = append(book.Bids, PriceLevel{Price: 100 - float64(i), Size: 1})
		book.Asks = append(book.Asks, PriceLevel{Price: 101 + float64(i), Size: 1})
	}
	book.Truncate(20)
	if len(book.Bids) != 20 || len(book.Asks) != 20 {
		t.Fatalf("expected 20 levels per side, got %d/%d", len(book.Bids), len(book.Asks))
	}
	if err := book.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	book.Bids[0], book.Bids[1] = book.Bids[1], book.Bids[0]
	if err := book.Validate(); err == nil {
		t.Fatal("expected error for unordered bids")
	}
}

func TestCandleValidate(t *testing.T) {
	tests := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{"ok", Candle{Open: 10, High: 12, Low: 9, Close: 11}, false},
		{"flat", Candle{Open: 10, High: 10, Low: 10, Close: 10}, false},
		{"high below close", Candle{Open: 10, High: 10.5, Low: 9, Close: 11}, true},
		{"low above open", Candle{Open: 10, High: 12, Low: 10.5, Close: 11}, true},
	}
	for _, tt := range tests {
		if err := tt.candle.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	seq := []Candle{{Timestamp: 2, Open: 1, High: 1, Low: 1, Close: 1}, {Timestamp: 2, Open: 1, High: 1, Low: 1, Close: 1}}
	if err := ValidateCandles(seq); err == nil {
		t.Fatal("expected error for repeated timestamp")
	}
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"15m", 15 * time.Minute, true},
		{"1h", time.Hour, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"h", 0, false},
		{"0h", 0, false},
		{"3y", 0, false},
	}
	for _, tt := range tests {
		tf, err := ParseTimeframe(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseTimeframe(%q) err=%v ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && tf.Step() != tt.want {
			t.Errorf("ParseTimeframe(%q) step=%v want %v", tt.in, tf.Step(), tt.want)
		}
	}
	if got := CandleKind(MustTimeframe("4h")); got != "ohlcv-4h" {
		t.Fatalf("CandleKind = %q", got)
	}
}

func TestTradeValidate(t *testing.T) {
	if err := (Trade{ID: "1", Price: 10, Amount: 1, Side: SideBuy}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Trade{ID: "1", Price: 10, Amount: 1, Side: "hold"}).Validate(); err == nil {
		t.Fatal("expected error for unknown side")
	}
}
