package processor

import (
	"reflect"
	"testing"
	"time"

	"marketscraper/models"
)

func TestAnalyzeSentiment(t *testing.T) {
	cases := []struct {
		title string
		want  models.SentimentLabel
	}{
		{"Bitcoin breaks new resistance level as institutional interest grows", models.Bullish},
		{"Bitcoin ETF sees record inflows", models.Bullish},
		{"Altcoins PLUNGE after exchange outage", models.Bearish},
		{"Market sell-off deepens", models.Bearish},
		{"Rally stalls as traders brace for correction", models.Neutral},
		{"Major exchange adds new trading pairs", models.Neutral},
		{"", models.Neutral},
	}
	for _, c := range cases {
		if got := AnalyzeSentiment(c.title); got != c.want {
			t.Errorf("AnalyzeSentiment(%q)=%s want %s", c.title, got, c.want)
		}
	}
}

func TestExtractSymbols(t *testing.T) {
	cases := []struct {
		title string
		want  []string
	}{
		{"Bitcoin and BTC rally", []string{"BTCUSDT"}},
		{"ethereum, solana and doge lead gains", []string{"ETHUSDT", "SOLUSDT", "DOGEUSDT"}},
		{"Ripple's XRP tops Cardano", []string{"XRPUSDT", "ADAUSDT"}},
		{"New solution for Canada payments", []string{}},
		{"Binance lists new pairs", []string{"BNBUSDT"}},
	}
	for _, c := range cases {
		if got := ExtractSymbols(c.title); !reflect.DeepEqual(got, c.want) {
			t.Errorf("ExtractSymbols(%q)=%v want %v", c.title, got, c.want)
		}
	}
}

func TestTitleIDStable(t *testing.T) {
	a := TitleID("Bitcoin rally")
	if a != TitleID("  Bitcoin rally ") {
		t.Fatal("surrounding whitespace should not change the id")
	}
	if a == TitleID("Bitcoin rally!") {
		t.Fatal("different titles should hash differently")
	}
}

func TestNormalizeNews(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	raw := []models.RawNewsItem{
		{ID: "n1", Title: "Ethereum falls 5%", Source: "The Block", URL: "https://x/1", UpdatedAt: updated},
		{Title: "Solana adoption grows", URL: "https://x/2"},
		{ID: "n3", Title: ""},
	}
	items := NormalizeNews(raw, now)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Sentiment != models.Bearish || !items[0].Timestamp.Equal(updated) {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].ID != TitleID("Solana adoption grows") || items[1].Source != "Unknown" {
		t.Fatalf("unexpected defaults %+v", items[1])
	}
	if !items[1].Timestamp.Equal(now) || !reflect.DeepEqual(items[1].Symbols, []string{"SOLUSDT"}) {
		t.Fatalf("unexpected second item %+v", items[1])
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSampleNewsCoversAllLabels(t *testing.T) {
	now := time.Now().UTC()
	items := SampleNews(now)
	if len(items) != 8 {
		t.Fatalf("expected 8 sample items, got %d", len(items))
	}
	labels := map[models.SentimentLabel]bool{}
	ids := map[string]bool{}
	for i, it := range items {
		labels[it.Sentiment] = true
		if ids[it.ID] {
			t.Fatalf("duplicate id %s", it.ID)
		}
		ids[it.ID] = true
		if it.Symbols == nil {
			t.Fatalf("item %d has nil symbols", i)
		}
		if want := now.Add(-time.Duration(i) * time.Hour); !it.Timestamp.Equal(want) {
			t.Fatalf("item %d timestamp %v want %v", i, it.Timestamp, want)
		}
	}
	for _, l := range []models.SentimentLabel{models.Bullish, models.Bearish, models.Neutral} {
		if !labels[l] {
			t.Fatalf("sample feed misses label %s", l)
		}
	}
	if !reflect.DeepEqual(SampleNews(now), items) {
		t.Fatal("sample feed is not deterministic")
	}
}
