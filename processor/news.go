package processor

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"marketscraper/logger"
	"marketscraper/models"
)

var bullishWords = []string{
	"surge", "rally", "bullish", "gains", "rises", "growth", "grows", "adoption",
	"milestone", "record", "inflows",
}

var bearishWords = []string{
	"crash", "plunge", "bearish", "drop", "falls", "correction", "sell-off",
	"decline", "outflows",
}

// symbolKeywords maps title tokens to canonical symbols.
var symbolKeywords = []struct {
	word   string
	symbol string
}{
	{"BITCOIN", "BTCUSDT"}, {"BTC", "BTCUSDT"},
	{"ETHEREUM", "ETHUSDT"}, {"ETH", "ETHUSDT"},
	{"SOLANA", "SOLUSDT"}, {"SOL", "SOLUSDT"},
	{"BNB", "BNBUSDT"}, {"BINANCE", "BNBUSDT"},
	{"XRP", "XRPUSDT"}, {"RIPPLE", "XRPUSDT"},
	{"CARDANO", "ADAUSDT"}, {"ADA", "ADAUSDT"},
	{"DOGECOIN", "DOGEUSDT"}, {"DOGE", "DOGEUSDT"},
}

// AnalyzeSentiment scores a title by counting bullish and bearish keyword
// occurrences, case-insensitively. Ties are neutral.
func AnalyzeSentiment(title string) models.SentimentLabel {
	text := strings.ToLower(title)
	score := 0
	for _, w := range bullishWords {
		if strings.Contains(text, w) {
			score++
		}
	}
	for _, w := range bearishWords {
		if strings.Contains(text, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return models.Bullish
	case score < 0:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// ExtractSymbols returns the canonical symbols named in title, each at most
// once, in keyword table order. Keywords match whole words only so "SOL"
// does not fire on "SOLUTION".
func ExtractSymbols(title string) []string {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToUpper(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, kw := range symbolKeywords {
		if _, ok := words[kw.word]; !ok {
			continue
		}
		if _, dup := seen[kw.symbol]; dup {
			continue
		}
		seen[kw.symbol] = struct{}{}
		out = append(out, kw.symbol)
	}
	return out
}

// TitleID is the identifier given to headlines whose source has none.
func TitleID(title string) string {
	return fmt.Sprintf("title-%016x", xxhash.Sum64String(strings.TrimSpace(title)))
}

// NormalizeNews tags raw headlines with sentiment and symbols. Items without
// a title are dropped. now stamps items that carry no update time.
func NormalizeNews(raw []models.RawNewsItem, now time.Time) []models.NewsItem {
	log := logger.GetLogger().WithComponent("news_processor")

	out := make([]models.NewsItem, 0, len(raw))
	for _, r := range raw {
		if r.Title == "" {
			log.WithFields(logger.Fields{"endpoint": r.Endpoint, "id": r.ID}).Debug("skipping untitled news item")
			continue
		}
		id := r.ID
		if id == "" {
			id = TitleID(r.Title)
		}
		source := r.Source
		if source == "" {
			source = "Unknown"
		}
		ts := r.UpdatedAt
		if ts.IsZero() {
			ts = now
		}
		out = append(out, models.NewsItem{
			ID:        id,
			Title:     r.Title,
			Source:    source,
			URL:       r.URL,
			Timestamp: ts.UTC(),
			Sentiment: AnalyzeSentiment(r.Title),
			Symbols:   ExtractSymbols(r.Title),
		})
	}
	return out
}

var sampleHeadlines = []struct {
	title     string
	sentiment models.SentimentLabel
	symbols   []string
}{
	{"Bitcoin breaks new resistance level as institutional interest grows", models.Bullish, []string{"BTCUSDT"}},
	{"Ethereum upgrade expected to boost network efficiency", models.Bullish, []string{"ETHUSDT"}},
	{"Crypto market sees increased volatility amid regulatory news", models.Neutral, []string{}},
	{"Solana DeFi ecosystem reaches new milestone", models.Bullish, []string{"SOLUSDT"}},
	{"Market analysts predict short-term correction", models.Bearish, []string{"BTCUSDT", "ETHUSDT"}},
	{"Major exchange adds new trading pairs", models.Neutral, []string{}},
	{"Bitcoin ETF sees record inflows", models.Bullish, []string{"BTCUSDT"}},
	{"Regulatory clarity could boost institutional adoption", models.Bullish, []string{}},
}

var sampleSources = []string{"CoinDesk", "CoinTelegraph", "Bloomberg Crypto", "The Block"}

// SampleNews is the fixed feed served when no endpoint produced items. Item i
// is dated i hours before now.
func SampleNews(now time.Time) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(sampleHeadlines))
	for i, h := range sampleHeadlines {
		out = append(out, models.NewsItem{
			ID:        fmt.Sprintf("mock-news-%d", i),
			Title:     h.title,
			Source:    sampleSources[i%len(sampleSources)],
			URL:       fmt.Sprintf("https://example.com/news/%d", i),
			Timestamp: now.Add(-time.Duration(i) * time.Hour).UTC(),
			Sentiment: h.sentiment,
			Symbols:   append([]string{}, h.symbols...),
		})
	}
	return out
}
