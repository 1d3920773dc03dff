package processor

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"marketscraper/internal/symbols"
	"marketscraper/models"
)

// Bounds of the synthesized sentiment figures.
const (
	FearGreedMin      = 25
	FearGreedMax      = 75
	DominanceMin      = 50.0
	DominanceMax      = 55.0
	MarketCapMin      = 2.3
	MarketCapMax      = 2.6
	FundingRateMin    = -0.01
	FundingRateMax    = 0.03
	LongShortMin      = 0.8
	LongShortMax      = 1.3
	SymbolScoreMin    = 40
	SymbolScoreMax    = 80
	fearThreshold     = 45
	greedThreshold    = 55
	defaultMentionMin = 100
	defaultMentionMax = 500
)

var socialChannels = []struct {
	name     string
	min, max int
}{
	{"twitter", -20, 50},
	{"reddit", -10, 40},
	{"telegram", -15, 35},
}

var mentionRanges = map[string][2]int{
	"BTC": {1000, 5000},
	"ETH": {500, 2500},
	"SOL": {200, 1000},
}

// FearGreedLabel classifies a fear-greed index.
func FearGreedLabel(index int) string {
	switch {
	case index < fearThreshold:
		return "Fear"
	case index > greedThreshold:
		return "Greed"
	default:
		return "Neutral"
	}
}

// Synthesizer produces bounded sentiment snapshots without any external
// call. It is safe for concurrent use.
type Synthesizer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	symbols []string
}

func NewSynthesizer(syms []string, seed int64) *Synthesizer {
	canonical := make([]string, 0, len(syms))
	for _, s := range syms {
		canonical = append(canonical, symbols.Canonical(s))
	}
	return &Synthesizer{
		rng:     rand.New(rand.NewSource(seed)),
		symbols: canonical,
	}
}

func (s *Synthesizer) Compute(now time.Time) models.SentimentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.intn(FearGreedMin, FearGreedMax)
	snap := models.SentimentSnapshot{
		Timestamp:      now.UTC(),
		FearGreedIndex: index,
		FearGreedLabel: FearGreedLabel(index),
		BTCDominance:   round(s.uniform(DominanceMin, DominanceMax), 2),
		TotalMarketCap: round(s.uniform(MarketCapMin, MarketCapMax), 2),
		FundingRate:    round(s.uniform(FundingRateMin, FundingRateMax), 4),
		LongShortRatio: round(s.uniform(LongShortMin, LongShortMax), 2),
		SocialVolume:   make(map[string]int, len(socialChannels)),
		Symbols:        make(map[string]models.SymbolSentiment, len(s.symbols)),
	}
	for _, ch := range socialChannels {
		snap.SocialVolume[ch.name] = s.intn(ch.min, ch.max)
	}
	for _, sym := range s.symbols {
		r, ok := mentionRanges[symbols.Base(sym)]
		if !ok {
			r = [2]int{defaultMentionMin, defaultMentionMax}
		}
		snap.Symbols[sym] = models.SymbolSentiment{
			SentimentScore: s.intn(SymbolScoreMin, SymbolScoreMax),
			SocialMentions: s.intn(r[0], r[1]),
			FundingRate:    round(s.uniform(FundingRateMin, FundingRateMax), 4),
		}
	}
	return snap
}

// intn returns an integer in [lo, hi].
func (s *Synthesizer) intn(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *Synthesizer) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
