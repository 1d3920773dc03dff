package models

import "time"

// SymbolSentiment is the per-symbol part of a SentimentSnapshot.
type SymbolSentiment struct {
	SentimentScore int     `json:"sentiment_score"`
	SocialMentions int     `json:"social_mentions"`
	FundingRate    float64 `json:"funding_rate"`
}

// SentimentSnapshot is a composite market mood reading. TotalMarketCap is in
// trillions of USD.
type SentimentSnapshot struct {
	Timestamp      time.Time                  `json:"timestamp"`
	FearGreedIndex int                        `json:"fear_greed_index"`
	FearGreedLabel string                     `json:"fear_greed_label"`
	BTCDominance   float64                    `json:"btc_dominance"`
	TotalMarketCap float64                    `json:"total_market_cap"`
	FundingRate    float64                    `json:"funding_rate"`
	LongShortRatio float64                    `json:"long_short_ratio"`
	SocialVolume   map[string]int             `json:"social_volume"`
	Symbols        map[string]SymbolSentiment `json:"symbols"`
}
