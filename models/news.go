package models

import (
	"fmt"
	"time"
)

// SentimentLabel classifies a news headline.
type SentimentLabel string

const (
	Bullish SentimentLabel = "bullish"
	Bearish SentimentLabel = "bearish"
	Neutral SentimentLabel = "neutral"
)

// NewsItem is a normalized headline. ID is the deduplication key within a day's log.
type NewsItem struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Source    string         `json:"source"`
	URL       string         `json:"url"`
	Timestamp time.Time      `json:"timestamp"`
	Sentiment SentimentLabel `json:"sentiment"`
	Symbols   []string       `json:"symbols"`
}

// RecordID implements store.Identified.
func (n NewsItem) RecordID() string { return n.ID }

func (n NewsItem) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("news: empty id")
	}
	switch n.Sentiment {
	case Bullish, Bearish, Neutral:
	default:
		return fmt.Errorf("news %s: unknown sentiment %q", n.ID, n.Sentiment)
	}
	return nil
}

// RawNewsItem is one headline as decoded from a news endpoint, before
// sentiment and symbol tagging. ID is empty when the source provides none and
// UpdatedAt is zero when absent.
type RawNewsItem struct {
	ID        string
	Title     string
	Source    string
	URL       string
	UpdatedAt time.Time
	Endpoint  string
}
