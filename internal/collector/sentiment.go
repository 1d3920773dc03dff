package collector

import (
	"context"
	"fmt"
	"time"

	"marketscraper/internal/metrics"
	"marketscraper/internal/store"
	"marketscraper/logger"
)

const SentimentTask = "sentiment"

// Sentiment stores one snapshot per cycle in the day's log and as the latest
// pointer document.
type Sentiment struct {
	collection string
	source     SentimentSource
	store      Store
	now        func() time.Time
	log        *logger.Log
}

func NewSentiment(collection string, source SentimentSource, st Store) *Sentiment {
	return &Sentiment{
		collection: collection,
		source:     source,
		store:      st,
		now:        utcNow,
		log:        logger.GetLogger(),
	}
}

func (s *Sentiment) Cycle(ctx context.Context) error {
	now := s.now()
	snap := s.source.Compute(now)

	if _, err := s.store.Append(ctx, store.DailyKey(s.collection, now), snap); err != nil {
		return fmt.Errorf("persist sentiment: %w", err)
	}
	if err := s.store.SetLatest(ctx, s.collection, snap); err != nil {
		return fmt.Errorf("persist latest sentiment: %w", err)
	}
	metrics.RecordsWritten(s.log, SentimentTask, s.collection, "", "sentiment", 1)

	s.log.WithComponent("sentiment_collector").WithFields(logger.Fields{
		"fear_greed": snap.FearGreedIndex,
		"label":      snap.FearGreedLabel,
	}).Info("sentiment updated")
	return nil
}
