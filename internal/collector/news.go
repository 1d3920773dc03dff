package collector

import (
	"context"
	"fmt"
	"time"

	"marketscraper/internal/metrics"
	"marketscraper/internal/store"
	"marketscraper/logger"
	"marketscraper/models"
	"marketscraper/processor"
)

const NewsTask = "news"

// News fetches headlines, tags them and merges them into the day's log by id.
// When no endpoint yields items the sample feed is stored instead.
type News struct {
	collection string
	source     NewsSource
	store      Store
	now        func() time.Time
	log        *logger.Log
}

func NewNews(collection string, source NewsSource, st Store) *News {
	return &News{
		collection: collection,
		source:     source,
		store:      st,
		now:        utcNow,
		log:        logger.GetLogger(),
	}
}

func (n *News) Cycle(ctx context.Context) error {
	now := n.now()
	log := n.log.WithComponent("news_collector").WithFields(logger.Fields{"date": store.DateOf(now)})

	var raw []models.RawNewsItem
	if n.source != nil {
		var err error
		raw, err = n.source.Fetch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			metrics.ItemFailure(n.log, NewsTask, "", "news")
			log.WithError(err).Warn("some news endpoints failed")
		}
	}

	items := processor.NormalizeNews(raw, now)
	sample := false
	if len(items) == 0 {
		items = processor.SampleNews(now)
		sample = true
		log.Info("no news from endpoints, using sample feed")
	}

	records := make([]store.Identified, len(items))
	for i := range items {
		records[i] = items[i]
	}
	added, err := n.store.AppendUnique(ctx, store.DailyKey(n.collection, now), records...)
	if err != nil {
		return fmt.Errorf("persist news: %w", err)
	}
	metrics.RecordsWritten(n.log, NewsTask, n.collection, "", "news", added)

	log.WithFields(logger.Fields{
		"fetched": len(items),
		"added":   added,
		"sample":  sample,
	}).Info("news cycle finished")
	return nil
}
