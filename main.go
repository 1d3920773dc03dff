package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketscraper/config"
	"marketscraper/internal/collector"
	"marketscraper/internal/metrics"
	"marketscraper/internal/scheduler"
	"marketscraper/internal/status"
	"marketscraper/internal/store"
	"marketscraper/logger"
	"marketscraper/models"
	"marketscraper/processor"
	"marketscraper/reader/binance"
	"marketscraper/reader/market"
	"marketscraper/reader/news"
	"marketscraper/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	resolvedPath := config.ResolveConfigPath(*configPath)
	cfg, err := config.LoadConfig(resolvedPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithEnv("APP_ENV", "LOG_LEVEL", "SCRAPER_DATA_DIR").WithFields(logger.Fields{
		"service": cfg.Scraper.Name,
		"version": cfg.Scraper.Version,
		"env":     env,
		"config":  resolvedPath,
	}).Info("starting marketscraper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.SetReportDisk(cfg.Storage.DataDir)
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	storeOpts := []store.Option{store.WithLogger(log)}
	if cfg.Storage.S3.Enabled {
		mirror, err := writer.NewS3Mirror(ctx, cfg.Storage.S3)
		switch {
		case err == nil:
			storeOpts = append(storeOpts, store.WithMirror(mirror))
		case config.IsProductionLike(env):
			log.WithError(err).Error("failed to create S3 mirror")
			os.Exit(1)
		default:
			log.WithError(err).Warn("S3 mirror unavailable; writing locally only")
		}
	} else {
		log.WithComponent("main").Info("S3 mirror disabled; writing locally only")
	}

	st := store.New(cfg.Storage.DataDir, map[string]int{
		cfg.Storage.MarketCollection:    cfg.Storage.Caps.Market,
		cfg.Storage.NewsCollection:      cfg.Storage.Caps.News,
		cfg.Storage.SentimentCollection: cfg.Storage.Caps.Sentiment,
	}, storeOpts...)

	group := scheduler.New(cfg.Scheduler.ErrorBackoff)

	if cfg.Market.Enabled {
		if err := group.Add(marketTask(ctx, cfg, st)); err != nil {
			log.WithError(err).Error("failed to register market task")
			os.Exit(1)
		}
	}

	if cfg.News.Enabled {
		reader := news.NewReader(cfg.News)
		task := collector.NewNews(cfg.Storage.NewsCollection, reader, st)
		if err := group.Add(scheduler.Task{Name: collector.NewsTask, Interval: cfg.News.Interval, Cycle: task.Cycle}); err != nil {
			log.WithError(err).Error("failed to register news task")
			os.Exit(1)
		}
	}

	if cfg.Sentiment.Enabled {
		synth := processor.NewSynthesizer(cfg.Sentiment.Symbols, time.Now().UnixNano())
		task := collector.NewSentiment(cfg.Storage.SentimentCollection, synth, st)
		if err := group.Add(scheduler.Task{Name: collector.SentimentTask, Interval: cfg.Sentiment.Interval, Cycle: task.Cycle}); err != nil {
			log.WithError(err).Error("failed to register sentiment task")
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup

	statusCtx, stopStatus := context.WithCancel(context.Background())
	defer stopStatus()
	if srv := status.NewServer(cfg.Status, log, group, st, cfg.Storage.SentimentCollection); srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(statusCtx); err != nil {
				log.WithError(err).Warn("status server stopped")
			}
		}()
	}

	if err := group.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start scheduler")
		os.Exit(1)
	}
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")

	// Running cycles finish their iteration; ctx is only cancelled once the
	// shutdown timeout expires.
	done := make(chan struct{})
	go func() {
		group.Stop()
		stopStatus()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(cfg.Scheduler.ShutdownTimeout):
		log.Warn("graceful shutdown timeout exceeded, cancelling in-flight cycles")
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}

	log.Info("marketscraper stopped")
}

// marketTask wires the venue client, the fallback adapter and the market
// collector. Without an enabled venue every record is synthetic.
func marketTask(ctx context.Context, cfg *config.Config, st *store.Store) scheduler.Task {
	log := logger.GetLogger().WithComponent("main")

	var client market.Client
	if cfg.Venue.Enabled {
		bc := binance.NewClient(cfg.Venue)
		if limit, err := bc.WeightLimit(ctx); err != nil {
			log.WithError(err).Warn("failed to read venue request weight limit")
		} else {
			log.WithFields(logger.Fields{"venue": bc.Name(), "weight_per_minute": limit}).Info("venue rate limit")
		}
		client = bc
	} else {
		log.Info("venue disabled; market data is synthetic")
	}

	adapter := market.NewAdapter(client, market.Options{
		RequestsPerSecond: cfg.Venue.RequestsPerSecond,
		Burst:             cfg.Venue.Burst,
		Fallback:          cfg.Market.SyntheticFallback,
		OnFallback: func(kind models.Kind, symbol string, cause error) {
			metrics.FallbackUsed(logger.GetLogger(), collector.MarketTask, symbol, string(kind))
		},
	})

	log.WithFields(logger.Fields{
		"live":     adapter.Live(),
		"fallback": cfg.Market.SyntheticFallback,
		"symbols":  len(cfg.Market.Symbols),
	}).Info("market source ready")

	// validateConfig has already rejected unknown timeframes.
	timeframes, _ := cfg.ParsedTimeframes()

	task := collector.NewMarket(collector.MarketConfig{
		Collection:     cfg.Storage.MarketCollection,
		Symbols:        cfg.Market.Symbols,
		CandleSymbols:  cfg.Market.CandleSymbols,
		Timeframes:     timeframes,
		OrderbookDepth: cfg.Market.OrderbookDepth,
		TradesLimit:    cfg.Market.TradesLimit,
		CandlesLimit:   cfg.Market.CandlesLimit,
		PacingDelay:    cfg.Market.PacingDelay,
	}, adapter, st)

	return scheduler.Task{Name: collector.MarketTask, Interval: cfg.Market.Interval, Cycle: task.Cycle}
}
