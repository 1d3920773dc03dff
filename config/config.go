package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketscraper/models"
)

type Config struct {
	Scraper   ScraperConfig   `yaml:"scraper"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Venue     VenueConfig     `yaml:"venue"`
	Market    MarketConfig    `yaml:"market"`
	News      NewsConfig      `yaml:"news"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Status    StatusConfig    `yaml:"status"`
}

type ScraperConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type StorageConfig struct {
	DataDir             string     `yaml:"data_dir"`
	MarketCollection    string     `yaml:"market_collection"`
	NewsCollection      string     `yaml:"news_collection"`
	SentimentCollection string     `yaml:"sentiment_collection"`
	Caps                CapsConfig `yaml:"caps"`
	S3                  S3Config   `yaml:"s3"`
}

// CapsConfig bounds how many records each collection keeps per document.
type CapsConfig struct {
	Market    int `yaml:"market"`
	News      int `yaml:"news"`
	Sentiment int `yaml:"sentiment"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// VenueConfig describes the live market-data client. When Enabled is false
// every market record comes from the synthetic generator.
type VenueConfig struct {
	Name              string               `yaml:"name"`
	Enabled           bool                 `yaml:"enabled"`
	BaseURL           string               `yaml:"base_url"`
	Timeout           time.Duration        `yaml:"timeout"`
	RequestsPerSecond float64              `yaml:"requests_per_second"`
	Burst             int                  `yaml:"burst"`
	ConnectionPool    ConnectionPoolConfig `yaml:"connection_pool"`
}

type MarketConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Interval          time.Duration `yaml:"interval"`
	Symbols           []string      `yaml:"symbols"`
	CandleSymbols     int           `yaml:"candle_symbols"`
	Timeframes        []string      `yaml:"timeframes"`
	OrderbookDepth    int           `yaml:"orderbook_depth"`
	TradesLimit       int           `yaml:"trades_limit"`
	CandlesLimit      int           `yaml:"candles_limit"`
	PacingDelay       time.Duration `yaml:"pacing_delay"`
	SyntheticFallback bool          `yaml:"synthetic_fallback"`
}

type NewsConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	Endpoints  []string      `yaml:"endpoints"`
	ItemsField string        `yaml:"items_field"`
	MaxItems   int           `yaml:"max_items"`
	Timeout    time.Duration `yaml:"timeout"`
}

type SentimentConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Symbols  []string      `yaml:"symbols"`
}

type SchedulerConfig struct {
	ErrorBackoff    time.Duration `yaml:"error_backoff"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
	ReportInterval time.Duration    `yaml:"report_interval"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	History int    `yaml:"history"`
}

// Default returns the configuration used for every field the YAML file omits.
func Default() Config {
	return Config{
		Scraper: ScraperConfig{Name: "marketscraper", Version: "dev"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Storage: StorageConfig{
			DataDir:             "data",
			MarketCollection:    "market-history",
			NewsCollection:      "news",
			SentimentCollection: "sentiment",
			Caps:                CapsConfig{Market: 1000, News: 100, Sentiment: 288},
		},
		Venue: VenueConfig{
			Name:              "binance",
			Enabled:           true,
			BaseURL:           "https://fapi.binance.com",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Market: MarketConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
			Symbols: []string{
				"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT",
				"XRP/USDT", "ADA/USDT", "DOGE/USDT", "AVAX/USDT",
			},
			CandleSymbols:     3,
			Timeframes:        []string{"1h", "4h"},
			OrderbookDepth:    20,
			TradesLimit:       50,
			CandlesLimit:      100,
			PacingDelay:       500 * time.Millisecond,
			SyntheticFallback: true,
		},
		News: NewsConfig{
			Enabled:    true,
			Interval:   5 * time.Minute,
			Endpoints:  []string{"https://api.coingecko.com/api/v3/news"},
			ItemsField: "data",
			MaxItems:   10,
			Timeout:    10 * time.Second,
		},
		Sentiment: SentimentConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
			Symbols:  []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		},
		Scheduler: SchedulerConfig{
			ErrorBackoff:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			CloudWatch:     CloudWatchConfig{Namespace: "MarketScraper"},
			ReportInterval: 30 * time.Second,
		},
		Status: StatusConfig{Address: ":8089", History: 200},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("SCRAPER_DATA_DIR"); v != "" {
		config.Storage.DataDir = strings.TrimSpace(v)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// ParsedTimeframes returns the market timeframes in configured order.
func (c *Config) ParsedTimeframes() ([]models.Timeframe, error) {
	out := make([]models.Timeframe, 0, len(c.Market.Timeframes))
	for _, s := range c.Market.Timeframes {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Scraper.Name == "" {
		return fmt.Errorf("scraper.name is required")
	}
	if cfg.Scraper.Version == "" {
		return fmt.Errorf("scraper.version is required")
	}

	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if cfg.Storage.MarketCollection == "" || cfg.Storage.NewsCollection == "" || cfg.Storage.SentimentCollection == "" {
		return fmt.Errorf("storage collection names are required")
	}
	if cfg.Storage.Caps.Market <= 0 || cfg.Storage.Caps.News <= 0 || cfg.Storage.Caps.Sentiment <= 0 {
		return fmt.Errorf("storage.caps must be greater than 0")
	}

	if cfg.Market.Enabled {
		if cfg.Market.Interval <= 0 {
			return fmt.Errorf("market.interval must be greater than 0")
		}
		if len(cfg.Market.Symbols) == 0 {
			return fmt.Errorf("market.symbols must not be empty")
		}
		if cfg.Market.OrderbookDepth <= 0 {
			return fmt.Errorf("market.orderbook_depth must be greater than 0")
		}
		if cfg.Market.TradesLimit <= 0 || cfg.Market.CandlesLimit <= 0 {
			return fmt.Errorf("market.trades_limit and market.candles_limit must be greater than 0")
		}
		if cfg.Market.PacingDelay < 0 {
			return fmt.Errorf("market.pacing_delay must not be negative")
		}
		if _, err := cfg.ParsedTimeframes(); err != nil {
			return fmt.Errorf("market.timeframes: %w", err)
		}
	}

	if cfg.Venue.Enabled && cfg.Venue.RequestsPerSecond <= 0 {
		return fmt.Errorf("venue.requests_per_second must be greater than 0")
	}

	if cfg.News.Enabled {
		if cfg.News.Interval <= 0 {
			return fmt.Errorf("news.interval must be greater than 0")
		}
		if cfg.News.MaxItems <= 0 {
			return fmt.Errorf("news.max_items must be greater than 0")
		}
	}

	if cfg.Sentiment.Enabled && cfg.Sentiment.Interval <= 0 {
		return fmt.Errorf("sentiment.interval must be greater than 0")
	}

	if cfg.Scheduler.ErrorBackoff <= 0 {
		return fmt.Errorf("scheduler.error_backoff must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Status.Enabled && cfg.Status.Address == "" {
		return fmt.Errorf("status.address is required when the status server is enabled")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
