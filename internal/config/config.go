package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"OpportunityScanner/internal/advisory"
	"OpportunityScanner/internal/breaker"
	"OpportunityScanner/internal/calculator"
	"OpportunityScanner/internal/pricecache"
	"OpportunityScanner/internal/strategy"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is given.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider     string `yaml:"provider"` // yahoo, alpaca, rest, mock
		BaseURL      string `yaml:"base_url"` // rest only
		APIKey       string `yaml:"api_key"`  // rest only
		AlpacaKey    string `yaml:"alpaca_key"`
		AlpacaSecret string `yaml:"alpaca_secret"`
		AlpacaURL    string `yaml:"alpaca_url"`
	} `yaml:"data_source"`
	Cache   pricecache.Config `yaml:"cache"`
	Catalog struct {
		JSONPath string `yaml:"json_path"`
		TxtPath  string `yaml:"txt_path"`
	} `yaml:"catalog"`
	Scan struct {
		Period   string `yaml:"period"`
		Interval string `yaml:"interval"`
		MinRows  int    `yaml:"min_rows"`
		Lookback int    `yaml:"lookback"`
		Workers  int    `yaml:"workers"`
		Engine   string `yaml:"engine"` // native, talib
	} `yaml:"scan"`
	Indicators calculator.Params   `yaml:"indicators"`
	Thresholds strategy.Thresholds `yaml:"thresholds"`
	Advisory   advisory.Config     `yaml:"advisory"`
	Breaker    breaker.Config      `yaml:"breaker"`
	Telegram   struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
		Mode     string `yaml:"mode"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"` // scan history; empty disables recording
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		Production bool   `yaml:"production"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env files, then the YAML file, then applies environment overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}

	// Thresholds decode over their defaults so keys left out keep the default
	// and an explicit 0 is kept.
	cfg := &Config{Thresholds: strategy.DefaultThresholds}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	str := map[string]*string{
		"OPENAI_API_KEY":     &c.Advisory.APIKey,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"ALPACA_API_KEY":     &c.DataSource.AlpacaKey,
		"ALPACA_API_SECRET":  &c.DataSource.AlpacaSecret,
		"DATA_PROVIDER":      &c.DataSource.Provider,
		"DATA_BASE_URL":      &c.DataSource.BaseURL,
		"DATA_API_KEY":       &c.DataSource.APIKey,
		"CACHE_BACKEND":      &c.Cache.Backend,
		"SQLITE_PATH":        &c.Cache.SQLitePath,
		"POSTGRES_URL":       &c.Cache.PostgresURL,
		"REDIS_ADDR":         &c.Cache.RedisAddr,
		"REDIS_PASSWORD":     &c.Cache.RedisPass,
		"HISTORY_DB_PATH":    &c.Database.SQLitePath,
		"HTTPS_PROXY":        &c.Proxy,
		"SCAN_CRON":          &c.Schedule.ScanCron,
		"HTTP_ADDR":          &c.HTTP.Addr,
		"LOG_LEVEL":          &c.Log.Level,
		"AWS_REGION":         &c.Advisory.Region,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scan.Workers = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "sqlite"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/prices.db"
	}
	if c.Catalog.JSONPath == "" {
		c.Catalog.JSONPath = "data/stocks.json"
	}
	if c.Catalog.TxtPath == "" {
		c.Catalog.TxtPath = "configs/stock_list.txt"
	}
	if c.Scan.Period == "" {
		c.Scan.Period = "6mo"
	}
	if c.Scan.Interval == "" {
		c.Scan.Interval = "1d"
	}
	if c.Scan.MinRows == 0 {
		c.Scan.MinRows = 60
	}
	if c.Scan.Lookback == 0 {
		c.Scan.Lookback = 20
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = 1
	}
	if c.Scan.Engine == "" {
		c.Scan.Engine = "native"
	}
	c.Indicators = c.Indicators.WithDefaults()
	c.Breaker = c.Breaker.WithDefaults()
	if c.Schedule.ScanCron == "" {
		// 16:30 on weekdays, after the US close.
		c.Schedule.ScanCron = "0 30 16 * * 1-5"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/scan_history.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	case "alpaca":
		if c.DataSource.AlpacaKey == "" || c.DataSource.AlpacaSecret == "" {
			return fmt.Errorf("data_source.alpaca_key and alpaca_secret are required for the alpaca provider")
		}
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}
	switch c.Cache.Backend {
	case "sqlite", "memory":
	case "postgres":
		if c.Cache.PostgresURL == "" {
			return fmt.Errorf("cache.postgres_url is required for the postgres backend")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Scan.MinRows < 1 || c.Scan.Lookback < 1 || c.Scan.Workers < 1 {
		return fmt.Errorf("scan.min_rows, scan.lookback and scan.workers must be positive")
	}
	if _, err := calculator.NewEngine(c.Scan.Engine, c.Indicators); err != nil {
		return fmt.Errorf("scan.engine: %w", err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if _, err := strategy.ParseMode(c.Schedule.Mode); err != nil {
		return fmt.Errorf("schedule.mode: %w", err)
	}
	return nil
}

// ValidateServe checks the extra fields the serve command needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
