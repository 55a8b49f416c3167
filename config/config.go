package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sleepydogo/peceto-trading-bot/internal/indicator"
	"github.com/sleepydogo/peceto-trading-bot/internal/marketdata"
	"github.com/sleepydogo/peceto-trading-bot/internal/notification"
	redisstore "github.com/sleepydogo/peceto-trading-bot/internal/store/redis"
	"github.com/sleepydogo/peceto-trading-bot/internal/strategy"
)

const (
	envPrefix  = "PECETO"
	envFileEnv = "PECETO_ENV_FILE"
	fileEnv    = "PECETO_CONFIG"
)

// Telegram holds the bot credentials. An empty token disables Telegram.
type Telegram struct {
	Token    string `mapstructure:"token"`
	ChatID   int64  `mapstructure:"chat_id"`
	Endpoint string `mapstructure:"endpoint"`
}

// Dispatch configures the alert queue.
type Dispatch struct {
	QueueSize int                      `mapstructure:"queue_size"`
	Retry     notification.RetryPolicy `mapstructure:"retry"`
}

// Config holds all application configuration.
type Config struct {
	Market     marketdata.Options `mapstructure:"market"`
	Symbol     string             `mapstructure:"symbol"`
	Interval   string             `mapstructure:"interval"`
	Limit      int                `mapstructure:"limit"`
	Indicators indicator.Config   `mapstructure:"indicators"`

	Cooldown time.Duration `mapstructure:"cooldown"`
	TieBreak string        `mapstructure:"tie_break"`
	Quote    string        `mapstructure:"quote"`

	Telegram   Telegram `mapstructure:"telegram"`
	WebhookURL string   `mapstructure:"webhook_url"`
	PhotoPath  string   `mapstructure:"photo_path"`
	Dispatch   Dispatch `mapstructure:"dispatch"`

	// Redis is disabled when Addr is empty; the journal when SQLitePath is.
	Redis      redisstore.Config `mapstructure:"redis"`
	SQLitePath string            `mapstructure:"sqlite_path"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	ChartAddr   string `mapstructure:"chart_addr"`
	ExportDir   string `mapstructure:"export_dir"`
	LogLevel    string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	ind := indicator.DefaultConfig()
	retry := notification.DefaultRetryPolicy()

	defaults := map[string]interface{}{
		"market.exchange":   marketdata.ExchangeBinance,
		"market.base_url":   "",
		"market.api_key":    "",
		"market.api_secret": "",
		"market.testnet":    false,

		"symbol":   "BTCUSDT",
		"interval": "15m",
		"limit":    marketdata.DefaultLimit,

		"indicators.ema_short":      ind.EMAShortPeriod,
		"indicators.ema_medium":     ind.EMAMediumPeriod,
		"indicators.ema_long":       ind.EMALongPeriod,
		"indicators.rsi_period":     ind.RSIPeriod,
		"indicators.rsi_oversold":   ind.RSIOversold,
		"indicators.rsi_overbought": ind.RSIOverbought,

		"cooldown":  strategy.DefaultCooldown,
		"tie_break": string(strategy.TieBreakBuy),
		"quote":     "USDT",

		"telegram.token":    "",
		"telegram.chat_id":  0,
		"telegram.endpoint": "",
		"webhook_url":       "",
		"photo_path":        "",

		"dispatch.queue_size":           64,
		"dispatch.retry.max_retries":    retry.MaxRetries,
		"dispatch.retry.initial_delay":  retry.InitialDelay,
		"dispatch.retry.max_delay":      retry.MaxDelay,
		"dispatch.retry.backoff_factor": retry.BackoffFactor,
		"dispatch.retry.jitter":         retry.Jitter,

		"redis.addr":       "",
		"redis.password":   "",
		"redis.db":         0,
		"redis.prefix":     "peceto",
		"redis.latest_ttl": 30 * time.Minute,
		"sqlite_path":      "data/signals.db",

		"metrics_addr": ":9090",
		"chart_addr":   ":8050",
		"export_dir":   ".",
		"log_level":    "info",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load reads configuration from an optional .env file, the environment
// (PECETO_ prefix, dots become underscores, e.g. PECETO_TELEGRAM_TOKEN) and
// an optional YAML file named by PECETO_CONFIG. Environment wins over the
// file, the file over defaults.
func Load() (*Config, error) {
	envFile := os.Getenv(envFileEnv)
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "config: load %s", envFile)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(fileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	cfg.Market.Exchange = strings.ToLower(strings.TrimSpace(cfg.Market.Exchange))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Market.Exchange {
	case marketdata.ExchangeBinance, marketdata.ExchangeBybit:
	default:
		return errors.Errorf("config: unknown exchange %q", c.Market.Exchange)
	}
	if c.Symbol == "" {
		return errors.New("config: symbol is required")
	}
	if !marketdata.ValidInterval(c.Market.Exchange, c.Interval) {
		return errors.Errorf("config: interval %q not supported by %s", c.Interval, c.Market.Exchange)
	}
	if c.Limit < 2 {
		return errors.Errorf("config: limit must be at least 2, got %d", c.Limit)
	}
	if err := c.Indicators.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}
	if c.Cooldown <= 0 {
		return errors.Errorf("config: cooldown must be positive, got %s", c.Cooldown)
	}
	if _, err := strategy.ParseTieBreak(c.TieBreak); err != nil {
		return errors.Wrap(err, "config")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("config: telegram chat_id is required when a token is set")
	}
	return nil
}
