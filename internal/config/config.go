package config

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env            string
	Port           string
	DatabaseURL    string
	RedisURL       string // empty disables the price cache and request stats
	LogLevel       string
	LogFormat      string // "console" for human-readable output, JSON otherwise
	AllowedOrigin  string // dashboard origin suffix allowed by CORS
	HealthAdminKey string

	QuoteBaseURL     string
	QuoteTimeout     time.Duration
	QuoteRateLimit   int // requests per second
	QuoteBatchSize   int // tickers per quote request
	FetchWorkers     int // bound on parallel remote fetches
	FetchMaxRetries  int // retries on rate-limit responses
	PriceCacheTTL    time.Duration
	FXPair           string
	HomeMarketSuffix string

	MarketCloseHour  int // hour (local) after which a history point is final
	Timezone         string
	DefaultPortfolio string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return &Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		RedisURL:         strings.TrimSpace(v.GetString("REDIS_URL")),
		LogLevel:         strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:        strings.ToLower(v.GetString("LOG_FORMAT")),
		AllowedOrigin:    v.GetString("ALLOWED_ORIGIN_SUFFIX"),
		HealthAdminKey:   v.GetString("HEALTH_ADMIN_KEY"),
		QuoteBaseURL:     strings.TrimRight(v.GetString("QUOTE_BASE_URL"), "/"),
		QuoteTimeout:     v.GetDuration("QUOTE_TIMEOUT"),
		QuoteRateLimit:   positive(v.GetInt("QUOTE_RATE_LIMIT"), 5),
		QuoteBatchSize:   positive(v.GetInt("QUOTE_BATCH_SIZE"), 20),
		FetchWorkers:     positive(v.GetInt("FETCH_WORKERS"), 4),
		FetchMaxRetries:  v.GetInt("FETCH_MAX_RETRIES"),
		PriceCacheTTL:    v.GetDuration("PRICE_CACHE_TTL"),
		FXPair:           v.GetString("FX_PAIR"),
		HomeMarketSuffix: v.GetString("HOME_MARKET_SUFFIX"),
		MarketCloseHour:  v.GetInt("MARKET_CLOSE_HOUR"),
		Timezone:         v.GetString("TIMEZONE"),
		DefaultPortfolio: v.GetString("DEFAULT_PORTFOLIO"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "file:assets.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("QUOTE_BASE_URL", "https://query1.finance.yahoo.com")
	v.SetDefault("QUOTE_TIMEOUT", "10s")
	v.SetDefault("QUOTE_RATE_LIMIT", 5)
	v.SetDefault("QUOTE_BATCH_SIZE", 20)
	v.SetDefault("FETCH_WORKERS", 4)
	v.SetDefault("FETCH_MAX_RETRIES", 3)
	v.SetDefault("PRICE_CACHE_TTL", "5m")
	v.SetDefault("FX_PAIR", "USDKRW=X")
	v.SetDefault("HOME_MARKET_SUFFIX", ".KS")
	v.SetDefault("MARKET_CLOSE_HOUR", 16)
	v.SetDefault("TIMEZONE", "Asia/Seoul")
	v.SetDefault("DEFAULT_PORTFOLIO", "General")
}

// Location resolves Timezone, falling back to UTC for unknown zone names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func positive(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
