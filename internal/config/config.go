// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"safeguard-bot/internal/domain"
)

// Aggregate backends.
const (
	AggregatePostgres   = "postgres"
	AggregateClickHouse = "clickhouse"
)

// Config holds all process configuration.
type Config struct {
	PostgresDSN      string
	ClickHouseDSN    string
	AggregateBackend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SolanaRPCEndpoint string
	SolanaWSEndpoint  string
	EVMEndpoints      map[domain.Chain]string // WebSocket endpoints by chain

	TelegramBotToken    string
	TelegramAPIEndpoint string

	KafkaBrokers []string
	KafkaTopic   string

	CoinGeckoURL   string
	DexScreenerURL string

	SolanaPollInterval   time.Duration
	SolanaSignatureLimit int
	TokenRefreshInterval time.Duration
	PriceCacheTTL        time.Duration
	BlacklistCacheTTL    time.Duration
	HTTPTimeout          time.Duration

	AlertSells               bool
	AlertAllWhenUnconfigured bool

	MetricsAddr string
	LogLevel    string
	LogFile     string
	LogConsole  bool
}

// Load reads envFile (if it exists) into the environment and builds a
// Config from environment variables and defaults. Variables already set in
// the environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		PostgresDSN:      v.GetString("POSTGRES_DSN"),
		ClickHouseDSN:    v.GetString("CLICKHOUSE_DSN"),
		AggregateBackend: strings.ToLower(v.GetString("AGGREGATE_BACKEND")),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		SolanaRPCEndpoint: v.GetString("SOLANA_RPC_ENDPOINT"),
		SolanaWSEndpoint:  v.GetString("SOLANA_WS_ENDPOINT"),
		EVMEndpoints:      make(map[domain.Chain]string),

		TelegramBotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramAPIEndpoint: v.GetString("TELEGRAM_API_ENDPOINT"),

		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		CoinGeckoURL:   v.GetString("COINGECKO_URL"),
		DexScreenerURL: v.GetString("DEXSCREENER_URL"),

		SolanaPollInterval:   v.GetDuration("SOLANA_POLL_INTERVAL"),
		SolanaSignatureLimit: v.GetInt("SOLANA_SIGNATURE_LIMIT"),
		TokenRefreshInterval: v.GetDuration("TOKEN_REFRESH_INTERVAL"),
		PriceCacheTTL:        v.GetDuration("PRICE_CACHE_TTL"),
		BlacklistCacheTTL:    v.GetDuration("BLACKLIST_CACHE_TTL"),
		HTTPTimeout:          v.GetDuration("HTTP_TIMEOUT"),

		AlertSells:               v.GetBool("ALERT_SELLS"),
		AlertAllWhenUnconfigured: v.GetBool("ALERT_ALL_WHEN_UNCONFIGURED"),

		MetricsAddr: v.GetString("METRICS_ADDR"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFile:     v.GetString("LOG_FILE"),
		LogConsole:  v.GetBool("LOG_CONSOLE"),
	}

	for _, c := range domain.EVMChains {
		if ep := v.GetString(evmKey(c)); ep != "" {
			cfg.EVMEndpoints[c] = ep
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("AGGREGATE_BACKEND", AggregatePostgres)
	v.SetDefault("KAFKA_TOPIC", "safeguard.transactions")
	v.SetDefault("SOLANA_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("SOLANA_SIGNATURE_LIMIT", 25)
	v.SetDefault("TOKEN_REFRESH_INTERVAL", 60*time.Second)
	v.SetDefault("PRICE_CACHE_TTL", 60*time.Second)
	v.SetDefault("BLACKLIST_CACHE_TTL", 5*time.Minute)
	v.SetDefault("HTTP_TIMEOUT", 5*time.Second)
	v.SetDefault("ALERT_SELLS", false)
	v.SetDefault("ALERT_ALL_WHEN_UNCONFIGURED", true)
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
}

func evmKey(c domain.Chain) string {
	return "EVM_" + strings.ToUpper(string(c)) + "_WS"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.AggregateBackend {
	case AggregatePostgres:
	case AggregateClickHouse:
		if c.ClickHouseDSN == "" {
			return errors.New("CLICKHOUSE_DSN is required when AGGREGATE_BACKEND=clickhouse")
		}
	default:
		return fmt.Errorf("invalid AGGREGATE_BACKEND %q (must be postgres or clickhouse)", c.AggregateBackend)
	}

	durations := map[string]time.Duration{
		"SOLANA_POLL_INTERVAL":   c.SolanaPollInterval,
		"TOKEN_REFRESH_INTERVAL": c.TokenRefreshInterval,
		"PRICE_CACHE_TTL":        c.PriceCacheTTL,
		"BLACKLIST_CACHE_TTL":    c.BlacklistCacheTTL,
		"HTTP_TIMEOUT":           c.HTTPTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.SolanaSignatureLimit <= 0 || c.SolanaSignatureLimit > 1000 {
		return errors.New("SOLANA_SIGNATURE_LIMIT must be between 1 and 1000")
	}
	return nil
}

// ValidateRun checks the settings the run command cannot start without.
// In-memory mode needs no database.
func (c *Config) ValidateRun(useMemory bool) error {
	if !useMemory && c.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (use --use-memory for in-memory storage)")
	}
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.SolanaRPCEndpoint == "" && len(c.EVMEndpoints) == 0 {
		return errors.New("at least one of SOLANA_RPC_ENDPOINT or EVM_<CHAIN>_WS is required")
	}
	return nil
}
