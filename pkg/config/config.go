package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and only here; components
// receive the values they need at construction.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data
	Market MarketConfig

	// Model and simulation parameters
	Trading TradingConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the bar cache.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketConfig holds the external market data endpoints.
type MarketConfig struct {
	TickerListURL string
	ChartBaseURL  string
	CacheExpiry   time.Duration // how long downloaded bars stay fresh
	RatePerSec    float64       // provider request rate limit
	MaxRetries    int
}

// TradingConfig carries the numeric constants of the prediction and
// simulation pipeline. Defaults match the documented contract; tests
// override per case instead of relying on process-wide globals.
type TradingConfig struct {
	StartEquity       float64 // starting portfolio equity
	CircuitBreakerPct float64 // |daily return| clamp, 0.25 = ±25%
	VolatilityWindow  int     // volume SMA window
	PctWindow         int     // price SMA / label window
	RSIPeriod         int
	ATRPeriod         int
	MinTrainRows      int // minimum feature rows before training
	TopKMin           int
	TopKMax           int
	VotingMin         int
	VotingMax         int
	LookbackDays      int // calendar days of history for optimization
	Workers           int // per-instrument training concurrency
	Seed              int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Market: MarketConfig{
			TickerListURL: getEnv("TICKER_LIST_URL", "https://clientn.com/stocks/Shariaa.html"),
			ChartBaseURL:  getEnv("CHART_BASE_URL", "https://query1.finance.yahoo.com"),
			CacheExpiry:   getEnvAsDuration("BAR_CACHE_EXPIRY", "24h"),
			RatePerSec:    getEnvAsFloat("MARKET_RATE_PER_SEC", 5),
			MaxRetries:    getEnvAsInt("MARKET_MAX_RETRIES", 3),
		},

		Trading: TradingConfig{
			StartEquity:       getEnvAsFloat("START_EQUITY", 100.0),
			CircuitBreakerPct: getEnvAsFloat("CIRCUIT_BREAKER_PCT", 0.25),
			VolatilityWindow:  getEnvAsInt("VOL_WINDOW", 20),
			PctWindow:         getEnvAsInt("PCT_WINDOW", 20),
			RSIPeriod:         getEnvAsInt("RSI_PERIOD", 9),
			ATRPeriod:         getEnvAsInt("ATR_PERIOD", 5),
			MinTrainRows:      getEnvAsInt("MIN_TRAIN_ROWS", 60),
			TopKMin:           getEnvAsInt("TOP_K_MIN", 1),
			TopKMax:           getEnvAsInt("TOP_K_MAX", 10),
			VotingMin:         getEnvAsInt("VOTING_MIN", 1),
			VotingMax:         getEnvAsInt("VOTING_MAX", 10),
			LookbackDays:      getEnvAsInt("LOOKBACK_DAYS", 365),
			Workers:           getEnvAsInt("TRAIN_WORKERS", 4),
			Seed:              int64(getEnvAsInt("MODEL_SEED", 42)),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks configuration consistency.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	t := c.Trading
	if t.StartEquity <= 0 {
		return fmt.Errorf("START_EQUITY must be positive")
	}
	if t.CircuitBreakerPct <= 0 {
		return fmt.Errorf("CIRCUIT_BREAKER_PCT must be positive")
	}
	if t.TopKMin < 1 || t.TopKMax < t.TopKMin {
		return fmt.Errorf("top_k range [%d..%d] is invalid", t.TopKMin, t.TopKMax)
	}
	if t.VotingMin < 1 || t.VotingMax < t.VotingMin {
		return fmt.Errorf("voting range [%d..%d] is invalid", t.VotingMin, t.VotingMax)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
