package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the backtester.
// Load is the only place that reads the environment.
type Config struct {
	Env string // development, staging, production, test

	// Database (result archive, postgres driver)
	Database DatabaseConfig

	// Redis (optional series cache)
	Redis RedisConfig

	// Market data sources
	Market MarketConfig

	// Backtest defaults
	Backtest BacktestConfig

	// Result archive
	Archive ArchiveConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// MarketConfig holds the endpoints of the historical data sources.
type MarketConfig struct {
	CoinGeckoBaseURL  string
	CoinGeckoWebURL   string
	SubgraphURL       string
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
	CacheTTL          time.Duration
	AssetID           string
	PoolAddress       string
}

// BacktestConfig holds defaults applied when a run does not override them.
type BacktestConfig struct {
	InitialCapital float64
	GasCost        float64
	FeeRate        float64
	Seed           int64
	Workers        int
}

// ArchiveConfig selects where finished runs are stored.
type ArchiveConfig struct {
	Driver     string // none, sqlite, postgres
	SQLitePath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Market: MarketConfig{
			CoinGeckoBaseURL:  getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			CoinGeckoWebURL:   getEnv("COINGECKO_WEB_URL", "https://www.coingecko.com/en/coins"),
			SubgraphURL:       getEnv("SUBGRAPH_URL", "https://api.goldsky.com/api/public/project_clu1fg6ajhsho01x7ajld3f5a/subgraphs/dragonswap-v3-prod/1.0.5/gn"),
			RequestsPerSecond: getEnvAsFloat("MARKET_REQUESTS_PER_SECOND", 0.5),
			HTTPTimeout:       getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			CacheTTL:          getEnvAsDuration("MARKET_CACHE_TTL", "1h"),
			AssetID:           getEnv("MARKET_ASSET_ID", "sei-network"),
			PoolAddress:       getEnv("MARKET_POOL_ADDRESS", "0x1ec7d0E455c0Ca2Ed4F2c27bc8F7E3542eeD6565"),
		},

		Backtest: BacktestConfig{
			InitialCapital: getEnvAsFloat("BACKTEST_INITIAL_CAPITAL", 10000),
			GasCost:        getEnvAsFloat("BACKTEST_GAS_COST", 0.50),
			FeeRate:        getEnvAsFloat("BACKTEST_FEE_RATE", 0.003),
			Seed:           int64(getEnvAsInt("BACKTEST_SEED", 42)),
			Workers:        getEnvAsInt("BACKTEST_WORKERS", 4),
		},

		Archive: ArchiveConfig{
			Driver:     getEnv("ARCHIVE_DRIVER", "none"),
			SQLitePath: getEnv("SQLITE_PATH", "backtests.db"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks the values that would otherwise fail deep inside a run
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	switch c.Archive.Driver {
	case "none", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when ARCHIVE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("ARCHIVE_DRIVER must be one of: none, sqlite, postgres")
	}

	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("BACKTEST_INITIAL_CAPITAL must be positive")
	}
	if c.Backtest.GasCost < 0 || c.Backtest.FeeRate < 0 {
		return fmt.Errorf("BACKTEST_GAS_COST and BACKTEST_FEE_RATE must not be negative")
	}
	if c.Backtest.Workers < 1 {
		return fmt.Errorf("BACKTEST_WORKERS must be at least 1")
	}
	if c.Market.RequestsPerSecond <= 0 {
		return fmt.Errorf("MARKET_REQUESTS_PER_SECOND must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

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
