// Package config reads the service settings from the environment and opens
// the connections they describe.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"portfolio"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBTimeZone string `env:"DB_TIMEZONE" envDefault:"UTC"`
	DBLogLevel string `env:"DB_LOG_LEVEL" envDefault:"warn"`

	// RedisAddr may be empty to run without the shared cache.
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret          string `env:"JWT_SECRET,required,notEmpty"`
	AlphaVantageAPIKey string `env:"ALPHA_VANTAGE_API_KEY"`
	AlphaVantageURL    string `env:"ALPHA_VANTAGE_URL" envDefault:"https://www.alphavantage.co/query"`

	Port       string `env:"PORT" envDefault:"8080"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	// TimeZone decides where calendar days start for daily summaries.
	TimeZone string `env:"TZ" envDefault:"UTC"`

	PriceCacheTTL   time.Duration `env:"PRICE_CACHE_TTL" envDefault:"5m"`
	HistoryCacheTTL time.Duration `env:"HISTORY_CACHE_TTL" envDefault:"24h"`

	AlertInterval   time.Duration `env:"ALERT_INTERVAL" envDefault:"24h"`
	AlertWorkers    int           `env:"ALERT_WORKERS" envDefault:"4"`
	AlertTimeout    time.Duration `env:"ALERT_TIMEOUT" envDefault:"30s"`
	AlertMinCloses  int           `env:"ALERT_MIN_CLOSES" envDefault:"10"`
	AlertRunOnStart bool          `env:"ALERT_RUN_ON_START" envDefault:"false"`

	// KafkaBrokers empty disables ledger events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ledger-events"`
}

// Load reads .env when there is one, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN is the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		c.DBHost,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBPort,
		c.DBTimeZone,
	)
}

// Location resolves TZ.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

var gormLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// OpenDB connects to PostgreSQL.
func OpenDB(cfg Config) (*gorm.DB, error) {
	level, ok := gormLevels[strings.ToLower(cfg.DBLogLevel)]
	if !ok {
		level = logger.Warn
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// OpenRedis connects to Redis. It returns nil, nil when no address is
// configured.
func OpenRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// NewLogger builds a production zap logger at level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
