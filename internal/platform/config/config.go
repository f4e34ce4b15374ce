// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/platform/db"
	"price_history/internal/platform/externalapi/twelvedata"
	"price_history/internal/platform/redis"
)

// Config is the complete runtime configuration of the history command.
type Config struct {
	BulkPath    string `envconfig:"BULK_PATH"`
	LocalDir    string `envconfig:"LOCAL_DIR"`
	CatalogPath string `envconfig:"CATALOG_PATH"`
	OutputPath  string `envconfig:"OUTPUT_PATH" default:"prices.csv" validate:"required"`
	Workers     int    `envconfig:"WORKERS" default:"4" validate:"min=1,max=64"`
	EpochStart  string `envconfig:"EPOCH_START" default:"1990-01-01" validate:"datetime=2006-01-02"`

	DB         DBConfig         `envconfig:"DB"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	TwelveData TwelveDataConfig `envconfig:"TWELVE_DATA"`

	CacheTTL          time.Duration `envconfig:"CACHE_TTL" validate:"min=0"`
	LiveRatePerMinute int           `envconfig:"LIVE_RATE_PER_MINUTE" default:"8" validate:"min=0"`
	LiveMaxRetries    int           `envconfig:"LIVE_MAX_RETRIES" default:"3" validate:"min=0,max=10"`
	LiveTimeout       time.Duration `envconfig:"LIVE_TIMEOUT" default:"2m" validate:"min=0"`

	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`

	Log LogConfig `envconfig:"LOG"`
}

// Nested settings carry no envconfig tag on their fields: a tagged field would fall back to
// the bare name (PATH, USER, HOST, LEVEL) when the prefixed variable is unset.

// DBConfig holds the universe database settings (DB_*).
type DBConfig struct {
	Driver         string        `default:"sqlite" validate:"oneof=sqlite postgres"`
	Path           string        `default:"universe.db"`
	User           string        `validate:"required_if=Driver postgres"`
	Password       string
	Name           string        `validate:"required_if=Driver postgres"`
	Host           string        `default:"localhost"`
	Port           string        `default:"5432"`
	SSLMode        string        `default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	ConnectTimeout time.Duration `split_words:"true" default:"60s"`
	Migrate        bool          `default:"true"`
}

// RedisConfig holds the live-response cache settings (REDIS_*). An empty host disables caching.
type RedisConfig struct {
	Host     string
	Port     string `default:"6379"`
	Password string
	DB       int `default:"0" validate:"min=0"`
}

// TwelveDataConfig holds the live API settings (TWELVE_DATA_*).
type TwelveDataConfig struct {
	APIKey  string        `split_words:"true"`
	BaseURL string        `split_words:"true" default:"https://api.twelvedata.com" validate:"url"`
	Timeout time.Duration `default:"10s" validate:"gt=0"`
}

// LogConfig holds logging settings (LOG_*).
type LogConfig struct {
	Level  string `default:"info" validate:"oneof=debug info warn error"`
	Format string `default:"text" validate:"oneof=text json"`
}

// Load reads .env (when present) and the process environment, then validates the result.
// Variables already set in the environment take precedence over .env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Epoch returns EPOCH_START as a calendar day.
func (c *Config) Epoch() time.Time {
	t, err := entity.ParseDay(c.EpochStart)
	if err != nil {
		// validated in Load
		return time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// LiveEnabled reports whether a Twelve Data key is configured.
func (c *Config) LiveEnabled() bool {
	return c.TwelveData.APIKey != ""
}

// DBConfig converts the DB_* settings for db.Open.
func (c *Config) DBConfig() db.Config {
	return db.Config{
		Driver:         c.DB.Driver,
		Path:           c.DB.Path,
		User:           c.DB.User,
		Password:       c.DB.Password,
		Name:           c.DB.Name,
		Host:           c.DB.Host,
		Port:           c.DB.Port,
		SSLMode:        c.DB.SSLMode,
		ConnectTimeout: c.DB.ConnectTimeout,
		Migrate:        c.DB.Migrate,
	}
}

// RedisConfig converts the REDIS_* settings for redis.NewRedisClient.
func (c *Config) RedisConfig() redis.Config {
	return redis.Config{
		Host:     c.Redis.Host,
		Port:     c.Redis.Port,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// TwelveDataConfig converts the live API settings for twelvedata.NewTwelveDataMarket.
func (c *Config) TwelveDataConfig() twelvedata.Config {
	return twelvedata.Config{
		APIKey:     c.TwelveData.APIKey,
		BaseURL:    c.TwelveData.BaseURL,
		Timeout:    c.TwelveData.Timeout,
		MaxRetries: c.LiveMaxRetries,
	}
}
