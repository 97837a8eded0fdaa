package stocksync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/stocksync/pkg/config"
	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/items"
	"github.com/dmitrymomot/stocksync/pkg/session"
	"github.com/dmitrymomot/stocksync/pkg/storage"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "STOCKSYNC_"

// Durable storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

var ErrUnknownStorageDriver = errors.New("stocksync: unknown storage driver")

// Config holds client configuration.
type Config struct {
	APIURL         string        `env:"API_URL" envDefault:"http://localhost:8000/api"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	UploadTimeout  time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"120s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`

	Session session.Config

	// StorageDriver selects the durable tier: sqlite, redis or memory.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	// SQLitePath defaults to stocksync/state.db in the user config directory.
	SQLitePath string `env:"SQLITE_PATH"`
	Redis      storage.RedisConfig
	KeyPrefix  string `env:"KEY_PREFIX" envDefault:"stocksync:"`

	Env       string `env:"ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// DefaultConfig returns the configuration used when no variable is set.
func DefaultConfig() Config {
	return Config{
		APIURL:         "http://localhost:8000/api",
		RequestTimeout: gateway.DefaultTimeout,
		UploadTimeout:  items.DefaultUploadTimeout,
		PollInterval:   items.DefaultPollInterval,
		Session:        session.DefaultConfig(),
		StorageDriver:  DriverSQLite,
		Redis: storage.RedisConfig{
			ConnectionURL:  "redis://localhost:6379/0",
			RetryAttempts:  3,
			RetryInterval:  2 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		KeyPrefix: "stocksync:",
		Env:       "development",
	}
}

// LoadConfig reads STOCKSYNC_* variables. envFiles are loaded first when
// given; otherwise a .env file in the working directory is used if present.
func LoadConfig(envFiles ...string) (Config, error) {
	var cfg Config
	if err := config.Load(&cfg, config.WithPrefix(EnvPrefix), config.WithEnvFiles(envFiles...)); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, c.StorageDriver)
	}
	return nil
}

// sqlitePath resolves the database location.
func (c Config) sqlitePath() (string, error) {
	if c.SQLitePath != "" {
		return c.SQLitePath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("stocksync: resolve sqlite path: %w", err)
	}
	return filepath.Join(dir, "stocksync", "state.db"), nil
}
