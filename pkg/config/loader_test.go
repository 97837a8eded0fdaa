package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stocksync/pkg/config"
)

type sample struct {
	URL     string        `env:"API_URL" envDefault:"http://localhost:8000/api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
	Verbose bool          `env:"VERBOSE"`
}

type required struct {
	Value string `env:"CFGTEST_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg sample
		require.NoError(t, config.Load(&cfg, config.WithPrefix("CFGTEST_DEFAULTS_")))
		assert.Equal(t, "http://localhost:8000/api", cfg.URL)
		assert.Equal(t, 15*time.Second, cfg.Timeout)
		assert.False(t, cfg.Verbose)
	})

	t.Run("prefixed environment", func(t *testing.T) {
		t.Setenv("CFGTEST_ENV_API_URL", "https://stock.example.com/api")
		t.Setenv("CFGTEST_ENV_TIMEOUT", "3s")
		t.Setenv("CFGTEST_ENV_VERBOSE", "true")

		var cfg sample
		require.NoError(t, config.Load(&cfg, config.WithPrefix("CFGTEST_ENV_")))
		assert.Equal(t, "https://stock.example.com/api", cfg.URL)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.True(t, cfg.Verbose)
	})

	t.Run("env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("CFGTEST_FILE_API_URL=https://file.example.com\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("CFGTEST_FILE_API_URL") })

		var cfg sample
		require.NoError(t, config.Load(&cfg, config.WithPrefix("CFGTEST_FILE_"), config.WithEnvFiles(path)))
		assert.Equal(t, "https://file.example.com", cfg.URL)
	})

	t.Run("missing explicit env file", func(t *testing.T) {
		var cfg sample
		err := config.Load(&cfg, config.WithEnvFiles(filepath.Join(t.TempDir(), "absent.env")))
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	})

	t.Run("required missing", func(t *testing.T) {
		var cfg required
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *sample
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	assert.Panics(t, func() {
		var cfg required
		config.MustLoad(&cfg)
	})
}
