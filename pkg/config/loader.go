package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// Option customizes Load.
type Option func(*options)

type options struct {
	prefix   string
	envFiles []string
}

// WithPrefix prepends prefix to every env tag, e.g. "STOCKSYNC_".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvFiles loads the given .env files instead of the default one.
// Empty names are skipped.
func WithEnvFiles(files ...string) Option {
	return func(o *options) {
		for _, f := range files {
			if f != "" {
				o.envFiles = append(o.envFiles, f)
			}
		}
	}
}

// Load reads .env files into the process environment and parses it into v.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.envFiles) > 0 {
		if err := godotenv.Load(o.envFiles...); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	} else if _, err := os.Stat(defaultEnvFile); err == nil {
		if err := godotenv.Load(defaultEnvFile); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("config: failed to load required configuration: %v", err))
	}
}
