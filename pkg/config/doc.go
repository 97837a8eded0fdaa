// Package config loads typed configuration from the process environment.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tag parsing):
//
//	type Config struct {
//	    APIURL  string        `env:"API_URL" envDefault:"http://localhost:8000/api"`
//	    Timeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg, config.WithPrefix("STOCKSYNC_")); err != nil {
//	    log.Fatal(err)
//	}
//
// A .env file in the working directory is read when present. Files passed
// through WithEnvFiles must exist. Variables already set in the environment
// always win over file values.
package config
