package session

import "time"

// Config holds session configuration.
type Config struct {
	// ValidateTimeout bounds the token check done by Initialize.
	ValidateTimeout time.Duration `env:"VALIDATE_TIMEOUT" envDefault:"5s"`

	// TokenKey is the durable storage key of a remembered token.
	TokenKey string `env:"TOKEN_KEY" envDefault:"access_token"`

	// SessionTokenKey is the ephemeral storage key of a session-only token.
	SessionTokenKey string `env:"SESSION_TOKEN_KEY" envDefault:"access_token_session"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ValidateTimeout: 5 * time.Second,
		TokenKey:        "access_token",
		SessionTokenKey: "access_token_session",
	}
}
