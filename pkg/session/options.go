package session

import (
	"log/slog"
	"time"
)

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the whole configuration. Empty fields keep defaults.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		WithValidateTimeout(cfg.ValidateTimeout)(m)
		WithKeys(cfg.TokenKey, cfg.SessionTokenKey)(m)
	}
}

// WithValidateTimeout bounds the token check done by Initialize.
func WithValidateTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.config.ValidateTimeout = d
		}
	}
}

// WithKeys sets the storage keys of the durable and ephemeral tokens.
func WithKeys(tokenKey, sessionTokenKey string) Option {
	return func(m *Manager) {
		if tokenKey != "" {
			m.config.TokenKey = tokenKey
		}
		if sessionTokenKey != "" {
			m.config.SessionTokenKey = sessionTokenKey
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
