package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("storage: key not found")
	ErrEmptyKey      = errors.New("storage: empty key")
	ErrRedisNotReady = errors.New("storage: redis did not become ready")
	ErrInvalidURL    = errors.New("storage: invalid redis connection URL")
)

// Storage is a string key-value tier.
type Storage interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by tiers holding external resources.
type Closer interface {
	Close() error
}

// Close closes s if it holds resources.
func Close(s Storage) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
