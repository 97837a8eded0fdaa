package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/storage"
)

// Manager handles the session lifecycle. Safe for concurrent use.
type Manager struct {
	gw        *gateway.Client
	durable   storage.Storage
	ephemeral storage.Storage
	config    Config
	logger    *slog.Logger

	mu        sync.RWMutex
	token     string
	user      *User
	expiresAt time.Time
	state     State
	listeners []func()

	loading     atomic.Int32
	initOnce    sync.Once
	initialized atomic.Bool
	ready       chan struct{}
}

// New creates a manager and registers it as the gateway's unauthorized
// handler, replacing any handler registered before.
func New(gw *gateway.Client, durable, ephemeral storage.Storage, opts ...Option) *Manager {
	m := &Manager{
		gw:        gw,
		durable:   durable,
		ephemeral: ephemeral,
		config:    DefaultConfig(),
		logger:    slog.Default(),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	gw.Credentials().SetUnauthorizedHandler(m.invalidate)
	return m
}

// Initialize restores a persisted token, durable tier first, and validates it
// against the remote. Any failure leaves the session anonymous. Only the first
// call does work; later calls wait for it and report the current state.
func (m *Manager) Initialize(ctx context.Context) State {
	m.initOnce.Do(func() {
		defer func() {
			m.initialized.Store(true)
			close(m.ready)
		}()
		m.restore(ctx)
	})

	<-m.ready
	return m.State()
}

func (m *Manager) restore(ctx context.Context) {
	token := m.read(ctx, m.durable, m.config.TokenKey)
	if token == "" {
		token = m.read(ctx, m.ephemeral, m.config.SessionTokenKey)
	}
	if token == "" {
		return
	}

	m.mu.Lock()
	m.token = token
	m.state = StateValidating
	m.mu.Unlock()
	m.gw.Credentials().SetToken(token)

	var u User
	err := m.gw.Do(ctx, gateway.Request{
		Method:  http.MethodGet,
		Path:    "/auth/validate",
		Timeout: m.config.ValidateTimeout,
	}, &u)
	if err != nil {
		if !m.validating(token) {
			m.logger.DebugContext(ctx, "stale session validation ignored", logger.Error(err))
			return
		}
		m.logger.InfoContext(ctx, "stored session rejected", logger.Error(err))
		if err := m.ClearSession(ctx); err != nil {
			m.logger.WarnContext(ctx, "failed to clear rejected session", logger.Error(err))
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validatingLocked(token) {
		return
	}
	m.user = &u
	m.state = StateAuthenticated
	m.logger.DebugContext(ctx, "session restored", logger.UserID(u.ID))
}

// validating reports whether token is still the one being validated. A login
// or logout during validation makes the result irrelevant.
func (m *Manager) validating(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validatingLocked(token)
}

func (m *Manager) validatingLocked(token string) bool {
	return m.token == token && m.state == StateValidating
}

func (m *Manager) read(ctx context.Context, s storage.Storage, key string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.WarnContext(ctx, "failed to read stored token", slog.String("key", key), logger.Error(err))
		}
		return ""
	}
	return v
}

// Ready is closed once Initialize has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// WaitReady blocks until Initialize has finished or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Initialized reports whether Initialize has finished.
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

// Login authenticates with the remote. On success the token is saved to the
// durable tier when rememberMe is set, to the ephemeral tier otherwise, and
// removed from the other one. Nothing is committed on failure.
func (m *Manager) Login(ctx context.Context, creds Credentials, rememberMe bool) (*User, error) {
	m.loading.Add(1)
	defer m.loading.Add(-1)

	var resp tokenResponse
	if err := m.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/auth/login", Body: creds}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, ErrEmptyToken
	}

	if err := m.persist(ctx, resp.AccessToken, rememberMe); err != nil {
		return nil, err
	}

	var expiresAt time.Time
	if resp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	user := *resp.User

	m.mu.Lock()
	m.token = resp.AccessToken
	m.user = &user
	m.expiresAt = expiresAt
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.gw.Credentials().SetToken(resp.AccessToken)

	m.logger.InfoContext(ctx, "logged in", logger.UserID(user.ID), slog.Bool("remember", rememberMe))
	return &user, nil
}

func (m *Manager) persist(ctx context.Context, token string, rememberMe bool) error {
	keep, keepKey := m.ephemeral, m.config.SessionTokenKey
	drop, dropKey := m.durable, m.config.TokenKey
	if rememberMe {
		keep, keepKey, drop, dropKey = drop, dropKey, keep, keepKey
	}

	if err := keep.Set(ctx, keepKey, token); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := drop.Delete(ctx, dropKey); err != nil {
		_ = keep.Delete(ctx, keepKey)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// ClearSession drops the token and user from memory, both storage tiers and
// the gateway. It is idempotent. Storage errors are returned after the
// in-memory state has been cleared.
func (m *Manager) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.expiresAt = time.Time{}
	m.state = StateAnonymous
	m.mu.Unlock()
	m.gw.Credentials().SetToken("")

	err := errors.Join(
		m.durable.Delete(ctx, m.config.TokenKey),
		m.ephemeral.Delete(ctx, m.config.SessionTokenKey),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Logout ends the session locally.
func (m *Manager) Logout(ctx context.Context) error {
	return m.ClearSession(ctx)
}

// OnInvalidated adds a listener notified after the session was cleared
// because a request was rejected as unauthorized.
func (m *Manager) OnInvalidated(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) invalidate() {
	ctx := context.Background()
	if err := m.ClearSession(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to clear invalidated session", logger.Error(err))
	}
	m.logger.InfoContext(ctx, "session invalidated by remote")

	m.mu.RLock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Token returns the current bearer token.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the signed-in user, nil when anonymous.
func (m *Manager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// ExpiresAt returns when the token issued by the last login expires. It is
// zero for restored sessions and when the remote did not say.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated reports whether both a token and a user are present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.user != nil
}

// Loading reports whether a login is in flight.
func (m *Manager) Loading() bool {
	return m.loading.Load() > 0
}
