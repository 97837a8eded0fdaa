package stocksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/stocksync/pkg/async"
	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/items"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/session"
	"github.com/dmitrymomot/stocksync/pkg/storage"
	"github.com/dmitrymomot/stocksync/pkg/tables"
)

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	durable    storage.Storage
	ephemeral  storage.Storage
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHTTPClient sets the HTTP client used by the gateway.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithDurableStorage replaces the durable tier selected by the configuration.
// The client does not close storage it did not open.
func WithDurableStorage(s storage.Storage) Option {
	return func(o *options) {
		o.durable = s
	}
}

// WithEphemeralStorage replaces the in-memory ephemeral tier.
func WithEphemeralStorage(s storage.Storage) Option {
	return func(o *options) {
		o.ephemeral = s
	}
}

// Client bundles the synchronization components over one gateway.
type Client struct {
	Logger  *slog.Logger
	Gateway *gateway.Client
	Session *session.Manager
	Items   *items.Cache
	Tables  *tables.Cache

	durable   storage.Storage
	ephemeral storage.Storage
	ownsStore bool
}

// New builds a client from cfg. The durable tier is opened according to
// cfg.StorageDriver unless WithDurableStorage is given.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = newLogger(cfg)
	}
	if o.ephemeral == nil {
		o.ephemeral = storage.NewMemory()
	}

	c := &Client{Logger: o.logger, ephemeral: o.ephemeral}

	if o.durable != nil {
		c.durable = o.durable
	} else {
		s, err := openDurable(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.durable, c.ownsStore = s, true
	}

	gwOpts := []gateway.Option{
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(o.logger.With(logger.Component("gateway"))),
	}
	if o.httpClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(o.httpClient))
	}
	gw, err := gateway.New(cfg.APIURL, gwOpts...)
	if err != nil {
		_ = c.closeStorage()
		return nil, err
	}
	c.Gateway = gw

	c.Session = session.New(gw, c.durable, c.ephemeral,
		session.WithConfig(cfg.Session),
		session.WithLogger(o.logger.With(logger.Component("session"))),
	)
	c.Items = items.New(gw,
		items.WithPollInterval(cfg.PollInterval),
		items.WithUploadTimeout(cfg.UploadTimeout),
		items.WithLogger(o.logger.With(logger.Component("items"))),
	)
	c.Tables = tables.New(gw, c.durable,
		tables.WithLogger(o.logger.With(logger.Component("tables"))),
	)

	return c, nil
}

// Bootstrap initializes the session. When authenticated, it restores the
// active table, loads tables and items concurrently and scopes the item
// filters to the active table. Load errors are joined.
func (c *Client) Bootstrap(ctx context.Context) (session.State, error) {
	state := c.Session.Initialize(ctx)
	if state != session.StateAuthenticated {
		return state, nil
	}
	if err := c.Tables.Restore(ctx); err != nil {
		c.Logger.WarnContext(ctx, "failed to restore active table", logger.Error(err))
	}
	restored := c.Tables.ActiveID()
	c.Items.SetFilters(func(f *items.Filters) { f.TableID = restored })

	tablesF := async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Tables.FetchAll(ctx)
	})
	itemsF := async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Items.Fetch(ctx)
	})
	_, err := async.WaitAll(tablesF, itemsF)

	if active := c.Tables.ActiveID(); active != c.Items.Filters().TableID {
		c.Items.SetFilters(func(f *items.Filters) { f.TableID = active })
		// The stored selection was repaired against the fresh table list.
		if ferr := c.Items.Fetch(ctx); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}

	return c.Session.State(), err
}

// OnUnauthorized adds a listener run after a rejected request cleared the
// session.
func (c *Client) OnUnauthorized(fn func()) {
	c.Session.OnInvalidated(fn)
}

// MediaURL resolves an item image path against the API.
func (c *Client) MediaURL(path string) string {
	return items.MediaURL(c.Gateway.BaseURL(), path)
}

// Close stops polling and releases storage opened by New.
func (c *Client) Close() error {
	c.Items.StopPolling()
	return c.closeStorage()
}

func (c *Client) closeStorage() error {
	if !c.ownsStore {
		return nil
	}
	return storage.Close(c.durable)
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "stocksync"),
		logger.WithContextExtractors(logger.OperationExtractor),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	return logger.New(opts...)
}

func openDurable(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case DriverMemory:
		return storage.NewMemory(), nil
	case DriverRedis:
		rdb, err := storage.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return storage.NewRedis(rdb, cfg.KeyPrefix), nil
	case DriverSQLite:
		path, err := cfg.sqlitePath()
		if err != nil {
			return nil, err
		}
		return storage.OpenSQLite(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStorageDriver, cfg.StorageDriver)
}
