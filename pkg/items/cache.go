package items

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/poller"
)

const (
	// DefaultPollInterval is the background refresh period.
	DefaultPollInterval = 5 * time.Second
	// DefaultUploadTimeout bounds image uploads.
	DefaultUploadTimeout = 120 * time.Second
)

// Transport is the subset of *gateway.Client the cache depends on.
type Transport interface {
	Do(ctx context.Context, req gateway.Request, out any) error
	Upload(ctx context.Context, path, field, filename string, r io.Reader, timeout time.Duration, out any) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithPollInterval sets the StartPolling period.
func WithPollInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithUploadTimeout sets the bound applied to UploadImage.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.uploadTimeout = d
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache is the local mirror of the remote item collection. It is safe for
// concurrent use; the lock is never held across a network call.
type Cache struct {
	transport     Transport
	logger        *slog.Logger
	pollInterval  time.Duration
	uploadTimeout time.Duration

	mu      sync.RWMutex
	items   []Item
	filters Filters

	loading atomic.Int32
	poller  *poller.Poller
}

// New creates an empty cache backed by transport.
func New(transport Transport, opts ...Option) *Cache {
	c := &Cache{
		transport:     transport,
		logger:        slog.Default(),
		pollInterval:  DefaultPollInterval,
		uploadTimeout: DefaultUploadTimeout,
		items:         []Item{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.poller = poller.New(c.pollInterval, c.Fetch,
		poller.WithLogger(c.logger),
		poller.WithName("items"),
	)
	return c
}

// Items returns a deep copy of the cached sequence in order.
func (c *Cache) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Item, len(c.items))
	for i := range c.items {
		out[i] = c.items[i].Clone()
	}
	return out
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ByID returns a copy of the cached item with id.
func (c *Cache) ByID(id uuid.UUID) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexLocked(id); i >= 0 {
		return c.items[i].Clone(), true
	}
	return Item{}, false
}

// ByCode returns a copy of the first cached item with code, in any table.
func (c *Cache) ByCode(code string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.items {
		if c.items[i].Code == code {
			return c.items[i].Clone(), true
		}
	}
	return Item{}, false
}

// Filters returns the filters used by Fetch.
func (c *Cache) Filters() Filters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters.clone()
}

// SetFilters updates the filters in place through fn. Fields fn leaves
// untouched keep their value.
func (c *Cache) SetFilters(fn func(*Filters)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.filters.clone()
	fn(&next)
	c.filters = next
}

// Loading reports whether a Fetch is in flight.
func (c *Cache) Loading() bool {
	return c.loading.Load() > 0
}

// Fetch replaces the whole cached sequence with the remote list for the
// current filters. On error the cache is left unchanged.
func (c *Cache) Fetch(ctx context.Context) error {
	c.loading.Add(1)
	defer c.loading.Add(-1)

	var list []Item
	err := c.transport.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/items",
		Query:  c.Filters().Params(),
	}, &list)
	if err != nil {
		return err
	}
	if list == nil {
		list = []Item{}
	}

	c.mu.Lock()
	c.items = list
	c.mu.Unlock()
	return nil
}

// FetchOne loads a single item and merges it with Upsert.
func (c *Cache) FetchOne(ctx context.Context, id uuid.UUID) (Item, error) {
	var it Item
	if err := c.transport.Do(ctx, gateway.Request{Method: http.MethodGet, Path: itemPath(id)}, &it); err != nil {
		return Item{}, err
	}
	c.Upsert(it)
	return it, nil
}

// Upsert replaces the cached item with the same id in place, or prepends it
// when the id is unknown.
func (c *Cache) Upsert(it Item) {
	c.mu.Lock()
	c.upsertLocked(it.Clone())
	c.mu.Unlock()
}

// Create sends a creation request and merges the created item.
func (c *Cache) Create(ctx context.Context, payload NewItem) (Item, error) {
	var it Item
	if err := c.transport.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/items", Body: payload}, &it); err != nil {
		return Item{}, err
	}
	c.Upsert(it)
	c.logger.DebugContext(ctx, "item created", logger.ItemID(it.ID))
	return it, nil
}

// UpdateOptimistic applies patch to the cached item immediately, then sends
// it. The server response replaces the optimistic state on success. On
// failure the exact pre-mutation state is restored before the error is
// returned. Both writes go to the item with the same id and are skipped when
// a newer fetch dropped it. ErrNotFound is returned, without a request, when id is not cached.
func (c *Cache) UpdateOptimistic(ctx context.Context, id uuid.UUID, patch Patch) (Item, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snapshot := c.items[i].Clone()
	patch.Apply(&c.items[i])
	c.mu.Unlock()

	var updated Item
	err := c.transport.Do(ctx, gateway.Request{Method: http.MethodPatch, Path: itemPath(id), Body: patch}, &updated)
	if err != nil {
		c.replace(snapshot)
		c.logger.WarnContext(ctx, "optimistic update rolled back", logger.ItemID(id), logger.Error(err))
		return Item{}, err
	}

	c.replace(updated)
	return updated, nil
}

// Delete removes the item remotely and, only on success, locally.
func (c *Cache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.transport.Do(ctx, gateway.Request{Method: http.MethodDelete, Path: itemPath(id)}, nil); err != nil {
		return err
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	}
	c.mu.Unlock()
	return nil
}

// UploadImage sends an image to the upload endpoint with the extended upload
// timeout. The cache is not modified.
func (c *Cache) UploadImage(ctx context.Context, filename string, r io.Reader) (Upload, error) {
	var up Upload
	if err := c.transport.Upload(ctx, "/upload", "file", filename, r, c.uploadTimeout, &up); err != nil {
		return Upload{}, err
	}
	return up, nil
}

// StartPolling starts the background refresh. It returns false when polling
// is already running.
func (c *Cache) StartPolling(ctx context.Context) bool {
	return c.poller.Start(ctx)
}

// StopPolling stops future refreshes. A fetch already in flight completes.
// It returns false when polling was not running.
func (c *Cache) StopPolling() bool {
	return c.poller.Stop()
}

// Polling reports whether the background refresh is running.
func (c *Cache) Polling() bool {
	return c.poller.Running()
}

// replace writes it at the position of the item with the same id. If the
// item left the cache meanwhile (a list replace), nothing is written.
func (c *Cache) replace(it Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(it.ID); i >= 0 {
		c.items[i] = it
	}
}

func (c *Cache) upsertLocked(it Item) {
	if i := c.indexLocked(it.ID); i >= 0 {
		c.items[i] = it
		return
	}
	c.items = append([]Item{it}, c.items...)
}

func (c *Cache) indexLocked(id uuid.UUID) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

func itemPath(id uuid.UUID) string {
	return "/items/" + id.String()
}
