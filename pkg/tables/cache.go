package tables

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/storage"
)

// DefaultActiveKey is the durable storage key of the active table id.
const DefaultActiveKey = "active_table_id"

// Doer is the subset of *gateway.Client the cache depends on.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithActiveKey overrides the storage key of the active selection.
func WithActiveKey(key string) Option {
	return func(c *Cache) {
		if key != "" {
			c.activeKey = key
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

// Cache mirrors the remote table list. Safe for concurrent use.
type Cache struct {
	doer      Doer
	store     storage.Storage
	activeKey string
	logger    *slog.Logger

	mu     sync.RWMutex
	tables []Table
	active uuid.UUID

	loading atomic.Int32
}

// New creates an empty cache. store persists the active selection and is
// expected to be the durable tier.
func New(doer Doer, store storage.Storage, opts ...Option) *Cache {
	c := &Cache{
		doer:      doer,
		store:     store,
		activeKey: DefaultActiveKey,
		logger:    slog.Default(),
		tables:    []Table{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the persisted active id. A malformed value is dropped.
// The selection is not checked against the list until the next FetchAll.
func (c *Cache) Restore(ctx context.Context) error {
	raw, err := c.store.Get(ctx, c.activeKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		c.logger.WarnContext(ctx, "dropping malformed active table id", slog.String("value", raw))
		return c.store.Delete(ctx, c.activeKey)
	}

	c.mu.Lock()
	c.active = id
	c.mu.Unlock()
	return nil
}

// Tables returns a copy of the cached list in order.
func (c *Cache) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Table, len(c.tables))
	for i := range c.tables {
		out[i] = c.tables[i].clone()
	}
	return out
}

// ByID returns the cached table with id.
func (c *Cache) ByID(id uuid.UUID) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexLocked(id); i >= 0 {
		return c.tables[i].clone(), true
	}
	return Table{}, false
}

// ByName returns the first cached table whose name matches, ignoring case.
func (c *Cache) ByName(name string) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.tables {
		if strings.EqualFold(c.tables[i].Name, name) {
			return c.tables[i].clone(), true
		}
	}
	return Table{}, false
}

// ActiveID returns the selected table id, uuid.Nil when none.
func (c *Cache) ActiveID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Active returns the selected table if it is cached.
func (c *Cache) Active() (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active == uuid.Nil {
		return Table{}, false
	}
	if i := c.indexLocked(c.active); i >= 0 {
		return c.tables[i].clone(), true
	}
	return Table{}, false
}

// Loading reports whether FetchAll is in flight.
func (c *Cache) Loading() bool {
	return c.loading.Load() > 0
}

// SetActive selects id and persists it. uuid.Nil clears the selection and
// removes the persisted value.
func (c *Cache) SetActive(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	c.active = id
	c.mu.Unlock()
	return c.persist(ctx, id)
}

// FetchAll replaces the list with the remote one and repairs the selection.
func (c *Cache) FetchAll(ctx context.Context) error {
	c.loading.Add(1)
	defer c.loading.Add(-1)

	var list []Table
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/tables"}, &list); err != nil {
		return err
	}
	if list == nil {
		list = []Table{}
	}

	c.mu.Lock()
	c.tables = list
	changed, active := c.repairLocked()
	c.mu.Unlock()

	if changed {
		return c.persist(ctx, active)
	}
	return nil
}

// Create sends a creation request, prepends the created table and selects it.
func (c *Cache) Create(ctx context.Context, in Input) (Table, error) {
	var t Table
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/tables", Body: in}, &t); err != nil {
		return Table{}, err
	}

	c.mu.Lock()
	if i := c.indexLocked(t.ID); i >= 0 {
		c.tables = append(c.tables[:i:i], c.tables[i+1:]...)
	}
	c.tables = append([]Table{t.clone()}, c.tables...)
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "table created", logger.TableID(t.ID))
	return t, c.SetActive(ctx, t.ID)
}

// Update sends a partial update and replaces the cached table in place.
func (c *Cache) Update(ctx context.Context, id uuid.UUID, in Input) (Table, error) {
	var t Table
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodPatch, Path: tablePath(id), Body: in}, &t); err != nil {
		return Table{}, err
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.tables[i] = t.clone()
	}
	c.mu.Unlock()
	return t, nil
}

// Delete removes the table remotely, then locally, and repairs the selection
// if the deleted table was active. With purgeItems unset the remote refuses
// to delete a table that still holds items.
func (c *Cache) Delete(ctx context.Context, id uuid.UUID, purgeItems bool) error {
	var query url.Values
	if purgeItems {
		query = url.Values{"purge_items": {strconv.FormatBool(true)}}
	}
	if err := c.doer.Do(ctx, gateway.Request{Method: http.MethodDelete, Path: tablePath(id), Query: query}, nil); err != nil {
		return err
	}

	c.mu.Lock()
	if i := c.indexLocked(id); i >= 0 {
		c.tables = append(c.tables[:i:i], c.tables[i+1:]...)
	}
	changed, active := c.repairLocked()
	c.mu.Unlock()

	if changed {
		return c.persist(ctx, active)
	}
	return nil
}

// repairLocked keeps the selection pointing at a cached table, or empty when
// the list is. It reports whether the selection changed.
func (c *Cache) repairLocked() (bool, uuid.UUID) {
	next := c.active
	switch {
	case len(c.tables) == 0:
		next = uuid.Nil
	case c.active == uuid.Nil, c.indexLocked(c.active) < 0:
		next = c.tables[0].ID
	}
	if next == c.active {
		return false, next
	}
	c.active = next
	return true, next
}

func (c *Cache) persist(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return c.store.Delete(ctx, c.activeKey)
	}
	return c.store.Set(ctx, c.activeKey, id.String())
}

func (c *Cache) indexLocked(id uuid.UUID) int {
	for i := range c.tables {
		if c.tables[i].ID == id {
			return i
		}
	}
	return -1
}

func tablePath(id uuid.UUID) string {
	return "/tables/" + id.String()
}
