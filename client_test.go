package stocksync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/internal/fakeapi"
	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/items"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/session"
	"github.com/dmitrymomot/stocksync/pkg/storage"
	"github.com/dmitrymomot/stocksync/pkg/tables"
)

type listener struct {
	mock.Mock
}

func (l *listener) Unauthorized() {
	l.Called()
}

func setup(t *testing.T, durable storage.Storage) (*fakeapi.Server, *stocksync.Client) {
	t.Helper()
	api := fakeapi.New()
	api.AddUser("alice", "secret", "admin")

	srv := httptest.NewServer(api.Mount("/api"))
	t.Cleanup(srv.Close)

	cfg := stocksync.DefaultConfig()
	cfg.APIURL = srv.URL + "/api"
	cfg.StorageDriver = stocksync.DriverMemory

	c, err := stocksync.New(context.Background(), cfg,
		stocksync.WithLogger(logger.Discard()),
		stocksync.WithDurableStorage(durable),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return api, c
}

func TestNew(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := stocksync.DefaultConfig()
		cfg.StorageDriver = "etcd"
		_, err := stocksync.New(context.Background(), cfg)
		assert.ErrorIs(t, err, stocksync.ErrUnknownStorageDriver)
	})

	t.Run("sqlite driver", func(t *testing.T) {
		cfg := stocksync.DefaultConfig()
		cfg.SQLitePath = filepath.Join(t.TempDir(), "state.db")
		c, err := stocksync.New(context.Background(), cfg, stocksync.WithLogger(logger.Discard()))
		require.NoError(t, err)
		assert.Equal(t, session.StateAnonymous, c.Session.Initialize(context.Background()))
		assert.NoError(t, c.Close())
	})

	t.Run("invalid api url", func(t *testing.T) {
		cfg := stocksync.DefaultConfig()
		cfg.StorageDriver = stocksync.DriverMemory
		cfg.APIURL = "://nope"
		_, err := stocksync.New(context.Background(), cfg)
		assert.ErrorIs(t, err, gateway.ErrInvalidBaseURL)
	})
}

func TestClient_Bootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous skips loading", func(t *testing.T) {
		api, c := setup(t, storage.NewMemory())

		state, err := c.Bootstrap(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.StateAnonymous, state)
		assert.Zero(t, api.Hits(http.MethodGet, "/tables"))
		assert.Zero(t, api.Hits(http.MethodGet, "/items"))
	})

	t.Run("restored selection scopes items", func(t *testing.T) {
		durable := storage.NewMemory()
		api, c := setup(t, durable)

		shelf := api.SeedTable(tables.Table{Name: "Shelf"})
		bin := api.SeedTable(tables.Table{Name: "Bin"})
		api.SeedItem(items.Item{TableID: shelf.ID, Code: "S-1", Name: "Screw"})
		api.SeedItem(items.Item{TableID: bin.ID, Code: "B-1", Name: "Bolt"})

		require.NoError(t, durable.Set(ctx, "access_token", api.IssueToken("alice")))
		require.NoError(t, durable.Set(ctx, tables.DefaultActiveKey, shelf.ID.String()))

		state, err := c.Bootstrap(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.StateAuthenticated, state)
		assert.Equal(t, shelf.ID, c.Tables.ActiveID())
		assert.Len(t, c.Tables.Tables(), 2)
		assert.Equal(t, shelf.ID, c.Items.Filters().TableID)

		list := c.Items.Items()
		require.Len(t, list, 1)
		assert.Equal(t, "S-1", list[0].Code)
		assert.Equal(t, 1, api.Hits(http.MethodGet, "/items"))
	})

	t.Run("stale selection is repaired and items reloaded", func(t *testing.T) {
		durable := storage.NewMemory()
		api, c := setup(t, durable)

		shelf := api.SeedTable(tables.Table{Name: "Shelf"})
		api.SeedItem(items.Item{TableID: shelf.ID, Code: "S-1", Name: "Screw"})

		require.NoError(t, durable.Set(ctx, "access_token", api.IssueToken("alice")))
		require.NoError(t, durable.Set(ctx, tables.DefaultActiveKey, uuid.NewString()))

		_, err := c.Bootstrap(ctx)
		require.NoError(t, err)
		assert.Equal(t, shelf.ID, c.Tables.ActiveID())
		assert.Equal(t, shelf.ID, c.Items.Filters().TableID)
		assert.Len(t, c.Items.Items(), 1)
		assert.Equal(t, 2, api.Hits(http.MethodGet, "/items"))

		stored, err := durable.Get(ctx, tables.DefaultActiveKey)
		require.NoError(t, err)
		assert.Equal(t, shelf.ID.String(), stored)
	})

	t.Run("load errors are joined", func(t *testing.T) {
		durable := storage.NewMemory()
		api, c := setup(t, durable)
		require.NoError(t, durable.Set(ctx, "access_token", api.IssueToken("alice")))

		api.FailNext(http.MethodGet, "/tables", http.StatusServiceUnavailable, "down")
		api.FailNext(http.MethodGet, "/items", http.StatusServiceUnavailable, "down")

		state, err := c.Bootstrap(ctx)
		assert.Equal(t, session.StateAuthenticated, state)
		assert.ErrorIs(t, err, gateway.ErrRequest)
	})
}

func TestClient_OnUnauthorized(t *testing.T) {
	ctx := context.Background()
	api, c := setup(t, storage.NewMemory())

	l := &listener{}
	l.On("Unauthorized").Return().Once()
	c.OnUnauthorized(l.Unauthorized)

	_, err := c.Session.Login(ctx, session.Credentials{Username: "alice", Password: "secret"}, true)
	require.NoError(t, err)

	api.RevokeTokens()
	err = c.Tables.FetchAll(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.False(t, c.Session.IsAuthenticated())
	l.AssertExpectations(t)
}

func TestClient_MediaURL(t *testing.T) {
	_, c := setup(t, storage.NewMemory())

	assert.Equal(t, c.Gateway.BaseURL()+"/media/items/a.png", c.MediaURL("items/a.png"))
	assert.Equal(t, "https://cdn.example.com/a.png", c.MediaURL("https://cdn.example.com/a.png"))
	assert.Empty(t, c.MediaURL(""))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults match DefaultConfig", func(t *testing.T) {
		cfg, err := stocksync.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, stocksync.DefaultConfig(), cfg)
	})

	t.Run("env file and nested sections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte(
			"STOCKSYNC_API_URL=https://stock.example.com/api\n"+
				"STOCKSYNC_STORAGE_DRIVER=redis\n"+
				"STOCKSYNC_REDIS_URL=redis://cache:6379/2\n"+
				"STOCKSYNC_VALIDATE_TIMEOUT=2s\n",
		), 0o600))
		t.Cleanup(func() {
			for _, k := range []string{"STOCKSYNC_API_URL", "STOCKSYNC_STORAGE_DRIVER", "STOCKSYNC_REDIS_URL", "STOCKSYNC_VALIDATE_TIMEOUT"} {
				_ = os.Unsetenv(k)
			}
		})

		cfg, err := stocksync.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "https://stock.example.com/api", cfg.APIURL)
		assert.Equal(t, stocksync.DriverRedis, cfg.StorageDriver)
		assert.Equal(t, "redis://cache:6379/2", cfg.Redis.ConnectionURL)
		assert.Equal(t, 2*time.Second, cfg.Session.ValidateTimeout)
	})

	t.Run("invalid driver", func(t *testing.T) {
		t.Setenv("STOCKSYNC_STORAGE_DRIVER", "etcd")
		_, err := stocksync.LoadConfig()
		assert.ErrorIs(t, err, stocksync.ErrUnknownStorageDriver)
	})
}
