package cli_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/internal/cli"
	"github.com/dmitrymomot/stocksync/internal/fakeapi"
	"github.com/dmitrymomot/stocksync/pkg/items"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/storage"
	"github.com/dmitrymomot/stocksync/pkg/tables"
)

type harness struct {
	api     *fakeapi.Server
	url     string
	durable *storage.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := fakeapi.New()
	api.AddUser("alice", "secret", "admin")

	srv := httptest.NewServer(api.Mount("/api"))
	t.Cleanup(srv.Close)

	return &harness{api: api, url: srv.URL + "/api", durable: storage.NewMemory()}
}

// run executes one CLI invocation. Every invocation builds a fresh client
// over the same durable store, like separate processes would.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app := &cli.App{
		Configure: func(cfg *stocksync.Config) {
			cfg.APIURL = h.url
			cfg.StorageDriver = stocksync.DriverMemory
		},
		Options: []stocksync.Option{
			stocksync.WithLogger(logger.Discard()),
			stocksync.WithDurableStorage(h.durable),
		},
	}
	cmd := cli.NewRootCmd(app)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	require.NoError(t, app.Close())
	return out.String(), err
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.run(t, "", "login", "-u", "alice", "-p", "secret", "--remember")
	require.NoError(t, err)
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestAuthCommands(t *testing.T) {
	t.Run("remembered login is reused", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)

		out, err := h.run(t, "", "whoami", "-o", "json")
		require.NoError(t, err)
		got := decode[struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		}](t, out)
		assert.Equal(t, "alice", got.User.Username)
		assert.Equal(t, 1, h.api.Hits(http.MethodPost, "/auth/login"))
	})

	t.Run("prompts when flags are missing", func(t *testing.T) {
		h := newHarness(t)
		out, err := h.run(t, "alice\nsecret\n", "login", "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "username: alice")
	})

	t.Run("commands need a session", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.run(t, "", "tables", "list")
		assert.ErrorIs(t, err, cli.ErrNotLoggedIn)
	})

	t.Run("logout forgets the token", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)

		_, err := h.run(t, "", "logout")
		require.NoError(t, err)
		_, err = h.run(t, "", "whoami")
		assert.ErrorIs(t, err, cli.ErrNotLoggedIn)
	})

	t.Run("unknown output format", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.run(t, "", "whoami", "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestTableCommands(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	shelf := h.api.SeedTable(tables.Table{Name: "Shelf"})
	h.api.SeedTable(tables.Table{Name: "Bin"})

	out, err := h.run(t, "", "tables", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Shelf")
	assert.Contains(t, out, "Bin")

	_, err = h.run(t, "", "tables", "use", "shelf")
	require.NoError(t, err)
	stored, err := h.durable.Get(t.Context(), tables.DefaultActiveKey)
	require.NoError(t, err)
	assert.Equal(t, shelf.ID.String(), stored)

	out, err = h.run(t, "", "tables", "create", "Racks", "--schema", `{"fields":[]}`, "-o", "json")
	require.NoError(t, err)
	created := decode[[]tables.Table](t, out)
	require.Len(t, created, 1)
	stored, err = h.durable.Get(t.Context(), tables.DefaultActiveKey)
	require.NoError(t, err)
	assert.Equal(t, created[0].ID.String(), stored)

	out, err = h.run(t, "", "tables", "rename", "Racks", "Racks 2", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "Racks 2", decode[[]tables.Table](t, out)[0].Name)

	_, err = h.run(t, "", "tables", "delete", "nope")
	assert.ErrorContains(t, err, "not found")

	_, err = h.run(t, "", "tables", "delete", "Racks 2")
	require.NoError(t, err)
}

func TestItemCommands(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	shelf := h.api.SeedTable(tables.Table{Name: "Shelf"})
	other := h.api.SeedTable(tables.Table{Name: "Other"})
	bolt := h.api.SeedItem(items.Item{TableID: shelf.ID, Code: "B-1", Name: "Bolt", Quantity: 5, Properties: map[string]any{"size": 8}})
	h.api.SeedItem(items.Item{TableID: other.ID, Code: "X-1", Name: "Elsewhere", Quantity: 1})

	_, err := h.run(t, "", "tables", "use", "Shelf")
	require.NoError(t, err)

	t.Run("list is scoped to the active table", func(t *testing.T) {
		out, err := h.run(t, "", "items", "list", "-o", "json")
		require.NoError(t, err)
		list := decode[[]items.Item](t, out)
		require.Len(t, list, 1)
		assert.Equal(t, bolt.ID, list[0].ID)

		out, err = h.run(t, "", "items", "list", "--all", "-o", "json")
		require.NoError(t, err)
		assert.Len(t, decode[[]items.Item](t, out), 2)

		out, err = h.run(t, "", "items", "list", "--property", "size=8", "--min-quantity", "6", "-o", "json")
		require.NoError(t, err)
		assert.Empty(t, decode[[]items.Item](t, out))

		out, err = h.run(t, "", "items", "list", "--all", "--where", "quantity < 3", "-o", "json")
		require.NoError(t, err)
		list = decode[[]items.Item](t, out)
		require.Len(t, list, 1)
		assert.Equal(t, "X-1", list[0].Code)

		_, err = h.run(t, "", "items", "list", "--where", "quantity +")
		assert.ErrorContains(t, err, "invalid --where")
	})

	t.Run("stock movements", func(t *testing.T) {
		out, err := h.run(t, "", "stock", "out", "B-1", "2", "-o", "json")
		require.NoError(t, err)
		assert.Equal(t, 3, decode[items.Item](t, out).Quantity)

		out, err = h.run(t, "", "stock", "in", "N-1", "4", "--name", "Nut", "-o", "json")
		require.NoError(t, err)
		nut := decode[items.Item](t, out)
		assert.Equal(t, "Nut", nut.Name)
		assert.Equal(t, shelf.ID, nut.TableID)

		_, err = h.run(t, "", "stock", "out", "B-1", "0")
		assert.ErrorContains(t, err, "positive integer")
	})

	t.Run("set patches properties", func(t *testing.T) {
		out, err := h.run(t, "", "items", "set", "B-1", "--prop", "color=blue", "--unset", "size", "--quantity", "10", "-o", "json")
		require.NoError(t, err)
		it := decode[items.Item](t, out)
		assert.Equal(t, 10, it.Quantity)
		assert.Equal(t, map[string]any{"color": "blue"}, it.Properties)

		_, err = h.run(t, "", "items", "set", "B-1")
		assert.ErrorContains(t, err, "nothing to change")
	})

	t.Run("create and get", func(t *testing.T) {
		out, err := h.run(t, "", "items", "create", "S-1", "--quantity", "2", "--prop", "size=3", "-o", "json")
		require.NoError(t, err)
		created := decode[items.Item](t, out)
		assert.Equal(t, "S-1", created.Name)
		assert.InDelta(t, 3, created.Properties["size"], 0)

		out, err = h.run(t, "", "items", "get", created.ID.String(), "-o", "json")
		require.NoError(t, err)
		assert.Equal(t, created.ID, decode[items.Item](t, out).ID)
	})

	t.Run("upload and attach", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bolt.png")
		png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
		require.NoError(t, os.WriteFile(path, png, 0o600))

		out, err := h.run(t, "", "upload", path, "--item", "B-1", "-o", "json")
		require.NoError(t, err)
		got := decode[struct {
			ImageOriginal string `json:"image_original"`
			ImageURL      string `json:"image_url"`
		}](t, out)
		assert.True(t, strings.HasPrefix(got.ImageOriginal, "originals/"))
		assert.Equal(t, h.url+"/media/"+got.ImageOriginal, got.ImageURL)

		resp, err := http.Get(got.ImageURL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := h.run(t, "", "items", "delete", "B-1")
		require.NoError(t, err)
		_, ok := h.api.Item(bolt.ID)
		assert.False(t, ok)

		_, err = h.run(t, "", "items", "delete", "B-1")
		assert.ErrorContains(t, err, "not found")
	})
}

func TestDemoMode(t *testing.T) {
	app := &cli.App{Options: []stocksync.Option{stocksync.WithLogger(logger.Discard())}}
	cmd := cli.NewRootCmd(app)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--demo", "items", "list", "--all", "-o", "json"})

	require.NoError(t, cmd.Execute())
	require.NoError(t, app.Close())

	var list []items.Item
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	assert.Len(t, list, 5)
}
