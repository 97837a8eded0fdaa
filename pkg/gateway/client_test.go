package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stocksync/pkg/gateway"
)

func newClient(t *testing.T, h http.HandlerFunc, opts ...gateway.Option) (*gateway.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	gw, err := gateway.New(srv.URL+"/api", opts...)
	require.NoError(t, err)
	return gw, srv
}

func TestNew(t *testing.T) {
	t.Run("rejects unsupported scheme", func(t *testing.T) {
		_, err := gateway.New("ftp://example.com")
		assert.ErrorIs(t, err, gateway.ErrInvalidBaseURL)
	})

	t.Run("rejects missing host", func(t *testing.T) {
		_, err := gateway.New("http://")
		assert.ErrorIs(t, err, gateway.ErrInvalidBaseURL)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		gw, err := gateway.New("https://example.com/api/")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/api", gw.BaseURL())
	})
}

func TestClient_Do(t *testing.T) {
	t.Run("resolves path and query", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/items", r.URL.Path)
			assert.Equal(t, "bolt", r.URL.Query().Get("q"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			_ = json.NewEncoder(w).Encode([]map[string]any{{"name": "bolt"}})
		})

		var out []map[string]any
		err := gw.Get(context.Background(), "/items", url.Values{"q": {"bolt"}}, &out)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "bolt", out[0]["name"])
	})

	t.Run("attaches bearer token only when set", func(t *testing.T) {
		var seen []string
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, gw.Get(context.Background(), "/ping", nil, nil))
		gw.Credentials().SetToken("tok")
		require.NoError(t, gw.Get(context.Background(), "/ping", nil, nil))
		gw.Credentials().SetToken("")
		require.NoError(t, gw.Get(context.Background(), "/ping", nil, nil))

		assert.Equal(t, []string{"", "Bearer tok", ""}, seen)
	})

	t.Run("encodes json body", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "x", body["name"])
			_ = json.NewEncoder(w).Encode(body)
		})

		var out map[string]any
		require.NoError(t, gw.Patch(context.Background(), "/items/1", map[string]any{"name": "x"}, &out))
		assert.Equal(t, "x", out["name"])
	})

	t.Run("no content leaves out untouched", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		out := map[string]any{"keep": true}
		require.NoError(t, gw.Do(context.Background(), gateway.Request{Method: http.MethodDelete, Path: "/x"}, &out))
		assert.Equal(t, true, out["keep"])
	})
}

func TestClient_Errors(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		sentinel error
		detail   string
	}{
		{"validation", http.StatusBadRequest, `{"detail":"code exists"}`, gateway.ErrValidation, "code exists"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","quantity"]}]}`, gateway.ErrValidation, `[{"loc":["body","quantity"]}]`},
		{"not found", http.StatusNotFound, `{"detail":"missing"}`, gateway.ErrNotFound, "missing"},
		{"server", http.StatusInternalServerError, "boom\n", gateway.ErrRequest, "boom"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			err := gw.Get(context.Background(), "/x", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.ErrorIs(t, err, gateway.ErrRequest)
			assert.NotErrorIs(t, err, gateway.ErrUnauthorized)
			assert.Equal(t, tc.status, gateway.StatusCode(err))

			var gwErr *gateway.Error
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tc.detail, gwErr.Detail)
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	t.Run("runs handler once per failing call", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		var calls atomic.Int32
		gw.Credentials().SetUnauthorizedHandler(func() { calls.Add(1) })

		err := gw.Get(context.Background(), "/items", nil, nil)
		assert.ErrorIs(t, err, gateway.ErrUnauthorized)
		assert.NotErrorIs(t, err, gateway.ErrRequest)
		assert.True(t, gateway.IsUnauthorized(err))
		assert.Equal(t, int32(1), calls.Load())

		_ = gw.Get(context.Background(), "/items", nil, nil)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("last registration wins", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		var first, second atomic.Int32
		gw.Credentials().SetUnauthorizedHandler(func() { first.Add(1) })
		gw.Credentials().SetUnauthorizedHandler(func() { second.Add(1) })

		_ = gw.Get(context.Background(), "/items", nil, nil)
		assert.Equal(t, int32(0), first.Load())
		assert.Equal(t, int32(1), second.Load())
	})

	t.Run("handler may clear the token", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		gw.Credentials().SetToken("stale")
		gw.Credentials().SetUnauthorizedHandler(func() { gw.Credentials().SetToken("") })

		_ = gw.Get(context.Background(), "/items", nil, nil)
		assert.Empty(t, gw.Credentials().Token())
	})

	t.Run("other statuses do not run handler", func(t *testing.T) {
		gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		var calls atomic.Int32
		gw.Credentials().SetUnauthorizedHandler(func() { calls.Add(1) })

		_ = gw.Get(context.Background(), "/items", nil, nil)
		assert.Zero(t, calls.Load())
	})
}

func TestClient_Timeout(t *testing.T) {
	gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, gateway.WithTimeout(20*time.Millisecond))

	err := gw.Get(context.Background(), "/slow", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrTimeout)
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	gw, err := gateway.New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	err = gw.Get(context.Background(), "/items", nil, nil)
	assert.ErrorIs(t, err, gateway.ErrTransport)
	assert.ErrorIs(t, err, gateway.ErrRequest)
	assert.NotErrorIs(t, err, gateway.ErrTimeout)
	assert.Zero(t, gateway.StatusCode(err))
}

func TestClient_Upload(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 600)...)

	gw, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, png, data)
		assert.Equal(t, "shelf.png", fh.Filename)
		assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))

		_ = json.NewEncoder(w).Encode(map[string]string{"original_path": "a/shelf.png"})
	})

	var out map[string]string
	err := gw.Upload(context.Background(), "/upload", "file", "shelf.png", bytes.NewReader(png), time.Minute, &out)
	require.NoError(t, err)
	assert.Equal(t, "a/shelf.png", out["original_path"])
}
