package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/internal/fakeapi"
	"github.com/dmitrymomot/stocksync/pkg/items"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/tables"
)

const (
	demoUser     = "demo"
	demoPassword = "demo"
)

type demoServer struct {
	url string
	srv *http.Server
}

// startDemo serves a seeded fake API on a random loopback port.
func startDemo(cfg stocksync.Config) (*demoServer, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, "stocksync-demo"),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
	)
	api := fakeapi.New(fakeapi.WithLogger(log))
	api.AddUser(demoUser, demoPassword, "admin")
	seedDemo(api)

	d := &demoServer{
		url: "http://" + lis.Addr().String() + "/api",
		srv: &http.Server{
			Handler:           api.Mount("/api"),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		if err := d.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("demo server stopped", logger.Error(err))
		}
	}()
	return d, nil
}

func (d *demoServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.srv.Shutdown(ctx)
}

func seedDemo(api *fakeapi.Server) {
	tools := api.SeedTable(tables.Table{
		Name: "Tools",
		Schema: map[string]any{"fields": []any{
			map[string]any{"key": "brand", "type": "text"},
		}},
	})
	parts := api.SeedTable(tables.Table{
		Name: "Parts",
		Schema: map[string]any{"fields": []any{
			map[string]any{"key": "size", "type": "number"},
			map[string]any{"key": "material", "type": "text"},
		}},
	})

	api.SeedItem(items.Item{TableID: parts.ID, Code: "B-8", Name: "Bolt M8", Quantity: 120, Properties: map[string]any{"size": 8, "material": "steel"}})
	api.SeedItem(items.Item{TableID: parts.ID, Code: "N-8", Name: "Nut M8", Quantity: 240, Properties: map[string]any{"size": 8, "material": "steel"}})
	api.SeedItem(items.Item{TableID: parts.ID, Code: "W-8", Name: "Washer M8", Quantity: 0, Properties: map[string]any{"size": 8, "material": "nylon"}})
	api.SeedItem(items.Item{TableID: tools.ID, Code: "H-1", Name: "Hammer", Quantity: 3, Properties: map[string]any{"brand": "Stanley"}})
	api.SeedItem(items.Item{TableID: tools.ID, Code: "S-2", Name: "Screwdriver", Quantity: 7, Notes: "Phillips #2"})
}
