// Package cli implements the stocksync command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/pkg/logger"
	"github.com/dmitrymomot/stocksync/pkg/session"
)

// ErrNotLoggedIn is returned by commands that need a session when there is none.
var ErrNotLoggedIn = errors.New("not logged in: run `stocksync login`")

// App holds flag values and the client shared by every command.
type App struct {
	EnvFiles []string
	Output   string
	Demo     bool

	// Configure, when set, adjusts the loaded configuration. Tests use it to
	// point the client at an in-process server.
	Configure func(*stocksync.Config)
	// Options are passed to stocksync.New.
	Options []stocksync.Option

	client *stocksync.Client
	demo   *demoServer
	stdin  *bufio.Reader
}

// NewRootCmd builds the command tree.
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stocksync",
		Short:        "Inventory client with local session and cached state",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Sign in and keep the token across runs
  stocksync login --username alice --remember

  # Pick a table and list what is in stock
  stocksync tables use Shelf
  stocksync items list --min-quantity 1

  # Book stock movements by code
  stocksync stock in B-1 5
  stocksync stock out B-1 2

  # Try everything against a throwaway in-process server
  stocksync --demo items list
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		ctx := logger.WithOperation(cmd.Context(), uuid.NewString())
		cmd.SetContext(ctx)
		return app.open(ctx)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.Close()
	}

	cmd.PersistentFlags().StringSliceVar(&app.EnvFiles, "env-file", nil, "Load variables from these .env files (default: ./.env when present)")
	cmd.PersistentFlags().StringVarP(&app.Output, "output", "o", formatTable, "Output format (table|json|yaml)")
	cmd.PersistentFlags().BoolVar(&app.Demo, "demo", false, "Run against an in-process demo server (user demo, password demo)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newTablesCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newStockCmd(app))
	cmd.AddCommand(newUploadCmd(app))

	return cmd
}

func (app *App) open(ctx context.Context) error {
	switch app.Output {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q (valid: table, json, yaml)", app.Output)
	}

	cfg, err := stocksync.LoadConfig(app.EnvFiles...)
	if err != nil {
		return err
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if app.Demo {
		demo, err := startDemo(cfg)
		if err != nil {
			return fmt.Errorf("start demo server: %w", err)
		}
		app.demo = demo
		cfg.APIURL = demo.url
		cfg.StorageDriver = stocksync.DriverMemory
	}
	if app.Configure != nil {
		app.Configure(&cfg)
	}

	c, err := stocksync.New(ctx, cfg, app.Options...)
	if err != nil {
		return err
	}
	app.client = c

	if app.demo != nil {
		if _, err := c.Session.Login(ctx, session.Credentials{Username: demoUser, Password: demoPassword}, true); err != nil {
			return fmt.Errorf("demo login: %w", err)
		}
	}

	c.OnUnauthorized(func() {
		c.Logger.Warn("session expired, log in again")
	})

	_, err = c.Bootstrap(ctx)
	return err
}

// Close releases the client and the demo server. It is safe to call twice.
func (app *App) Close() error {
	var errs []error
	if app.client != nil {
		errs = append(errs, app.client.Close())
		app.client = nil
	}
	if app.demo != nil {
		errs = append(errs, app.demo.Close())
		app.demo = nil
	}
	return errors.Join(errs...)
}

func (app *App) writeOut(cmd *cobra.Command, out view) error {
	return write(cmd.OutOrStdout(), app.Output, out)
}

// authed returns the client when a session is active.
func (app *App) authed() (*stocksync.Client, error) {
	if app.client == nil || !app.client.Session.IsAuthenticated() {
		return nil, ErrNotLoggedIn
	}
	return app.client, nil
}
