package main

import (
	"os"

	"github.com/dmitrymomot/stocksync/internal/cli"
)

func main() {
	app := &cli.App{}
	err := cli.NewRootCmd(app).Execute()
	// Post-run hooks are skipped when a command fails.
	_ = app.Close()
	if err != nil {
		os.Exit(1)
	}
}
