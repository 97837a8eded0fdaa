package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stocksync/pkg/items"
)

func newStockCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Book stock movements by item code",
	}
	cmd.AddCommand(newStockMoveCmd(app, "in", "Add stock; unknown codes create a new item"))
	cmd.AddCommand(newStockMoveCmd(app, "out", "Remove stock"))
	return cmd
}

func newStockMoveCmd(app *App, direction, short string) *cobra.Command {
	var (
		table string
		name  string
		notes string
		props []string
	)

	cmd := &cobra.Command{
		Use:   direction + " <code> <quantity>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty <= 0 {
				return fmt.Errorf("quantity must be a positive integer, got %q", args[1])
			}
			tableID, err := targetTable(c, table)
			if err != nil {
				return err
			}

			mv := items.StockMovement{TableID: tableID, Code: args[0], Quantity: qty}
			var it items.Item
			if direction == "in" {
				mv.Name, mv.Notes = name, notes
				if mv.Properties, err = parseProps(props); err != nil {
					return err
				}
				it, err = c.Items.StockIn(cmd.Context(), mv)
			} else {
				it, err = c.Items.StockOut(cmd.Context(), mv)
			}
			if err != nil {
				return err
			}
			return app.writeOut(cmd, itemView(c, it))
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table name or id (default: the active table)")
	if direction == "in" {
		cmd.Flags().StringVar(&name, "name", "", "Name used when the code is new")
		cmd.Flags().StringVar(&notes, "notes", "", "Notes used when the code is new")
		cmd.Flags().StringArrayVar(&props, "prop", nil, "Property key=value used when the code is new")
	}
	return cmd
}

func newUploadCmd(app *App) *cobra.Command {
	var attach string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image, optionally attaching it to an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			up, err := c.Items.UploadImage(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			if attach != "" {
				it, err := resolveItem(c, attach)
				if err != nil {
					return err
				}
				it, err = c.Items.UpdateOptimistic(cmd.Context(), it.ID, items.Patch{
					ImageOriginal: items.Ptr(up.OriginalPath),
					ImageThumb:    items.Ptr(up.ThumbPath),
				})
				if err != nil {
					return err
				}
				return app.writeOut(cmd, itemView(c, it))
			}

			return app.writeOut(cmd, view{
				v:       up,
				headers: []string{"ORIGINAL", "THUMB"},
				rows:    [][]string{{c.MediaURL(up.OriginalPath), c.MediaURL(up.ThumbPath)}},
			})
		},
	}

	cmd.Flags().StringVar(&attach, "item", "", "Item id or code to attach the image to")
	return cmd
}
