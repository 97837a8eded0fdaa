package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/pkg/items"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Item commands",
	}
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsGetCmd(app))
	cmd.AddCommand(newItemsCreateCmd(app))
	cmd.AddCommand(newItemsSetCmd(app))
	cmd.AddCommand(newItemsDeleteCmd(app))
	cmd.AddCommand(newItemsWatchCmd(app))
	return cmd
}

// listFlags are the item filters shared by list and watch.
type listFlags struct {
	table    string
	all      bool
	q        string
	code     string
	min      int
	max      int
	property string
	where    string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.table, "table", "", "Table name or id (default: the active table)")
	cmd.Flags().BoolVar(&f.all, "all", false, "Ignore the active table")
	cmd.Flags().StringVarP(&f.q, "query", "q", "", "Search name and code")
	cmd.Flags().StringVar(&f.code, "code", "", "Exact code")
	cmd.Flags().IntVar(&f.min, "min-quantity", -1, "Minimum quantity")
	cmd.Flags().IntVar(&f.max, "max-quantity", -1, "Maximum quantity")
	cmd.Flags().StringVar(&f.property, "property", "", "Property key, or key=value")
	cmd.Flags().StringVar(&f.where, "where", "", `Local filter expression, e.g. 'quantity < 5 && properties.material == "steel"'`)
}

// apply scopes the cache filters and reloads when they changed.
func (f *listFlags) apply(ctx context.Context, c *stocksync.Client) error {
	tableID := c.Tables.ActiveID()
	switch {
	case f.all:
		tableID = uuid.Nil
	case f.table != "":
		t, err := resolveTable(c, f.table)
		if err != nil {
			return err
		}
		tableID = t.ID
	}

	next := items.Filters{TableID: tableID, Q: f.q, Code: f.code}
	if f.min >= 0 {
		next.MinQuantity = items.Ptr(f.min)
	}
	if f.max >= 0 {
		next.MaxQuantity = items.Ptr(f.max)
	}
	if f.property != "" {
		k, v, _ := strings.Cut(f.property, "=")
		next.PropertyKey, next.PropertyValue = k, v
	}

	if reflect.DeepEqual(next, c.Items.Filters()) {
		return nil
	}
	c.Items.SetFilters(func(cur *items.Filters) { *cur = next })
	return c.Items.Fetch(ctx)
}

func newItemsListCmd(app *App) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items of the active table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			filter, err := compileWhere(flags.where)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd.Context(), c); err != nil {
				return err
			}
			return app.writeOut(cmd, itemsView(filter.Apply(c.Items.Items())))
		},
	}

	flags.register(cmd)
	return cmd
}

func newItemsGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|code>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			it, err := resolveItem(c, args[0])
			if err != nil {
				return err
			}
			// Refresh from the remote so the output is not the list snapshot.
			it, err = c.Items.FetchOne(cmd.Context(), it.ID)
			if err != nil {
				return err
			}
			return app.writeOut(cmd, itemView(c, it))
		},
	}
}

func newItemsCreateCmd(app *App) *cobra.Command {
	var (
		table    string
		name     string
		quantity int
		notes    string
		props    []string
	)

	cmd := &cobra.Command{
		Use:   "create <code>",
		Short: "Create an item in the active table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			tableID, err := targetTable(c, table)
			if err != nil {
				return err
			}
			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			if name == "" {
				name = args[0]
			}

			it, err := c.Items.Create(cmd.Context(), items.NewItem{
				TableID:    tableID,
				Code:       args[0],
				Name:       name,
				Quantity:   quantity,
				Notes:      notes,
				Properties: properties,
			})
			if err != nil {
				return err
			}
			return app.writeOut(cmd, itemView(c, it))
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table name or id (default: the active table)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: the code)")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "Initial quantity")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Property key=value; values are parsed as JSON when possible")
	return cmd
}

func newItemsSetCmd(app *App) *cobra.Command {
	var (
		props   []string
		unset   []string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "set <id|code>",
		Short: "Update an item; the change is shown locally before the remote confirms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			it, err := resolveItem(c, args[0])
			if err != nil {
				return err
			}

			var patch items.Patch
			fl := cmd.Flags()
			for flag, dst := range map[string]**string{
				"name":           &patch.Name,
				"code":           &patch.Code,
				"notes":          &patch.Notes,
				"image-original": &patch.ImageOriginal,
				"image-thumb":    &patch.ImageThumb,
			} {
				if fl.Changed(flag) {
					v, _ := fl.GetString(flag)
					*dst = items.Ptr(v)
				}
			}
			if fl.Changed("quantity") {
				q, _ := fl.GetInt("quantity")
				patch.Quantity = items.Ptr(q)
			}

			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			if replace {
				if properties == nil {
					properties = map[string]any{}
				}
				patch.Properties = properties
			} else {
				patch.PropertiesPatch = properties
			}
			patch.PropertiesRemove = unset

			if patch.IsZero() {
				return fmt.Errorf("nothing to change")
			}
			updated, err := c.Items.UpdateOptimistic(cmd.Context(), it.ID, patch)
			if err != nil {
				return err
			}
			return app.writeOut(cmd, itemView(c, updated))
		},
	}

	cmd.Flags().String("name", "", "New name")
	cmd.Flags().String("code", "", "New code")
	cmd.Flags().String("notes", "", "New notes")
	cmd.Flags().String("image-original", "", "Stored path of the full-size image")
	cmd.Flags().String("image-thumb", "", "Stored path of the thumbnail")
	cmd.Flags().Int("quantity", 0, "New quantity")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "Property key=value to merge")
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "Property key to remove")
	cmd.Flags().BoolVar(&replace, "replace-props", false, "Replace all properties with the --prop values")
	return cmd
}

func newItemsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|code>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			it, err := resolveItem(c, args[0])
			if err != nil {
				return err
			}
			if err := c.Items.Delete(cmd.Context(), it.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %s\n", it.Code)
			return nil
		},
	}
}

// resolveItem accepts an id or a code within the cached list.
func resolveItem(c *stocksync.Client, ref string) (items.Item, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if it, ok := c.Items.ByID(id); ok {
			return it, nil
		}
		return items.Item{ID: id}, nil
	}
	if it, ok := c.Items.ByCode(ref); ok {
		return it, nil
	}
	return items.Item{}, fmt.Errorf("item %q not found in the current list", ref)
}

// targetTable returns the table named by ref, or the active one.
func targetTable(c *stocksync.Client, ref string) (uuid.UUID, error) {
	if ref != "" {
		t, err := resolveTable(c, ref)
		if err != nil {
			return uuid.Nil, err
		}
		return t.ID, nil
	}
	if id := c.Tables.ActiveID(); id != uuid.Nil {
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("no active table: run `stocksync tables use <name>` or pass --table")
}

func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, raw, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", p)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[k] = v
	}
	return out, nil
}

func itemsView(list []items.Item) view {
	rows := make([][]string, 0, len(list))
	for _, it := range list {
		rows = append(rows, []string{it.Code, it.Name, strconv.Itoa(it.Quantity), formatProps(it.Properties), it.ID.String()})
	}
	return view{
		v:       list,
		headers: []string{"CODE", "NAME", "QTY", "PROPERTIES", "ID"},
		rows:    rows,
	}
}

func itemView(c *stocksync.Client, it items.Item) view {
	v := itemsView([]items.Item{it})
	if it.ImageOriginal != "" || it.ImageThumb != "" {
		v.v = struct {
			items.Item
			ImageURL string `json:"image_url,omitempty"`
			ThumbURL string `json:"thumb_url,omitempty"`
		}{it, c.MediaURL(it.ImageOriginal), c.MediaURL(it.ImageThumb)}
	} else {
		v.v = it
	}
	return v
}

func formatProps(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Sprint(props)
	}
	return string(b)
}
