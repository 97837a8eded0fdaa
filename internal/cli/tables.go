package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/pkg/tables"
)

func newTablesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tables",
		Aliases: []string{"table"},
		Short:   "Table commands",
	}
	cmd.AddCommand(newTablesListCmd(app))
	cmd.AddCommand(newTablesUseCmd(app))
	cmd.AddCommand(newTablesCreateCmd(app))
	cmd.AddCommand(newTablesRenameCmd(app))
	cmd.AddCommand(newTablesDeleteCmd(app))
	return cmd
}

func newTablesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tables; the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			return app.writeOut(cmd, tablesView(c.Tables.Tables(), c.Tables.ActiveID()))
		},
	}
}

func newTablesUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name|id>",
		Short: "Select the active table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			t, err := resolveTable(c, args[0])
			if err != nil {
				return err
			}
			if err := c.Tables.SetActive(cmd.Context(), t.ID); err != nil {
				return err
			}
			return app.writeOut(cmd, tablesView([]tables.Table{t}, t.ID))
		},
	}
}

func newTablesCreateCmd(app *App) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a table and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			in := tables.Name(args[0])
			if schema != "" {
				if err := json.Unmarshal([]byte(schema), &in.Schema); err != nil {
					return fmt.Errorf("invalid --schema: %w", err)
				}
			}
			t, err := c.Tables.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return app.writeOut(cmd, tablesView([]tables.Table{t}, c.Tables.ActiveID()))
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", `Schema as JSON, e.g. '{"fields":[{"key":"size","type":"number"}]}'`)
	return cmd
}

func newTablesRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name|id> <new-name>",
		Short: "Rename a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			t, err := resolveTable(c, args[0])
			if err != nil {
				return err
			}
			t, err = c.Tables.Update(cmd.Context(), t.ID, tables.Name(args[1]))
			if err != nil {
				return err
			}
			return app.writeOut(cmd, tablesView([]tables.Table{t}, c.Tables.ActiveID()))
		},
	}
}

func newTablesDeleteCmd(app *App) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "delete <name|id>",
		Short: "Delete a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			t, err := resolveTable(c, args[0])
			if err != nil {
				return err
			}
			if err := c.Tables.Delete(cmd.Context(), t.ID, purge); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted table %s\n", t.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the items in the table")
	return cmd
}

// resolveTable accepts an id or a case-insensitive name.
func resolveTable(c *stocksync.Client, ref string) (tables.Table, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if t, ok := c.Tables.ByID(id); ok {
			return t, nil
		}
	}
	if t, ok := c.Tables.ByName(ref); ok {
		return t, nil
	}
	return tables.Table{}, fmt.Errorf("table %q not found", ref)
}

func tablesView(list []tables.Table, active uuid.UUID) view {
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		mark := ""
		if t.ID == active {
			mark = "*"
		}
		rows = append(rows, []string{mark, t.ID.String(), t.Name, t.UpdatedAt.Local().Format(time.DateTime)})
	}
	return view{
		v:       list,
		headers: []string{"", "ID", "NAME", "UPDATED"},
		rows:    rows,
	}
}
