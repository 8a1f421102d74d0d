package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/datakit/tablesync/internal/client/sync"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/spf13/cobra"
)

func init() {
	tablesCmd := newTablesCmd()
	tablesCmd.AddCommand(newTablesCmdList())
	tablesCmd.AddCommand(newTablesCmdShow())
	tablesCmd.AddCommand(newTablesCmdCreate())
	tablesCmd.AddCommand(newTablesCmdDelete())
	rootCmd.AddCommand(tablesCmd)
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Manage tables on the sync server",
	}
}

func newTablesCmdList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tables and their sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				tables, err := s.ListTables(ctx)
				if err != nil {
					return err
				}
				synced, err := s.Tags()
				if err != nil {
					return err
				}

				views := make([]tableView, 0, len(tables))
				for _, tr := range tables {
					var tag *syncsdk.SyncTag
					if t, ok := synced[tr.TableID]; ok {
						tag = &t
					}
					views = append(views, newTableView(tr, tag))
				}

				return render(cmd, views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No tables found")
						return
					}
					for _, tr := range tables {
						fmt.Fprintf(w, "%-24s %s  %s\n", green.Render(tr.TableID), tagString(tr.Tag()), syncState(tr.TableID, tr.Tag(), synced))
					}
				})
			})
		},
	}
}

func syncState(tableID string, current syncsdk.SyncTag, synced map[string]syncsdk.SyncTag) string {
	last, ok := synced[tableID]
	switch {
	case !ok:
		return gray.Render("never synced")
	case !last.SchemaEqual(current):
		return red.Render("schema changed")
	case !last.DataEqual(current):
		return yellow.Render("behind")
	default:
		return green.Render("up to date")
	}
}

func newTablesCmdShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show [TABLE]",
		Short: "Show a table definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				def, err := s.GetTableDefinition(ctx, args[0])
				if err != nil {
					return err
				}
				view := newDefinitionView(def)
				return render(cmd, view, func(w io.Writer) {
					label(w, "Table", cyan.Render(view.TableID))
					label(w, "Schema", view.SchemaETag)
					for _, c := range view.Columns {
						fmt.Fprintf(w, "  %-24s %s\n", c.Key, gray.Render(c.Type))
					}
				})
			})
		},
	}
}

func newTablesCmdCreate() *cobra.Command {
	var schema string
	var columns []string

	cmd := &cobra.Command{
		Use:   "create [TABLE]",
		Short: "Create a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := parseColumns(columns)
			if err != nil {
				return err
			}
			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				tr, err := s.CreateTable(ctx, args[0], syncsdk.StringPtr(schema), cols)
				if err != nil {
					return err
				}
				return render(cmd, newTableView(tr, nil), func(w io.Writer) {
					fmt.Fprintf(w, "Created '%s' (%s)\n", green.Render(tr.TableID), tagString(tr.Tag()))
				})
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVar(&schema, "schema", "", "schema tag, the server picks one when empty")
	cmd.Flags().StringArrayVar(&columns, "column", nil, "column as KEY or KEY:TYPE, repeatable")
	return cmd
}

func newTablesCmdDelete() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [TABLE]",
		Aliases: []string{"rm"},
		Short:   "Delete a table on the server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				if err := s.DeleteTable(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted '%s'\n", green.Render(args[0]))
				return nil
			})
		},
	}
}

// parseColumns turns KEY[:TYPE] arguments into column descriptors
func parseColumns(specs []string) ([]syncsdk.Column, error) {
	cols := make([]syncsdk.Column, 0, len(specs))
	for _, spec := range specs {
		key, typ, _ := strings.Cut(spec, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid column %q", spec)
		}
		if typ == "" {
			typ = "string"
		}
		cols = append(cols, syncsdk.Column{ElementKey: key, ElementName: key, ElementType: typ})
	}
	return cols, nil
}
