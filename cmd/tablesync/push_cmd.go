package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/datakit/tablesync/internal/client/sync"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPushCmd())
}

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push [TABLE] [ROWS.json]",
		Short: "Write rows from a JSON file to the server",
		Long: `Write rows from a JSON array to the server. Rows marked "deleted" are
deleted, rows without a rowId get a new one. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID := args[0]
			rows, err := readRows(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				view, err := pushRows(ctx, s, tableID, rows)
				if err != nil {
					return err
				}
				if err := render(cmd, view, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %d written, %d deleted, %d failed (%s)\n",
						cyan.Render(tableID), len(view.Written), len(view.Deleted), len(view.Failed),
						fmt.Sprintf("data=%s schema=%s", view.Tag.DataETag, view.Tag.SchemaETag))
					for id, msg := range view.Failed {
						fmt.Fprintf(w, "  %s %s: %s\n", red.Render("failed"), id, msg)
					}
				}); err != nil {
					return err
				}
				if len(view.Failed) > 0 {
					return fmt.Errorf("%d rows failed", len(view.Failed))
				}
				return nil
			})
		},
	}
	return cmd
}

// pushRows writes rows one after another, threading the table tag through
// every write. The tag is recorded only when the table was synced before and
// every row went through.
func pushRows(ctx context.Context, s *sync.Synchronizer, tableID string, rows []syncsdk.Row) (*pushView, error) {
	current, synced, err := s.LastTag(tableID)
	if err != nil {
		return nil, err
	}
	if !synced {
		tr, err := s.GetTable(ctx, tableID)
		if err != nil {
			return nil, err
		}
		current = tr.Tag()
	}

	view := &pushView{TableID: tableID, Written: []string{}, Deleted: []string{}, Failed: map[string]string{}}
	for _, r := range rows {
		if r.RowID == "" {
			r.RowID = sync.NewRowID()
		}
		row := sync.NewSyncRow(r)

		var mod *sync.RowModification
		if r.Deleted {
			mod, err = s.DeleteRow(ctx, tableID, current, row)
		} else {
			mod, err = s.UpsertRow(ctx, tableID, current, row)
		}
		if err != nil {
			slog.Error("row push failed", "table", tableID, "row", r.RowID, "error", err)
			view.Failed[r.RowID] = err.Error()
			continue
		}

		current = mod.TableTag
		if r.Deleted {
			view.Deleted = append(view.Deleted, mod.RowID)
		} else {
			view.Written = append(view.Written, mod.RowID)
		}
	}

	view.Tag = newTagView(current)
	if synced && len(view.Failed) == 0 {
		if err := s.SaveTag(tableID, current); err != nil {
			return nil, err
		}
		view.Saved = true
	}
	return view, nil
}

func readRows(stdin io.Reader, path string) ([]syncsdk.Row, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var rows []syncsdk.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows %q: %w", path, err)
	}
	return rows, nil
}
