package main

import (
	"context"
	"fmt"
	"io"

	"github.com/datakit/tablesync/internal/client/sync"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPullCmd())
}

func newPullCmd() *cobra.Command {
	var full bool
	var noSave bool

	cmd := &cobra.Command{
		Use:   "pull [TABLE]",
		Short: "Print the rows changed on the server since the last pull",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID := args[0]
			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				var in *sync.IncomingRowModifications
				var err error
				if full {
					in, err = s.FetchChanges(ctx, tableID, syncsdk.SyncTag{})
				} else {
					in, err = s.PullRows(ctx, tableID)
				}
				if err != nil {
					return err
				}

				saved := !noSave
				if saved {
					if err := s.SaveTag(tableID, in.TableTag); err != nil {
						return err
					}
				}

				view := newChangesView(tableID, in, saved)
				return render(cmd, view, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %d rows changed (%s)\n", cyan.Render(tableID), len(view.Rows), tagString(in.TableTag))
					for _, r := range view.Rows {
						state := green.Render("upsert")
						if r.Deleted {
							state = red.Render("delete")
						}
						fmt.Fprintf(w, "  %s %s %s\n", state, r.RowID, gray.Render(r.RowETag))
						for _, kv := range r.Values {
							fmt.Fprintf(w, "      %s=%s\n", kv.Column, kv.Value)
						}
					}
				})
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().BoolVar(&full, "full", false, "fetch every row instead of the changes since the last pull")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the new table tag")
	return cmd
}
