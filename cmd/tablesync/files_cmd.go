package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/datakit/tablesync/internal/client/manifest"
	"github.com/datakit/tablesync/internal/client/sync"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type filesOpts struct {
	table      string
	row        string
	allTables  bool
	conflicted bool
}

func init() {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Synchronize app, table and attachment files",
	}
	filesCmd.AddCommand(newFilesCmd(manifest.Pull, "Download server files and remove local files the server no longer has"))
	filesCmd.AddCommand(newFilesCmd(manifest.Push, "Upload local files and remove server files deleted locally"))
	rootCmd.AddCommand(filesCmd)
}

func newFilesCmd(dir manifest.Direction, short string) *cobra.Command {
	var opts filesOpts

	cmd := &cobra.Command{
		Use:   dir.String(),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.row != "" && opts.table == "" {
				return fmt.Errorf("--row requires --table")
			}
			return withSynchronizer(cmd, func(ctx context.Context, s *sync.Synchronizer) error {
				reports, err := syncFiles(ctx, s, dir, opts)
				views := make([]reportView, 0, len(reports))
				for _, r := range reports {
					views = append(views, newReportView(r))
				}
				stats := s.Stats()

				if rerr := render(cmd, views, func(w io.Writer) {
					for _, v := range views {
						printReport(w, v)
					}
					fmt.Fprintf(w, "%s sent %s, received %s\n", gray.Render("transfer"),
						humanize.Bytes(uint64(stats.BytesSentTotal)), humanize.Bytes(uint64(stats.BytesRecvTotal)))
				}); rerr != nil {
					return rerr
				}
				if err != nil {
					return err
				}

				failed := 0
				for _, r := range reports {
					if !r.Success() {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d scopes did not complete", failed, len(reports))
				}
				return nil
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&opts.table, "table", "t", "", "sync one table's files instead of the app files")
	cmd.Flags().StringVarP(&opts.row, "row", "r", "", "sync the attachments of one row, needs --table")
	cmd.Flags().BoolVar(&opts.allTables, "all-tables", false, "also sync the files of every table")
	cmd.Flags().BoolVar(&opts.conflicted, "conflicted", false, "the row is in conflict, keep its local attachments")
	return cmd
}

// syncFiles runs the scopes selected by opts. Reports of finished scopes are
// returned even when a later scope fails.
func syncFiles(ctx context.Context, s *sync.Synchronizer, dir manifest.Direction, opts filesOpts) ([]*sync.FileSyncReport, error) {
	switch {
	case opts.row != "":
		r, err := s.SyncAttachments(ctx, opts.table, opts.row, dir, opts.conflicted)
		return compact(r), err
	case opts.table != "":
		r, err := s.SyncTableFiles(ctx, opts.table, dir)
		return compact(r), err
	}

	var reports []*sync.FileSyncReport
	r, err := s.SyncAppFiles(ctx, dir)
	reports = append(reports, compact(r)...)
	if err != nil || !opts.allTables {
		return reports, err
	}

	tables, err := s.ListTables(ctx)
	if err != nil {
		return reports, err
	}
	for _, tr := range tables {
		r, err := s.SyncTableFiles(ctx, tr.TableID, dir)
		reports = append(reports, compact(r)...)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func compact(r *sync.FileSyncReport) []*sync.FileSyncReport {
	if r == nil {
		return nil
	}
	return []*sync.FileSyncReport{r}
}

func printReport(w io.Writer, v reportView) {
	status := green.Render("ok")
	if len(v.Failed) > 0 || len(v.Mismatched) > 0 {
		status = red.Render("incomplete")
	}
	fmt.Fprintf(w, "%s %s %s (%s)\n", cyan.Render(v.Scope), v.Direction, status, v.Duration)

	lists := []struct {
		name  string
		paths []string
	}{
		{"uploaded", v.Uploaded},
		{"downloaded", v.Downloaded},
		{"deleted", v.DeletedLocal},
		{"removed", v.DeletedRemote},
		{"mismatched", v.Mismatched},
	}
	for _, l := range lists {
		for _, p := range l.paths {
			fmt.Fprintf(w, "  %-11s %s\n", l.name, p)
		}
	}

	failed := make([]string, 0, len(v.Failed))
	for p := range v.Failed {
		failed = append(failed, p)
	}
	sort.Strings(failed)
	for _, p := range failed {
		fmt.Fprintf(w, "  %-11s %s: %s\n", red.Render("failed"), p, v.Failed[p])
	}
	if v.PropertiesChanged {
		fmt.Fprintf(w, "  %s\n", yellow.Render("table properties changed"))
	}
	fmt.Fprintf(w, "  %-11s %d\n", "unchanged", v.Unchanged)
}
