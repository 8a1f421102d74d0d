package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/datakit/tablesync/internal/client/sync"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/datakit/tablesync/internal/version"
	"github.com/spf13/cobra"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// withSynchronizer opens a session for the configured application folder and
// closes it once fn returns
func withSynchronizer(cmd *cobra.Command, fn func(ctx context.Context, s *sync.Synchronizer) error) error {
	cfg, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}
	slog.Debug("starting session", "version", version.ShortWithApp(), "config", cfg.Path, "app", cfg.AppName)

	s, err := sync.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(cmd.Context(), s)
}

func tagString(tag syncsdk.SyncTag) string {
	return fmt.Sprintf("data=%s schema=%s", orDash(tag.DataETag), orDash(tag.SchemaETag))
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func label(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "%s%v\n", gray.Render(fmt.Sprintf("%-12s", name)), value)
}
