package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/datakit/tablesync/internal/client/config"
	"github.com/datakit/tablesync/internal/version"
	"github.com/spf13/cobra"
)

var home, _ = os.UserHomeDir()

// logLevel gates the terminal handler. The log file always gets debug records.
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:           "tablesync",
	Short:         "Synchronize ODK tables, rows and files with a sync server",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel.Set(slog.LevelDebug)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "tablesync config file")
	flags.StringP("app-dir", "d", config.DefaultAppDir, "application folder")
	flags.StringP("app", "a", "", "application name, defaults to the folder name")
	flags.StringP("server", "s", config.DefaultServerURL, "sync server url")
	flags.IntP("workers", "w", config.DefaultWorkers, "parallel file transfers")
	flags.StringP("output", "o", outputText, "output format: text, json or yaml")
	flags.BoolP("verbose", "v", false, "show debug logs")
}

func main() {
	logLevel.Set(slog.LevelInfo)
	logCloser := setupLogger(config.DefaultLogFilePath, logLevel)
	defer logCloser.Close()

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", red.Render("ERROR"), err)
		stop()
		logCloser.Close()
		os.Exit(1)
	}
}
