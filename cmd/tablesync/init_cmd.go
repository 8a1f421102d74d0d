package main

import (
	"fmt"
	"io"

	"github.com/datakit/tablesync/internal/client/config"
	"github.com/datakit/tablesync/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file for an application folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := resolveConfigPath(cmd)
			out := cmd.OutOrStdout()

			if existing, err := config.LoadClientConfig(configPath); err == nil && !force {
				fmt.Fprintln(out, "tablesync already initialized")
				printConfig(out, existing)
				return nil
			}

			cfg, err := loadValidConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			cfg.Path = configPath

			fmt.Fprintln(out, "tablesync initialized")
			printConfig(out, cfg)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	label(w, "Config Path", green.Render(cfg.Path))
	label(w, "App Dir", cyan.Render(cfg.AppDir))
	label(w, "App Name", cyan.Render(cfg.AppName))
	label(w, "Server", cyan.Render(cfg.ServerURL))
	if cfg.AccessToken != "" {
		label(w, "Token", utils.MaskSecret(cfg.AccessToken))
	}
}
