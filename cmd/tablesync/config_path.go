package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datakit/tablesync/internal/client/config"
	"github.com/datakit/tablesync/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "TABLESYNC"

// resolveConfigPath determines which config file path to use, honoring (in order):
// 1) An explicitly set --config flag
// 2) TABLESYNC_CONFIG_PATH environment variable
// 3) Existing config files in common locations
// 4) The default path
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}

	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	candidates := []string{
		config.DefaultConfigPath,
		filepath.Join(home, ".config", "tablesync", "config.json"),
	}

	for _, candidate := range candidates {
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return config.DefaultConfigPath
}

// loadConfig merges flags, TABLESYNC_* env vars, a local .env file and the
// config file, in that order of precedence. The result is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// optional .env for local runs, never overrides the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	// Bind flags to viper
	for key, flag := range map[string]string{
		"app_dir":    "app-dir",
		"app_name":   "app",
		"server_url": "server",
		"workers":    "workers",
	} {
		if f := cmd.Flag(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}

	// Set up environment variables
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return &config.Config{
		Path:            configPath,
		AppDir:          v.GetString("app_dir"),
		AppName:         v.GetString("app_name"),
		ServerURL:       v.GetString("server_url"),
		AccessToken:     v.GetString("access_token"),
		TokenValidation: v.GetString("token_validation"),
		TokenInfoURL:    v.GetString("token_info_url"),
		Workers:         v.GetInt("workers"),
		CacheSize:       v.GetInt("cache_size"),
		ConnectTimeout:  v.GetDuration("connect_timeout"),
		ReadTimeout:     v.GetDuration("read_timeout"),
		MaxRetries:      v.GetInt("max_retries"),
	}, nil
}

func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
