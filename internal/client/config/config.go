package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/goccy/go-json"
)

const (
	ValidationTokenInfo = "tokeninfo"
	ValidationJWT       = "jwt"
	ValidationNone      = "none"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".tablesync", "config.json")
	DefaultLogFilePath = filepath.Join(home, ".tablesync", "logs", "tablesync.log")
	DefaultAppDir      = filepath.Join(home, "opendatakit", "default")
	DefaultAppName     = "default"
	DefaultServerURL   = "https://sync.example.org"
	DefaultWorkers     = 4
	DefaultCacheSize   = 1024
	DefaultTimeout     = 30 * time.Second
)

var (
	ErrNoAppDir     = errors.New("config: app dir missing")
	ErrNoAppName    = errors.New("config: app name missing")
	ErrBadServerURL = errors.New("config: invalid server url")
	ErrBadValidator = errors.New("config: unknown token validation mode")
)

type Config struct {
	AppDir          string        `json:"app_dir" mapstructure:"app_dir"`
	AppName         string        `json:"app_name" mapstructure:"app_name"`
	ServerURL       string        `json:"server_url" mapstructure:"server_url"`
	AccessToken     string        `json:"access_token,omitempty" mapstructure:"access_token"`
	TokenValidation string        `json:"token_validation,omitempty" mapstructure:"token_validation"`
	TokenInfoURL    string        `json:"token_info_url,omitempty" mapstructure:"token_info_url"`
	Workers         int           `json:"workers,omitempty" mapstructure:"workers"`
	CacheSize       int           `json:"cache_size,omitempty" mapstructure:"cache_size"`
	ConnectTimeout  time.Duration `json:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
	ReadTimeout     time.Duration `json:"read_timeout,omitempty" mapstructure:"read_timeout"`
	MaxRetries      int           `json:"max_retries,omitempty" mapstructure:"max_retries"`
	Path            string        `json:"-" mapstructure:"config_path"`
}

// Validate normalises paths and urls and fills defaults
func (c *Config) Validate() error {
	if c.AppDir == "" {
		return ErrNoAppDir
	}
	appDir, err := utils.ResolvePath(c.AppDir)
	if err != nil {
		return fmt.Errorf("config: app dir: %w", err)
	}
	c.AppDir = appDir

	if c.AppName == "" {
		c.AppName = filepath.Base(c.AppDir)
	}
	if c.AppName == "" || c.AppName == string(filepath.Separator) || strings.ContainsAny(c.AppName, "/\\?#") {
		return ErrNoAppName
	}

	u, err := url.Parse(strings.TrimSpace(c.ServerURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadServerURL, c.ServerURL)
	}
	c.ServerURL = strings.TrimRight(u.String(), "/")

	switch strings.ToLower(c.TokenValidation) {
	case "":
		c.TokenValidation = ValidationNone
		if c.AccessToken != "" {
			c.TokenValidation = ValidationTokenInfo
		}
	case ValidationTokenInfo, ValidationJWT, ValidationNone:
		c.TokenValidation = strings.ToLower(c.TokenValidation)
	default:
		return fmt.Errorf("%w: %q", ErrBadValidator, c.TokenValidation)
	}

	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultTimeout
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config: path: %w", err)
		}
	}
	return nil
}

// StateDir holds journals and logs. It lives inside the app folder and is never synced.
func (c *Config) StateDir() string {
	return filepath.Join(c.AppDir, ".data")
}

func (c *Config) LogDir() string {
	return filepath.Join(c.AppDir, "logs")
}

// Save writes the config as JSON, leaving out the access token
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	out := *c
	out.AccessToken = ""
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}
