package syncsdk

import (
	"fmt"
	"strings"
	"time"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/datakit/tablesync/internal/version"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultMaxRetries     = 1
	// MaxRetryLimit caps re-attempts of a single transfer
	MaxRetryLimit = 1
)

// SyncSDKConfig is the configuration for the SyncSDK
type SyncSDKConfig struct {
	ServerURL      string        // ServerURL is required
	AppName        string        // AppName is required
	AccessToken    string        // AccessToken is optional
	ClientVersion  string        // ClientVersion defaults to version.ClientVersion()
	ConnectTimeout time.Duration // ConnectTimeout bounds dialing
	ReadTimeout    time.Duration // ReadTimeout bounds waiting for response headers
	MaxRetries     int           // MaxRetries for transfers, capped at MaxRetryLimit; negative disables retry
}

func (c *SyncSDKConfig) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	if c.AppName == "" || strings.ContainsAny(c.AppName, "/?#") {
		return ErrNoAppName
	}
	if _, err := utils.NormalizeURI(c.ServerURL, "/"); err != nil {
		return fmt.Errorf("sdk: server url: %w", err)
	}

	if c.ClientVersion == "" {
		c.ClientVersion = version.ClientVersion()
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	} else if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries > MaxRetryLimit {
		c.MaxRetries = MaxRetryLimit
	}
	return nil
}
