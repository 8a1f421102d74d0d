package syncsdk

import (
	"context"
	"fmt"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/imroc/req/v3"
)

// SyncSDK is the client for the odktables API of one application
type SyncSDK struct {
	config    *SyncSDKConfig
	client    *req.Client
	urls      *endpoints
	stats     *httpStats
	Tables    *TablesAPI
	Rows      *RowsAPI
	Manifests *ManifestAPI
	Files     *FilesAPI
}

type sdkOptions struct {
	handler   ResponseErrorHandler
	apiClient *req.Client
}

// Option customises SDK construction
type Option func(*sdkOptions)

// WithResponseErrorHandler replaces DefaultResponseErrorHandler for every call
func WithResponseErrorHandler(h ResponseErrorHandler) Option {
	return func(o *sdkOptions) {
		o.handler = h
	}
}

// WithAPIClient replaces the req client used for metadata calls
func WithAPIClient(c *req.Client) Option {
	return func(o *sdkOptions) {
		o.apiClient = c
	}
}

// New creates a new SyncSDK client
func New(config *SyncSDKConfig, opts ...Option) (*SyncSDK, error) {
	if config == nil {
		return nil, ErrNoServerURL
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &sdkOptions{handler: DefaultResponseErrorHandler}
	for _, opt := range opts {
		opt(o)
	}
	if o.apiClient == nil {
		o.apiClient = newAPIClient(config)
	}

	urls, err := newEndpoints(config.ServerURL, config.AppName, config.ClientVersion)
	if err != nil {
		return nil, fmt.Errorf("sdk: %w", err)
	}

	stats := newHTTPStats()
	api := &apiClient{
		http:    o.apiClient,
		origin:  urls.Base(),
		token:   config.AccessToken,
		handler: o.handler,
	}
	transfer := newTransfer(newTransferClient(config), config, urls.Base(), o.handler, stats)

	return &SyncSDK{
		config:    config,
		client:    o.apiClient,
		urls:      urls,
		stats:     stats,
		Tables:    &TablesAPI{api: api, urls: urls},
		Rows:      &RowsAPI{api: api, urls: urls},
		Manifests: &ManifestAPI{api: api, urls: urls},
		Files:     &FilesAPI{api: api, urls: urls, transfer: transfer},
	}, nil
}

// BaseURL is {server}/odktables/{appName}/
func (s *SyncSDK) BaseURL() string {
	return s.urls.Base()
}

func (s *SyncSDK) Stats() HTTPStatsSnapshot {
	return s.stats.Snapshot()
}

func (s *SyncSDK) Close() {
	s.client.GetClient().CloseIdleConnections()
	s.Files.transfer.client.CloseIdleConnections()
}

// apiClient is shared by the metadata APIs
type apiClient struct {
	http    *req.Client
	origin  string
	token   string
	handler ResponseErrorHandler
}

// R starts a request to target, attaching the bearer token only when target is on the server's origin
func (c *apiClient) R(ctx context.Context, target string) *req.Request {
	r := c.http.R().SetContext(ctx)
	if c.token != "" && utils.SameOrigin(target, c.origin) {
		r.SetBearerAuthToken(c.token)
	}
	return r
}

func (c *apiClient) check(resp *req.Response, err error, op string) error {
	return handleAPIError(c.handler, resp, err, op)
}
