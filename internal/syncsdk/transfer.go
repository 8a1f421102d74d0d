package syncsdk

import (
	"net/http"
	"time"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/datakit/tablesync/internal/version"
)

// Transfer moves file bodies between disk and the server.
//
// It does not use the req client: file bodies are streamed with an explicit
// Content-Length and compression is decoded here, based on the response header.
type Transfer struct {
	client     *http.Client
	origin     string
	token      string
	handler    ResponseErrorHandler
	maxRetries int
	// connectTimeout and readTimeout bound the idle watchdog of each attempt
	connectTimeout time.Duration
	readTimeout    time.Duration
	stats          *httpStats
}

func newTransfer(client *http.Client, cfg *SyncSDKConfig, origin string, handler ResponseErrorHandler, stats *httpStats) *Transfer {
	if handler == nil {
		handler = DefaultResponseErrorHandler
	}
	if stats == nil {
		stats = newHTTPStats()
	}
	return &Transfer{
		client:         client,
		origin:         origin,
		token:          cfg.AccessToken,
		handler:        handler,
		maxRetries:     cfg.MaxRetries,
		connectTimeout: cfg.ConnectTimeout,
		readTimeout:    cfg.ReadTimeout,
		stats:          stats,
	}
}

// decorate adds identity headers and, only for URLs on the server's own host and port,
// the bearer token. Manifest download URLs may point elsewhere.
func (t *Transfer) decorate(r *http.Request) {
	r.Header.Set(HeaderUserAgent, version.UserAgent())
	r.Header.Set(HeaderInstallationID, utils.HWID)
	if t.token != "" && utils.SameOrigin(r.URL.String(), t.origin) {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}
}

func (t *Transfer) onResponse(op string, resp *http.Response) error {
	return t.handler(op, resp)
}

// Stats returns a snapshot of transfer counters
func (t *Transfer) Stats() HTTPStatsSnapshot {
	return t.stats.Snapshot()
}
