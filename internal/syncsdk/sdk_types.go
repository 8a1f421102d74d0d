package syncsdk

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/datakit/tablesync/internal/version"
	"github.com/imroc/req/v3"
)

const (
	HeaderUserAgent      = "User-Agent"
	HeaderAccept         = "Accept"
	HeaderAcceptCharset  = "Accept-Charset"
	HeaderAcceptEncoding = "Accept-Encoding"
	HeaderContentEncode  = "Content-Encoding"
	HeaderContentType    = "Content-Type"
	HeaderDate           = "Date"
	HeaderODKVersion     = "X-OpenDataKit-Version"
	HeaderInstallationID = "X-OpenDataKit-Installation-Id"
	HeaderRequestID      = "X-Request-Id"

	ODKVersion       = "2.0"
	EncodingGzip     = "gzip"
	ContentTypeOctet = "application/octet-stream"
)

// acceptMediaTypes prefers JSON and tolerates XML and plain text
var acceptMediaTypes = strings.Join([]string{
	"application/json;q=1.0",
	"text/xml;charset=utf-8;q=0.8",
	"application/*+xml;charset=utf-8;q=0.6",
	"text/plain;charset=utf-8;q=0.4",
}, ", ")

// newAPIClient builds the req client used for table, row and manifest calls.
// GETs are retried on network errors only. Mutations opt out per request.
func newAPIClient(cfg *SyncSDKConfig) *req.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}

	return req.C().
		SetUserAgent(version.UserAgent()).
		SetTimeout(cfg.ConnectTimeout+cfg.ReadTimeout).
		SetDial(dialer.DialContext).
		SetCommonHeader(HeaderODKVersion, ODKVersion).
		SetCommonHeader(HeaderAccept, acceptMediaTypes).
		SetCommonHeader(HeaderAcceptCharset, "utf-8").
		SetCommonHeader(HeaderInstallationID, utils.HWID).
		SetCommonRetryCount(cfg.MaxRetries).
		SetCommonRetryFixedInterval(250*time.Millisecond).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			if err == nil {
				return false
			}
			return resp != nil && resp.Request != nil && resp.Request.Method == http.MethodGet
		}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
}

// newTransferClient builds the plain http client used for streamed file bodies.
// Compression is handled by the caller so the transport must not decode it.
func newTransferClient(cfg *SyncSDKConfig) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			DisableCompression:    true,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
