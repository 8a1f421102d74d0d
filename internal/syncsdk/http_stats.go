package syncsdk

import (
	"io"
	"sync/atomic"
	"time"
)

// httpStats tracks file transfer traffic for one SDK instance
type httpStats struct {
	bytesSent  atomic.Int64
	bytesRecv  atomic.Int64
	downloads  atomic.Int64
	uploads    atomic.Int64
	retries    atomic.Int64
	failures   atomic.Int64
	lastSentNs atomic.Int64
	lastRecvNs atomic.Int64

	lastErrorValue atomic.Value // string
}

func newHTTPStats() *httpStats {
	s := &httpStats{}
	s.lastErrorValue.Store("")
	return s
}

func (s *httpStats) onSend(n int) {
	if n <= 0 {
		return
	}
	s.bytesSent.Add(int64(n))
	s.lastSentNs.Store(time.Now().UnixNano())
}

func (s *httpStats) onRecv(n int) {
	if n <= 0 {
		return
	}
	s.bytesRecv.Add(int64(n))
	s.lastRecvNs.Store(time.Now().UnixNano())
}

func (s *httpStats) setLastError(err error) {
	if err == nil {
		return
	}
	s.failures.Add(1)
	s.lastErrorValue.Store(err.Error())
}

func (s *httpStats) Snapshot() HTTPStatsSnapshot {
	lastErr, _ := s.lastErrorValue.Load().(string)
	return HTTPStatsSnapshot{
		BytesSentTotal: s.bytesSent.Load(),
		BytesRecvTotal: s.bytesRecv.Load(),
		Downloads:      s.downloads.Load(),
		Uploads:        s.uploads.Load(),
		Retries:        s.retries.Load(),
		Failures:       s.failures.Load(),
		LastSentAtNs:   s.lastSentNs.Load(),
		LastRecvAtNs:   s.lastRecvNs.Load(),
		LastError:      lastErr,
	}
}

// HTTPStatsSnapshot is a stable, JSON-friendly view of transfer traffic
type HTTPStatsSnapshot struct {
	BytesSentTotal int64  `json:"bytes_sent_total" yaml:"bytes_sent_total"`
	BytesRecvTotal int64  `json:"bytes_recv_total" yaml:"bytes_recv_total"`
	Downloads      int64  `json:"downloads" yaml:"downloads"`
	Uploads        int64  `json:"uploads" yaml:"uploads"`
	Retries        int64  `json:"retries" yaml:"retries"`
	Failures       int64  `json:"failures" yaml:"failures"`
	LastSentAtNs   int64  `json:"last_sent_at_ns,omitempty" yaml:"last_sent_at_ns,omitempty"`
	LastRecvAtNs   int64  `json:"last_recv_at_ns,omitempty" yaml:"last_recv_at_ns,omitempty"`
	LastError      string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

type countingReader struct {
	r      io.Reader
	onRead func(int)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.onRead != nil {
		c.onRead(n)
	}
	return n, err
}

// readTracker remembers the first non-EOF error of the wrapped reader so a copy
// failure can be attributed to the network side rather than the disk side.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
