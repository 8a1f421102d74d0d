package syncsdk

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DownloadRequest describes one file download
type DownloadRequest struct {
	URL  string
	Dest string
	// ExpectedHash, when set, is verified against the received content before commit
	ExpectedHash string
}

// Download fetches req.URL into req.Dest. The destination is only replaced once the
// whole body was received and written; on any failure the previous content, if any,
// stays untouched. Transport failures are retried according to MaxRetries.
func (t *Transfer) Download(ctx context.Context, dl *DownloadRequest) error {
	m := newRetryMachine(t.maxRetries)
	for m.Next(ctx) {
		err := t.downloadOnce(ctx, dl)
		if m.Record(err) == stateFailedRetryable {
			t.stats.retries.Add(1)
			slog.Warn("download retry", "url", dl.URL, "attempt", m.Attempts(), "error", err)
		}
	}

	if err := m.Err(); err != nil {
		t.stats.setLastError(err)
		return err
	}
	t.stats.downloads.Add(1)
	return nil
}

func (t *Transfer) downloadOnce(ctx context.Context, dl *DownloadRequest) error {
	const op = "download"

	// cancelled by the watchdog when the body stalls
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, dl.URL, nil)
	if err != nil {
		return fmt.Errorf("sdk: download %q: %w", dl.URL, err)
	}
	httpReq.Header.Set(HeaderAcceptEncoding, EncodingGzip)
	httpReq.Header.Set(HeaderODKVersion, ODKVersion)
	httpReq.Header.Set(HeaderDate, time.Now().UTC().Format(http.TimeFormat))
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	t.decorate(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	watchdog := newIdleWatchdog(t.readTimeout, t.readTimeout, cancel)
	defer watchdog.stop()
	resp.Body = newWatchedBody(resp.Body, watchdog)
	// the connection is only reusable once the body is fully consumed
	defer drainAndClose(resp.Body)

	if err := t.onResponse(op, resp); err != nil {
		return err
	}

	counted := &countingReader{r: resp.Body, onRead: t.stats.onRecv}
	tracker := &readTracker{r: counted}
	var body io.Reader = tracker
	if isGzipEncoded(resp.Header) {
		zr, err := gzip.NewReader(tracker)
		if err != nil {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("gzip header: %w", err)}
		}
		defer zr.Close()
		body = zr
	}

	written, err := writeFileAtomic(dl.Dest, body, dl.ExpectedHash)
	if err != nil {
		if tracker.err != nil {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: tracker.err}
		}
		var gzErr *gzipError
		if errors.As(err, &gzErr) {
			return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
		}
		return err
	}

	slog.Debug("downloaded", "url", dl.URL, "path", dl.Dest, "size", humanize.Bytes(uint64(written)))
	return nil
}

// isGzipEncoded inspects every Content-Encoding value, which may be a comma list
func isGzipEncoded(h http.Header) bool {
	for _, v := range h.Values(HeaderContentEncode) {
		for _, enc := range strings.Split(v, ",") {
			enc = strings.TrimSpace(enc)
			if strings.EqualFold(enc, EncodingGzip) || strings.EqualFold(enc, "x-gzip") {
				return true
			}
		}
	}
	return false
}

type gzipError struct{ err error }

func (e *gzipError) Error() string { return "gzip stream: " + e.err.Error() }
func (e *gzipError) Unwrap() error { return e.err }

// writeFileAtomic streams r into a temp file beside dest, verifies the optional hash,
// fsyncs and renames it over dest. The temp file is removed on every failure path.
func writeFileAtomic(dest string, r io.Reader, expectedHash string) (int64, error) {
	dir := filepath.Dir(dest)
	if err := utils.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("sdk: create dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("sdk: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := utils.NewHasher()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		if isGzipFailure(err) {
			return written, &gzipError{err: err}
		}
		return written, fmt.Errorf("sdk: write %q: %w", dest, err)
	}

	if err := tmp.Sync(); err != nil {
		return written, fmt.Errorf("sdk: sync %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("sdk: close %q: %w", tmpPath, err)
	}

	if expectedHash != "" {
		if actual := utils.FormatHash(hasher); !utils.SameHash(actual, expectedHash) {
			return written, &IntegrityError{Path: dest, Expected: expectedHash, Actual: actual}
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return written, fmt.Errorf("sdk: commit %q: %w", dest, err)
	}
	committed = true
	return written, nil
}

func isGzipFailure(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &corrupt)
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
