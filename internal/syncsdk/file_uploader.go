package syncsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Upload streams a local file as a binary POST body to target. There is a single
// attempt; failures surface as TransportError or AccessDeniedError.
func (t *Transfer) Upload(ctx context.Context, localPath string, target string, callback ProgressCallback) error {
	const op = "upload"

	err := t.uploadOnce(ctx, op, localPath, target, callback)
	if err != nil {
		t.stats.setLastError(err)
		return err
	}
	t.stats.uploads.Add(1)
	return nil
}

func (t *Transfer) uploadOnce(ctx context.Context, op, localPath, target string, callback ProgressCallback) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sdk: upload open %q: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("sdk: upload stat %q: %w", localPath, err)
	}

	// the first window also covers dialing, later ones only idle sends
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := newIdleWatchdog(t.connectTimeout+t.readTimeout, t.readTimeout, cancel)
	defer watchdog.stop()

	body := &progressReader{
		reader:    &watchedReader{r: &countingReader{r: file, onRead: t.stats.onSend}, w: watchdog, stopAtEOF: true},
		totalSize: info.Size(),
		callback:  callback,
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("sdk: upload %q: %w", target, err)
	}
	httpReq.ContentLength = info.Size()
	httpReq.Header.Set(HeaderContentType, ContentTypeOctet)
	httpReq.Header.Set(HeaderODKVersion, ODKVersion)
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	t.decorate(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &TransportError{Op: op, Err: watchdog.wrap(err)}
	}
	defer drainAndClose(resp.Body)

	if err := t.onResponse(op, resp); err != nil {
		return err
	}

	slog.Debug("uploaded", "path", localPath, "url", target, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}
