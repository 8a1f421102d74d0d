package syncsdk

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// idleWatchdog cancels a transfer attempt once no bytes moved for timeout.
// The transport only bounds dialing and the wait for response headers, so a
// peer that stalls mid body is caught here.
type idleWatchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

// newIdleWatchdog arms the watchdog with a first window, which may be longer
// than timeout to cover dialing. A zero timeout disables it.
func newIdleWatchdog(first, timeout time.Duration, cancel context.CancelFunc) *idleWatchdog {
	w := &idleWatchdog{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(first, func() {
			w.fired.Store(true)
			cancel()
		})
	}
	return w
}

func (w *idleWatchdog) kick() {
	if w.timer != nil && !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *idleWatchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// wrap replaces the cancellation error of an expired attempt with ErrReadTimeout
func (w *idleWatchdog) wrap(err error) error {
	if err != nil && err != io.EOF && w.fired.Load() {
		return fmt.Errorf("%w: no data for %s", ErrReadTimeout, w.timeout)
	}
	return err
}

// watchedReader kicks the watchdog on every read that moved bytes.
// stopAtEOF hands an upload over to the response header timeout once the
// request body is fully sent.
type watchedReader struct {
	r         io.Reader
	w         *idleWatchdog
	stopAtEOF bool
}

func (r *watchedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.w.kick()
	}
	if err == io.EOF && r.stopAtEOF {
		r.w.stop()
	}
	return n, r.w.wrap(err)
}

// watchedBody is a response body guarded by a watchdog
type watchedBody struct {
	watchedReader
	closer io.Closer
}

func newWatchedBody(body io.ReadCloser, w *idleWatchdog) *watchedBody {
	return &watchedBody{watchedReader: watchedReader{r: body, w: w}, closer: body}
}

func (b *watchedBody) Close() error {
	return b.closer.Close()
}
