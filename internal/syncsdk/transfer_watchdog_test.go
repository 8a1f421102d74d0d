package syncsdk

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// blockingReader yields its data, then blocks until ctx is done
type blockingReader struct {
	ctx  context.Context
	data []byte
}

func (b *blockingReader) Read(p []byte) (int, error) {
	if len(b.data) > 0 {
		n := copy(p, b.data)
		b.data = b.data[n:]
		return n, nil
	}
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func TestIdleWatchdog_CancelsStalledReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := newIdleWatchdog(50*time.Millisecond, 50*time.Millisecond, cancel)
	defer w.stop()

	r := &watchedReader{r: &blockingReader{ctx: ctx, data: []byte("some bytes")}, w: w}
	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestIdleWatchdog_QuietWhenDataFlows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := newIdleWatchdog(time.Second, time.Second, cancel)

	r := &watchedReader{r: strings.NewReader("all of it"), w: w, stopAtEOF: true}
	got, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "all of it", string(got))
	assert.NoError(t, ctx.Err())
}

func TestIdleWatchdog_ZeroTimeoutDisabled(t *testing.T) {
	w := newIdleWatchdog(0, 0, func() { t.Fatal("cancelled") })
	w.kick()
	w.stop()
	other := errors.New("reset")
	assert.Equal(t, other, w.wrap(other))
}
