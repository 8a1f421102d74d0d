package utils

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// LogInterceptor prefixes every complete line written to it with a sequence number and
// a timestamp before handing it to the target. Incomplete trailing lines are held until
// the next write or Close.
type LogInterceptor struct {
	target  io.Writer
	seq     atomic.Uint64
	mu      sync.Mutex
	pending bytes.Buffer
	now     func() time.Time
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target, now: time.Now}
}

// Write reports len(p) on success so callers such as slog handlers see a full write.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.pending.Write(p)
	for {
		idx := bytes.IndexByte(i.pending.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimRight(i.pending.Next(idx+1), "\r\n")
		if err := i.writeLine(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (i *LogInterceptor) writeLine(line []byte) error {
	n := i.seq.Add(1)
	_, err := fmt.Fprintf(i.target, "line=%d time=%s %s\n", n, i.now().Format(time.RFC3339), line)
	return err
}

// Close flushes a trailing partial line and closes the target when it is a Closer.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.pending.Len() > 0 {
		line := bytes.TrimRight(i.pending.Bytes(), "\r\n")
		i.pending.Reset()
		if err := i.writeLine(line); err != nil {
			return err
		}
	}
	if c, ok := i.target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
