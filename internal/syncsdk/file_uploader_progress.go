package syncsdk

import (
	"io"
	"time"
)

type ProgressCallback func(transferred int64, total int64)

// progressReader reports bytes read to callback at most twice a second and once at EOF
type progressReader struct {
	reader           io.Reader
	bytesRead        int64
	totalSize        int64
	callback         ProgressCallback
	lastCallbackTime time.Time
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
	}

	if pr.callback != nil {
		now := time.Now()
		if now.Sub(pr.lastCallbackTime) > 500*time.Millisecond || err == io.EOF {
			pr.callback(pr.bytesRead, pr.totalSize)
			pr.lastCallbackTime = now
		}
	}
	return n, err
}
