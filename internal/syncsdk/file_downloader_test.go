package syncsdk

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datakit/tablesync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func tmpFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	return matches
}

func TestWriteFileAtomic_CommitsAndVerifies(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "a.txt")
	content := []byte("hello tables")

	n, err := writeFileAtomic(dest, bytes.NewReader(content), utils.BytesHash(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Empty(t, tmpFiles(t, filepath.Dir(dest)))
}

func TestWriteFileAtomic_PartialStreamKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(dest, []byte("original"), 0o644))

	r := &failingReader{data: []byte("half of the new con"), err: io.ErrUnexpectedEOF}
	_, err := writeFileAtomic(dest, r, "")
	require.Error(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
	assert.Empty(t, tmpFiles(t, dir))
}

func TestWriteFileAtomic_HashMismatch(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(dest, []byte("original"), 0o644))

	_, err := writeFileAtomic(dest, bytes.NewReader([]byte("tampered")), utils.BytesHash([]byte("expected")))
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, utils.BytesHash([]byte("expected")), integrity.Expected)
	assert.Equal(t, utils.BytesHash([]byte("tampered")), integrity.Actual)

	got, _ := os.ReadFile(dest)
	assert.Equal(t, "original", string(got))
	assert.Empty(t, tmpFiles(t, dir))
}

func TestWriteFileAtomic_HashCaseInsensitive(t *testing.T) {
	content := []byte("hello tables")
	hash := utils.BytesHash(content)

	for _, expected := range []string{strings.ToUpper(hash), strings.TrimPrefix(hash, "md5:")} {
		dest := filepath.Join(t.TempDir(), "a.txt")
		_, err := writeFileAtomic(dest, bytes.NewReader(content), expected)
		require.NoError(t, err, expected)
		assert.FileExists(t, dest)
	}
}

func TestWriteFileAtomic_CorruptGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(bytes.Repeat([]byte("row,"), 1024))
	require.NoError(t, zw.Close())
	cut := buf.Bytes()[:buf.Len()/2]

	zr, err := gzip.NewReader(bytes.NewReader(cut))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "a.csv")
	_, err = writeFileAtomic(dest, zr, "")
	var gzErr *gzipError
	assert.True(t, errors.As(err, &gzErr))
	assert.NoFileExists(t, dest)
}

func TestIsGzipEncoded(t *testing.T) {
	h := http.Header{}
	assert.False(t, isGzipEncoded(h))

	h.Set("Content-Encoding", "GZIP")
	assert.True(t, isGzipEncoded(h))

	h = http.Header{}
	h.Add("Content-Encoding", "identity")
	h.Add("Content-Encoding", "br, x-gzip")
	assert.True(t, isGzipEncoded(h))

	h = http.Header{}
	h.Set("Content-Encoding", "deflate")
	assert.False(t, isGzipEncoded(h))
}

func TestReadTracker_RecordsFirstError(t *testing.T) {
	tr := &readTracker{r: &failingReader{data: []byte("abc"), err: io.ErrUnexpectedEOF}}
	_, err := io.ReadAll(tr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, tr.err, io.ErrUnexpectedEOF)

	ok := &readTracker{r: bytes.NewReader([]byte("abc"))}
	_, err = io.ReadAll(ok)
	assert.NoError(t, err)
	assert.NoError(t, ok.err)
}

func TestParseBareTag(t *testing.T) {
	assert.Equal(t, "d3", parseBareTag("d3"))
	assert.Equal(t, "d3", parseBareTag(" d3\n"))
	assert.Equal(t, "d3", parseBareTag(`"d3"`))
	assert.Equal(t, "", parseBareTag(""))
	assert.Equal(t, "", parseBareTag("null"))
}
