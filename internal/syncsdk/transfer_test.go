package syncsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datakit/tablesync/internal/aggregatetest"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appEntry(t *testing.T, sdk *syncsdk.SyncSDK, name string) syncsdk.ManifestEntry {
	t.Helper()
	manifest, err := sdk.Manifests.App(context.Background())
	require.NoError(t, err)
	for _, e := range manifest {
		if e.Filename == name {
			return e
		}
	}
	t.Fatalf("%s not in manifest", name)
	return syncsdk.ManifestEntry{}
}

func TestDownload_TruncatedTwiceKeepsOriginal(t *testing.T) {
	srv := aggregatetest.New(false)
	defer srv.Close()
	srv.PutFile("data.csv", []byte("id,name\n1,new content that is long enough\n"))
	srv.InjectFault("data.csv", aggregatetest.Fault{Truncate: true, Times: 2})
	sdk := newSDK(t, srv, "")

	dest := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(dest, []byte("id,name\n1,original\n"), 0o644))

	err := sdk.Files.Download(context.Background(), appEntry(t, sdk, "data.csv"), dest)
	require.ErrorIs(t, err, syncsdk.ErrTransport)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,original\n", string(got))

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(dest), "*.tmp"))
	assert.Empty(t, leftovers)
	assert.Equal(t, 2, srv.CountRequests("GET", "/files/200/data.csv"))
	assert.Equal(t, int64(1), sdk.Stats().Retries)
}

func TestDownload_RetriesOnceThenSucceeds(t *testing.T) {
	srv := aggregatetest.New(false)
	defer srv.Close()
	srv.PutFile("data.csv", []byte("fresh"))
	srv.InjectFault("data.csv", aggregatetest.Fault{Status: http.StatusBadGateway})
	sdk := newSDK(t, srv, "")

	dest := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, sdk.Files.Download(context.Background(), appEntry(t, sdk, "data.csv"), dest))

	got, _ := os.ReadFile(dest)
	assert.Equal(t, "fresh", string(got))
	assert.Equal(t, 2, srv.CountRequests("GET", "/files/200/data.csv"))
}

func TestDownload_ForbiddenIsNotRetried(t *testing.T) {
	srv := aggregatetest.New(false)
	defer srv.Close()
	srv.PutFile("secret.csv", []byte("x"))
	sdk := newSDK(t, srv, "")
	entry := appEntry(t, sdk, "secret.csv")
	srv.Forbid("/files/200/secret.csv")

	err := sdk.Files.Download(context.Background(), entry, filepath.Join(t.TempDir(), "secret.csv"))
	assert.ErrorIs(t, err, syncsdk.ErrAccessDenied)
	assert.Equal(t, 1, srv.CountRequests("GET", "/files/200/secret.csv"))
}

func TestDownload_BearerOnlyForServerOrigin(t *testing.T) {
	var sawAuth atomic.Value
	sawAuth.Store("")
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		assert.Equal(t, syncsdk.ODKVersion, r.Header.Get(syncsdk.HeaderODKVersion))
		assert.NotEmpty(t, r.Header.Get("Date"))
		_, _ = w.Write([]byte("cdn bytes"))
	}))
	defer foreign.Close()

	srv := aggregatetest.New(false)
	defer srv.Close()
	srv.Token = "secret"
	srv.PutFile("local.txt", []byte("local bytes"))
	sdk := newSDK(t, srv, "secret")
	dir := t.TempDir()
	ctx := context.Background()

	err := sdk.Files.Download(ctx, syncsdk.ManifestEntry{Filename: "cdn.txt", DownloadURL: foreign.URL + "/cdn.txt"}, filepath.Join(dir, "cdn.txt"))
	require.NoError(t, err)
	assert.Equal(t, "", sawAuth.Load())

	// the fake server rejects requests without the bearer token
	require.NoError(t, sdk.Files.Download(ctx, appEntry(t, sdk, "local.txt"), filepath.Join(dir, "local.txt")))
	got, _ := os.ReadFile(filepath.Join(dir, "local.txt"))
	assert.Equal(t, "local bytes", string(got))
}

func TestDownload_IntegrityMismatchIsFinal(t *testing.T) {
	srv := aggregatetest.New(true)
	defer srv.Close()
	srv.PutFile("a.txt", []byte("server copy"))
	sdk := newSDK(t, srv, "")

	entry := appEntry(t, sdk, "a.txt")
	entry.MD5Hash = "md5:00000000000000000000000000000000"
	dest := filepath.Join(t.TempDir(), "a.txt")

	err := sdk.Files.DownloadVerified(context.Background(), entry, dest)
	assert.ErrorIs(t, err, syncsdk.ErrIntegrity)
	assert.NoFileExists(t, dest)
	assert.Equal(t, 1, srv.CountRequests("GET", "/files/200/a.txt"))
}

func TestDownload_StalledBodyTimesOut(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(100))
		_, _ = w.Write(make([]byte, 10))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer stalled.Close()
	defer close(release)

	srv := aggregatetest.New(false)
	defer srv.Close()
	sdk, err := syncsdk.New(&syncsdk.SyncSDKConfig{
		ServerURL:     srv.URL(),
		AppName:       srv.AppName,
		ClientVersion: srv.ClientVersion,
		ReadTimeout:   200 * time.Millisecond,
		MaxRetries:    -1,
	})
	require.NoError(t, err)
	defer sdk.Close()

	dest := filepath.Join(t.TempDir(), "slow.bin")
	start := time.Now()
	err = sdk.Files.Download(context.Background(), syncsdk.ManifestEntry{Filename: "slow.bin", DownloadURL: stalled.URL + "/slow.bin"}, dest)
	assert.ErrorIs(t, err, syncsdk.ErrTransport)
	assert.ErrorIs(t, err, syncsdk.ErrReadTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NoFileExists(t, dest)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownload_RetriesCappedAtOne(t *testing.T) {
	srv := aggregatetest.New(false)
	defer srv.Close()
	srv.PutFile("data.csv", []byte("fresh"))
	srv.InjectFault("data.csv", aggregatetest.Fault{Status: http.StatusInternalServerError, Times: 5})
	sdk, err := syncsdk.New(&syncsdk.SyncSDKConfig{
		ServerURL:     srv.URL(),
		AppName:       srv.AppName,
		ClientVersion: srv.ClientVersion,
		MaxRetries:    3,
	})
	require.NoError(t, err)
	defer sdk.Close()

	err = sdk.Files.Download(context.Background(), appEntry(t, sdk, "data.csv"), filepath.Join(t.TempDir(), "data.csv"))
	assert.ErrorIs(t, err, syncsdk.ErrTransport)
	assert.Equal(t, 2, srv.CountRequests("GET", "/files/200/data.csv"))
}

func TestUpload_MissingFile(t *testing.T) {
	srv := aggregatetest.New(false)
	defer srv.Close()
	sdk := newSDK(t, srv, "")

	err := sdk.Files.Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 0, srv.CountRequests("POST", "/files/"))
}
