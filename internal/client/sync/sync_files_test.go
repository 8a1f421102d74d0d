package sync

import (
	"context"
	"os"
	"testing"

	"github.com/datakit/tablesync/internal/aggregatetest"
	"github.com/datakit/tablesync/internal/client/manifest"
	"github.com/datakit/tablesync/internal/client/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSync_AppPush(t *testing.T) {
	srv := newTestServer(t)
	fsync, ws := newTestFileSync(t, srv)
	ctx := context.Background()

	srv.PutFile("b.txt", []byte("same"))
	srv.PutFile("c.txt", []byte("server"))
	srv.PutFile("d.txt", []byte("gone"))
	srv.PutFile("tables/T1/properties.csv", []byte("not app level"))

	writeLocal(t, ws, "a.txt", "new")
	writeLocal(t, ws, "b.txt", "same")
	writeLocal(t, ws, "c.txt", "local")
	writeLocal(t, ws, "tables/T1/forms/f.json", "{}")
	writeLocal(t, ws, "notes.tmp", "scratch")

	report, err := fsync.SyncAppFiles(ctx, manifest.Push)
	require.NoError(t, err)
	assert.True(t, report.Success(), "failures: %v", report.Err())
	assert.Equal(t, []string{"a.txt", "c.txt"}, report.Uploaded)
	assert.Equal(t, []string{"d.txt"}, report.DeletedRemote)
	assert.Equal(t, []string{"b.txt"}, report.Unchanged)
	assert.Empty(t, report.Downloaded)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "tables/T1/properties.csv"}, srv.Files())
	content, _ := srv.File("c.txt")
	assert.Equal(t, "local", string(content))
	assert.Zero(t, srv.CountRequests("POST", "b.txt"))
}

func TestFileSync_AppPull(t *testing.T) {
	srv := newTestServer(t)
	fsync, ws := newTestFileSync(t, srv)
	ctx := context.Background()

	srv.PutFile("index.html", []byte("<html/>"))
	srv.PutFile("config/app.json", []byte(`{"v":22}`))
	srv.PutFile("assets/framework/forms/framework/formDef.json", []byte("{}"))

	writeLocal(t, ws, "config/app.json", `{"v":1}`)
	writeLocal(t, ws, "stale/old.txt", "old")
	writeLocal(t, ws, "tables/T1/properties.csv", "kept")

	report, err := fsync.SyncAppFiles(ctx, manifest.Pull)
	require.NoError(t, err)
	assert.True(t, report.Success(), "failures: %v", report.Err())
	assert.Equal(t, []string{"assets/framework/forms/framework/formDef.json", "config/app.json", "index.html"}, report.Downloaded)
	assert.Equal(t, []string{"stale/old.txt"}, report.DeletedLocal)

	assert.Equal(t, `{"v":22}`, readLocal(t, ws, "config/app.json"))
	assert.False(t, ws.Exists("stale/old.txt"))
	assert.False(t, ws.Exists("stale"))
	assert.True(t, ws.Exists("tables/T1/properties.csv"))

	// a second pull has nothing to do
	report, err = fsync.SyncAppFiles(ctx, manifest.Pull)
	require.NoError(t, err)
	assert.Empty(t, report.Downloaded)
	assert.Empty(t, report.DeletedLocal)
	assert.Len(t, report.Unchanged, 3)
}

func TestFileSync_RoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	pusher, src := newTestFileSync(t, srv)
	writeLocal(t, src, "data/report.csv", "id,name\n1,Ann\n")
	_, err := pusher.SyncAppFiles(ctx, manifest.Push)
	require.NoError(t, err)

	puller, dst := newTestFileSync(t, srv)
	report, err := puller.SyncAppFiles(ctx, manifest.Pull)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/report.csv"}, report.Downloaded)
	assert.Equal(t, readLocal(t, src, "data/report.csv"), readLocal(t, dst, "data/report.csv"))

	srcHash, err := src.Hash("data/report.csv")
	require.NoError(t, err)
	dstHash, err := dst.Hash("data/report.csv")
	require.NoError(t, err)
	assert.Equal(t, srcHash, dstHash)
}

func TestFileSync_TableScope(t *testing.T) {
	srv := newTestServer(t)
	var changed []string
	fsync, ws := newTestFileSync(t, srv, WithPropertiesHook(func(tableID string) {
		changed = append(changed, tableID)
	}))
	ctx := context.Background()

	srv.PutFile("tables/T1/properties.csv", []byte("props"))
	srv.PutFile("tables/T1/forms/T1/formDef.json", []byte("{}"))
	srv.PutFile("tables/T1/instances/uuid_1/photo.jpg", []byte("jpg"))
	srv.PutFile("assets/csv/T1.csv", []byte("csv"))
	srv.PutFile("assets/csv/T1/extra.csv", []byte("csv"))
	srv.PutFile("assets/csv/T2.csv", []byte("other"))

	writeLocal(t, ws, "tables/T1/instances/uuid_2/local.jpg", "keep")
	writeLocal(t, ws, "assets/csv/T2.csv", "keep")

	report, err := fsync.SyncTableFiles(ctx, "T1", manifest.Pull)
	require.NoError(t, err)
	assert.True(t, report.Success(), "failures: %v", report.Err())
	assert.Equal(t, []string{
		"assets/csv/T1.csv",
		"assets/csv/T1/extra.csv",
		"tables/T1/forms/T1/formDef.json",
		"tables/T1/properties.csv",
	}, report.Downloaded)
	assert.Empty(t, report.DeletedLocal)
	assert.True(t, report.PropertiesChanged)
	assert.Equal(t, []string{"T1"}, changed)
	assert.True(t, ws.Exists("tables/T1/instances/uuid_2/local.jpg"))
	assert.Equal(t, "keep", readLocal(t, ws, "assets/csv/T2.csv"))

	report, err = fsync.SyncTableFiles(ctx, "T1", manifest.Pull)
	require.NoError(t, err)
	assert.False(t, report.PropertiesChanged)
	assert.Len(t, changed, 1)

	_, err = fsync.SyncTableFiles(ctx, "../etc", manifest.Pull)
	assert.Error(t, err)
}

func TestFileSync_Attachments(t *testing.T) {
	srv := newTestServer(t)
	fsync, ws := newTestFileSync(t, srv)
	ctx := context.Background()

	srv.PutFile("tables/T1/instances/uuid_1/photo.jpg", []byte("server photo"))
	srv.PutFile("tables/T1/instances/uuid_1/audio.mp3", []byte("server audio"))
	srv.PutFile("tables/T1/instances/uuid_2/other.jpg", []byte("another row"))

	writeLocal(t, ws, "tables/T1/instances/uuid_1/photo.jpg", "edited photo")
	writeLocal(t, ws, "tables/T1/instances/uuid_1/local.jpg", "local only")

	// conflicted rows keep local files
	report, err := fsync.SyncAttachments(ctx, "T1", "uuid:1", manifest.Pull, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/T1/instances/uuid_1/audio.mp3"}, report.Downloaded)
	assert.Equal(t, []string{"tables/T1/instances/uuid_1/photo.jpg"}, report.Mismatched)
	assert.Empty(t, report.DeletedLocal)
	assert.False(t, report.Success())
	assert.Equal(t, "edited photo", readLocal(t, ws, "tables/T1/instances/uuid_1/photo.jpg"))
	assert.True(t, ws.Exists("tables/T1/instances/uuid_1/local.jpg"))
	assert.False(t, ws.Exists("tables/T1/instances/uuid_2/other.jpg"))

	report, err = fsync.SyncAttachments(ctx, "T1", "uuid:1", manifest.Pull, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/T1/instances/uuid_1/local.jpg"}, report.DeletedLocal)

	// pushes never overwrite or delete server attachments
	writeLocal(t, ws, "tables/T1/instances/uuid_1/new.jpg", "fresh")
	require.NoError(t, ws.Remove("tables/T1/instances/uuid_1/audio.mp3"))
	report, err = fsync.SyncAttachments(ctx, "T1", "uuid:1", manifest.Push, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/T1/instances/uuid_1/new.jpg"}, report.Uploaded)
	assert.Empty(t, report.DeletedRemote)
	assert.Equal(t, []string{"tables/T1/instances/uuid_1/photo.jpg"}, report.Mismatched)

	content, ok := srv.File("tables/T1/instances/uuid_1/new.jpg")
	require.True(t, ok)
	assert.Equal(t, "fresh", string(content))
	content, _ = srv.File("tables/T1/instances/uuid_1/photo.jpg")
	assert.Equal(t, "server photo", string(content))
	_, ok = srv.File("tables/T1/instances/uuid_1/audio.mp3")
	assert.True(t, ok)
	assert.Zero(t, srv.CountRequests("DELETE", "/files/"))

	_, err = fsync.SyncAttachments(ctx, "T1", "", manifest.Pull, false)
	assert.Error(t, err)
}

func TestFileSync_FailedDownloadKeepsLocalFile(t *testing.T) {
	srv := newTestServer(t)
	fsync, ws := newTestFileSync(t, srv)
	ctx := context.Background()

	srv.PutFile("config/app.json", []byte(`{"version":"server copy that is long enough"}`))
	srv.PutFile("index.html", []byte("<html/>"))
	srv.InjectFault("config/app.json", aggregatetest.Fault{Truncate: true})
	writeLocal(t, ws, "config/app.json", `{"version":"local"}`)

	report, err := fsync.SyncAppFiles(ctx, manifest.Pull)
	require.NoError(t, err)
	assert.False(t, report.Success())
	assert.Contains(t, report.Failed, "config/app.json")
	assert.Error(t, report.Err())
	assert.Equal(t, []string{"index.html"}, report.Downloaded)
	assert.Equal(t, `{"version":"local"}`, readLocal(t, ws, "config/app.json"))
}

func TestFileSync_ForbiddenUploadIsReported(t *testing.T) {
	srv := newTestServer(t)
	fsync, ws := newTestFileSync(t, srv, WithWorkers(1))
	ctx := context.Background()

	srv.Forbid("/files/200/secret")
	writeLocal(t, ws, "secret/key.txt", "k")
	writeLocal(t, ws, "public.txt", "p")

	report, err := fsync.SyncAppFiles(ctx, manifest.Push)
	require.NoError(t, err)
	assert.Equal(t, []string{"public.txt"}, report.Uploaded)
	require.Contains(t, report.Failed, "secret/key.txt")
}

func TestFileSync_CancelledContext(t *testing.T) {
	srv := newTestServer(t)
	fsync, _ := newTestFileSync(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fsync.SyncAppFiles(ctx, manifest.Pull)
	assert.Error(t, err)
}

// unreadableFS fails to hash the listed paths
type unreadableFS struct {
	*workspace.Workspace
	broken map[string]bool
}

func (u *unreadableFS) Hash(rel string) (string, error) {
	if u.broken[rel] {
		return "", os.ErrPermission
	}
	return u.Workspace.Hash(rel)
}

func TestFileSync_UnreadableLocalFileDoesNotAbortBatch(t *testing.T) {
	srv := newTestServer(t)
	ws := newTestWorkspace(t)
	fsys := &unreadableFS{Workspace: ws, broken: map[string]bool{"b.txt": true}}
	fsync := NewFileSync(newTestSDK(t, srv), fsys, NewSyncLocalState(fsys, nil))

	srv.PutFile("a.txt", []byte("a"))
	srv.PutFile("b.txt", []byte("b"))
	srv.PutFile("c.txt", []byte("c"))
	writeLocal(t, ws, "b.txt", "local b")

	report, err := fsync.SyncAppFiles(context.Background(), manifest.Pull)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Success())
	assert.ErrorIs(t, report.Failed["b.txt"], os.ErrPermission)
	assert.Len(t, report.Failed, 1)
	assert.Equal(t, []string{"a.txt", "c.txt"}, report.Downloaded)
	assert.Equal(t, "local b", readLocal(t, ws, "b.txt"))
}

func TestFileSync_NestedReservedFolderNames(t *testing.T) {
	srv := newTestServer(t)
	fsync, ws := newTestFileSync(t, srv)
	ctx := context.Background()

	writeLocal(t, ws, "assets/js/tables/list.js", "js")
	writeLocal(t, ws, "config/logs/a.txt", "log note")

	report, err := fsync.SyncAppFiles(ctx, manifest.Push)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/js/tables/list.js", "config/logs/a.txt"}, report.Uploaded)

	srv.PutFile("tables/T1/forms/logs/x.json", []byte("{}"))
	report, err = fsync.SyncTableFiles(ctx, "T1", manifest.Pull)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/T1/forms/logs/x.json"}, report.Downloaded)
}
