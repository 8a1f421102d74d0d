package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datakit/tablesync/internal/aggregatetest"
	"github.com/datakit/tablesync/internal/client/cache"
	"github.com/datakit/tablesync/internal/client/workspace"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *aggregatetest.Server {
	t.Helper()
	srv := aggregatetest.New(false)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSDK(t *testing.T, srv *aggregatetest.Server) *syncsdk.SyncSDK {
	t.Helper()
	sdk, err := syncsdk.New(&syncsdk.SyncSDKConfig{
		ServerURL:     srv.URL(),
		AppName:       srv.AppName,
		ClientVersion: srv.ClientVersion,
		MaxRetries:    -1,
	})
	require.NoError(t, err)
	t.Cleanup(sdk.Close)
	return sdk
}

func newTestRowSync(t *testing.T, srv *aggregatetest.Server) (*RowSync, *cache.TableCache) {
	t.Helper()
	c := cache.New(16)
	return NewRowSync(newTestSDK(t, srv), c), c
}

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.NewWorkspace(t.TempDir(), "default")
	require.NoError(t, err)
	return ws
}

func newTestFileSync(t *testing.T, srv *aggregatetest.Server, opts ...FileSyncOption) (*FileSync, *workspace.Workspace) {
	t.Helper()
	ws := newTestWorkspace(t)
	journal := NewJournal(ws.JournalPath())
	require.NoError(t, journal.Open())
	t.Cleanup(func() { _ = journal.Close() })
	return NewFileSync(newTestSDK(t, srv), ws, NewSyncLocalState(ws, journal), opts...), ws
}

func writeLocal(t *testing.T, ws *workspace.Workspace, rel, content string) {
	t.Helper()
	abs := ws.AbsPath(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func readLocal(t *testing.T, ws *workspace.Workspace, rel string) string {
	t.Helper()
	b, err := os.ReadFile(ws.AbsPath(rel))
	require.NoError(t, err)
	return string(b)
}

func row(id string, values ...string) syncsdk.Row {
	r := syncsdk.Row{RowID: id, FilterScope: syncsdk.FilterScope{Type: "DEFAULT"}}
	for i := 0; i+1 < len(values); i += 2 {
		r.Values = append(r.Values, syncsdk.DataKeyValue{Column: values[i], Value: values[i+1]})
	}
	return r
}
