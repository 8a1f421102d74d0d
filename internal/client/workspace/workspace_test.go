package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, w *Workspace, rel string, content string) {
	t.Helper()
	abs := w.AbsPath(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestWorkspaceSetup_CreatesLayout(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "default")
	require.NoError(t, err)

	require.NoError(t, w.Setup())
	t.Cleanup(func() { _ = w.Unlock() })

	assert.DirExists(t, w.TablesDir)
	assert.DirExists(t, w.AssetsDir)
	assert.DirExists(t, w.MetadataDir)
	assert.DirExists(t, w.LogsDir)
	assert.Equal(t, filepath.Join(w.MetadataDir, "journal.db"), w.JournalPath())
}

func TestWorkspaceLocking_SingleInstance(t *testing.T) {
	root := t.TempDir()

	w1, err := NewWorkspace(root, "default")
	require.NoError(t, err)
	w2, err := NewWorkspace(root, "default")
	require.NoError(t, err)

	require.NoError(t, w1.Lock())

	err = w2.Lock()
	require.ErrorIs(t, err, ErrWorkspaceLocked)

	lockPath := filepath.Join(root, ".data", "tablesync.lock")
	assert.FileExists(t, lockPath)

	require.NoError(t, w1.Unlock())
	_, statErr := os.Stat(lockPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, w2.Lock())
	t.Cleanup(func() { _ = w2.Unlock() })
}

func TestWorkspaceSetup_FailureReleasesLock(t *testing.T) {
	root := t.TempDir()
	// a file where the assets folder belongs
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets"), []byte("x"), 0o644))

	w1, err := NewWorkspace(root, "default")
	require.NoError(t, err)
	require.Error(t, w1.Setup())
	assert.NoFileExists(t, filepath.Join(root, ".data", "tablesync.lock"))

	require.NoError(t, os.Remove(filepath.Join(root, "assets")))
	w2, err := NewWorkspace(root, "default")
	require.NoError(t, err)
	require.NoError(t, w2.Setup())
	t.Cleanup(func() { _ = w2.Unlock() })
}

func TestWorkspace_Paths(t *testing.T) {
	root := t.TempDir()
	w, err := NewWorkspace(root, "default")
	require.NoError(t, err)

	abs := w.AbsPath("tables/T1/properties.csv")
	assert.Equal(t, filepath.Join(root, "tables", "T1", "properties.csv"), abs)

	rel, err := w.RelPath(abs)
	require.NoError(t, err)
	assert.Equal(t, "tables/T1/properties.csv", rel)

	_, err = w.RelPath(filepath.Dir(root))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	assert.Equal(t, "tables/T1", TableDir("T1"))
	assert.Equal(t, "tables/T1/instances", InstancesDir("T1"))
	assert.Equal(t, "tables/T1/instances/uuid_42", RowInstanceDir("T1", "uuid:42"))
	assert.Equal(t, "tables/T1/properties.csv", TablePropertiesPath("T1"))
	assert.Equal(t, "assets/csv", TableCSVDir())
}

func TestWorkspace_ListFiles(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "default")
	require.NoError(t, err)

	writeFile(t, w, "index.html", "x")
	writeFile(t, w, "a.txt", "x")
	writeFile(t, w, "a/b.txt", "x")
	writeFile(t, w, "tables/T1/definition.csv", "x")
	writeFile(t, w, ".data/journal.db", "x")

	all, err := w.ListFiles("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{".data/journal.db", "a.txt", "a/b.txt", "index.html", "tables/T1/definition.csv"}, all)

	skipData := func(rel string, isDir bool) bool {
		return isDir && rel == ".data" || strings.HasSuffix(rel, ".html")
	}
	filtered, err := w.ListFiles("", skipData)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "a/b.txt", "tables/T1/definition.csv"}, filtered)

	tables, err := w.ListFiles("tables", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/T1/definition.csv"}, tables)

	missing, err := w.ListFiles("nope", nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestWorkspace_HashRemoveExists(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "default")
	require.NoError(t, err)

	writeFile(t, w, "tables/T1/instances/r1/photo.jpg", "hello")
	assert.True(t, w.Exists("tables/T1/instances/r1/photo.jpg"))

	h, err := w.Hash("tables/T1/instances/r1/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "md5:5d41402abc4b2a76b9719d911017c592", h)

	info, err := w.Stat("tables/T1/instances/r1/photo.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size())

	require.NoError(t, w.Remove("tables/T1/instances/r1/photo.jpg"))
	assert.False(t, w.Exists("tables/T1/instances/r1/photo.jpg"))
	assert.NoDirExists(t, w.AbsPath("tables"))
	assert.DirExists(t, w.Root)

	// removing something already gone is fine
	require.NoError(t, w.Remove("tables/T1/instances/r1/photo.jpg"))
	assert.ErrorIs(t, w.Remove("../escape.txt"), ErrOutsideRoot)

	require.NoError(t, w.EnsureDir("assets/csv"))
	assert.DirExists(t, w.AbsPath("assets/csv"))
}

func TestIdentifiers(t *testing.T) {
	for _, id := range []string{"census", "visit_2024", "T1"} {
		assert.True(t, IsValidTableID(id), id)
	}
	for _, id := range []string{"", "2024", "_x", "a-b", "a/b"} {
		assert.False(t, IsValidTableID(id), id)
	}
	assert.Equal(t, "uuid_6f1c_aa", SafeRowDir("uuid:6f1c-aa"))
}
