package sync

import (
	"testing"

	"github.com/datakit/tablesync/internal/client/manifest"
	"github.com/datakit/tablesync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLocalState_Scan(t *testing.T) {
	ws := newTestWorkspace(t)
	writeLocal(t, ws, "index.html", "<html/>")
	writeLocal(t, ws, "config/app.json", "{}")
	writeLocal(t, ws, "tables/T1/properties.csv", "p")
	writeLocal(t, ws, "assets/csv/T1.csv", "c")
	writeLocal(t, ws, ".data/journal.db", "x")
	writeLocal(t, ws, "scratch.tmp", "x")

	state := NewSyncLocalState(ws, nil)

	files, err := state.Scan([]string{""}, manifest.AppFilter())
	require.NoError(t, err)
	assert.Equal(t, []string{"config/app.json", "index.html"}, files)

	filter, err := manifest.TableFilter("T1")
	require.NoError(t, err)
	files, err = state.Scan([]string{"tables/T1", "assets/csv", "tables/T1"}, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/csv/T1.csv", "tables/T1/properties.csv"}, files)

	files, err = state.Scan([]string{"missing"}, manifest.AttachmentFilter())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSyncLocalState_HashReusesJournal(t *testing.T) {
	ws := newTestWorkspace(t)
	j := openJournal(t)
	state := NewSyncLocalState(ws, j)

	writeLocal(t, ws, "a.txt", "hello")
	hash, err := state.Hash("a.txt")
	require.NoError(t, err)
	assert.Equal(t, utils.BytesHash([]byte("hello")), hash)

	remembered, err := j.GetHash("a.txt")
	require.NoError(t, err)
	require.NotNil(t, remembered)

	// an unchanged size and mod time is trusted without reading the file
	remembered.Hash = "md5:remembered"
	require.NoError(t, j.SetHash(remembered))
	hash, err = state.Hash("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "md5:remembered", hash)

	writeLocal(t, ws, "a.txt", "hello world")
	hash, err = state.Hash("a.txt")
	require.NoError(t, err)
	assert.Equal(t, utils.BytesHash([]byte("hello world")), hash)

	state.Forget("a.txt")
	remembered, err = j.GetHash("a.txt")
	require.NoError(t, err)
	assert.Nil(t, remembered)

	_, err = state.Hash("missing.txt")
	assert.Error(t, err)
}
