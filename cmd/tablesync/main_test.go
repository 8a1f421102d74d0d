package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datakit/tablesync/internal/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlag(t *testing.T, name string) {
	t.Helper()
	t.Cleanup(func() {
		f := rootCmd.PersistentFlags().Lookup(name)
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestLoadConfigEnv(t *testing.T) {
	appDir := filepath.Join(t.TempDir(), "survey")
	t.Setenv("TABLESYNC_APP_DIR", appDir)
	t.Setenv("TABLESYNC_SERVER_URL", "https://sync.test.org/")
	t.Setenv("TABLESYNC_ACCESS_TOKEN", "test-access-token")
	t.Setenv("TABLESYNC_WORKERS", "8")
	t.Setenv("TABLESYNC_CONNECT_TIMEOUT", "5s")
	t.Setenv("TABLESYNC_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, appDir, cfg.AppDir)
	assert.Equal(t, "survey", cfg.AppName)
	assert.Equal(t, "https://sync.test.org", cfg.ServerURL)
	assert.Equal(t, "test-access-token", cfg.AccessToken)
	assert.Equal(t, config.ValidationTokenInfo, cfg.TokenValidation)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, config.DefaultTimeout, cfg.ReadTimeout)
	assert.True(t, strings.HasSuffix(cfg.Path, "missing.json"))
}

func TestLoadConfigJSON(t *testing.T) {
	appDir := filepath.Join(t.TempDir(), "default")
	dummyConfig := `
{
	"app_dir": "` + filepath.ToSlash(appDir) + `",
	"app_name": "default",
	"server_url": "https://json.sync.test.org",
	"access_token": "test-access-token-json",
	"token_validation": "none",
	"workers": 2
}
`
	dummyConfigFile := filepath.Join(t.TempDir(), "dummy.json")
	require.NoError(t, os.WriteFile(dummyConfigFile, []byte(dummyConfig), 0o644))

	resetFlag(t, "config")
	require.NoError(t, rootCmd.PersistentFlags().Set("config", dummyConfigFile))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, dummyConfigFile, cfg.Path)
	assert.Equal(t, filepath.Clean(appDir), cfg.AppDir)
	assert.Equal(t, "default", cfg.AppName)
	assert.Equal(t, "https://json.sync.test.org", cfg.ServerURL)
	assert.Equal(t, "test-access-token-json", cfg.AccessToken) // can read, but not persist!
	assert.Equal(t, config.ValidationNone, cfg.TokenValidation)
	assert.Equal(t, 2, cfg.Workers)

	// a flag set on the command line beats the file
	resetFlag(t, "server")
	require.NoError(t, rootCmd.PersistentFlags().Set("server", "http://localhost:9090"))
	cfg, err = loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090", cfg.ServerURL)
}

func TestLoadConfigBadJSON(t *testing.T) {
	badConfigFile := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badConfigFile, []byte("{not json"), 0o644))

	resetFlag(t, "config")
	require.NoError(t, rootCmd.PersistentFlags().Set("config", badConfigFile))

	_, err := loadConfig(rootCmd)
	assert.Error(t, err)
}

func TestParseColumns(t *testing.T) {
	cols, err := parseColumns([]string{"name", "age:integer", " city :string"})
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "name", cols[0].ElementKey)
	assert.Equal(t, "string", cols[0].ElementType)
	assert.Equal(t, "integer", cols[1].ElementType)
	assert.Equal(t, "city", cols[2].ElementKey)

	_, err = parseColumns([]string{":integer"})
	assert.Error(t, err)
}

func TestReadRows(t *testing.T) {
	rows, err := readRows(strings.NewReader(`[{"rowId":"uuid:1","deleted":true,"orderedColumns":[{"column":"name","value":"Ann"}]}]`), "-")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "uuid:1", rows[0].RowID)
	assert.True(t, rows[0].Deleted)
	assert.Equal(t, "Ann", rows[0].Values[0].Value)

	_, err = readRows(strings.NewReader("nope"), "-")
	assert.Error(t, err)
	_, err = readRows(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
