package syncsdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	e, err := newEndpoints("https://sync.example.org:8443/aggregate/", "survey", "200")
	require.NoError(t, err)

	base := "https://sync.example.org:8443/aggregate/odktables/survey/"
	assert.Equal(t, base, e.Base())
	assert.Equal(t, base+"tables/", e.Tables())
	assert.Equal(t, base+"tables/T1", e.Table("T1"))
	assert.Equal(t, base+"manifest/200/", e.AppManifest())
	assert.Equal(t, base+"manifest/200/T1", e.TableManifest("T1"))
	assert.Equal(t, base+"tables/T1/attachments/manifest/uuid:42", e.AttachmentManifest("T1", "uuid:42"))
	assert.Equal(t, base+"files/200/tables/T1/forms/my%20form.json", e.File("tables/T1/forms/my form.json"))
	assert.Equal(t, base+"tables/T1/attachments/file/uuid:42/photo.jpg", e.AttachmentFile("T1", "uuid:42/photo.jpg"))

	row, err := e.Row(base+"tables/T1/ref/s1/rows", "uuid:42")
	require.NoError(t, err)
	assert.Equal(t, base+"tables/T1/ref/s1/rows/uuid:42", row)
}

func TestSyncSDKConfig_Validate(t *testing.T) {
	cfg := &SyncSDKConfig{}
	assert.ErrorIs(t, cfg.Validate(), ErrNoServerURL)

	cfg = &SyncSDKConfig{ServerURL: "https://sync.example.org"}
	assert.ErrorIs(t, cfg.Validate(), ErrNoAppName)

	cfg = &SyncSDKConfig{ServerURL: "sync.example.org", AppName: "survey"}
	assert.Error(t, cfg.Validate())

	cfg = &SyncSDKConfig{ServerURL: "https://sync.example.org", AppName: "survey"}
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.ClientVersion)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)

	cfg = &SyncSDKConfig{ServerURL: "https://sync.example.org", AppName: "survey", MaxRetries: -1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.MaxRetries)

	cfg = &SyncSDKConfig{ServerURL: "https://sync.example.org", AppName: "survey", MaxRetries: 3}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MaxRetryLimit, cfg.MaxRetries)
}
