package syncsdk

import (
	"context"
)

// ManifestAPI fetches file manifests for the three sync scopes
type ManifestAPI struct {
	api  *apiClient
	urls *endpoints
}

// App is the manifest of application level files
func (m *ManifestAPI) App(ctx context.Context) ([]ManifestEntry, error) {
	return m.fetch(ctx, m.urls.AppManifest(), "app manifest")
}

// Table is the manifest of one table's files. Filenames are app relative.
func (m *ManifestAPI) Table(ctx context.Context, tableID string) ([]ManifestEntry, error) {
	return m.fetch(ctx, m.urls.TableManifest(tableID), "table manifest")
}

// Attachments is the manifest of one row's attachments. Filenames are relative to
// the table's instances folder.
func (m *ManifestAPI) Attachments(ctx context.Context, tableID, rowID string) ([]ManifestEntry, error) {
	return m.fetch(ctx, m.urls.AttachmentManifest(tableID, rowID), "attachment manifest")
}

func (m *ManifestAPI) fetch(ctx context.Context, target, op string) ([]ManifestEntry, error) {
	var manifest Manifest
	resp, err := m.api.R(ctx, target).
		SetSuccessResult(&manifest).
		Get(target)
	if err := m.api.check(resp, err, op); err != nil {
		return nil, err
	}
	return manifest.Files, nil
}
