package syncsdk

import (
	"context"
)

// FilesAPI uploads, deletes and downloads individual files
type FilesAPI struct {
	api      *apiClient
	urls     *endpoints
	transfer *Transfer
}

// URL is the files endpoint locator of an app relative path
func (f *FilesAPI) URL(relPath string) string {
	return f.urls.File(relPath)
}

// Upload posts an app level or table level file
func (f *FilesAPI) Upload(ctx context.Context, localPath, relPath string) error {
	return f.transfer.Upload(ctx, localPath, f.urls.File(relPath), nil)
}

// UploadAttachment posts a row attachment. instancePath is relative to tables/{tableId}/instances/.
func (f *FilesAPI) UploadAttachment(ctx context.Context, tableID, localPath, instancePath string) error {
	return f.transfer.Upload(ctx, localPath, f.urls.AttachmentFile(tableID, instancePath), nil)
}

// Delete removes an app relative file on the server
func (f *FilesAPI) Delete(ctx context.Context, relPath string) error {
	target := f.urls.File(relPath)
	resp, err := f.api.R(ctx, target).
		SetRetryCount(0).
		Delete(target)
	return f.api.check(resp, err, "file delete")
}

// Download fetches one manifest entry into dest
func (f *FilesAPI) Download(ctx context.Context, entry ManifestEntry, dest string) error {
	return f.transfer.Download(ctx, &DownloadRequest{URL: entry.DownloadURL, Dest: dest})
}

// DownloadVerified is Download with the manifest hash checked before commit
func (f *FilesAPI) DownloadVerified(ctx context.Context, entry ManifestEntry, dest string) error {
	return f.transfer.Download(ctx, &DownloadRequest{URL: entry.DownloadURL, Dest: dest, ExpectedHash: entry.MD5Hash})
}

func (f *FilesAPI) Transfer() *Transfer {
	return f.transfer
}
