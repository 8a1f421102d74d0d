package syncsdk

import (
	"net/url"

	"github.com/datakit/tablesync/internal/utils"
)

// endpoints builds absolute server URLs under {server}/odktables/{appName}/
type endpoints struct {
	base          string
	clientVersion string
}

func newEndpoints(serverURL, appName, clientVersion string) (*endpoints, error) {
	base, err := utils.NormalizeURI(serverURL, "/odktables/"+url.PathEscape(appName)+"/")
	if err != nil {
		return nil, err
	}
	return &endpoints{base: base, clientVersion: clientVersion}, nil
}

func (e *endpoints) join(fragment string) string {
	u, err := utils.NormalizeURI(e.base, fragment)
	if err != nil {
		// base was validated at construction
		return e.base + fragment
	}
	return u
}

func (e *endpoints) Base() string {
	return e.base
}

func (e *endpoints) Tables() string {
	return e.join("tables/")
}

func (e *endpoints) Table(tableID string) string {
	return e.join("tables/" + url.PathEscape(tableID))
}

func (e *endpoints) AppManifest() string {
	return e.join("manifest/" + e.clientVersion + "/")
}

func (e *endpoints) TableManifest(tableID string) string {
	return e.join("manifest/" + e.clientVersion + "/" + url.PathEscape(tableID))
}

func (e *endpoints) AttachmentManifest(tableID, rowID string) string {
	return e.join("tables/" + url.PathEscape(tableID) + "/attachments/manifest/" + url.PathEscape(rowID))
}

// File is the upload/delete locator of an app-relative path
func (e *endpoints) File(relPath string) string {
	return e.join("files/" + e.clientVersion + "/" + utils.EscapePath(relPath))
}

// AttachmentFile is the upload locator of a path relative to the table's instances folder
func (e *endpoints) AttachmentFile(tableID, instancePath string) string {
	return e.join("tables/" + url.PathEscape(tableID) + "/attachments/file/" + utils.EscapePath(instancePath))
}

// Row is the locator of one row under a table's data URI
func (e *endpoints) Row(dataURI, rowID string) (string, error) {
	return utils.NormalizeURI(dataURI, url.PathEscape(rowID))
}
