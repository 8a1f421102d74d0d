package syncsdk

// ManifestEntry is one server advertised file
type ManifestEntry struct {
	Filename      string `json:"filename" xml:"filename"`
	ContentLength int64  `json:"contentLength,omitempty" xml:"contentLength,omitempty"`
	ContentType   string `json:"contentType,omitempty" xml:"contentType,omitempty"`
	MD5Hash       string `json:"md5hash" xml:"md5hash"`
	DownloadURL   string `json:"downloadUrl" xml:"downloadUrl"`
}

// Manifest is the body of every manifest endpoint
type Manifest struct {
	Files []ManifestEntry `json:"files" xml:"files>file"`
}
