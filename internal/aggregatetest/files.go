package aggregatetest

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/datakit/tablesync/internal/client/workspace"
	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/datakit/tablesync/internal/utils"
	"github.com/gin-gonic/gin"
)

// PutFile stores a file on the server under an app relative path
func (s *Server) PutFile(relPath string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[utils.NormPath(relPath)] = append([]byte(nil), content...)
}

// File returns the stored content of an app relative path
func (s *Server) File(relPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[utils.NormPath(relPath)]
	return b, ok
}

// Files lists every stored path, sorted
func (s *Server) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.files)
}

func (s *Server) downloadURL(relPath string) string {
	return s.BaseURL() + "files/" + s.ClientVersion + "/" + utils.EscapePath(relPath)
}

func (s *Server) entry(relPath, filename string) syncsdk.ManifestEntry {
	content := s.files[relPath]
	return syncsdk.ManifestEntry{
		Filename:      filename,
		ContentLength: int64(len(content)),
		ContentType:   utils.DetectContentType(relPath),
		MD5Hash:       utils.BytesHash(content),
		DownloadURL:   s.downloadURL(relPath),
	}
}

func (s *Server) checkVersion(c *gin.Context) bool {
	if c.Param("cv") != s.ClientVersion {
		c.AbortWithStatus(http.StatusNotFound)
		return false
	}
	return true
}

func isTableAsset(relPath, tableID string) bool {
	name, ok := strings.CutPrefix(relPath, "assets/csv/")
	if !ok {
		return false
	}
	// assets/csv/<id>.<qualifier>.csv or anything under assets/csv/<id>/
	segment, _, _ := strings.Cut(name, "/")
	first, _, _ := strings.Cut(segment, ".")
	return first == tableID
}

func (s *Server) appManifest(c *gin.Context) {
	if !s.checkVersion(c) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := syncsdk.Manifest{Files: []syncsdk.ManifestEntry{}}
	for _, p := range sortedKeys(s.files) {
		if strings.HasPrefix(p, "tables/") || strings.HasPrefix(p, "assets/csv/") {
			continue
		}
		m.Files = append(m.Files, s.entry(p, p))
	}
	s.respond(c, http.StatusOK, m)
}

func (s *Server) tableManifest(c *gin.Context) {
	if !s.checkVersion(c) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tableID := c.Param("tableId")
	prefix := "tables/" + tableID + "/"
	instances := prefix + "instances/"

	m := syncsdk.Manifest{Files: []syncsdk.ManifestEntry{}}
	for _, p := range sortedKeys(s.files) {
		inTable := strings.HasPrefix(p, prefix) && !strings.HasPrefix(p, instances)
		if inTable || isTableAsset(p, tableID) {
			m.Files = append(m.Files, s.entry(p, p))
		}
	}
	s.respond(c, http.StatusOK, m)
}

func (s *Server) attachmentManifest(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instances := "tables/" + c.Param("tableId") + "/instances/"
	rowPrefix := instances + workspace.SafeRowDir(c.Param("rowId")) + "/"

	m := syncsdk.Manifest{Files: []syncsdk.ManifestEntry{}}
	for _, p := range sortedKeys(s.files) {
		if strings.HasPrefix(p, rowPrefix) {
			m.Files = append(m.Files, s.entry(p, strings.TrimPrefix(p, instances)))
		}
	}
	s.respond(c, http.StatusOK, m)
}

func (s *Server) store(c *gin.Context, relPath string) {
	if !utils.IsSubPath(relPath) {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	s.PutFile(relPath, body)
	c.Status(http.StatusCreated)
}

func (s *Server) uploadFile(c *gin.Context) {
	if !s.checkVersion(c) {
		return
	}
	s.store(c, utils.NormPath(c.Param("path")))
}

func (s *Server) uploadAttachment(c *gin.Context) {
	rel := "tables/" + c.Param("tableId") + "/instances/" + utils.NormPath(c.Param("path"))
	// attachments are immutable once stored
	if existing, ok := s.File(rel); ok {
		body, _ := io.ReadAll(c.Request.Body)
		if utils.BytesHash(existing) != utils.BytesHash(body) {
			c.AbortWithStatus(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
		return
	}
	s.store(c, rel)
}

func (s *Server) deleteFile(c *gin.Context) {
	if !s.checkVersion(c) {
		return
	}
	rel := utils.NormPath(c.Param("path"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[rel]; !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	delete(s.files, rel)
	c.Status(http.StatusOK)
}

func (s *Server) downloadFile(c *gin.Context) {
	if !s.checkVersion(c) {
		return
	}
	rel := utils.NormPath(c.Param("path"))
	content, ok := s.File(rel)
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	if f := s.takeFault(rel); f != nil {
		switch {
		case f.Status != 0:
			c.String(f.Status, "injected failure")
			return
		case f.Truncate:
			truncate(c, content)
			return
		}
	}

	c.Data(http.StatusOK, utils.DetectContentType(rel), content)
}

// truncate promises the full length, writes half of it and drops the connection
func truncate(c *gin.Context, content []byte) {
	c.Writer.Header().Set("Content-Type", "application/octet-stream")
	c.Writer.Header().Set("Content-Length", strconv.Itoa(len(content)))
	c.Writer.WriteHeader(http.StatusOK)
	_, _ = c.Writer.Write(content[:len(content)/2])
	c.Writer.Flush()
	if hj, ok := c.Writer.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			_ = conn.Close()
		}
	}
	c.Abort()
}
