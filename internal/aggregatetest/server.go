// Package aggregatetest provides an in-memory odktables server for tests.
package aggregatetest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/datakit/tablesync/internal/syncsdk"
	"github.com/datakit/tablesync/internal/utils"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"
)

const (
	DefaultAppName       = "default"
	DefaultClientVersion = "200"
)

// Fault alters the next Times responses for one file download
type Fault struct {
	Status   int  // respond with this status instead of the file
	Truncate bool // send half the body and drop the connection
	Times    int  // how many requests are affected, at least one
}

// Server is a fake odktables server backed by maps
type Server struct {
	AppName       string
	ClientVersion string
	// Token, when set, is required as a bearer token on every request
	Token string
	// EmptyDeleteTag makes row deletes answer with an empty body
	EmptyDeleteTag bool
	// PreferXML answers metadata calls in XML
	PreferXML bool

	mu        sync.Mutex
	tables    map[string]*table
	files     map[string][]byte
	faults    map[string]*Fault
	forbidden map[string]bool
	requests  []string
	seq       int

	srv *httptest.Server
}

type table struct {
	id         string
	schemaETag string
	dataETag   string
	columns    []syncsdk.Column
	rows       map[string]*syncsdk.RowResource
	// changedAt maps row id to the data tag sequence of its last change
	changedAt map[string]int
	// etagSeq maps a data tag to its sequence number
	etagSeq map[string]int
}

// New starts a server. gzipDownloads compresses file downloads.
func New(gzipDownloads bool) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		AppName:       DefaultAppName,
		ClientVersion: DefaultClientVersion,
		tables:        make(map[string]*table),
		files:         make(map[string][]byte),
		faults:        make(map[string]*Fault),
		forbidden:     make(map[string]bool),
	}
	s.srv = httptest.NewServer(s.routes(gzipDownloads))
	return s
}

func (s *Server) routes(gzipDownloads bool) http.Handler {
	r := gin.New()

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelDebug,
		ServerErrorLevel: slog.LevelWarn,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(s.record, s.auth)

	base := r.Group("/odktables/:app", s.checkApp)
	{
		base.GET("/tables/", s.listTables)
		base.GET("/tables/:tableId", s.getTable)
		base.PUT("/tables/:tableId", s.createTable)
		base.DELETE("/tables/:tableId", s.deleteTable)
		base.GET("/tables/:tableId/ref/:schema", s.getDefinition)
		base.GET("/tables/:tableId/ref/:schema/rows", s.listRows)
		base.GET("/tables/:tableId/ref/:schema/diff", s.diffRows)
		base.PUT("/tables/:tableId/ref/:schema/rows/:rowId", s.putRow)
		base.DELETE("/tables/:tableId/ref/:schema/rows/:rowId", s.deleteRow)
		base.GET("/tables/:tableId/attachments/manifest/:rowId", s.attachmentManifest)
		base.POST("/tables/:tableId/attachments/file/*path", s.uploadAttachment)

		base.GET("/manifest/:cv/", s.appManifest)
		base.GET("/manifest/:cv/:tableId", s.tableManifest)

		base.POST("/files/:cv/*path", s.uploadFile)
		base.DELETE("/files/:cv/*path", s.deleteFile)

		download := base.Group("/files/:cv")
		if gzipDownloads {
			download.Use(gzip.Gzip(gzip.BestSpeed, gzip.WithExcludedExtensions([]string{})))
		}
		download.GET("/*path", s.downloadFile)
	}

	return r
}

// URL is the server root, to be used as the client's server URL
func (s *Server) URL() string {
	return s.srv.URL
}

// BaseURL is {server}/odktables/{app}/
func (s *Server) BaseURL() string {
	return s.srv.URL + "/odktables/" + s.AppName + "/"
}

func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.Method+" "+c.Request.URL.Path)
	s.mu.Unlock()
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if s.Token != "" && c.GetHeader("Authorization") != "Bearer "+s.Token {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if s.isForbidden(c.Request.URL.Path) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func (s *Server) checkApp(c *gin.Context) {
	if c.Param("app") != s.AppName {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.Next()
}

// Requests returns "METHOD /path" for every request seen so far
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts requests with the method whose path contains fragment
func (s *Server) CountRequests(method, fragment string) int {
	n := 0
	for _, r := range s.Requests() {
		m, p, _ := strings.Cut(r, " ")
		if m == method && strings.Contains(p, fragment) {
			n++
		}
	}
	return n
}

// Forbid makes every request whose path contains fragment answer 403
func (s *Server) Forbid(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forbidden[fragment] = true
}

func (s *Server) isForbidden(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range s.forbidden {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

// InjectFault alters downloads of relPath
func (s *Server) InjectFault(relPath string, f Fault) {
	if f.Times <= 0 {
		f.Times = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[utils.NormPath(relPath)] = &f
}

func (s *Server) takeFault(relPath string) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[relPath]
	if !ok {
		return nil
	}
	f.Times--
	if f.Times <= 0 {
		delete(s.faults, relPath)
	}
	out := *f
	return &out
}

func (s *Server) respond(c *gin.Context, code int, body any) {
	if s.PreferXML {
		c.XML(code, body)
		return
	}
	c.JSON(code, body)
}

func (s *Server) nextETag(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
